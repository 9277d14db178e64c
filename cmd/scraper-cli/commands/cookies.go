package commands

import (
	"io"
	"strconv"

	"cookiescraper/internal/cookies"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	cookiesCmd.AddCommand(cookiesListCmd)
	cookiesCmd.AddCommand(cookiesSetCmd)
	cookiesCmd.AddCommand(cookiesClearCmd)
	rootCmd.AddCommand(cookiesCmd)
}

var cookiesCmd = &cobra.Command{
	Use:   "cookies",
	Short: "Inspects and edits the cookie file.",
}

func renderCookies(w io.Writer, list []cookies.Cookie) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Domain", "Path", "Name", "Value", "Secure", "HttpOnly", "Expires"})

	for _, c := range list {
		domain := c.Domain
		if domain == "" {
			domain = "*"
		} else if !c.HostOnly {
			domain = "." + domain
		}
		expires := "session"
		if !c.IsSession() {
			expires = c.Expires.UTC().Format("2006-01-02 15:04:05")
		}
		t.AppendRow(table.Row{
			domain,
			c.Path,
			c.Name,
			c.Value,
			strconv.FormatBool(c.Secure),
			strconv.FormatBool(c.HttpOnly),
			expires,
		})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}

var cookiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Prints the cookies in the cookie file.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		renderCookies(cmd.OutOrStdout(), s.client.Cookies())
		return nil
	},
}

var cookiesSetCmd = &cobra.Command{
	Use:   "set <name=value>...",
	Short: "Adds cookies sent to every host and saves the cookie file.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs, err := parsePairs(args)
		if err != nil {
			return err
		}
		values := map[string]string{}
		for name := range pairs {
			values[name] = pairs.Get(name)
		}

		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		s.client.AddCookiesManual(values)
		return s.client.SaveCookies()
	},
}

var cookiesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Removes every cookie from the cookie file.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		s.client.ClearCookies()
		return s.client.SaveCookies()
	},
}
