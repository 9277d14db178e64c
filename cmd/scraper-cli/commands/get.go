package commands

import (
	"github.com/spf13/cobra"
)

var (
	getParams     []string
	getNoRedirect bool
	getSave       bool
	getLimit      int
)

func init() {
	getCmd.Flags().StringArrayVarP(&getParams, "param", "p", nil, "A query parameter as key=value, may be repeated.")
	getCmd.Flags().BoolVar(&getNoRedirect, "no-redirect", false, "Return a redirect response instead of following it.")
	getCmd.Flags().BoolVar(&getSave, "save", true, "Save the cookie file after the request.")
	getCmd.Flags().IntVar(&getLimit, "limit", 0, "Print at most this many characters of the body.")
	rootCmd.AddCommand(getCmd)
}

var getCmd = &cobra.Command{
	Use:   "get <url> [-p key=value]... [--no-redirect] [--save=false]",
	Short: "Sends a GET request with the stored cookies.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parsePairs(getParams)
		if err != nil {
			return err
		}

		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := s.client.Get(cmd.Context(), args[0], params, !getNoRedirect)
		if err != nil {
			return err
		}
		printResponse(cmd.OutOrStdout(), res, getLimit)

		if getSave {
			return s.client.SaveCookies()
		}
		return nil
	},
}
