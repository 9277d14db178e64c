package commands

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

var (
	postForm  []string
	postJson  string
	postSave  bool
	postLimit int
)

func init() {
	postCmd.Flags().StringArrayVarP(&postForm, "form", "f", nil, "A form field as key=value, may be repeated.")
	postCmd.Flags().StringVar(&postJson, "json", "", "A json document to send as the body, wins over --form.")
	postCmd.Flags().BoolVar(&postSave, "save", true, "Save the cookie file after the request.")
	postCmd.Flags().IntVar(&postLimit, "limit", 0, "Print at most this many characters of the body.")
	rootCmd.AddCommand(postCmd)
}

var postCmd = &cobra.Command{
	Use:   "post <url> [-f key=value]... [--json <document>]",
	Short: "Sends a POST request with a form or json body and the stored cookies.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var form url.Values
		if len(postForm) > 0 {
			var err error
			form, err = parsePairs(postForm)
			if err != nil {
				return err
			}
		}

		var body any
		if postJson != "" {
			if !json.Valid([]byte(postJson)) {
				return fmt.Errorf("--json is not a valid json document")
			}
			body = json.RawMessage(postJson)
		}

		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := s.client.Post(cmd.Context(), args[0], form, body)
		if err != nil {
			return err
		}
		printResponse(cmd.OutOrStdout(), res, postLimit)

		if postSave {
			return s.client.SaveCookies()
		}
		return nil
	},
}
