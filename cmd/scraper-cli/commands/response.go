package commands

import (
	"fmt"
	"io"

	"cookiescraper/internal/scraper"
	"cookiescraper/lib/textutil"
)

// printResponse writes the status line and final url followed by the decoded body, `limit`
// caps the body in runes when positive.
func printResponse(w io.Writer, res *scraper.Response, limit int) {
	fmt.Fprintf(w, "%s %s\n\n", res.Status, res.URL)
	body := res.Text()
	if limit > 0 {
		body = textutil.Truncate(body, limit)
	}
	fmt.Fprintln(w, body)
}
