package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"cookiescraper/internal/scraper"
	"cookiescraper/lib/htmlutil"
	"cookiescraper/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"
)

var (
	demoHttpbin string
	demoNews    string
)

func init() {
	demoCmd.Flags().StringVar(&demoHttpbin, "httpbin", "https://httpbin.org", "Base url of an httpbin compatible server.")
	demoCmd.Flags().StringVar(&demoNews, "news", "https://es.python.org/", "Page to read the latest news from.")
	rootCmd.AddCommand(demoCmd)
}

type newsItem struct {
	Title   string
	Link    string
	Summary string
}

// extractNews reads the page title and the news cards (div.mb-3.col) of a page, cards
// without a title are skipped.
func extractNews(doc *goquery.Document) (string, []newsItem) {
	title := htmlutil.CleanText(doc.Find("title").First())

	var items []newsItem
	doc.Find("div.mb-3.col").Each(func(_ int, card *goquery.Selection) {
		postTitle := card.Find(".post-title").First()
		if postTitle.Length() == 0 {
			return
		}
		item := newsItem{
			Title:   htmlutil.CleanText(postTitle),
			Summary: htmlutil.CleanText(card.Find(".post-content").First()),
		}
		anchors := htmlutil.GetAnchors(doc.Url, card.Find("a[href]").First())
		if len(anchors) > 0 {
			item.Link = anchors[0].Href.String()
		}
		items = append(items, item)
	})
	return title, items
}

func printJson(w io.Writer, res *scraper.Response) error {
	var body any
	err := res.JSON(&body)
	if err != nil {
		return fmt.Errorf("decode %s: %w", res.URL, err)
	}
	out, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(out))
	return nil
}

var demoCmd = &cobra.Command{
	Use:   "demo [--httpbin <url>] [--news <url>]",
	Short: "Walks through setting, saving and sending cookies, then reads a news page.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		w := cmd.OutOrStdout()
		base := strings.TrimRight(demoHttpbin, "/")

		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()
		client := s.client

		fmt.Fprintln(w, "\n=== 1. set cookies with GET ===")
		res, err := client.Get(ctx, base+"/cookies/set", url.Values{
			"mi_cookie":     {"12345"},
			"sesion_activa": {"true"},
		}, true)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "status:", res.StatusCode)

		fmt.Fprintln(w, "\n=== 2. check cookies ===")
		res, err = client.Get(ctx, base+"/cookies", nil, true)
		if err != nil {
			return err
		}
		err = printJson(w, res)
		if err != nil {
			return err
		}

		fmt.Fprintln(w, "\n=== 3. save cookies ===")
		err = client.SaveCookies()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "saved to", client.CookiesFile())

		fmt.Fprintln(w, "\n=== 4. add a cookie manually ===")
		client.AddCookiesManual(map[string]string{"manual_cookie": "valor123"})
		res, err = client.Get(ctx, base+"/cookies", nil, true)
		if err != nil {
			return err
		}
		err = printJson(w, res)
		if err != nil {
			return err
		}

		fmt.Fprintln(w, "\n=== 5. GET without following redirects ===")
		res, err = client.Get(ctx, demoNews, nil, false)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "status:", res.StatusCode)
		doc, err := res.Document()
		if err != nil {
			return err
		}
		title, news := extractNews(doc)
		fmt.Fprintln(w, "title:", title)
		fmt.Fprintln(w, textutil.Truncate(res.Text(), 200))

		fmt.Fprintln(w, "\n=== latest news ===")
		for _, item := range news {
			fmt.Fprintf(w, "- %s: %s\n", item.Title, item.Link)
			fmt.Fprintf(w, "  %s\n", item.Summary)
		}
		return nil
	},
}
