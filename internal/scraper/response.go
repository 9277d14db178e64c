package scraper

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
	// URL is the url the response actually came from, after any redirects.
	URL *url.URL
}

// Text decodes the body to UTF-8 using the charset from the Content-Type header, or one
// sniffed from the body when the header does not name one.
func (r *Response) Text() string {
	reader, err := charset.NewReader(bytes.NewReader(r.Body), r.Header.Get("Content-Type"))
	if err != nil {
		return string(r.Body)
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return string(r.Body)
	}
	return string(decoded)
}

func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Document parses the body as HTML.
func (r *Response) Document() (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(r.Text()))
	if err != nil {
		return nil, err
	}
	doc.Url = r.URL
	return doc, nil
}
