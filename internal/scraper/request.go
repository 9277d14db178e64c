package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
)

type noRedirectKeyType int

var noRedirectKey noRedirectKeyType

func redirectPolicy(req *http.Request, via []*http.Request) error {
	if noRedirect, _ := req.Context().Value(noRedirectKey).(bool); noRedirect {
		return http.ErrUseLastResponse
	}
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	return nil
}

// Get sends a GET with the stored cookies. When followRedirects is false a redirect response
// is returned as is.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values, followRedirects bool) (*Response, error) {
	if !followRedirects {
		ctx = context.WithValue(ctx, noRedirectKey, true)
	}

	req := c.Http.R().SetContext(ctx)
	if len(params) > 0 {
		req.SetQueryParamsFromValues(params)
	}

	res, err := req.Get(endpoint)
	if err != nil {
		err = classify(http.MethodGet, endpoint, err)
		c.tel.ReportBroken(report_client_get, err)
		return nil, err
	}
	return c.finish(res), nil
}

// Post sends a POST with either a form or a json body. If both are given the json body is
// sent and the form is ignored.
func (c *Client) Post(ctx context.Context, endpoint string, form url.Values, jsonBody any) (*Response, error) {
	req := c.Http.R().SetContext(ctx)

	switch {
	case jsonBody != nil:
		if form != nil {
			c.tel.ReportWarning(report_client_post, "both form and json body given, sending json", endpoint)
		}
		body, err := json.Marshal(jsonBody)
		if err != nil {
			return nil, fmt.Errorf("scraper: POST %s: encode json body: %w", endpoint, err)
		}
		req.SetHeader("Content-Type", "application/json")
		req.SetBody(body)
	case form != nil:
		req.SetFormDataFromValues(form)
	}

	res, err := req.Post(endpoint)
	if err != nil {
		err = classify(http.MethodPost, endpoint, err)
		c.tel.ReportBroken(report_client_post, err)
		return nil, err
	}
	return c.finish(res), nil
}

// finish runs after the cookie store has merged the Set-Cookie headers of every hop, it then
// records the domain the response came from.
func (c *Client) finish(res *resty.Response) *Response {
	finalUrl := res.RawResponse.Request.URL
	c.targetDomain = strings.ToLower(finalUrl.Hostname())

	return &Response{
		StatusCode: res.StatusCode(),
		Status:     res.Status(),
		Header:     res.Header(),
		Body:       res.Body(),
		URL:        finalUrl,
	}
}
