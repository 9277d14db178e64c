package scraper

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"cookiescraper/internal/components/telemetry"
	"cookiescraper/internal/cookies"
	"cookiescraper/lib/decompress"
	"cookiescraper/lib/restyutil"
	libtelemetry "cookiescraper/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"github.com/spf13/afero"
)

const (
	DefaultCookiesFile = "cookies.txt"
	DefaultTimeout     = 20 * time.Second
	maxRedirects       = 10
)

const (
	report_client_load_cookies   = "client.load-cookies"
	report_client_save_cookies   = "client.save-cookies"
	report_client_manual_cookies = "client.add-cookies-manual"
	report_client_get            = "client.get"
	report_client_post           = "client.post"
	report_client_cookie_count   = "client.cookie-count"
)

type ClientOptions struct {
	// CookiesFile defaults to DefaultCookiesFile.
	CookiesFile string
	// Timeout bounds every request, defaults to DefaultTimeout.
	Timeout time.Duration
	// Fs is where the cookie file lives, defaults to the OS filesystem.
	Fs afero.Fs
	// Transport is the base round tripper, defaults to resty's transport.
	Transport http.RoundTripper
	// CloudflareBypass wraps the transport with browser-like TLS settings.
	CloudflareBypass bool
	// DumpOutput, if set, receives the full text of every exchange.
	DumpOutput restyutil.InstrumentOutput
	Tel        telemetry.API
}

// Client performs HTTP requests while collecting cookies into a store that mirrors a
// Netscape cookie file. Cookies are only written to the file when SaveCookies is called.
//
// A Client is not safe for concurrent use.
type Client struct {
	Http *resty.Client

	store        *cookies.Store
	file         cookies.File
	targetDomain string
	tel          telemetry.API
}

// NewClient creates a client and loads the cookie file if it exists. Problems with the cookie
// file are reported and the client starts with an empty store.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.CookiesFile == "" {
		opts.CookiesFile = DefaultCookiesFile
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Tel == nil {
		opts.Tel = telemetry.SlogAPI{}
	}

	c := &Client{
		store: cookies.NewStore(),
		file:  cookies.NewFile(opts.Fs, opts.CookiesFile),
		tel:   telemetry.NewScopedAPI("scraper", opts.Tel),
	}

	httpClient := resty.New()
	transport := opts.Transport
	if transport == nil {
		transport = httpClient.GetClient().Transport
	}
	if opts.CloudflareBypass {
		transport = cloudflarebp.AddCloudFlareByPass(transport)
	}
	httpClient.SetTransport(decompress.New(transport))

	httpClient.SetCookieJar(c.store)
	httpClient.SetHeaders(DefaultHeaders)
	httpClient.SetTimeout(opts.Timeout)
	httpClient.SetRedirectPolicy(resty.RedirectPolicyFunc(redirectPolicy))

	telemetry.InstrumentResty(httpClient, c.tel)
	libtelemetry.InstrumentResty(httpClient, "cookiescraper/scraper/http")
	restyutil.InstrumentClient(httpClient, opts.DumpOutput)

	c.Http = httpClient

	if c.file.Exists() {
		c.LoadCookies()
	}
	return c, nil
}

// CookiesFile returns the path cookies are loaded from and saved to.
func (c *Client) CookiesFile() string {
	return c.file.Path()
}

// TargetDomain is the hostname of the final url of the last completed request, empty
// before any request completed.
func (c *Client) TargetDomain() string {
	return c.targetDomain
}

// LoadCookies merges the cookies in the cookie file into the store. A missing or corrupt file
// is reported and leaves the store unchanged, the returned error is informational only.
func (c *Client) LoadCookies() error {
	loaded, err := c.file.Load()
	if errors.Is(err, cookies.ErrNotFound) {
		c.tel.ReportWarning(report_client_load_cookies, "not found", c.file.Path())
		return err
	}
	if err != nil {
		c.tel.ReportWarning(report_client_load_cookies, "load error", err)
		return err
	}

	c.store.Merge(loaded)
	c.tel.ReportDebug("cookies loaded", c.file.Path(), len(loaded))
	c.tel.ReportCount(report_client_cookie_count, int64(c.store.Len()))
	return nil
}

// SaveCookies overwrites the cookie file with the current store.
func (c *Client) SaveCookies() error {
	err := c.file.Save(c.store.All())
	if err != nil {
		c.tel.ReportBroken(report_client_save_cookies, err)
		return err
	}
	c.tel.ReportDebug("cookies saved", c.file.Path(), c.store.Len())
	return nil
}

// AddCookiesManual sets cookies for the current target domain and its subdomains, or
// cookies sent to every host when no request has completed yet.
func (c *Client) AddCookiesManual(values map[string]string) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if name == "" || strings.ContainsAny(name, "=;\t\r\n ") {
			c.tel.ReportWarning(report_client_manual_cookies, "invalid cookie name", name)
			continue
		}
		c.store.Set(cookies.Cookie{
			Name:     name,
			Value:    values[name],
			Domain:   c.targetDomain,
			Path:     "/",
			HostOnly: false,
		})
	}
	c.tel.ReportDebug("manual cookies added", c.targetDomain, len(names))
}

// Cookies returns a snapshot of the store in insertion order.
func (c *Client) Cookies() []cookies.Cookie {
	return c.store.All()
}

// CookieValues returns the name -> value mapping of the store.
func (c *Client) CookieValues() map[string]string {
	return c.store.Values()
}

// ClearCookies empties the store, the cookie file is left alone until the next save.
func (c *Client) ClearCookies() {
	c.store.Clear()
}
