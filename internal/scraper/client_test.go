package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"cookiescraper/internal/components/telemetry"
	"cookiescraper/internal/cookies"
	"cookiescraper/lib/restyutil"

	"github.com/andybalholm/brotli"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// testTransport resolves every hostname to the test server so that tests can use
// distinct domains.
func testTransport(server *httptest.Server) *http.Transport {
	addr := server.Listener.Addr().String()
	dialer := &net.Dialer{}
	return &http.Transport{
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		},
	}
}

type cookiesResponse struct {
	Cookies map[string]string `json:"cookies"`
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// newTestServer behaves like a small subset of httpbin.org.
func newTestServer(t testing.TB) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/cookies", func(w http.ResponseWriter, r *http.Request) {
		out := cookiesResponse{Cookies: map[string]string{}}
		for _, c := range r.Cookies() {
			out.Cookies[c.Name] = c.Value
		}
		writeJSON(w, out)
	})
	mux.HandleFunc("/cookies/set", func(w http.ResponseWriter, r *http.Request) {
		for name, values := range r.URL.Query() {
			http.SetCookie(w, &http.Cookie{Name: name, Value: values[0], Path: "/"})
		}
		http.Redirect(w, r, "/cookies", http.StatusFound)
	})
	mux.HandleFunc("/set-foo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Set-Cookie", "foo=bar")
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/hop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://b.example/landing", http.StatusFound)
	})
	mux.HandleFunc("/landing", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("landed on " + r.Host))
	})
	mux.HandleFunc("/headers", func(w http.ResponseWriter, r *http.Request) {
		headers := map[string]string{}
		for k := range r.Header {
			headers[k] = r.Header.Get(k)
		}
		writeJSON(w, headers)
	})
	mux.HandleFunc("/post", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		writeJSON(w, map[string]string{
			"content_type": r.Header.Get("Content-Type"),
			"body":         string(body),
		})
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

type testEnv struct {
	server *httptest.Server
	fs     afero.Fs
	tel    *telemetry.TestAPI
}

func setup(t testing.TB) testEnv {
	return testEnv{
		server: newTestServer(t),
		fs:     afero.NewMemMapFs(),
		tel:    &telemetry.TestAPI{},
	}
}

func (e testEnv) client(t testing.TB, timeout time.Duration) *Client {
	t.Helper()
	client, err := NewClient(ClientOptions{
		CookiesFile: "/state/mis_cookies.txt",
		Timeout:     timeout,
		Fs:          e.fs,
		Transport:   testTransport(e.server),
		Tel:         e.tel,
	})
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func sentCookies(t testing.TB, ctx context.Context, client *Client, endpoint string) map[string]string {
	t.Helper()
	res, err := client.Get(ctx, endpoint, nil, true)
	if err != nil {
		t.Fatal(err)
	}
	var out cookiesResponse
	err = res.JSON(&out)
	if err != nil {
		t.Fatal(err)
	}
	return out.Cookies
}

func TestClientDefaults(t *testing.T) {
	client, err := NewClient(ClientOptions{Fs: afero.NewMemMapFs(), Tel: &telemetry.TestAPI{}})
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, DefaultCookiesFile, client.CookiesFile())
	require.Equal(t, DefaultTimeout, client.Http.GetClient().Timeout)
	require.Empty(t, client.TargetDomain())
	require.Empty(t, client.Cookies())
}

func TestSetCookiesThroughRedirect(t *testing.T) {
	env := setup(t)
	client := env.client(t, 5*time.Second)
	ctx := context.Background()

	res, err := client.Get(ctx, "http://httpbin.test/cookies/set", url.Values{
		"mi_cookie":     {"12345"},
		"sesion_activa": {"true"},
	}, true)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "/cookies", res.URL.Path)

	var body cookiesResponse
	err = res.JSON(&body)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, map[string]string{"mi_cookie": "12345", "sesion_activa": "true"}, body.Cookies)
	require.Equal(t, map[string]string{"mi_cookie": "12345", "sesion_activa": "true"}, client.CookieValues())
}

func TestMergeOnResponse(t *testing.T) {
	env := setup(t)
	client := env.client(t, 5*time.Second)
	ctx := context.Background()

	_, err := client.Get(ctx, "http://a.example/set-foo", nil, true)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, map[string]string{"foo": "bar"}, sentCookies(t, ctx, client, "http://a.example/cookies"))
	// host-only cookies stay on their host
	require.Empty(t, sentCookies(t, ctx, client, "http://b.example/cookies"))
}

func TestDomainTracking(t *testing.T) {
	env := setup(t)
	client := env.client(t, 5*time.Second)
	ctx := context.Background()

	res, err := client.Get(ctx, "http://a.example/hop", nil, true)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "landed on b.example", res.Text())
	require.Equal(t, "b.example", res.URL.Hostname())
	require.Equal(t, "b.example", client.TargetDomain())

	res, err = client.Get(ctx, "http://a.example/hop", nil, false)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, http.StatusFound, res.StatusCode)
	require.Equal(t, "http://b.example/landing", res.Header.Get("Location"))
	require.Equal(t, "a.example", client.TargetDomain())
}

func TestAddCookiesManual(t *testing.T) {
	env := setup(t)
	client := env.client(t, 5*time.Second)
	ctx := context.Background()

	client.AddCookiesManual(map[string]string{"early": "1"})
	early := client.Cookies()
	require.Len(t, early, 1)
	require.Equal(t, "", early[0].Domain)

	require.Equal(t, map[string]string{"early": "1"}, sentCookies(t, ctx, client, "http://a.example/cookies"))
	require.Equal(t, "a.example", client.TargetDomain())

	client.AddCookiesManual(map[string]string{"manual_cookie": "valor123", "": "ignored"})
	require.Len(t, env.tel.Find(telemetry.KindWarning, report_client_manual_cookies), 1)

	late, ok := findCookie(client.Cookies(), "manual_cookie")
	require.True(t, ok)
	require.Equal(t, "a.example", late.Domain)
	require.False(t, late.HostOnly)

	require.Equal(t,
		map[string]string{"early": "1", "manual_cookie": "valor123"},
		sentCookies(t, ctx, client, "http://a.example/cookies"),
	)
	require.Equal(t,
		map[string]string{"early": "1", "manual_cookie": "valor123"},
		sentCookies(t, ctx, client, "http://www.a.example/cookies"),
	)
	require.Equal(t,
		map[string]string{"early": "1"},
		sentCookies(t, ctx, client, "http://b.example/cookies"),
	)
}

func TestGetWithExchangeDump(t *testing.T) {
	env := setup(t)
	output, err := restyutil.NewFilesystemOutput(env.fs, "/dump")
	if err != nil {
		t.Fatal(err)
	}
	client, err := NewClient(ClientOptions{
		Fs:         env.fs,
		Transport:  testTransport(env.server),
		DumpOutput: output,
		Tel:        env.tel,
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := client.Get(context.Background(), "http://a.example/landing", nil, true)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "landed on a.example", string(res.Body))
	require.Empty(t, env.tel.Find(telemetry.KindBroken, ""))

	dump, err := afero.ReadFile(env.fs, "/dump/1")
	if err != nil {
		t.Fatal(err)
	}
	require.Contains(t, string(dump), "GET http://a.example/landing")
	require.Contains(t, string(dump), "landed on a.example")
}

func findCookie(all []cookies.Cookie, name string) (cookies.Cookie, bool) {
	for _, c := range all {
		if c.Name == name {
			return c, true
		}
	}
	return cookies.Cookie{}, false
}

func TestPersistenceIsExplicit(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	first := env.client(t, 5*time.Second)
	_, err := first.Get(ctx, "http://httpbin.test/cookies/set", url.Values{"mi_cookie": {"12345"}}, true)
	if err != nil {
		t.Fatal(err)
	}
	// manual cookies go to a different host so they do not show up in the echo below
	_, err = first.Get(ctx, "http://a.example/landing", nil, true)
	if err != nil {
		t.Fatal(err)
	}
	first.AddCookiesManual(map[string]string{"empty": "", "special": `a b;"c",d`})

	exists, _ := afero.Exists(env.fs, first.CookiesFile())
	require.False(t, exists, "requests must not write the cookie file")

	err = first.SaveCookies()
	if err != nil {
		t.Fatal(err)
	}

	second := env.client(t, 5*time.Second)
	require.Equal(t, first.Cookies(), second.Cookies())
	require.Equal(t,
		map[string]string{"mi_cookie": "12345"},
		sentCookies(t, ctx, second, "http://httpbin.test/cookies"),
	)

	// reloading the same file does not change anything
	err = second.LoadCookies()
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, first.Cookies(), second.Cookies())
}

func TestLoadCookiesFailures(t *testing.T) {
	env := setup(t)

	client := env.client(t, 5*time.Second)
	err := client.LoadCookies()
	require.ErrorIs(t, err, cookies.ErrNotFound)
	require.Len(t, env.tel.Find(telemetry.KindWarning, report_client_load_cookies), 1)

	client.AddCookiesManual(map[string]string{"kept": "yes"})
	err = afero.WriteFile(env.fs, client.CookiesFile(), []byte("garbage\n"), 0600)
	if err != nil {
		t.Fatal(err)
	}
	err = client.LoadCookies()
	require.ErrorIs(t, err, cookies.ErrLoad)
	require.Equal(t, map[string]string{"kept": "yes"}, client.CookieValues())

	// a corrupt file never prevents construction
	fresh := env.client(t, 5*time.Second)
	require.Empty(t, fresh.Cookies())
	require.Len(t, env.tel.Find(telemetry.KindWarning, report_client_load_cookies), 3)
}

func TestSaveCookiesFailure(t *testing.T) {
	env := setup(t)
	client, err := NewClient(ClientOptions{
		Fs:  afero.NewReadOnlyFs(afero.NewMemMapFs()),
		Tel: env.tel,
	})
	if err != nil {
		t.Fatal(err)
	}
	client.AddCookiesManual(map[string]string{"a": "b"})

	err = client.SaveCookies()
	require.ErrorIs(t, err, cookies.ErrSave)
	require.Len(t, env.tel.Find(telemetry.KindBroken, report_client_save_cookies), 1)
}

func TestTimeout(t *testing.T) {
	env := setup(t)
	client := env.client(t, 100*time.Millisecond)

	start := time.Now()
	_, err := client.Get(context.Background(), "http://a.example/slow", nil, true)
	require.ErrorIs(t, err, ErrTimeout)
	require.NotErrorIs(t, err, ErrConnection)
	require.Less(t, time.Since(start), 3*time.Second)
	require.Empty(t, client.TargetDomain())
}

func TestConnectionError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL
	server.Close()

	client, err := NewClient(ClientOptions{Fs: afero.NewMemMapFs(), Tel: &telemetry.TestAPI{}})
	if err != nil {
		t.Fatal(err)
	}

	_, err = client.Get(context.Background(), endpoint, nil, true)
	require.ErrorIs(t, err, ErrConnection)
	require.NotErrorIs(t, err, ErrTimeout)

	_, err = client.Post(context.Background(), endpoint, url.Values{"a": {"b"}}, nil)
	require.ErrorIs(t, err, ErrConnection)
}

func TestDefaultHeadersSent(t *testing.T) {
	env := setup(t)
	client := env.client(t, 5*time.Second)

	res, err := client.Get(context.Background(), "http://a.example/headers", nil, true)
	if err != nil {
		t.Fatal(err)
	}
	var headers map[string]string
	err = res.JSON(&headers)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"User-Agent", "Accept", "Accept-Language", "Accept-Encoding", "Upgrade-Insecure-Requests"} {
		require.Equal(t, DefaultHeaders[name], headers[name], name)
	}
}

func TestPost(t *testing.T) {
	env := setup(t)
	client := env.client(t, 5*time.Second)
	ctx := context.Background()

	decode := func(res *Response) map[string]string {
		var out map[string]string
		err := res.JSON(&out)
		if err != nil {
			t.Fatal(err)
		}
		return out
	}

	res, err := client.Post(ctx, "http://a.example/post", url.Values{"usuario": {"ana"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	form := decode(res)
	require.Contains(t, form["content_type"], "application/x-www-form-urlencoded")
	require.Equal(t, "usuario=ana", form["body"])
	require.Equal(t, "a.example", client.TargetDomain())

	res, err = client.Post(ctx, "http://b.example/post", nil, map[string]any{"n": 1})
	if err != nil {
		t.Fatal(err)
	}
	jsonBody := decode(res)
	require.Equal(t, "application/json", jsonBody["content_type"])
	require.JSONEq(t, `{"n": 1}`, jsonBody["body"])
	require.Equal(t, "b.example", client.TargetDomain())

	res, err = client.Post(ctx, "http://a.example/post", url.Values{"ignored": {"1"}}, map[string]string{"wins": "json"})
	if err != nil {
		t.Fatal(err)
	}
	both := decode(res)
	require.JSONEq(t, `{"wins": "json"}`, both["body"])
	require.Len(t, env.tel.Find(telemetry.KindWarning, report_client_post), 1)
}

func TestResponseDecoding(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/latin1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		// "<title>Año</title>" in latin-1
		w.Write([]byte("<html><head><title>A\xf1o</title></head></html>"))
	})
	mux.HandleFunc("/brotli", func(w http.ResponseWriter, r *http.Request) {
		var buff bytes.Buffer
		bw := brotli.NewWriter(&buff)
		bw.Write([]byte("<html><head><title>Comprimido</title></head></html>"))
		bw.Close()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Encoding", "br")
		w.Write(buff.Bytes())
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := NewClient(ClientOptions{Fs: afero.NewMemMapFs(), Tel: &telemetry.TestAPI{}})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	res, err := client.Get(ctx, server.URL+"/latin1", nil, true)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := res.Document()
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "Año", doc.Find("title").Text())

	res, err = client.Get(ctx, server.URL+"/brotli", nil, true)
	if err != nil {
		t.Fatal(err)
	}
	doc, err = res.Document()
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "Comprimido", doc.Find("title").Text())
}
