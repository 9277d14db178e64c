package cookies

import (
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"cookiescraper/internal/components/chrono"

	"golang.org/x/net/publicsuffix"
)

type entry struct {
	Cookie
	seq uint64
}

// Store maps cookie identities to cookies. The last write for an identity wins.
//
// Store implements http.CookieJar so it can be handed to an http.Client, SetCookies is the
// step where cookies returned by a server get merged into the store.
//
// A Store is not safe for concurrent use.
type Store struct {
	entries map[Key]*entry
	nextSeq uint64

	// Clock is used to compute expiry times from Max-Age and to recognize deletion requests.
	Clock chrono.API
}

func NewStore() *Store {
	return &Store{
		entries: map[Key]*entry{},
		Clock:   chrono.StandardImpl{},
	}
}

// Set inserts or overwrites a cookie. An overwritten cookie keeps its original position in the
// store ordering.
func (s *Store) Set(c Cookie) {
	key := c.Key()
	existing, ok := s.entries[key]
	if ok {
		existing.Cookie = c
		return
	}
	s.nextSeq++
	s.entries[key] = &entry{Cookie: c, seq: s.nextSeq}
}

// Merge sets every cookie in order.
func (s *Store) Merge(cookies []Cookie) {
	for _, c := range cookies {
		s.Set(c)
	}
}

func (s *Store) Get(key Key) (Cookie, bool) {
	e, ok := s.entries[key]
	if !ok {
		return Cookie{}, false
	}
	return e.Cookie, true
}

func (s *Store) Delete(key Key) {
	delete(s.entries, key)
}

func (s *Store) Clear() {
	s.entries = map[Key]*entry{}
}

func (s *Store) Len() int {
	return len(s.entries)
}

func (s *Store) sorted() []*entry {
	out := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].seq < out[j].seq
	})
	return out
}

// All returns a snapshot of every cookie in insertion order.
func (s *Store) All() []Cookie {
	entries := s.sorted()
	out := make([]Cookie, len(entries))
	for i, e := range entries {
		out[i] = e.Cookie
	}
	return out
}

// Values returns the name -> value mapping of every cookie, when names collide across
// domains or paths the most recently inserted identity wins.
func (s *Store) Values() map[string]string {
	out := map[string]string{}
	for _, e := range s.sorted() {
		out[e.Name] = e.Value
	}
	return out
}

func canonicalHost(u *url.URL) string {
	return strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
}

func isIP(host string) bool {
	return net.ParseIP(host) != nil
}

// defaultPath implements the default-path algorithm of RFC 6265 section 5.1.4.
func defaultPath(path string) string {
	if path == "" || path[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(path, "/")
	if i == 0 {
		return "/"
	}
	return path[:i]
}

func pathMatch(cookiePath, requestPath string) bool {
	if cookiePath == "" {
		cookiePath = "/"
	}
	if requestPath == "" {
		requestPath = "/"
	}
	if cookiePath == requestPath {
		return true
	}
	if !strings.HasPrefix(requestPath, cookiePath) {
		return false
	}
	return strings.HasSuffix(cookiePath, "/") || requestPath[len(cookiePath)] == '/'
}

func (c Cookie) domainMatch(host string) bool {
	if c.Domain == "" {
		return true
	}
	if c.HostOnly {
		return host == c.Domain
	}
	return host == c.Domain || strings.HasSuffix(host, "."+c.Domain)
}

// scope resolves the domain attribute of a Set-Cookie against the responding host,
// ok is false when the server is not allowed to set a cookie for that domain.
func scope(host, domainAttr string) (domain string, hostOnly bool, ok bool) {
	if domainAttr == "" {
		return host, true, true
	}
	domain = strings.ToLower(strings.TrimPrefix(domainAttr, "."))
	if domain == host {
		return domain, false, true
	}
	if isIP(host) || !strings.HasSuffix(host, "."+domain) {
		return "", false, false
	}
	if suffix, _ := publicsuffix.PublicSuffix(domain); suffix == domain {
		return "", false, false
	}
	return domain, false, true
}

// SetCookies merges the cookies a server sent in a response for u.
func (s *Store) SetCookies(u *url.URL, cookies []*http.Cookie) {
	host := canonicalHost(u)
	now := s.Clock.Now()

	for _, hc := range cookies {
		if hc.Name == "" {
			continue
		}
		domain, hostOnly, ok := scope(host, hc.Domain)
		if !ok {
			continue
		}
		path := hc.Path
		if path == "" || path[0] != '/' {
			path = defaultPath(u.Path)
		}

		c := Cookie{
			Name:     hc.Name,
			Value:    hc.Value,
			Domain:   domain,
			Path:     path,
			HostOnly: hostOnly,
			Secure:   hc.Secure,
			HttpOnly: hc.HttpOnly,
		}

		// net/http parses "Max-Age=0" and negative values as MaxAge < 0
		if hc.MaxAge < 0 || (hc.MaxAge == 0 && !hc.Expires.IsZero() && !hc.Expires.After(now)) {
			s.Delete(c.Key())
			continue
		}
		if hc.MaxAge > 0 {
			c.Expires = now.Add(time.Duration(hc.MaxAge) * time.Second)
		} else if !hc.Expires.IsZero() {
			c.Expires = hc.Expires
		}

		s.Set(c)
	}
}

// Cookies returns the cookies that should be sent with a request to u, most specific path first.
func (s *Store) Cookies(u *url.URL) []*http.Cookie {
	host := canonicalHost(u)
	secure := u.Scheme == "https" || u.Scheme == "wss"
	path := u.Path
	if path == "" {
		path = "/"
	}

	var matched []*entry
	for _, e := range s.sorted() {
		if e.Secure && !secure {
			continue
		}
		if !e.domainMatch(host) || !pathMatch(e.Path, path) {
			continue
		}
		matched = append(matched, e)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return len(matched[i].Path) > len(matched[j].Path)
	})

	out := make([]*http.Cookie, len(matched))
	for i, e := range matched {
		out[i] = &http.Cookie{Name: e.Name, Value: e.Value}
	}
	return out
}
