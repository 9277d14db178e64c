package cookies

import (
	"net/http"
	"time"
)

// Key is the identity of a cookie, two cookies with the same key cannot coexist in a Store.
type Key struct {
	Name   string
	Domain string
	Path   string
}

// Cookie is a stored cookie.
//
// Domain never carries a leading dot. An empty Domain means the cookie is not scoped to any
// host and is sent everywhere. HostOnly cookies are only sent to exactly Domain, the rest are
// also sent to its subdomains.
type Cookie struct {
	Name  string
	Value string

	Domain   string
	Path     string
	HostOnly bool

	// Expires is the zero time for session cookies.
	Expires  time.Time
	Secure   bool
	HttpOnly bool
}

func (c Cookie) Key() Key {
	return Key{Name: c.Name, Domain: c.Domain, Path: c.Path}
}

// IsSession reports whether the cookie has no expiry.
func (c Cookie) IsSession() bool {
	return c.Expires.IsZero()
}

// HttpCookie converts the cookie into its net/http representation.
func (c Cookie) HttpCookie() *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Expires:  c.Expires,
		Secure:   c.Secure,
		HttpOnly: c.HttpOnly,
	}
}
