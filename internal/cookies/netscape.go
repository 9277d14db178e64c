package cookies

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	netscapeHeader = "# Netscape HTTP Cookie File"
	httpOnlyPrefix = "#HttpOnly_"
)

var netscapeMagic = regexp.MustCompile(`^#( Netscape)? HTTP Cookie File`)

// ParseNetscape reads every cookie in a Netscape cookie file. The first line must be the
// format header. Parsing is all or nothing, a single malformed line fails the whole file.
//
// Expired cookies are kept, an expiry of 0 (or an empty expiry) marks a session cookie.
func ParseNetscape(r io.Reader) ([]Cookie, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("empty file, expected %q header", netscapeHeader)
	}
	if !netscapeMagic.MatchString(strings.TrimRight(scanner.Text(), "\r")) {
		return nil, fmt.Errorf("does not look like a Netscape format cookie file")
	}

	var cookies []Cookie
	lineno := 1
	for scanner.Scan() {
		lineno++
		line := strings.TrimRight(scanner.Text(), "\r")

		httpOnly := false
		if strings.HasPrefix(line, httpOnlyPrefix) {
			httpOnly = true
			line = line[len(httpOnlyPrefix):]
		} else {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "$") {
				continue
			}
		}

		c, err := parseNetscapeLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineno, err)
		}
		c.HttpOnly = httpOnly
		cookies = append(cookies, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cookies, nil
}

func parseBoolField(name, value string) (bool, error) {
	switch {
	case strings.EqualFold(value, "TRUE"):
		return true, nil
	case strings.EqualFold(value, "FALSE"):
		return false, nil
	}
	return false, fmt.Errorf("invalid %s flag %q", name, value)
}

func parseNetscapeLine(line string) (Cookie, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != 7 {
		return Cookie{}, fmt.Errorf("expected 7 tab separated fields, got %d", len(fields))
	}

	includeSubdomains, err := parseBoolField("include subdomains", fields[1])
	if err != nil {
		return Cookie{}, err
	}
	secure, err := parseBoolField("secure", fields[3])
	if err != nil {
		return Cookie{}, err
	}

	var expires time.Time
	if fields[4] != "" {
		unix, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			return Cookie{}, fmt.Errorf("invalid expiry %q", fields[4])
		}
		if unix != 0 {
			expires = time.Unix(unix, 0)
		}
	}

	name := fields[5]
	value := fields[6]
	// curl writes cookies without a "=" as a name-less line
	if name == "" {
		name, value = value, ""
	}

	domain := strings.ToLower(strings.TrimPrefix(fields[0], "."))
	return Cookie{
		Name:     name,
		Value:    value,
		Domain:   domain,
		Path:     fields[2],
		HostOnly: domain != "" && !includeSubdomains,
		Expires:  expires,
		Secure:   secure,
	}, nil
}

func formatBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func checkField(name, value string) error {
	if strings.ContainsAny(value, "\t\r\n") {
		return fmt.Errorf("cookie %s %q contains a tab or newline", name, value)
	}
	return nil
}

func formatNetscapeLine(c Cookie) (string, error) {
	if c.Name == "" {
		return "", fmt.Errorf("cookie has no name")
	}
	for _, field := range [][2]string{
		{"name", c.Name},
		{"value", c.Value},
		{"domain", c.Domain},
		{"path", c.Path},
	} {
		if err := checkField(field[0], field[1]); err != nil {
			return "", err
		}
	}

	includeSubdomains := c.Domain != "" && !c.HostOnly
	domain := c.Domain
	if includeSubdomains {
		domain = "." + domain
	}
	if c.HttpOnly {
		domain = httpOnlyPrefix + domain
	}

	var expires int64
	if !c.Expires.IsZero() {
		expires = c.Expires.Unix()
	}

	return strings.Join([]string{
		domain,
		formatBool(includeSubdomains),
		c.Path,
		formatBool(c.Secure),
		strconv.FormatInt(expires, 10),
		c.Name,
		c.Value,
	}, "\t"), nil
}

// WriteNetscape writes the header followed by one line per cookie. Nothing is written if any
// cookie cannot be represented in the format.
func WriteNetscape(w io.Writer, cookies []Cookie) error {
	lines := make([]string, 0, len(cookies))
	for _, c := range cookies {
		line, err := formatNetscapeLine(c)
		if err != nil {
			return err
		}
		lines = append(lines, line)
	}

	var out strings.Builder
	out.WriteString(netscapeHeader)
	out.WriteString("\n# https://curl.se/docs/http-cookies.html\n")
	out.WriteString("# This file was generated by cookiescraper. Edit at your own risk.\n\n")
	for _, line := range lines {
		out.WriteString(line)
		out.WriteString("\n")
	}

	_, err := io.WriteString(w, out.String())
	return err
}
