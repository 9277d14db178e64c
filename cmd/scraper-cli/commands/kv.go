package commands

import (
	"fmt"
	"net/url"
	"strings"
)

// parsePairs turns "key=value" arguments into url.Values, a value may be empty but the
// "=" is required.
func parsePairs(pairs []string) (url.Values, error) {
	values := url.Values{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		values.Add(key, value)
	}
	return values, nil
}
