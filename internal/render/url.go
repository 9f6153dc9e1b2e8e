package render

import (
	"net/url"
	"strings"
)

// SafeURL returns raw when it is an absolute http or https URL, otherwise "".
// Links with any other scheme are not rendered.
func SafeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return raw
	}
	return ""
}
