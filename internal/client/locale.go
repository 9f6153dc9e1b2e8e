package client

import (
	"strings"

	"golang.org/x/text/language"
)

const (
	// LocalBaseURL is used when the page is opened from the filesystem.
	LocalBaseURL = "http://127.0.0.1:8000"

	// DefaultLanguage is sent when no locale can be detected.
	DefaultLanguage = "en"
)

// ResolveBaseURL picks the query API base. An explicitly configured URL wins;
// otherwise the page origin is used, except for file:// and opaque ("null")
// origins, which fall back to the local loopback server.
func ResolveBaseURL(configured, origin string) string {
	if configured = strings.TrimSpace(configured); configured != "" {
		return strings.TrimRight(configured, "/")
	}

	origin = strings.TrimSpace(origin)
	if origin == "" || origin == "null" || strings.HasPrefix(strings.ToLower(origin), "file:") {
		return LocalBaseURL
	}
	return strings.TrimRight(origin, "/")
}

// DetectLanguage returns the two-letter primary subtag of a locale such as
// "es-ES" or of an Accept-Language header value.
func DetectLanguage(locale string) string {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return DefaultLanguage
	}

	tags, _, err := language.ParseAcceptLanguage(locale)
	if err == nil && len(tags) > 0 {
		base, conf := tags[0].Base()
		if s := base.String(); conf != language.No && len(s) == 2 {
			return s
		}
	}

	// Tags x/text does not know still carry a usable primary subtag.
	parts := strings.FieldsFunc(locale, func(r rune) bool {
		return r == '-' || r == '_' || r == ',' || r == ';'
	})
	if len(parts) == 0 {
		return DefaultLanguage
	}
	primary := strings.ToLower(parts[0])
	if len(primary) == 2 && primary[0] >= 'a' && primary[0] <= 'z' && primary[1] >= 'a' && primary[1] <= 'z' {
		return primary
	}
	return DefaultLanguage
}
