package images

import (
	"net/url"
	"slices"
	"strings"
)

// maxURLLength bounds source URLs accepted from clients.
const maxURLLength = 2048

// ValidateSourceURL checks that raw is an absolute http(s) URL without
// credentials and, when allowedHosts is non-empty, that its host is listed.
// Returns the canonical form used as the original tier's cache key.
func ValidateSourceURL(raw string, allowedHosts []string) (string, error) {
	if raw == "" || len(raw) > maxURLLength || strings.ContainsAny(raw, "\x00\r\n") {
		return "", ErrInvalidURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrInvalidURL
	}
	if u.Host == "" || u.User != nil {
		return "", ErrInvalidURL
	}
	if len(allowedHosts) > 0 && !slices.Contains(allowedHosts, strings.ToLower(u.Hostname())) {
		return "", ErrInvalidURL
	}

	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), nil
}
