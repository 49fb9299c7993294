package httpclient

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateBaseURL checks that raw is an absolute http(s) URL with a host and
// returns it without a trailing slash.
func ValidateBaseURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("base url is required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported base url scheme %q", parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return "", fmt.Errorf("base url host is required")
	}
	return strings.TrimRight(trimmed, "/"), nil
}
