package quotegateway

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	defaultPrimaryQuoteURL = "https://quote-api.jup.ag/v6"
	defaultPrimaryUltraURL = "https://lite-api.jup.ag/ultra"
	defaultSecondaryURL    = "https://open-api.openocean.finance/v4/solana"
	publicAPIHost          = "api.jup.ag"
)

// NormalizeBaseURL accepts host strings without a scheme, defaulting to
// https, and validates URL structure; on invalid input it falls back to def
// (§4.2).
func NormalizeBaseURL(raw, def string) string {
	if raw == "" {
		return def
	}
	candidate := raw
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}
	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" {
		return def
	}
	u.RawQuery = ""
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/")
}

// NormalizeUltraBaseURL accepts an Ultra base URL with or without a
// trailing "/ultra" and always returns one with it present.
func NormalizeUltraBaseURL(raw string) string {
	base := NormalizeBaseURL(raw, defaultPrimaryUltraURL)
	if strings.HasSuffix(base, "/ultra") {
		return base
	}
	return base + "/ultra"
}

// RequireAPIKey reports whether the resolved base URL is the public "api"
// host, which mandates an x-api-key header (§4.2).
func RequireAPIKey(base string) bool {
	u, err := url.Parse(base)
	if err != nil {
		return false
	}
	return u.Hostname() == publicAPIHost
}

// ValidateAPIKey refuses construction when the endpoint mandates a key and
// none was given.
func ValidateAPIKey(base, apiKey string) error {
	if RequireAPIKey(base) && apiKey == "" {
		return fmt.Errorf("quotegateway: %s requires an x-api-key", base)
	}
	return nil
}
