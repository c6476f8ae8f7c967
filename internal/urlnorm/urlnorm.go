// Package urlnorm canonicalises URLs and extracts the host and registrable
// domain used as cache and politeness keys throughout the crawler.
package urlnorm

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// blockedParams lists tracking query parameters stripped during
// canonicalisation, lowercased key match.
var blockedParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"ref":          true,
	"source":       true,
	"ref_source":   true,
	"_hsfp":        true,
	"_hssc":        true,
	"_hstc":        true,
	"gclid":        true,
	"fbclid":       true,
	"e":            true,
}

// blockedExtensions are non-HTML resource extensions never worth a fetch.
var blockedExtensions = []string{".jpg", ".png", ".pdf", ".css", ".js", ".zip", ".exe"}

// blockedSchemes are schemes that never identify a fetchable HTML resource.
var blockedSchemes = []string{"mailto", "tel"}

// Canonicalise resolves a possibly-relative href against base (if non-nil),
// then normalises it: trailing slash stripped, fragment stripped, tracking
// query parameters removed, and rejects non-http(s) schemes, empty hosts and
// known non-HTML extensions or schemes.
//
// Canonicalise is idempotent: Canonicalise(Canonicalise(u)) == Canonicalise(u).
func Canonicalise(raw string, base *url.URL) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("urlnorm: parse %q: %w", raw, err)
	}
	if base != nil && !u.IsAbs() {
		u = base.ResolveReference(u)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "mailto" || scheme == "tel" {
		return "", fmt.Errorf("urlnorm: blocked scheme %q", scheme)
	}
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("urlnorm: unsupported scheme %q", scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("urlnorm: empty host in %q", raw)
	}
	for _, ext := range blockedExtensions {
		if strings.HasSuffix(strings.ToLower(u.Path), ext) {
			return "", fmt.Errorf("urlnorm: blocked extension in %q", raw)
		}
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")

	if u.RawQuery != "" {
		u.RawQuery = stripBlockedParams(u.RawQuery)
	}

	return u.String(), nil
}

// stripBlockedParams removes blocklisted keys from a raw query string while
// preserving the order and multiplicity of the remaining parameters -
// url.Values.Encode sorts by key and would reorder them.
func stripBlockedParams(rawQuery string) string {
	pairs := strings.Split(rawQuery, "&")
	kept := pairs[:0]
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		key := pair
		if idx := strings.IndexByte(pair, '='); idx >= 0 {
			key = pair[:idx]
		}
		if unescaped, err := url.QueryUnescape(key); err == nil {
			key = unescaped
		}
		if blockedParams[strings.ToLower(key)] {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}

// Host returns the scheme-qualified authority used as the robots-cache key,
// e.g. "https://docs.example.co.uk" for https://docs.example.co.uk/path.
// The port, if any, is preserved (u.Host rather than u.Hostname) so that
// distinct ports on the same host are treated as distinct robots scopes.
func Host(u *url.URL) string {
	return fmt.Sprintf("%s://%s", u.Scheme, u.Host)
}

// RegistrableDomain collapses a host down to its public-suffix registrable
// domain, e.g. "docs.example.co.uk" -> "example.co.uk". It is used as the
// politeness key so that subdomains of the same site share a rate limit.
func RegistrableDomain(u *url.URL) (string, error) {
	hostname := u.Hostname()
	domain, err := publicsuffix.EffectiveTLDPlusOne(hostname)
	if err != nil {
		// EffectiveTLDPlusOne fails for bare IPs and single-label hosts
		// (e.g. "localhost"); fall back to the hostname itself, which is
		// still a valid, stable politeness key.
		return hostname, nil
	}
	return domain, nil
}
