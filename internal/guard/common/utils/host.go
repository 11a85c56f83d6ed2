package utils

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

// NormalizeHost returns a host in canonical form:
// - Lowercased and trimmed of surrounding whitespace
// - No trailing dots
// - IDNA (punycode) mapped so unicode hosts compare equal to their ASCII form
// - A leading "www." label stripped when the remainder is still a resolvable
//   registrable domain
//
// The returned host is the unique key for a site.
func NormalizeHost(raw string) (string, error) {
	host := strings.ToLower(strings.TrimSpace(raw))
	for strings.HasSuffix(host, ".") {
		host = strings.TrimSuffix(host, ".")
	}
	if host == "" {
		return "", fmt.Errorf("host must not be empty")
	}
	if strings.ContainsAny(host, " /\\@:?#") {
		return "", fmt.Errorf("host %q contains invalid characters", raw)
	}
	mapped, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("host %q is not a valid domain: %w", raw, err)
	}
	host = mapped
	if rest, ok := strings.CutPrefix(host, "www."); ok && registrable(rest) {
		host = rest
	}
	return host, nil
}

// HostFromURL extracts and normalizes the host portion of a URL. A bare host
// without a scheme is accepted as-is.
func HostFromURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		return NormalizeHost(raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("url %q has no host", raw)
	}
	return NormalizeHost(u.Hostname())
}

// GetApexDomain returns the registrable domain (eTLD+1) for a host, falling
// back to the input when the public suffix list cannot resolve it.
func GetApexDomain(host string) string {
	apex, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		apex = host
	}
	return apex
}

// registrable reports whether host still carries a label beyond its public
// suffix, i.e. stripping a prefix did not reduce it to a bare suffix.
func registrable(host string) bool {
	if host == "" || !strings.Contains(host, ".") {
		return false
	}
	_, err := publicsuffix.EffectiveTLDPlusOne(host)
	return err == nil
}
