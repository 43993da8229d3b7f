// Package urlutil provides URL normalization, resolution and classification.
package urlutil

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Normalizer handles URL normalization for frontier keys.
type Normalizer struct {
	// Remove default ports (80 for http, 443 for https)
	RemoveDefaultPort bool

	// Remove fragment (#...)
	RemoveFragment bool

	// Lowercase scheme and host
	LowercaseSchemeHost bool

	// Remove trailing slashes (except root)
	RemoveTrailingSlash bool
}

// DefaultNormalizer returns a normalizer with default settings. Paths
// are left untouched so that keys stay equal to the absolute URL string.
func DefaultNormalizer() *Normalizer {
	return &Normalizer{
		RemoveDefaultPort:   true,
		RemoveFragment:      true,
		LowercaseSchemeHost: true,
	}
}

// Normalize normalizes a URL string.
func (n *Normalizer) Normalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}

	if n.LowercaseSchemeHost {
		u.Scheme = strings.ToLower(u.Scheme)
		u.Host = strings.ToLower(u.Host)
	}

	if n.RemoveDefaultPort {
		host := u.Host
		if u.Scheme == "http" && strings.HasSuffix(host, ":80") {
			u.Host = strings.TrimSuffix(host, ":80")
		} else if u.Scheme == "https" && strings.HasSuffix(host, ":443") {
			u.Host = strings.TrimSuffix(host, ":443")
		}
	}

	if n.RemoveFragment {
		u.Fragment = ""
		u.RawFragment = ""
	}

	if u.Path == "" && u.Host != "" {
		u.Path = "/"
	}
	if n.RemoveTrailingSlash && len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String(), nil
}

// RegistrableDomain returns the eTLD+1 of host ("blog.example.co.uk" ->
// "example.co.uk"). Hosts without a known suffix are returned as-is.
func RegistrableDomain(host string) string {
	host = strings.ToLower(stripPort(host))
	if net.ParseIP(host) != nil {
		return host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

// StripWWW removes a leading "www." from host.
func StripWWW(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

func stripPort(host string) string {
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		// IPv6 literals keep their colons inside brackets
		if !strings.Contains(host, "]") || idx > strings.LastIndex(host, "]") {
			return host[:idx]
		}
	}
	return host
}
