package urlutil

import (
	"errors"
	"net/url"
	"path"
	"strings"
)

// ErrEmptyDomain is returned by SeedURL for blank input.
var ErrEmptyDomain = errors.New("domain is empty")

// PageExtensions lists file extensions that never denote an HTML page.
var PageExtensions = []string{
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	".zip", ".rar",
	".jpg", ".jpeg", ".png", ".gif", ".svg",
	".css", ".js",
}

// Classifier decides which resolved links are crawlable pages.
type Classifier struct {
	excluded map[string]struct{}
}

// NewClassifier creates a classifier. Extra extensions (".mp4", ...)
// are excluded in addition to PageExtensions.
func NewClassifier(extra ...string) *Classifier {
	c := &Classifier{excluded: make(map[string]struct{})}
	for _, ext := range PageExtensions {
		c.excluded[ext] = struct{}{}
	}
	for _, ext := range extra {
		c.excluded[strings.ToLower(ext)] = struct{}{}
	}
	return c
}

// Resolve joins href against base. It returns false for malformed
// input, fragment-only links and non-http(s) results. The fragment of
// the resolved URL is dropped.
func Resolve(base *url.URL, href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	if href == "" || IsFragmentOnly(href) || hasIgnoredScheme(href) {
		return nil, false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}

	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	if u.Host == "" {
		return nil, false
	}

	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u, true
}

// IsValidPage reports whether u may be an HTML page.
func (c *Classifier) IsValidPage(u *url.URL) bool {
	if u == nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return false
	}

	p := strings.ToLower(u.Path)
	switch path.Base(p) {
	case "sitemap.xml", "robots.txt":
		return false
	}

	if ext := path.Ext(p); ext != "" {
		if _, excluded := c.excluded[ext]; excluded {
			return false
		}
	}
	return true
}

// IsValidPage classifies u with the default extension list.
func IsValidPage(u *url.URL) bool {
	return defaultClassifier.IsValidPage(u)
}

var defaultClassifier = NewClassifier()

// IsFragmentOnly reports whether href only changes the fragment.
func IsFragmentOnly(href string) bool {
	return strings.HasPrefix(strings.TrimSpace(href), "#")
}

func hasIgnoredScheme(href string) bool {
	lower := strings.ToLower(href)
	for _, scheme := range []string{"mailto:", "tel:", "javascript:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

// InDomain reports whether u belongs to seedHost, treating "www.host"
// and "host" as the same site.
func InDomain(seedHost string, u *url.URL) bool {
	if u == nil {
		return false
	}
	return StripWWW(u.Hostname()) == StripWWW(stripPort(seedHost))
}

// SeedURL turns user input ("example.com", "www.example.com/",
// "https://example.com/about") into the seed URL of the site. The
// protocol and a leading "www." are stripped and https is added back;
// an explicit "http://" is kept for sites that do not serve TLS.
func SeedURL(domain string) (string, error) {
	d := strings.TrimSpace(domain)
	if d == "" {
		return "", ErrEmptyDomain
	}

	scheme := "https"
	lower := strings.ToLower(d)
	for _, prefix := range []string{"https://", "http://"} {
		if strings.HasPrefix(lower, prefix) {
			scheme = strings.TrimSuffix(prefix, "://")
			d = d[len(prefix):]
			break
		}
	}
	if strings.HasPrefix(strings.ToLower(d), "www.") {
		d = d[len("www."):]
	}
	d = strings.TrimSuffix(d, "/")

	u, err := url.Parse(scheme + "://" + d)
	if err != nil {
		return "", err
	}
	if u.Hostname() == "" || strings.ContainsAny(u.Hostname(), " \t") {
		return "", errors.New("invalid domain: " + domain)
	}
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	u.Fragment = ""
	return u.String(), nil
}
