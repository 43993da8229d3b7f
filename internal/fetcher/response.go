// Package fetcher handles HTTP fetching with redirect tracking and header capture.
package fetcher

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Response represents the result of fetching a URL. A failed fetch is
// still a Response: Error is set and the caller decides how to degrade.
type Response struct {
	// Original requested URL
	RequestURL string

	// Final URL after redirects
	FinalURL string

	// HTTP status code
	StatusCode int

	// Status text (e.g., "200 OK")
	Status string

	// Response headers
	Headers http.Header

	// Content-Type without parameters
	ContentType string

	// Response body (HTML content)
	Body []byte

	// Redirect chain
	RedirectChain []RedirectHop

	// Total response time
	ResponseTime time.Duration

	// Error if request failed
	Error error
}

// RedirectHop represents a single redirect in the chain.
type RedirectHop struct {
	URL        string
	StatusCode int
	Location   string
}

// IsSuccess returns true if the response was successful (2xx).
func (r *Response) IsSuccess() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// IsHTML returns true if the content type is HTML or unknown.
func (r *Response) IsHTML() bool {
	ct := r.ContentType
	return ct == "" || strings.HasPrefix(ct, "text/html") || ct == "application/xhtml+xml"
}

// SSL reports whether the final URL was served over https. It is
// derived from the scheme only; certificates are not inspected.
func (r *Response) SSL() bool {
	target := r.FinalURL
	if target == "" {
		target = r.RequestURL
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, "https")
}

// blockingStatuses are answered by sites that refuse automated clients.
var blockingStatuses = map[int]struct{}{
	http.StatusUnauthorized:               {},
	http.StatusForbidden:                  {},
	http.StatusTooManyRequests:            {},
	http.StatusUnavailableForLegalReasons: {},
}

// challengeMarkers appear in bot-detection interstitials.
var challengeMarkers = [][]byte{
	[]byte("cf-browser-verification"),
	[]byte("challenge-platform"),
	[]byte("attention required! | cloudflare"),
	[]byte("captcha-delivery"),
}

// Restricted reports whether the server signalled that the page must not
// be crawled: a blocking status or an error page serving a bot challenge.
func (r *Response) Restricted() bool {
	if _, ok := blockingStatuses[r.StatusCode]; ok {
		return true
	}
	if r.StatusCode == http.StatusServiceUnavailable && r.Headers.Get("Cf-Mitigated") != "" {
		return true
	}
	// Successful pages routinely embed challenge scripts for bot scoring.
	if (r.StatusCode >= 200 && r.StatusCode < 300) || len(r.Body) == 0 || len(r.Body) > 64*1024 {
		return false
	}
	lower := bytes.ToLower(r.Body)
	for _, marker := range challengeMarkers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	return false
}
