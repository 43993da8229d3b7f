package fetcher

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spider-crawler/seoaudit/internal/config"
	"github.com/spider-crawler/seoaudit/internal/logging"
)

// Source returns the HTML of a page. Implemented by *Fetcher and by the
// Chromium renderer.
type Source interface {
	Fetch(ctx context.Context, rawURL string) *Response
}

// Fetcher handles HTTP requests with redirect tracking.
type Fetcher struct {
	client       *http.Client
	transport    *http.Transport
	userAgent    string
	maxRedirects int
	maxBodySize  int64
	logger       *zap.Logger
}

// NewFetcher creates a new HTTP fetcher.
func NewFetcher(cfg *config.AuditConfig, logger *zap.Logger) *Fetcher {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		// gzip is negotiated and decoded by readBody
		DisableCompression: true,
	}

	f := &Fetcher{
		transport:    transport,
		userAgent:    cfg.UserAgent,
		maxRedirects: cfg.MaxRedirects,
		maxBodySize:  cfg.MaxResponseSize,
		logger:       logging.OrNop(logger),
	}
	if f.maxBodySize <= 0 {
		f.maxBodySize = 10 * 1024 * 1024
	}

	f.client = &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// Redirects are followed manually to record the chain
			return http.ErrUseLastResponse
		},
	}

	return f
}

// Fetch fetches a URL. It never returns nil; failures are reported in
// Response.Error, including non-2xx statuses.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) *Response {
	startTime := time.Now()
	response := &Response{
		RequestURL:    rawURL,
		RedirectChain: make([]RedirectHop, 0),
	}
	defer func() {
		response.ResponseTime = time.Since(startTime)
		if response.Error != nil {
			f.logger.Debug("fetch failed",
				zap.String("url", rawURL),
				zap.Int("status", response.StatusCode),
				zap.Error(response.Error))
		}
	}()

	currentURL := rawURL

	for i := 0; i <= f.maxRedirects; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, currentURL, nil)
		if err != nil {
			response.Error = fmt.Errorf("failed to create request: %w", err)
			return response
		}
		f.setRequestHeaders(req)

		resp, err := f.client.Do(req)
		if err != nil {
			response.Error = categorizeError(err)
			response.FinalURL = currentURL
			return response
		}

		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			location := resp.Header.Get("Location")
			resp.Body.Close()

			response.RedirectChain = append(response.RedirectChain, RedirectHop{
				URL:        currentURL,
				StatusCode: resp.StatusCode,
				Location:   location,
			})

			if location == "" {
				response.FinalURL = currentURL
				response.StatusCode = resp.StatusCode
				response.Error = fmt.Errorf("redirect without location (status %d)", resp.StatusCode)
				return response
			}

			redirectURL, err := resolveRedirectURL(currentURL, location)
			if err != nil {
				response.Error = fmt.Errorf("invalid redirect location: %w", err)
				response.FinalURL = currentURL
				response.StatusCode = resp.StatusCode
				return response
			}
			currentURL = redirectURL
			continue
		}

		response.FinalURL = currentURL
		response.StatusCode = resp.StatusCode
		response.Status = resp.Status
		response.Headers = resp.Header
		response.ContentType = extractContentType(resp.Header.Get("Content-Type"))

		body, err := f.readBody(resp)
		resp.Body.Close()
		if err != nil {
			response.Error = fmt.Errorf("failed to read body: %w", err)
			return response
		}
		response.Body = body

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			response.Error = &StatusError{Code: resp.StatusCode}
		}
		return response
	}

	response.Error = fmt.Errorf("max redirects (%d) exceeded", f.maxRedirects)
	response.FinalURL = currentURL
	return response
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

// setRequestHeaders sets browser-like request headers.
func (f *Fetcher) setRequestHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip")
}

// readBody reads the response body with size limit.
func (f *Fetcher) readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body

	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode error: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	}

	return io.ReadAll(io.LimitReader(reader, f.maxBodySize))
}

// Close releases idle connections.
func (f *Fetcher) Close() {
	f.transport.CloseIdleConnections()
}

// categorizeError categorizes network errors.
func categorizeError(err error) error {
	if err == nil {
		return nil
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("timeout: %w", err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("DNS error: %w", err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return fmt.Errorf("connection failed: %w", err)
	}

	if strings.Contains(err.Error(), "tls:") || strings.Contains(err.Error(), "certificate") {
		return fmt.Errorf("TLS error: %w", err)
	}

	return err
}

func resolveRedirectURL(baseURL, location string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}

	loc, err := url.Parse(location)
	if err != nil {
		return "", err
	}

	return base.ResolveReference(loc).String(), nil
}

func extractContentType(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx != -1 {
		return strings.ToLower(strings.TrimSpace(contentType[:idx]))
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
