package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spider-crawler/seoaudit/internal/config"
	sitetest "github.com/spider-crawler/seoaudit/internal/testing"
)

func newTestFetcher(timeout time.Duration) *Fetcher {
	cfg := config.DefaultConfig()
	cfg.Timeout = timeout
	return NewFetcher(cfg, nil)
}

func TestFetchSuccess(t *testing.T) {
	ts := sitetest.NewTestServer()
	defer ts.Close()
	ts.AddPage("/", "<html><title>Home</title></html>")

	resp := newTestFetcher(5*time.Second).Fetch(context.Background(), ts.PageURL("/"))

	require.NoError(t, resp.Error)
	assert.True(t, resp.IsSuccess())
	assert.Equal(t, "text/html", resp.ContentType)
	assert.Contains(t, string(resp.Body), "<title>Home</title>")
	assert.False(t, resp.SSL())
}

func TestFetchSendsBrowserUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.UserAgent()
	}))
	defer srv.Close()

	newTestFetcher(5*time.Second).Fetch(context.Background(), srv.URL)
	assert.Equal(t, config.DefaultUserAgent, got)
}

func TestFetchFollowsRedirects(t *testing.T) {
	ts := sitetest.NewTestServer()
	defer ts.Close()
	ts.SetRedirect("/old", "/new")
	ts.AddPage("/new", "<html></html>")

	resp := newTestFetcher(5*time.Second).Fetch(context.Background(), ts.PageURL("/old"))

	require.NoError(t, resp.Error)
	assert.Equal(t, ts.PageURL("/new"), resp.FinalURL)
	assert.NotEmpty(t, resp.RedirectChain)
	assert.Equal(t, http.StatusMovedPermanently, resp.RedirectChain[0].StatusCode)
}

func TestFetchNonSuccessStatusIsFailure(t *testing.T) {
	ts := sitetest.NewTestServer()
	defer ts.Close()
	ts.SetError("/broken", http.StatusInternalServerError)

	resp := newTestFetcher(5*time.Second).Fetch(context.Background(), ts.PageURL("/broken"))

	require.Error(t, resp.Error)
	var statusErr *StatusError
	require.ErrorAs(t, resp.Error, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
	assert.False(t, resp.Restricted())
}

func TestFetchTimeout(t *testing.T) {
	ts := sitetest.NewTestServer()
	defer ts.Close()
	ts.AddPage("/slow", "<html></html>")
	ts.SetDelay("/slow", 3*time.Second)

	start := time.Now()
	resp := newTestFetcher(time.Second).Fetch(context.Background(), ts.PageURL("/slow"))

	require.Error(t, resp.Error)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestFetchUnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	resp := newTestFetcher(2*time.Second).Fetch(context.Background(), addr)
	require.NotNil(t, resp)
	assert.Error(t, resp.Error)
}

func TestFetchDecodesGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte("<html><body>compressed</body></html>"))
	require.NoError(t, zw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	resp := newTestFetcher(5*time.Second).Fetch(context.Background(), srv.URL)
	require.NoError(t, resp.Error)
	assert.Contains(t, string(resp.Body), "compressed")
}

func TestRestricted(t *testing.T) {
	cases := []struct {
		name string
		resp *Response
		want bool
	}{
		{"forbidden", &Response{StatusCode: http.StatusForbidden}, true},
		{"rate limited", &Response{StatusCode: http.StatusTooManyRequests}, true},
		{"challenge page", &Response{StatusCode: http.StatusServiceUnavailable, Body: []byte(`<div id="cf-browser-verification">`)}, true},
		{"mitigated", &Response{StatusCode: http.StatusServiceUnavailable, Headers: http.Header{"Cf-Mitigated": {"challenge"}}}, true},
		{"page with bot beacon", &Response{StatusCode: 200, Body: []byte(`<script src="/cdn-cgi/challenge-platform/scripts/jsd/main.js"></script>`)}, false},
		{"normal page", &Response{StatusCode: 200, Body: []byte(`<html>hello</html>`)}, false},
		{"not found", &Response{StatusCode: http.StatusNotFound}, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.resp.Restricted(), c.name)
	}
}

func TestSSLFromScheme(t *testing.T) {
	assert.True(t, (&Response{RequestURL: "https://example.com/"}).SSL())
	assert.False(t, (&Response{RequestURL: "https://example.com/", FinalURL: "http://example.com/"}).SSL())
}
