// Package testing provides site fixtures for audit tests.
package testing

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// TestServer provides a configurable test HTTP server.
type TestServer struct {
	Server    *httptest.Server
	mu        sync.RWMutex
	pages     map[string]*TestPage
	delays    map[string]time.Duration
	errors    map[string]int // path -> status code
	hits      map[string]int
	redirects map[string]string
}

// TestPage represents a test page.
type TestPage struct {
	Content     string
	ContentType string
	StatusCode  int
	Headers     map[string]string
}

// NewTestServer creates a new test server.
func NewTestServer() *TestServer {
	ts := &TestServer{
		pages:     make(map[string]*TestPage),
		delays:    make(map[string]time.Duration),
		errors:    make(map[string]int),
		hits:      make(map[string]int),
		redirects: make(map[string]string),
	}

	ts.Server = httptest.NewServer(http.HandlerFunc(ts.handler))
	return ts
}

// handler handles test HTTP requests.
func (ts *TestServer) handler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	ts.mu.Lock()
	ts.hits[path]++
	delay := ts.delays[path]
	errorCode := ts.errors[path]
	redirect := ts.redirects[path]
	page := ts.pages[path]
	ts.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if redirect != "" {
		http.Redirect(w, r, redirect, http.StatusMovedPermanently)
		return
	}

	if errorCode > 0 {
		w.WriteHeader(errorCode)
		return
	}

	if page != nil {
		for k, v := range page.Headers {
			w.Header().Set(k, v)
		}
		if page.ContentType != "" {
			w.Header().Set("Content-Type", page.ContentType)
		} else {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		}
		if page.StatusCode > 0 {
			w.WriteHeader(page.StatusCode)
		}
		io.WriteString(w, page.Content)
		return
	}

	w.WriteHeader(http.StatusNotFound)
}

// AddPage adds a test page.
func (ts *TestServer) AddPage(path, content string) {
	ts.AddPageWithStatus(path, content, http.StatusOK)
}

// AddPageWithType adds a page with specific content type.
func (ts *TestServer) AddPageWithType(path, content, contentType string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ts.pages[path] = &TestPage{
		Content:     content,
		ContentType: contentType,
		StatusCode:  http.StatusOK,
	}
}

// AddPageWithStatus adds a page with specific status code.
func (ts *TestServer) AddPageWithStatus(path, content string, status int) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ts.pages[path] = &TestPage{
		Content:     content,
		ContentType: "text/html; charset=utf-8",
		StatusCode:  status,
	}
}

// SetRobots serves content as /robots.txt.
func (ts *TestServer) SetRobots(content string) {
	ts.AddPageWithType("/robots.txt", content, "text/plain; charset=utf-8")
}

// SetDelay sets response delay for a path.
func (ts *TestServer) SetDelay(path string, delay time.Duration) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.delays[path] = delay
}

// SetError sets error status for a path.
func (ts *TestServer) SetError(path string, statusCode int) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.errors[path] = statusCode
}

// SetRedirect sets redirect for a path.
func (ts *TestServer) SetRedirect(from, to string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.redirects[from] = to
}

// GetHits returns hit count for a path.
func (ts *TestServer) GetHits(path string) int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.hits[path]
}

// URL returns the server URL.
func (ts *TestServer) URL() string {
	return ts.Server.URL
}

// PageURL returns the absolute URL of path on this server.
func (ts *TestServer) PageURL(path string) string {
	return ts.Server.URL + path
}

// Close closes the test server.
func (ts *TestServer) Close() {
	ts.Server.Close()
}

// HTMLBuilder helps build test HTML content.
type HTMLBuilder struct {
	lang        string
	title       string
	metaDesc    string
	canonical   string
	viewport    bool
	h1s         []string
	h2s         []string
	links       []Link
	images      []Image
	bodyContent string
}

// Link represents a link for testing.
type Link struct {
	Href string
	Text string
}

// Image represents an image for testing. A nil Alt omits the attribute.
type Image struct {
	Src string
	Alt *string
}

// NewHTMLBuilder creates a new HTML builder.
func NewHTMLBuilder() *HTMLBuilder {
	return &HTMLBuilder{}
}

// Lang sets the html lang attribute.
func (b *HTMLBuilder) Lang(lang string) *HTMLBuilder {
	b.lang = lang
	return b
}

// Title sets the page title.
func (b *HTMLBuilder) Title(title string) *HTMLBuilder {
	b.title = title
	return b
}

// MetaDescription sets the meta description.
func (b *HTMLBuilder) MetaDescription(desc string) *HTMLBuilder {
	b.metaDesc = desc
	return b
}

// Canonical sets the canonical URL.
func (b *HTMLBuilder) Canonical(url string) *HTMLBuilder {
	b.canonical = url
	return b
}

// Viewport adds a responsive viewport meta tag.
func (b *HTMLBuilder) Viewport() *HTMLBuilder {
	b.viewport = true
	return b
}

// H1 adds an H1 heading.
func (b *HTMLBuilder) H1(text string) *HTMLBuilder {
	b.h1s = append(b.h1s, text)
	return b
}

// H2 adds an H2 heading.
func (b *HTMLBuilder) H2(text string) *HTMLBuilder {
	b.h2s = append(b.h2s, text)
	return b
}

// Link adds a link.
func (b *HTMLBuilder) Link(href, text string) *HTMLBuilder {
	b.links = append(b.links, Link{Href: href, Text: text})
	return b
}

// Img adds an image with alt text.
func (b *HTMLBuilder) Img(src, alt string) *HTMLBuilder {
	b.images = append(b.images, Image{Src: src, Alt: &alt})
	return b
}

// ImgNoAlt adds an image without an alt attribute.
func (b *HTMLBuilder) ImgNoAlt(src string) *HTMLBuilder {
	b.images = append(b.images, Image{Src: src})
	return b
}

// Words appends a paragraph of n words.
func (b *HTMLBuilder) Words(n int) *HTMLBuilder {
	b.bodyContent += "<p>" + strings.TrimSpace(strings.Repeat("lorem ", n)) + "</p>"
	return b
}

// Body appends raw body content.
func (b *HTMLBuilder) Body(content string) *HTMLBuilder {
	b.bodyContent += content
	return b
}

// Build generates the HTML.
func (b *HTMLBuilder) Build() string {
	var sb strings.Builder

	if b.lang != "" {
		sb.WriteString(fmt.Sprintf("<!DOCTYPE html>\n<html lang=\"%s\">\n<head>\n", b.lang))
	} else {
		sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	}

	sb.WriteString("  <meta charset=\"utf-8\">\n")
	if b.viewport {
		sb.WriteString("  <meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	}
	if b.title != "" {
		sb.WriteString(fmt.Sprintf("  <title>%s</title>\n", b.title))
	}
	if b.metaDesc != "" {
		sb.WriteString(fmt.Sprintf("  <meta name=\"description\" content=\"%s\">\n", b.metaDesc))
	}
	if b.canonical != "" {
		sb.WriteString(fmt.Sprintf("  <link rel=\"canonical\" href=\"%s\">\n", b.canonical))
	}

	sb.WriteString("</head>\n<body>\n")

	for _, h1 := range b.h1s {
		sb.WriteString(fmt.Sprintf("  <h1>%s</h1>\n", h1))
	}
	for _, h2 := range b.h2s {
		sb.WriteString(fmt.Sprintf("  <h2>%s</h2>\n", h2))
	}

	if b.bodyContent != "" {
		sb.WriteString(b.bodyContent)
		sb.WriteString("\n")
	}

	for _, link := range b.links {
		sb.WriteString(fmt.Sprintf("  <a href=\"%s\">%s</a>\n", link.Href, link.Text))
	}

	for _, img := range b.images {
		if img.Alt != nil {
			sb.WriteString(fmt.Sprintf("  <img src=\"%s\" alt=\"%s\">\n", img.Src, *img.Alt))
		} else {
			sb.WriteString(fmt.Sprintf("  <img src=\"%s\">\n", img.Src))
		}
	}

	sb.WriteString("</body>\n</html>")

	return sb.String()
}
