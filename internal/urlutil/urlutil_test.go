package urlutil

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestResolve(t *testing.T) {
	base := mustParse(t, "https://example.com/blog/post")

	cases := []struct {
		href string
		want string
		ok   bool
	}{
		{"/about", "https://example.com/about", true},
		{"next", "https://example.com/blog/next", true},
		{"../contact#form", "https://example.com/contact", true},
		{"https://other.org", "https://other.org/", true},
		{"//cdn.example.com/page", "https://cdn.example.com/page", true},
		{"#top", "", false},
		{"mailto:hi@example.com", "", false},
		{"tel:+123", "", false},
		{"javascript:void(0)", "", false},
		{"ftp://example.com/file", "", false},
		{"http://[::1", "", false},
		{"", "", false},
	}

	for _, c := range cases {
		got, ok := Resolve(base, c.href)
		assert.Equal(t, c.ok, ok, c.href)
		if c.ok {
			assert.Equal(t, c.want, got.String(), c.href)
		}
	}
}

func TestIsValidPage(t *testing.T) {
	valid := []string{
		"https://example.com/",
		"https://example.com/about",
		"https://example.com/page.html",
		"https://example.com/search?q=js",
	}
	invalid := []string{
		"https://example.com/report.pdf",
		"https://example.com/deck.PPTX",
		"https://example.com/img/logo.png",
		"https://example.com/static/app.js",
		"https://example.com/style.css",
		"https://example.com/sitemap.xml",
		"https://example.com/robots.txt",
		"mailto:someone@example.com",
	}

	for _, raw := range valid {
		assert.True(t, IsValidPage(mustParse(t, raw)), raw)
	}
	for _, raw := range invalid {
		assert.False(t, IsValidPage(mustParse(t, raw)), raw)
	}
}

func TestClassifierExtraExtensions(t *testing.T) {
	c := NewClassifier(".mp4")
	assert.False(t, c.IsValidPage(mustParse(t, "https://example.com/video.mp4")))
	assert.True(t, IsValidPage(mustParse(t, "https://example.com/video.mp4")))
}

func TestInDomain(t *testing.T) {
	assert.True(t, InDomain("example.com", mustParse(t, "https://example.com/a")))
	assert.True(t, InDomain("example.com", mustParse(t, "https://www.example.com/a")))
	assert.True(t, InDomain("www.example.com", mustParse(t, "http://example.com/")))
	assert.True(t, InDomain("127.0.0.1:8080", mustParse(t, "http://127.0.0.1:8080/x")))
	assert.False(t, InDomain("example.com", mustParse(t, "https://blog.example.com/")))
	assert.False(t, InDomain("example.com", mustParse(t, "https://example.org/")))
	assert.False(t, InDomain("example.com", nil))
}

func TestSeedURL(t *testing.T) {
	cases := map[string]string{
		"example.com":                 "https://example.com/",
		"www.example.com":             "https://example.com/",
		"https://www.Example.com/":    "https://example.com/",
		"http://example.com":          "http://example.com/",
		"  example.com/about  ":       "https://example.com/about",
		"HTTPS://www.example.com/a#b": "https://example.com/a",
	}
	for in, want := range cases {
		got, err := SeedURL(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := SeedURL("   ")
	assert.ErrorIs(t, err, ErrEmptyDomain)
}

func TestNormalize(t *testing.T) {
	n := DefaultNormalizer()
	got, err := n.Normalize("HTTPS://Example.COM:443/Path#frag")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/Path", got)

	got, err = n.Normalize("http://example.com")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/", got)
}

func TestRegistrableDomain(t *testing.T) {
	assert.Equal(t, "example.co.uk", RegistrableDomain("blog.example.co.uk"))
	assert.Equal(t, "example.com", RegistrableDomain("www.example.com:8443"))
	assert.Equal(t, "localhost", RegistrableDomain("localhost"))
	assert.Equal(t, "127.0.0.1", RegistrableDomain("127.0.0.1:8080"))
}
