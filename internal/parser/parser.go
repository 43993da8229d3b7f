// Package parser handles HTML parsing and SEO signal extraction.
package parser

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/spider-crawler/seoaudit/internal/urlutil"
)

// HeadingSampleLimits caps how many heading texts are kept per level.
var HeadingSampleLimits = [6]int{10, 20, 30, 30, 30, 30}

// PageData contains all extracted data from an HTML page.
type PageData struct {
	Title           string
	MetaDescription string
	MetaRobots      string

	// Canonical URL (resolved), empty when absent
	Canonical string

	// Heading counts and capped text samples, index 0 is h1
	HeadingCounts [6]int
	HeadingTexts  [6][]string

	Images []Image
	Links  []Link

	// Technical markers
	HasViewport bool
	HasCharset  bool
	Language    string

	// Visible text word count
	WordCount int
}

// Link represents an anchor found on the page.
type Link struct {
	URL        string
	IsInternal bool
	NoFollow   bool
}

// Image represents an image found on the page.
type Image struct {
	Src string
	Alt string
	// HasAlt is false when the alt attribute is absent or blank
	HasAlt bool
}

// ImagesMissingAlt counts images without usable alt text.
func (d *PageData) ImagesMissingAlt() int {
	n := 0
	for _, img := range d.Images {
		if !img.HasAlt {
			n++
		}
	}
	return n
}

// Noindex reports whether the robots meta tag keeps the page out of
// search results.
func (d *PageData) Noindex() bool {
	return RobotsNoindex(d.MetaRobots)
}

// RobotsNoindex reports whether a robots directive list (meta robots or
// X-Robots-Tag) contains noindex or none.
func RobotsNoindex(directives string) bool {
	for _, d := range strings.Split(strings.ToLower(directives), ",") {
		switch strings.TrimSpace(d) {
		case "noindex", "none":
			return true
		}
	}
	return false
}

// NoFollowCount returns how many anchors carry rel="nofollow".
func (d *PageData) NoFollowCount() int {
	n := 0
	for _, l := range d.Links {
		if l.NoFollow {
			n++
		}
	}
	return n
}

// LinkCounts returns the internal and external anchor counts.
func (d *PageData) LinkCounts() (internal, external int) {
	for _, l := range d.Links {
		if l.IsInternal {
			internal++
		} else {
			external++
		}
	}
	return internal, external
}

// Parser parses HTML content.
type Parser struct {
	baseURL  *url.URL
	pageHost string
}

// NewParser creates a new HTML parser for a page at baseURL.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u, pageHost: u.Host}, nil
}

// Parse parses HTML content and extracts page data.
func (p *Parser) Parse(htmlContent []byte) (*PageData, error) {
	doc, err := html.Parse(bytes.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	data := &PageData{
		Images: make([]Image, 0),
		Links:  make([]Link, 0),
	}

	var textBuilder strings.Builder
	p.traverse(doc, data, &textBuilder)

	data.WordCount = len(strings.Fields(textBuilder.String()))

	return data, nil
}

// traverse recursively traverses the HTML tree.
func (p *Parser) traverse(n *html.Node, data *PageData, textBuilder *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "html":
			data.Language = strings.TrimSpace(getAttr(n, "lang"))

		case "base":
			if href := getAttr(n, "href"); href != "" {
				if u, err := url.Parse(href); err == nil {
					p.baseURL = p.baseURL.ResolveReference(u)
				}
			}

		case "title":
			if data.Title == "" {
				data.Title = strings.TrimSpace(getTextContent(n))
			}

		case "meta":
			p.parseMeta(n, data)

		case "link":
			if strings.EqualFold(strings.TrimSpace(getAttr(n, "rel")), "canonical") {
				data.Canonical = p.resolveURL(getAttr(n, "href"))
			}

		case "a":
			if link, ok := p.parseAnchor(n); ok {
				data.Links = append(data.Links, link)
			}

		case "img":
			data.Images = append(data.Images, p.parseImage(n))

		case "h1", "h2", "h3", "h4", "h5", "h6":
			level := int(n.Data[1] - '1')
			data.HeadingCounts[level]++
			text := strings.Join(strings.Fields(getTextContent(n)), " ")
			if text != "" && len(data.HeadingTexts[level]) < HeadingSampleLimits[level] {
				data.HeadingTexts[level] = append(data.HeadingTexts[level], text)
			}
		}
	}

	// Collect visible text, skipping script/style/noscript
	if n.Type == html.TextNode {
		parent := n.Parent
		if parent != nil && parent.Data != "script" && parent.Data != "style" &&
			parent.Data != "noscript" && parent.Data != "title" {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				textBuilder.WriteString(text)
				textBuilder.WriteString(" ")
			}
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.traverse(c, data, textBuilder)
	}
}

// parseMeta parses a meta tag.
func (p *Parser) parseMeta(n *html.Node, data *PageData) {
	name := strings.ToLower(getAttr(n, "name"))
	content := getAttr(n, "content")

	switch {
	case name == "description":
		data.MetaDescription = strings.TrimSpace(content)
	case name == "robots":
		data.MetaRobots = content
	case name == "viewport":
		data.HasViewport = true
	case hasAttr(n, "charset"):
		data.HasCharset = true
	case strings.EqualFold(getAttr(n, "http-equiv"), "content-type") &&
		strings.Contains(strings.ToLower(content), "charset="):
		data.HasCharset = true
	}
}

// parseAnchor parses an anchor tag. Empty, fragment-only and
// non-navigational hrefs are skipped.
func (p *Parser) parseAnchor(n *html.Node) (Link, bool) {
	href := getAttr(n, "href")
	u, ok := urlutil.Resolve(p.baseURL, href)
	if !ok {
		return Link{}, false
	}

	return Link{
		URL:        u.String(),
		IsInternal: urlutil.InDomain(p.pageHost, u),
		NoFollow:   strings.Contains(strings.ToLower(getAttr(n, "rel")), "nofollow"),
	}, true
}

// parseImage parses an img tag.
func (p *Parser) parseImage(n *html.Node) Image {
	src := getAttr(n, "src")
	if dataSrc := getAttr(n, "data-src"); dataSrc != "" {
		src = dataSrc
	}

	alt := getAttr(n, "alt")
	return Image{
		Src:    p.resolveURL(src),
		Alt:    alt,
		HasAlt: hasAttr(n, "alt") && strings.TrimSpace(alt) != "",
	}
}

// resolveURL resolves a relative URL against the base URL.
func (p *Parser) resolveURL(href string) string {
	if href == "" {
		return ""
	}

	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}

	return p.baseURL.ResolveReference(ref).String()
}

// Helper functions

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return true
		}
	}
	return false
}

func getTextContent(n *html.Node) string {
	var buf bytes.Buffer
	collectText(n, &buf)
	return buf.String()
}

func collectText(n *html.Node, buf *bytes.Buffer) {
	if n.Type == html.TextNode {
		buf.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, buf)
	}
}

// ParseHTML is a convenience function to parse HTML from bytes.
func ParseHTML(baseURL string, content []byte) (*PageData, error) {
	parser, err := NewParser(baseURL)
	if err != nil {
		return nil, err
	}
	return parser.Parse(content)
}
