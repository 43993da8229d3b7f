package analyzer

import (
	"github.com/spider-crawler/seoaudit/internal/parser"
)

// Result is what a backend produced for one URL: exactly one of
// *PrimaryResult, *ScrapeResult or *Unavailable.
type Result interface {
	isResult()
}

// PrimaryResult holds the fields consumed from the remote analysis API.
type PrimaryResult struct {
	URL              string              `json:"url"`
	Title            string              `json:"title"`
	Description      string              `json:"description"`
	Canonical        string              `json:"canonical"`
	HTags            map[string][]string `json:"htags"`
	ImagesCount      int                 `json:"imagesCount"`
	ImagesMissingAlt int                 `json:"imagesMissingAlt"`
	InternalLinks    int                 `json:"internalLinks"`
	ExternalLinks    int                 `json:"externalLinks"`
	WordCount        int                 `json:"wordCount"`
	IsHTTPS          bool                `json:"isHttps"`
	Charset          bool                `json:"charset"`
	// Viewport and Language are nil when the API did not report them.
	Viewport   *bool   `json:"viewport,omitempty"`
	Language   *string `json:"language,omitempty"`
	LoadTimeMs int64   `json:"loadTimeMs"`
}

// ScrapeResult holds the HTML extraction of a directly fetched page.
type ScrapeResult struct {
	URL        string
	SSL        bool
	Page       *parser.PageData
	LoadTimeMs int64
	// RobotsHeader is the X-Robots-Tag response header
	RobotsHeader string
}

// Unavailable records that a backend could not analyze the page.
type Unavailable struct {
	URL        string
	Reason     error
	Restricted bool
}

func (*PrimaryResult) isResult() {}
func (*ScrapeResult) isResult()  {}
func (*Unavailable) isResult()   {}

// Normalize maps any Result onto the single PageAnalysis shape. Score and
// issues are left for Finalize.
func Normalize(r Result) PageAnalysis {
	switch v := r.(type) {
	case *PrimaryResult:
		return normalizePrimary(v)
	case *ScrapeResult:
		return normalizeScrape(v)
	case *Unavailable:
		return PageAnalysis{
			URL:       v.URL,
			Technical: Technical{RestrictedAccess: v.Restricted},
			Issues:    []Issue{},
		}
	default:
		return PageAnalysis{Issues: []Issue{}}
	}
}

func normalizePrimary(r *PrimaryResult) PageAnalysis {
	texts := HeadingTexts{
		H1: capTexts(r.HTags["h1"], parser.HeadingSampleLimits[0]),
		H2: capTexts(r.HTags["h2"], parser.HeadingSampleLimits[1]),
		H3: capTexts(r.HTags["h3"], parser.HeadingSampleLimits[2]),
		H4: capTexts(r.HTags["h4"], parser.HeadingSampleLimits[3]),
		H5: capTexts(r.HTags["h5"], parser.HeadingSampleLimits[4]),
		H6: capTexts(r.HTags["h6"], parser.HeadingSampleLimits[5]),
	}

	missingAlt := r.ImagesMissingAlt
	if missingAlt > r.ImagesCount {
		missingAlt = r.ImagesCount
	}

	tech := Technical{
		SSL:             r.IsHTTPS,
		Canonical:       r.Canonical,
		Charset:         r.Charset,
		ViewportUnknown: r.Viewport == nil,
		LanguageUnknown: r.Language == nil,
	}
	if r.Viewport != nil {
		tech.Viewport = *r.Viewport
	}
	if r.Language != nil {
		tech.Language = *r.Language
	}

	return PageAnalysis{
		URL:             r.URL,
		Title:           r.Title,
		MetaDescription: r.Description,
		Headings: Headings{
			H1: len(r.HTags["h1"]),
			H2: len(r.HTags["h2"]),
			H3: len(r.HTags["h3"]),
			H4: len(r.HTags["h4"]),
			H5: len(r.HTags["h5"]),
			H6: len(r.HTags["h6"]),
		},
		HeadingTexts: texts,
		Images:       Images{Total: r.ImagesCount, MissingAlt: missingAlt},
		Links:        Links{Internal: r.InternalLinks, External: r.ExternalLinks},
		Content:      Content{WordCount: r.WordCount},
		Technical:    tech,
		LoadTimeMs:   r.LoadTimeMs,
		Issues:       []Issue{},
	}
}

func normalizeScrape(r *ScrapeResult) PageAnalysis {
	p := r.Page
	if p == nil {
		p = &parser.PageData{}
	}

	internal, external := p.LinkCounts()
	c := p.HeadingCounts
	t := p.HeadingTexts

	return PageAnalysis{
		URL:             r.URL,
		Title:           p.Title,
		MetaDescription: p.MetaDescription,
		Headings:        Headings{H1: c[0], H2: c[1], H3: c[2], H4: c[3], H5: c[4], H6: c[5]},
		HeadingTexts:    HeadingTexts{H1: t[0], H2: t[1], H3: t[2], H4: t[3], H5: t[4], H6: t[5]},
		Images:          Images{Total: len(p.Images), MissingAlt: p.ImagesMissingAlt()},
		Links:           Links{Internal: internal, External: external, NoFollow: p.NoFollowCount()},
		Content:         Content{WordCount: p.WordCount},
		Technical: Technical{
			SSL:       r.SSL,
			Canonical: p.Canonical,
			Viewport:  p.HasViewport,
			Charset:   p.HasCharset,
			Language:  p.Language,
			Noindex:   p.Noindex() || parser.RobotsNoindex(r.RobotsHeader),
		},
		LoadTimeMs: r.LoadTimeMs,
		Issues:     []Issue{},
	}
}

func capTexts(texts []string, limit int) []string {
	if len(texts) > limit {
		return texts[:limit]
	}
	return texts
}
