package analyzer

// Source names the backend that produced an analysis.
type Source string

const (
	SourceDataForSEO  Source = "dataforseo"
	SourceBasicScrape Source = "basic_scrape"
	SourceNone        Source = "none"
)

// Headings holds heading tag counts.
type Headings struct {
	H1 int `json:"h1"`
	H2 int `json:"h2"`
	H3 int `json:"h3"`
	H4 int `json:"h4"`
	H5 int `json:"h5"`
	H6 int `json:"h6"`
}

// HeadingTexts holds capped heading text samples.
type HeadingTexts struct {
	H1 []string `json:"h1,omitempty"`
	H2 []string `json:"h2,omitempty"`
	H3 []string `json:"h3,omitempty"`
	H4 []string `json:"h4,omitempty"`
	H5 []string `json:"h5,omitempty"`
	H6 []string `json:"h6,omitempty"`
}

// Images holds image statistics.
type Images struct {
	Total      int `json:"total"`
	MissingAlt int `json:"missingAlt"`
}

// Links holds anchor counts split by host.
type Links struct {
	Internal int `json:"internal"`
	External int `json:"external"`
	NoFollow int `json:"nofollow"`
}

// Content holds text statistics.
type Content struct {
	WordCount int `json:"wordCount"`
}

// Technical holds technical markers of a page.
type Technical struct {
	SSL bool `json:"ssl"`
	// Canonical is the canonical URL, empty when the tag is absent
	Canonical        string `json:"canonical"`
	Viewport         bool   `json:"viewport"`
	Charset          bool   `json:"charset"`
	Language         string `json:"language"`
	RestrictedAccess bool   `json:"restrictedAccess"`
	// Noindex is set by a robots meta tag or an X-Robots-Tag header
	Noindex bool `json:"noindex"`
	// ViewportUnknown and LanguageUnknown mark signals the backend could not
	// observe. Unknown signals are neither scored nor reported as issues.
	ViewportUnknown bool `json:"viewportUnknown,omitempty"`
	LanguageUnknown bool `json:"languageUnknown,omitempty"`
}

// PageAnalysis is the normalized set of SEO signals for one page. Values
// are built once by Normalize and finished by Finalize; they are not
// modified afterwards.
type PageAnalysis struct {
	URL             string       `json:"url"`
	Title           string       `json:"title"`
	MetaDescription string       `json:"metaDescription"`
	Headings        Headings     `json:"headings"`
	HeadingTexts    HeadingTexts `json:"headingTexts"`
	Images          Images       `json:"images"`
	Links           Links        `json:"links"`
	Content         Content      `json:"content"`
	Technical       Technical    `json:"technical"`
	LoadTimeMs      int64        `json:"loadTimeMs"`
	Score           int          `json:"score"`
	Issues          []Issue      `json:"issues"`
}

// MissingViewport reports whether the page is known to lack a viewport tag.
func (p PageAnalysis) MissingViewport() bool {
	return !p.Technical.ViewportUnknown && !p.Technical.Viewport
}

// MissingLanguage reports whether the page is known to lack a lang attribute.
func (p PageAnalysis) MissingLanguage() bool {
	return !p.Technical.LanguageUnknown && p.Technical.Language == ""
}

// HasCanonical reports whether a canonical tag was found.
func (p PageAnalysis) HasCanonical() bool {
	return p.Technical.Canonical != ""
}

// AnalysisAttempt is the outcome of analyzing one URL. Analysis is always
// populated; on failure it carries zero values (and the restricted flag
// when access was refused).
type AnalysisAttempt struct {
	URL      string       `json:"url"`
	Success  bool         `json:"success"`
	Error    string       `json:"error,omitempty"`
	Source   Source       `json:"source"`
	Analysis PageAnalysis `json:"analysis"`

	Err error `json:"-"`
}

// Restricted reports whether the page refused access.
func (a AnalysisAttempt) Restricted() bool {
	return a.Analysis.Technical.RestrictedAccess
}

// FailedAttempt builds the failure record for url.
func FailedAttempt(url string, err error) AnalysisAttempt {
	attempt := AnalysisAttempt{
		URL:      url,
		Source:   SourceNone,
		Analysis: PageAnalysis{URL: url, Issues: []Issue{}},
		Err:      err,
	}
	if err != nil {
		attempt.Error = err.Error()
	}
	return attempt
}
