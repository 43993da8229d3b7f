// Package report aggregates per-page analyses into a domain report and
// exports it.
package report

import (
	"math"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/spider-crawler/seoaudit/internal/analyzer"
)

// Priority of a recommendation.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// Markers used in place of concrete URLs.
const (
	AllPages      = "All pages"
	MultiplePages = "Multiple pages"
)

// MaxListedPages caps the URLs listed per recommendation; longer lists
// end with the MultiplePages marker.
const MaxListedPages = 25

// Recommendation is one actionable finding over the whole crawl.
type Recommendation struct {
	Category       string   `json:"category"`
	Priority       Priority `json:"priority"`
	Issue          string   `json:"issue"`
	Recommendation string   `json:"recommendation"`
	AffectedPages  []string `json:"affectedPages"`
}

// Totals are sums over analyzed pages.
type Totals struct {
	Headings         analyzer.Headings `json:"headings"`
	Images           int               `json:"images"`
	ImagesMissingAlt int               `json:"imagesMissingAlt"`
	InternalLinks    int               `json:"internalLinks"`
	ExternalLinks    int               `json:"externalLinks"`
	Words            int               `json:"words"`
}

// Averages are means over analyzed pages. LoadTimeMs only counts pages
// with a measured load time.
type Averages struct {
	WordCount  float64 `json:"wordCount"`
	LoadTimeMs float64 `json:"loadTimeMs"`
	Score      float64 `json:"score"`
}

// PageText is a page's title or meta description with its length.
type PageText struct {
	URL    string `json:"url"`
	Text   string `json:"text"`
	Length int    `json:"length"`
}

// PageSummary is the per-page row of the report.
type PageSummary struct {
	URL        string           `json:"url"`
	Success    bool             `json:"success"`
	Source     analyzer.Source  `json:"source"`
	Restricted bool             `json:"restricted"`
	Error      string           `json:"error,omitempty"`
	Title      string           `json:"title"`
	Score      int              `json:"score"`
	WordCount  int              `json:"wordCount"`
	LoadTimeMs int64            `json:"loadTimeMs"`
	Issues     []analyzer.Issue `json:"issues"`
}

// AggregatedReport is the domain-level result of a crawl.
type AggregatedReport struct {
	Domain           string           `json:"domain"`
	SeedURL          string           `json:"seedUrl"`
	Site             string           `json:"site"`
	TotalPages       int              `json:"totalPages"`
	AnalyzedPages    int              `json:"analyzedPages"`
	FailedPages      int              `json:"failedPages"`
	RestrictedPages  int              `json:"restrictedPages"`
	Totals           Totals           `json:"totals"`
	Averages         Averages         `json:"averages"`
	Titles           []PageText       `json:"titles"`
	MetaDescriptions []PageText       `json:"metaDescriptions"`
	Pages            []PageSummary    `json:"pages"`
	OverallScore     int              `json:"overallScore"`
	HealthyPages     int              `json:"healthyPages"`
	PagesWithIssues  int              `json:"pagesWithIssues"`
	Recommendations  []Recommendation `json:"recommendations"`
	GeneratedAt      time.Time        `json:"generatedAt"`
}

// Aggregate builds the report for a crawl. Failed and restricted
// attempts count toward TotalPages only; every other figure is computed
// over successfully analyzed pages.
func Aggregate(attempts []analyzer.AnalysisAttempt) *AggregatedReport {
	r := &AggregatedReport{
		TotalPages:       len(attempts),
		Titles:           make([]PageText, 0),
		MetaDescriptions: make([]PageText, 0),
		Pages:            make([]PageSummary, 0, len(attempts)),
		Recommendations:  make([]Recommendation, 0),
		GeneratedAt:      time.Now().UTC(),
	}

	var analyzed []analyzer.PageAnalysis
	var restricted []string
	scoreSum := 0
	var loadSum int64
	loadCount := 0

	for _, at := range attempts {
		a := at.Analysis
		r.Pages = append(r.Pages, PageSummary{
			URL:        at.URL,
			Success:    at.Success,
			Source:     at.Source,
			Restricted: at.Restricted(),
			Error:      at.Error,
			Title:      a.Title,
			Score:      a.Score,
			WordCount:  a.Content.WordCount,
			LoadTimeMs: a.LoadTimeMs,
			Issues:     a.Issues,
		})

		if !at.Success {
			r.FailedPages++
			if at.Restricted() {
				r.RestrictedPages++
				restricted = append(restricted, at.URL)
			}
			continue
		}

		r.AnalyzedPages++
		analyzed = append(analyzed, a)

		t := &r.Totals
		t.Headings.H1 += a.Headings.H1
		t.Headings.H2 += a.Headings.H2
		t.Headings.H3 += a.Headings.H3
		t.Headings.H4 += a.Headings.H4
		t.Headings.H5 += a.Headings.H5
		t.Headings.H6 += a.Headings.H6
		t.Images += a.Images.Total
		t.ImagesMissingAlt += a.Images.MissingAlt
		t.InternalLinks += a.Links.Internal
		t.ExternalLinks += a.Links.External
		t.Words += a.Content.WordCount

		r.Titles = append(r.Titles, PageText{URL: at.URL, Text: a.Title, Length: utf8.RuneCountInString(a.Title)})
		r.MetaDescriptions = append(r.MetaDescriptions, PageText{
			URL:    at.URL,
			Text:   a.MetaDescription,
			Length: utf8.RuneCountInString(a.MetaDescription),
		})

		scoreSum += a.Score
		if a.LoadTimeMs > 0 {
			loadSum += a.LoadTimeMs
			loadCount++
		}

		if a.Score >= analyzer.Thresholds.HealthyScore {
			r.HealthyPages++
		}
		if hasIssues(a) {
			r.PagesWithIssues++
		}
	}

	if n := r.AnalyzedPages; n > 0 {
		r.Averages.WordCount = float64(r.Totals.Words) / float64(n)
		r.Averages.Score = float64(scoreSum) / float64(n)
		r.OverallScore = int(math.Round(r.Averages.Score))
	}
	if loadCount > 0 {
		r.Averages.LoadTimeMs = float64(loadSum) / float64(loadCount)
	}

	r.Recommendations = recommend(analyzed, r, restricted)
	return r
}

// hasIssues is the union rule: low score, a missing title or meta
// description, or any image without alt text.
func hasIssues(a analyzer.PageAnalysis) bool {
	return a.Score < analyzer.Thresholds.HealthyScore ||
		a.Title == "" ||
		a.MetaDescription == "" ||
		a.Images.MissingAlt > 0
}

type rule struct {
	category       string
	priority       Priority
	issue          string
	recommendation string
	match          func(a analyzer.PageAnalysis) bool
}

var pageRules = []rule{
	{
		category: analyzer.CategoryContent, priority: PriorityHigh,
		issue:          "Pages are missing a title tag",
		recommendation: "Add a unique, descriptive <title> of 30-60 characters to every page",
		match:          func(a analyzer.PageAnalysis) bool { return a.Title == "" },
	},
	{
		category: analyzer.CategoryContent, priority: PriorityHigh,
		issue:          "Page titles are too short",
		recommendation: "Expand titles to 30-60 characters and include the page's main keyword",
		match: func(a analyzer.PageAnalysis) bool {
			n := utf8.RuneCountInString(a.Title)
			return n > 0 && n < analyzer.Thresholds.TitleMinLength
		},
	},
	{
		category: analyzer.CategoryContent, priority: PriorityMedium,
		issue:          "Page titles are too long",
		recommendation: "Shorten titles to at most 60 characters so they are not truncated in search results",
		match: func(a analyzer.PageAnalysis) bool {
			return utf8.RuneCountInString(a.Title) > analyzer.Thresholds.TitleMaxLength
		},
	},
	{
		category: analyzer.CategoryContent, priority: PriorityHigh,
		issue:          "Pages are missing a meta description",
		recommendation: "Add a meta description of 120-160 characters summarizing each page",
		match:          func(a analyzer.PageAnalysis) bool { return a.MetaDescription == "" },
	},
	{
		category: analyzer.CategoryContent, priority: PriorityMedium,
		issue:          "Pages do not have exactly one H1 heading",
		recommendation: "Use a single H1 heading per page that states the page topic",
		match:          func(a analyzer.PageAnalysis) bool { return a.Headings.H1 != 1 },
	},
	{
		category: analyzer.CategoryTechnical, priority: PriorityMedium,
		issue:          "Pages are missing a canonical tag",
		recommendation: "Add <link rel=\"canonical\"> to declare the preferred URL of each page",
		match:          func(a analyzer.PageAnalysis) bool { return !a.HasCanonical() },
	},
	{
		category: analyzer.CategorySecurity, priority: PriorityHigh,
		issue:          "Pages are served without HTTPS",
		recommendation: "Serve every page over HTTPS and redirect HTTP requests",
		match:          func(a analyzer.PageAnalysis) bool { return !a.Technical.SSL },
	},
	{
		category: analyzer.CategoryMobile, priority: PriorityMedium,
		issue:          "Pages are missing a viewport meta tag",
		recommendation: "Add <meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">",
		match:          func(a analyzer.PageAnalysis) bool { return a.MissingViewport() },
	},
	{
		category: analyzer.CategoryContent, priority: PriorityLow,
		issue:          "Pages have thin content",
		recommendation: "Expand pages to at least 300 words of useful content",
		match: func(a analyzer.PageAnalysis) bool {
			return a.Content.WordCount < analyzer.Thresholds.ThinContentWordCount
		},
	},
}

func recommend(pages []analyzer.PageAnalysis, r *AggregatedReport, restricted []string) []Recommendation {
	recs := make([]Recommendation, 0)

	for _, rl := range pageRules {
		var affected []string
		for _, p := range pages {
			if rl.match(p) {
				affected = append(affected, p.URL)
			}
		}
		if len(affected) > 0 {
			recs = append(recs, Recommendation{
				Category:       rl.category,
				Priority:       rl.priority,
				Issue:          rl.issue,
				Recommendation: rl.recommendation,
				AffectedPages:  listPages(affected),
			})
		}
	}

	if total := r.Totals.Images; total > 0 {
		coverage := float64(total-r.Totals.ImagesMissingAlt) / float64(total)
		if coverage < analyzer.Thresholds.MinAltCoverage {
			var affected []string
			for _, p := range pages {
				if p.Images.MissingAlt > 0 {
					affected = append(affected, p.URL)
				}
			}
			recs = append(recs, Recommendation{
				Category:       analyzer.CategoryAccessibility,
				Priority:       PriorityMedium,
				Issue:          "Images are missing alt text",
				Recommendation: "Add descriptive alt attributes to images for accessibility and image search",
				AffectedPages:  listPages(affected),
			})
		}
	}

	if r.Averages.LoadTimeMs > float64(analyzer.Thresholds.SlowLoadTimeMs) {
		recs = append(recs, Recommendation{
			Category:       analyzer.CategoryPerformance,
			Priority:       PriorityHigh,
			Issue:          "Pages load slowly",
			Recommendation: "Optimize performance: compress images, enable caching and reduce render-blocking resources",
			AffectedPages:  []string{AllPages},
		})
	}

	if len(restricted) > 0 {
		recs = append(recs, Recommendation{
			Category:       analyzer.CategoryCrawlability,
			Priority:       PriorityLow,
			Issue:          "Pages refused access to the crawler",
			Recommendation: "Check robots.txt and bot protection if these pages should be indexed",
			AffectedPages:  listPages(restricted),
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Priority.rank() < recs[j].Priority.rank()
	})
	return recs
}

func listPages(urls []string) []string {
	if len(urls) <= MaxListedPages {
		return urls
	}
	out := make([]string, MaxListedPages, MaxListedPages+1)
	copy(out, urls[:MaxListedPages])
	return append(out, MultiplePages)
}
