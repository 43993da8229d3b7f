package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spider-crawler/seoaudit/internal/analyzer"
)

// goodPage is a page that triggers no recommendation.
func goodPage(url string) analyzer.PageAnalysis {
	return analyzer.Finalize(analyzer.PageAnalysis{
		URL:             url,
		Title:           strings.Repeat("t", 40),
		MetaDescription: strings.Repeat("d", 130),
		Headings:        analyzer.Headings{H1: 1},
		Images:          analyzer.Images{Total: 2},
		Content:         analyzer.Content{WordCount: 500},
		Technical: analyzer.Technical{
			SSL:       true,
			Canonical: url,
			Viewport:  true,
			Language:  "en",
		},
		LoadTimeMs: 400,
	})
}

func ok(p analyzer.PageAnalysis) analyzer.AnalysisAttempt {
	return analyzer.AnalysisAttempt{URL: p.URL, Success: true, Source: analyzer.SourceBasicScrape, Analysis: p}
}

func findRec(recs []Recommendation, issue string) *Recommendation {
	for i := range recs {
		if recs[i].Issue == issue {
			return &recs[i]
		}
	}
	return nil
}

func TestAggregateCleanSiteHasNoRecommendations(t *testing.T) {
	r := Aggregate([]analyzer.AnalysisAttempt{
		ok(goodPage("https://example.com/")),
		ok(goodPage("https://example.com/a")),
	})

	assert.Equal(t, 2, r.TotalPages)
	assert.Equal(t, 100, r.OverallScore)
	assert.Equal(t, 2, r.HealthyPages)
	assert.Equal(t, 0, r.PagesWithIssues)
	assert.Empty(t, r.Recommendations)
}

func TestShortTitleRecommendationNamesThePage(t *testing.T) {
	short := goodPage("https://example.com/short")
	short.Title = "Ten chars!"
	short = analyzer.Finalize(short)

	r := Aggregate([]analyzer.AnalysisAttempt{
		ok(goodPage("https://example.com/")),
		ok(short),
	})

	rec := findRec(r.Recommendations, "Page titles are too short")
	require.NotNil(t, rec)
	assert.Equal(t, PriorityHigh, rec.Priority)
	assert.Equal(t, []string{"https://example.com/short"}, rec.AffectedPages)
	assert.Nil(t, findRec(r.Recommendations, "Page titles are too long"))
}

func TestLongTitleRecommendation(t *testing.T) {
	long := goodPage("https://example.com/long")
	long.Title = strings.Repeat("x", 61)

	r := Aggregate([]analyzer.AnalysisAttempt{ok(long)})
	rec := findRec(r.Recommendations, "Page titles are too long")
	require.NotNil(t, rec)
	assert.Equal(t, PriorityMedium, rec.Priority)
}

func TestPagesWithIssuesIsAUnion(t *testing.T) {
	// Scores 95 (healthy) but one image has no alt text
	p := goodPage("https://example.com/img")
	p.Images = analyzer.Images{Total: 3, MissingAlt: 1}
	p = analyzer.Finalize(p)
	require.GreaterOrEqual(t, p.Score, 70)

	r := Aggregate([]analyzer.AnalysisAttempt{ok(goodPage("https://example.com/")), ok(p)})

	assert.Equal(t, 2, r.HealthyPages)
	assert.Equal(t, 1, r.PagesWithIssues)
}

func TestFailedPagesAreExcludedFromMean(t *testing.T) {
	low := analyzer.Finalize(analyzer.PageAnalysis{URL: "https://example.com/low", Title: "x"})

	r := Aggregate([]analyzer.AnalysisAttempt{
		ok(goodPage("https://example.com/")),
		ok(low),
		analyzer.FailedAttempt("https://example.com/down", assert.AnError),
	})

	assert.Equal(t, 3, r.TotalPages)
	assert.Equal(t, 2, r.AnalyzedPages)
	assert.Equal(t, 1, r.FailedPages)
	assert.Equal(t, (100+low.Score+1)/2, r.OverallScore)
	assert.Equal(t, 1, r.HealthyPages)
	assert.Equal(t, 1, r.PagesWithIssues)
	assert.Len(t, r.Pages, 3)
}

func TestNoSuccessfulPages(t *testing.T) {
	r := Aggregate([]analyzer.AnalysisAttempt{analyzer.FailedAttempt("https://example.com/", assert.AnError)})

	assert.Equal(t, 1, r.TotalPages)
	assert.Equal(t, 0, r.OverallScore)
	assert.Equal(t, 0, r.HealthyPages+r.PagesWithIssues)
	assert.Empty(t, r.Recommendations)
}

func TestAltCoverageThreshold(t *testing.T) {
	p := goodPage("https://example.com/")
	p.Images = analyzer.Images{Total: 10, MissingAlt: 2}

	r := Aggregate([]analyzer.AnalysisAttempt{ok(p)})
	assert.Nil(t, findRec(r.Recommendations, "Images are missing alt text"), "80 percent coverage is enough")

	p.Images.MissingAlt = 3
	r = Aggregate([]analyzer.AnalysisAttempt{ok(p)})
	rec := findRec(r.Recommendations, "Images are missing alt text")
	require.NotNil(t, rec)
	assert.Equal(t, []string{"https://example.com/"}, rec.AffectedPages)
}

func TestSlowSiteUsesAllPagesMarker(t *testing.T) {
	p := goodPage("https://example.com/")
	p.LoadTimeMs = 4500

	r := Aggregate([]analyzer.AnalysisAttempt{ok(p)})
	rec := findRec(r.Recommendations, "Pages load slowly")
	require.NotNil(t, rec)
	assert.Equal(t, []string{AllPages}, rec.AffectedPages)
}

func TestRestrictedPagesOnlyGetTheirOwnRecommendation(t *testing.T) {
	restricted := analyzer.FailedAttempt("https://example.com/private", analyzer.ErrRestrictedAccess)
	restricted.Analysis.Technical.RestrictedAccess = true

	r := Aggregate([]analyzer.AnalysisAttempt{ok(goodPage("https://example.com/")), restricted})

	assert.Equal(t, 1, r.RestrictedPages)
	require.Len(t, r.Recommendations, 1)
	assert.Equal(t, analyzer.CategoryCrawlability, r.Recommendations[0].Category)
	assert.Equal(t, []string{"https://example.com/private"}, r.Recommendations[0].AffectedPages)
}

func TestRecommendationsRankedByPriority(t *testing.T) {
	bare := analyzer.Finalize(analyzer.PageAnalysis{URL: "http://example.com/"})
	r := Aggregate([]analyzer.AnalysisAttempt{ok(bare)})

	require.NotEmpty(t, r.Recommendations)
	for i := 1; i < len(r.Recommendations); i++ {
		assert.LessOrEqual(t, r.Recommendations[i-1].Priority.rank(), r.Recommendations[i].Priority.rank())
	}
	for _, rec := range r.Recommendations {
		assert.NotEmpty(t, rec.AffectedPages)
	}
}

func TestLongAffectedListsAreCapped(t *testing.T) {
	var attempts []analyzer.AnalysisAttempt
	for i := 0; i < MaxListedPages+5; i++ {
		p := goodPage("https://example.com/p" + strings.Repeat("x", i))
		p.MetaDescription = ""
		attempts = append(attempts, ok(analyzer.Finalize(p)))
	}

	rec := findRec(Aggregate(attempts).Recommendations, "Pages are missing a meta description")
	require.NotNil(t, rec)
	assert.Len(t, rec.AffectedPages, MaxListedPages+1)
	assert.Equal(t, MultiplePages, rec.AffectedPages[MaxListedPages])
}

func TestUnknownViewportGetsNoMobileRecommendation(t *testing.T) {
	p := goodPage("https://example.com/")
	p.Technical.Viewport = false
	p.Technical.ViewportUnknown = true
	p.Technical.Language = ""
	p.Technical.LanguageUnknown = true
	p = analyzer.Finalize(p)

	attempt := ok(p)
	attempt.Source = analyzer.SourceDataForSEO
	r := Aggregate([]analyzer.AnalysisAttempt{attempt})

	for _, rec := range r.Recommendations {
		assert.NotEqual(t, analyzer.CategoryMobile, rec.Category)
	}
	assert.Equal(t, 100, r.OverallScore)
}
