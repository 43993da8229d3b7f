package analyzer

import (
	"fmt"
	"math"
	"unicode/utf8"
)

// Score weights. They add up to 100.
const (
	pointsTitle         = 10
	pointsTitleLength   = 10
	pointsMeta          = 10
	pointsMetaLength    = 10
	pointsSingleH1      = 15
	pointsImages        = 15
	pointsHTTPS         = 5
	pointsViewport      = 5
	pointsCanonical     = 5
	pointsLanguage      = 5
	pointsContentLength = 10
)

// ScorePage computes the 0-100 health score of a page. Criteria the backend
// could not observe are left out and the rest is rescaled to 100.
func ScorePage(p PageAnalysis) int {
	score := 0.0
	possible := 100.0

	if p.Title != "" {
		score += pointsTitle
		if inRange(utf8.RuneCountInString(p.Title), Thresholds.TitleMinLength, Thresholds.TitleMaxLength) {
			score += pointsTitleLength
		}
	}

	if p.MetaDescription != "" {
		score += pointsMeta
		if inRange(utf8.RuneCountInString(p.MetaDescription), Thresholds.MetaDescMinLength, Thresholds.MetaDescMaxLength) {
			score += pointsMetaLength
		}
	}

	if p.Headings.H1 == 1 {
		score += pointsSingleH1
	}

	if p.Images.Total == 0 {
		score += pointsImages
	} else {
		withAlt := p.Images.Total - p.Images.MissingAlt
		withAlt = clamp(withAlt, 0, p.Images.Total)
		score += pointsImages * float64(withAlt) / float64(p.Images.Total)
	}

	if p.Technical.SSL {
		score += pointsHTTPS
	}
	switch {
	case p.Technical.ViewportUnknown:
		possible -= pointsViewport
	case p.Technical.Viewport:
		score += pointsViewport
	}
	if p.HasCanonical() {
		score += pointsCanonical
	}
	switch {
	case p.Technical.LanguageUnknown:
		possible -= pointsLanguage
	case p.Technical.Language != "":
		score += pointsLanguage
	}

	if p.Content.WordCount >= Thresholds.ThinContentWordCount {
		score += pointsContentLength
	}

	return clamp(int(math.Round(score*100/possible)), 0, 100)
}

// PageIssues lists the problems found on a page.
func PageIssues(p PageAnalysis) []Issue {
	issues := make([]Issue, 0)

	if p.Technical.RestrictedAccess {
		return append(issues, NewIssue(IssueBlockedRobots, IssueTypeError, SeverityHigh, CategoryCrawlability,
			"Page refused access to the crawler"))
	}

	titleLen := utf8.RuneCountInString(p.Title)
	switch {
	case p.Title == "":
		issues = append(issues, NewIssue(IssueMissingTitle, IssueTypeError, SeverityCritical, CategoryContent,
			"Page is missing a title tag"))
	case titleLen < Thresholds.TitleMinLength:
		issues = append(issues, NewIssue(IssueTitleTooShort, IssueTypeWarning, SeverityMedium, CategoryContent,
			fmt.Sprintf("Title is %d characters (minimum %d)", titleLen, Thresholds.TitleMinLength)))
	case titleLen > Thresholds.TitleMaxLength:
		issues = append(issues, NewIssue(IssueTitleTooLong, IssueTypeWarning, SeverityLow, CategoryContent,
			fmt.Sprintf("Title is %d characters (maximum %d)", titleLen, Thresholds.TitleMaxLength)))
	}

	descLen := utf8.RuneCountInString(p.MetaDescription)
	switch {
	case p.MetaDescription == "":
		issues = append(issues, NewIssue(IssueMissingMetaDesc, IssueTypeError, SeverityHigh, CategoryContent,
			"Page is missing a meta description"))
	case descLen < Thresholds.MetaDescMinLength:
		issues = append(issues, NewIssue(IssueMetaDescTooShort, IssueTypeNotice, SeverityLow, CategoryContent,
			fmt.Sprintf("Meta description is %d characters (minimum %d)", descLen, Thresholds.MetaDescMinLength)))
	case descLen > Thresholds.MetaDescMaxLength:
		issues = append(issues, NewIssue(IssueMetaDescTooLong, IssueTypeNotice, SeverityLow, CategoryContent,
			fmt.Sprintf("Meta description is %d characters (maximum %d)", descLen, Thresholds.MetaDescMaxLength)))
	}

	switch {
	case p.Headings.H1 == 0:
		issues = append(issues, NewIssue(IssueMissingH1, IssueTypeError, SeverityHigh, CategoryContent,
			"Page has no H1 heading"))
	case p.Headings.H1 > 1:
		issues = append(issues, NewIssue(IssueMultipleH1, IssueTypeWarning, SeverityMedium, CategoryContent,
			fmt.Sprintf("Page has %d H1 headings", p.Headings.H1)))
	}

	if p.Images.MissingAlt > 0 {
		issues = append(issues, NewIssue(IssueMissingAlt, IssueTypeWarning, SeverityMedium, CategoryAccessibility,
			fmt.Sprintf("%d of %d images have no alt text", p.Images.MissingAlt, p.Images.Total)))
	}
	if !p.HasCanonical() {
		issues = append(issues, NewIssue(IssueMissingCanonical, IssueTypeWarning, SeverityMedium, CategoryTechnical,
			"Page has no canonical tag"))
	}
	if !p.Technical.SSL {
		issues = append(issues, NewIssue(IssueNotHTTPS, IssueTypeError, SeverityHigh, CategorySecurity,
			"Page is not served over HTTPS"))
	}
	if p.MissingViewport() {
		issues = append(issues, NewIssue(IssueMissingViewport, IssueTypeWarning, SeverityMedium, CategoryMobile,
			"Page has no viewport meta tag"))
	}
	if p.MissingLanguage() {
		issues = append(issues, NewIssue(IssueMissingLanguage, IssueTypeNotice, SeverityLow, CategoryTechnical,
			"The html element has no lang attribute"))
	}
	if p.Technical.Noindex {
		issues = append(issues, NewIssue(IssueNoindex, IssueTypeWarning, SeverityHigh, CategoryCrawlability,
			"Page asks search engines not to index it"))
	}
	if p.Content.WordCount < Thresholds.ThinContentWordCount {
		issues = append(issues, NewIssue(IssueThinContent, IssueTypeNotice, SeverityLow, CategoryContent,
			fmt.Sprintf("Page has %d words (minimum %d)", p.Content.WordCount, Thresholds.ThinContentWordCount)))
	}
	if p.LoadTimeMs > Thresholds.SlowLoadTimeMs {
		issues = append(issues, NewIssue(IssueSlowResponse, IssueTypeWarning, SeverityMedium, CategoryPerformance,
			fmt.Sprintf("Page loaded in %d ms", p.LoadTimeMs)))
	}

	return issues
}

// Finalize returns p with its score and issues filled in.
func Finalize(p PageAnalysis) PageAnalysis {
	p.Score = ScorePage(p)
	p.Issues = PageIssues(p)
	return p
}

func inRange(n, min, max int) bool {
	return n >= min && n <= max
}

func clamp(n, min, max int) int {
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
