// Package analyzer turns a single URL into a scored PageAnalysis. A
// primary Backend is tried first; when it cannot answer, the page is
// fetched and scraped directly.
package analyzer

// Thresholds for SEO analysis
var Thresholds = struct {
	TitleMinLength       int
	TitleMaxLength       int
	MetaDescMinLength    int
	MetaDescMaxLength    int
	ThinContentWordCount int
	SlowLoadTimeMs       int64
	MinAltCoverage       float64
	HealthyScore         int
}{
	TitleMinLength:       30,
	TitleMaxLength:       60,
	MetaDescMinLength:    120,
	MetaDescMaxLength:    160,
	ThinContentWordCount: 300,
	SlowLoadTimeMs:       3000,
	MinAltCoverage:       0.8,
	HealthyScore:         70,
}

// Issue represents an SEO issue found on a page.
type Issue struct {
	Code      string `json:"code"`      // e.g. "missing_title"
	IssueType string `json:"issueType"` // error, warning, notice
	Severity  string `json:"severity"`  // critical, high, medium, low
	Category  string `json:"category"`
	Message   string `json:"message"`
}

// Issue codes
const (
	IssueMissingTitle  = "missing_title"
	IssueTitleTooLong  = "title_too_long"
	IssueTitleTooShort = "title_too_short"

	IssueMissingMetaDesc  = "missing_meta_description"
	IssueMetaDescTooLong  = "meta_description_too_long"
	IssueMetaDescTooShort = "meta_description_too_short"

	IssueMissingH1  = "missing_h1"
	IssueMultipleH1 = "multiple_h1"

	IssueMissingCanonical = "missing_canonical"
	IssueMissingAlt       = "missing_alt"
	IssueThinContent      = "thin_content"
	IssueMissingViewport  = "missing_viewport"
	IssueMissingLanguage  = "missing_language"
	IssueNotHTTPS         = "not_https"
	IssueSlowResponse     = "slow_response"
	IssueBlockedRobots    = "blocked_by_robots"
	IssueNoindex          = "noindex"
)

// Severity levels
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Issue types
const (
	IssueTypeError   = "error"
	IssueTypeWarning = "warning"
	IssueTypeNotice  = "notice"
)

// Categories shared by issues and recommendations
const (
	CategoryContent       = "Content"
	CategoryAccessibility = "Accessibility"
	CategoryTechnical     = "Technical"
	CategoryPerformance   = "Performance"
	CategoryMobile        = "Mobile"
	CategorySecurity      = "Security"
	CategoryCrawlability  = "Crawlability"
)

// NewIssue creates an issue.
func NewIssue(code, issueType, severity, category, message string) Issue {
	return Issue{
		Code:      code,
		IssueType: issueType,
		Severity:  severity,
		Category:  category,
		Message:   message,
	}
}
