// Package storage persists audit results in SQLite.
package storage

import (
	"time"

	"github.com/spider-crawler/seoaudit/internal/analyzer"
	"github.com/spider-crawler/seoaudit/internal/report"
)

// Audit statuses
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Audit represents one stored domain audit.
type Audit struct {
	ID              string    `json:"id"`
	Domain          string    `json:"domain"`
	SeedURL         string    `json:"seed_url"`
	Status          string    `json:"status"`
	OverallScore    int       `json:"overall_score"`
	TotalPages      int       `json:"total_pages"`
	AnalyzedPages   int       `json:"analyzed_pages"`
	FailedPages     int       `json:"failed_pages"`
	RestrictedPages int       `json:"restricted_pages"`
	HealthyPages    int       `json:"healthy_pages"`
	PagesWithIssues int       `json:"pages_with_issues"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`

	// Full report, nil for failed audits
	Report *report.AggregatedReport `json:"report,omitempty"`
}

// AuditPage is a stored per-page row.
type AuditPage struct {
	ID           int64            `json:"id"`
	AuditID      string           `json:"audit_id"`
	URL          string           `json:"url"`
	Success      bool             `json:"success"`
	Source       string           `json:"source"`
	Restricted   bool             `json:"restricted"`
	Score        int              `json:"score"`
	Title        string           `json:"title"`
	WordCount    int              `json:"word_count"`
	LoadTimeMs   int64            `json:"load_time_ms"`
	Issues       []analyzer.Issue `json:"issues"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

// RecommendationSummary counts stored recommendations by category and
// priority.
type RecommendationSummary struct {
	Category string `json:"category"`
	Priority string `json:"priority"`
	Count    int    `json:"count"`
}
