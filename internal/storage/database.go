package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/spider-crawler/seoaudit/internal/report"
)

// ErrNotFound is returned when an audit does not exist.
var ErrNotFound = errors.New("audit not found")

// Database handles all database operations.
type Database struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewDatabase creates a new database connection.
func NewDatabase(path string) (*Database, error) {
	// SQLite connection with optimizations
	dsn := fmt.Sprintf("%s?_journal=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	return &Database{db: db}, nil
}

// Open creates the database at path and its schema.
func Open(path string) (*Database, error) {
	d, err := NewDatabase(path)
	if err != nil {
		return nil, err
	}
	if err := d.Initialize(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// Initialize creates tables and views.
func (d *Database) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := d.db.Exec(ViewsSchema); err != nil {
		return fmt.Errorf("failed to create views: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// --- Audit Operations ---

// SaveAudit stores a completed audit with its pages and recommendations
// in one transaction. An empty id is replaced by a new UUID; the stored
// id is returned.
func (d *Database) SaveAudit(ctx context.Context, id string, rep *report.AggregatedReport) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}

	reportJSON, err := json.Marshal(rep)
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audits (id, domain, seed_url, status, overall_score, total_pages, analyzed_pages,
			failed_pages, restricted_pages, healthy_pages, pages_with_issues, report_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, rep.Domain, rep.SeedURL, StatusCompleted, rep.OverallScore, rep.TotalPages, rep.AnalyzedPages,
		rep.FailedPages, rep.RestrictedPages, rep.HealthyPages, rep.PagesWithIssues, string(reportJSON),
		rep.GeneratedAt.UTC())
	if err != nil {
		return "", fmt.Errorf("failed to insert audit: %w", err)
	}

	pageStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO audit_pages (audit_id, position, url, success, source, restricted, score, title,
			word_count, load_time_ms, issues_json, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", err
	}
	defer pageStmt.Close()

	for i, p := range rep.Pages {
		issuesJSON, err := json.Marshal(p.Issues)
		if err != nil {
			return "", fmt.Errorf("failed to encode issues of %s: %w", p.URL, err)
		}
		if _, err := pageStmt.ExecContext(ctx, id, i, p.URL, p.Success, string(p.Source), p.Restricted,
			p.Score, p.Title, p.WordCount, p.LoadTimeMs, string(issuesJSON), p.Error); err != nil {
			return "", fmt.Errorf("failed to insert page: %w", err)
		}
	}

	recStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO recommendations (audit_id, position, category, priority, issue, recommendation, affected_pages_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", err
	}
	defer recStmt.Close()

	for i, r := range rep.Recommendations {
		pagesJSON, err := json.Marshal(r.AffectedPages)
		if err != nil {
			return "", fmt.Errorf("failed to encode affected pages: %w", err)
		}
		if _, err := recStmt.ExecContext(ctx, id, i, r.Category, string(r.Priority), r.Issue,
			r.Recommendation, string(pagesJSON)); err != nil {
			return "", fmt.Errorf("failed to insert recommendation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// SaveFailedAudit records an audit that produced no report.
func (d *Database) SaveFailedAudit(ctx context.Context, id, domain, message string) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO audits (id, domain, seed_url, status, error_message, created_at)
		VALUES (?, ?, '', ?, ?, ?)
	`, id, domain, StatusFailed, message, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to insert audit: %w", err)
	}
	return id, nil
}

const auditColumns = `id, domain, seed_url, status, overall_score, total_pages, analyzed_pages, failed_pages,
	restricted_pages, healthy_pages, pages_with_issues, report_json, error_message, created_at`

// timestamp scans DATETIME columns, which the driver returns as
// time.Time for tables and may return as text through views.
type timestamp time.Time

func (t *timestamp) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*t = timestamp{}
	case time.Time:
		*t = timestamp(v)
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
	return nil
}

func (t *timestamp) parse(s string) error {
	for _, layout := range sqlite3.SQLiteTimestampFormats {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = timestamp(parsed)
			return nil
		}
	}
	return fmt.Errorf("unparsable timestamp %q", s)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAudit(row rowScanner, withReport bool) (*Audit, error) {
	var a Audit
	var reportJSON, errMsg sql.NullString
	var createdAt timestamp
	if err := row.Scan(&a.ID, &a.Domain, &a.SeedURL, &a.Status, &a.OverallScore, &a.TotalPages,
		&a.AnalyzedPages, &a.FailedPages, &a.RestrictedPages, &a.HealthyPages, &a.PagesWithIssues,
		&reportJSON, &errMsg, &createdAt); err != nil {
		return nil, err
	}
	a.ErrorMessage = errMsg.String
	a.CreatedAt = time.Time(createdAt)

	if withReport && reportJSON.Valid && reportJSON.String != "" {
		var rep report.AggregatedReport
		if err := json.Unmarshal([]byte(reportJSON.String), &rep); err != nil {
			return nil, fmt.Errorf("failed to decode report: %w", err)
		}
		a.Report = &rep
	}
	return &a, nil
}

// GetAudit retrieves an audit with its full report.
func (d *Database) GetAudit(ctx context.Context, id string) (*Audit, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	row := d.db.QueryRowContext(ctx, `SELECT `+auditColumns+` FROM audits WHERE id = ?`, id)
	a, err := scanAudit(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// ListAudits returns the most recent audits, newest first, optionally
// filtered by domain. Reports are not loaded.
func (d *Database) ListAudits(ctx context.Context, domain string, limit int) ([]*Audit, error) {
	if limit <= 0 {
		limit = 50
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	query := `SELECT ` + auditColumns + ` FROM audits`
	args := []interface{}{}
	if domain != "" {
		query += ` WHERE domain = ?`
		args = append(args, domain)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var audits []*Audit
	for rows.Next() {
		a, err := scanAudit(rows, false)
		if err != nil {
			return nil, err
		}
		audits = append(audits, a)
	}
	return audits, rows.Err()
}

// GetAuditPages retrieves the stored pages of an audit in crawl order.
func (d *Database) GetAuditPages(ctx context.Context, auditID string) ([]*AuditPage, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, audit_id, url, success, source, restricted, score, title, word_count, load_time_ms,
			issues_json, error_message
		FROM audit_pages WHERE audit_id = ? ORDER BY position
	`, auditID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []*AuditPage
	for rows.Next() {
		var p AuditPage
		var issuesJSON, errMsg sql.NullString
		if err := rows.Scan(&p.ID, &p.AuditID, &p.URL, &p.Success, &p.Source, &p.Restricted, &p.Score,
			&p.Title, &p.WordCount, &p.LoadTimeMs, &issuesJSON, &errMsg); err != nil {
			return nil, err
		}
		p.ErrorMessage = errMsg.String
		if issuesJSON.Valid && issuesJSON.String != "" {
			if err := json.Unmarshal([]byte(issuesJSON.String), &p.Issues); err != nil {
				return nil, fmt.Errorf("failed to decode issues of %s: %w", p.URL, err)
			}
		}
		pages = append(pages, &p)
	}
	return pages, rows.Err()
}

// GetRecommendations retrieves the stored recommendations of an audit.
func (d *Database) GetRecommendations(ctx context.Context, auditID string) ([]report.Recommendation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx, `
		SELECT category, priority, issue, recommendation, affected_pages_json
		FROM recommendations WHERE audit_id = ? ORDER BY position
	`, auditID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []report.Recommendation
	for rows.Next() {
		var r report.Recommendation
		var priority string
		var pagesJSON sql.NullString
		if err := rows.Scan(&r.Category, &priority, &r.Issue, &r.Recommendation, &pagesJSON); err != nil {
			return nil, err
		}
		r.Priority = report.Priority(priority)
		if pagesJSON.Valid {
			if err := json.Unmarshal([]byte(pagesJSON.String), &r.AffectedPages); err != nil {
				return nil, fmt.Errorf("failed to decode affected pages: %w", err)
			}
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// RecommendationSummaries counts stored recommendations by category and
// priority, highest priority first.
func (d *Database) RecommendationSummaries(ctx context.Context) ([]RecommendationSummary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx, `SELECT category, priority, count FROM v_recommendations_summary`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RecommendationSummary
	for rows.Next() {
		var s RecommendationSummary
		if err := rows.Scan(&s.Category, &s.Priority, &s.Count); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteAudit removes an audit and its rows.
func (d *Database) DeleteAudit(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	result, err := d.db.ExecContext(ctx, `DELETE FROM audits WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// LatestAudits returns the newest audit of every domain.
func (d *Database) LatestAudits(ctx context.Context) ([]*Audit, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx, `SELECT `+auditColumns+` FROM v_latest_audits ORDER BY domain`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var audits []*Audit
	for rows.Next() {
		a, err := scanAudit(rows, false)
		if err != nil {
			return nil, err
		}
		audits = append(audits, a)
	}
	return audits, rows.Err()
}
