package storage

// Schema contains SQL statements to create database tables.
const Schema = `
-- Audits table: one row per domain audit
CREATE TABLE IF NOT EXISTS audits (
    id TEXT PRIMARY KEY,
    domain TEXT NOT NULL,
    seed_url TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'completed',
    overall_score INTEGER DEFAULT 0,
    total_pages INTEGER DEFAULT 0,
    analyzed_pages INTEGER DEFAULT 0,
    failed_pages INTEGER DEFAULT 0,
    restricted_pages INTEGER DEFAULT 0,
    healthy_pages INTEGER DEFAULT 0,
    pages_with_issues INTEGER DEFAULT 0,
    report_json TEXT,
    error_message TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_audits_domain ON audits(domain);
CREATE INDEX IF NOT EXISTS idx_audits_created_at ON audits(created_at);

-- Audit pages table: per-page results of an audit
CREATE TABLE IF NOT EXISTS audit_pages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    audit_id TEXT NOT NULL REFERENCES audits(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    url TEXT NOT NULL,
    success BOOLEAN DEFAULT 0,
    source TEXT,
    restricted BOOLEAN DEFAULT 0,
    score INTEGER DEFAULT 0,
    title TEXT,
    word_count INTEGER DEFAULT 0,
    load_time_ms INTEGER DEFAULT 0,
    issues_json TEXT,
    error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_audit_pages_audit_id ON audit_pages(audit_id);

-- Recommendations table
CREATE TABLE IF NOT EXISTS recommendations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    audit_id TEXT NOT NULL REFERENCES audits(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    category TEXT NOT NULL,
    priority TEXT NOT NULL,
    issue TEXT NOT NULL,
    recommendation TEXT NOT NULL,
    affected_pages_json TEXT
);

CREATE INDEX IF NOT EXISTS idx_recommendations_audit_id ON recommendations(audit_id);
`

// ViewsSchema contains SQL views for reporting.
const ViewsSchema = `
-- View: Latest audit per domain
CREATE VIEW IF NOT EXISTS v_latest_audits AS
SELECT a.*
FROM audits a
WHERE a.created_at = (
    SELECT MAX(b.created_at) FROM audits b WHERE b.domain = a.domain
);

-- View: Recommendations summary
CREATE VIEW IF NOT EXISTS v_recommendations_summary AS
SELECT
    category,
    priority,
    COUNT(*) as count
FROM recommendations
GROUP BY category, priority
ORDER BY
    CASE priority
        WHEN 'High' THEN 1
        WHEN 'Medium' THEN 2
        WHEN 'Low' THEN 3
    END,
    count DESC;
`
