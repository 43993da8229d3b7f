package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spider-crawler/seoaudit/internal/audit"
	"github.com/spider-crawler/seoaudit/internal/report"
	"github.com/spider-crawler/seoaudit/internal/session"
	"github.com/spider-crawler/seoaudit/internal/storage"
)

// fakeAuditor stores a canned report the way audit.Service does.
type fakeAuditor struct {
	store   session.Store
	domains []string
}

func (f *fakeAuditor) AnalyzeDomain(ctx context.Context, domain string) audit.Result {
	f.domains = append(f.domains, domain)
	res := audit.Result{
		Success: true,
		Data: &report.AggregatedReport{
			Domain:       domain,
			SeedURL:      "https://" + domain + "/",
			TotalPages:   1,
			OverallScore: 72,
			Pages:        []report.PageSummary{{URL: "https://" + domain + "/", Success: true, Score: 72}},
			GeneratedAt:  time.Now(),
		},
	}
	id, _ := f.store.Put(ctx, res)
	res.ID = id
	return res
}

func newTestServer(t *testing.T, db *storage.Database) (*Server, *fakeAuditor) {
	t.Helper()
	store := session.NewMemoryStore(0)
	auditor := &fakeAuditor{store: store}
	return NewServer(auditor, store, db, nil), auditor
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, nil)
	w := do(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestCreateAndGetAnalysis(t *testing.T) {
	s, auditor := newTestServer(t, nil)

	w := do(s, http.MethodPost, "/api/v1/analyses", `{"domain":"example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var created AnalysisResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	assert.True(t, created.Result.Success)
	assert.Equal(t, []string{"example.com"}, auditor.domains)

	w = do(s, http.MethodGet, "/api/v1/analyses/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code)

	var fetched AnalysisResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, 72, fetched.Result.Data.OverallScore)
}

func TestCreateAnalysisRequiresDomain(t *testing.T) {
	s, auditor := newTestServer(t, nil)

	w := do(s, http.MethodPost, "/api/v1/analyses", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, auditor.domains)
}

func TestGetUnknownAnalysis(t *testing.T) {
	s, _ := newTestServer(t, nil)
	w := do(s, http.MethodGet, "/api/v1/analyses/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListAndDeleteAnalyses(t *testing.T) {
	s, _ := newTestServer(t, nil)

	do(s, http.MethodPost, "/api/v1/analyses", `{"domain":"a.com"}`)
	w := do(s, http.MethodPost, "/api/v1/analyses", `{"domain":"b.com"}`)
	var created AnalysisResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = do(s, http.MethodGet, "/api/v1/analyses", "")
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Equal(t, 2, listed.Count)

	w = do(s, http.MethodDelete, "/api/v1/analyses/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(s, http.MethodGet, "/api/v1/analyses/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportAnalysis(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := do(s, http.MethodPost, "/api/v1/analyses", `{"domain":"example.com"}`)
	var created AnalysisResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = do(s, http.MethodGet, "/api/v1/analyses/"+created.ID+"/export?format=csv", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "seo-audit-example.com.csv")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte{0xEF, 0xBB, 0xBF}))
	assert.Contains(t, w.Body.String(), "https://example.com/")

	w = do(s, http.MethodGet, "/api/v1/analyses/"+created.ID+"/export?format=pdf", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetFallsBackToDatabase(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "audits.db"))
	require.NoError(t, err)
	defer db.Close()

	id, err := db.SaveAudit(context.Background(), "", &report.AggregatedReport{
		Domain:       "stored.com",
		SeedURL:      "https://stored.com/",
		TotalPages:   4,
		OverallScore: 64,
		GeneratedAt:  time.Now(),
	})
	require.NoError(t, err)

	s, _ := newTestServer(t, db)
	w := do(s, http.MethodGet, "/api/v1/analyses/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)

	var fetched AnalysisResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	assert.True(t, fetched.Result.Success)
	assert.Equal(t, 4, fetched.Result.Data.TotalPages)
}

func openDB(t *testing.T) *storage.Database {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "audits.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func storedReport(domain string, score int) *report.AggregatedReport {
	return &report.AggregatedReport{
		Domain:       domain,
		SeedURL:      "https://" + domain + "/",
		TotalPages:   1,
		OverallScore: score,
		Pages:        []report.PageSummary{{URL: "https://" + domain + "/", Success: true, Score: score}},
		Recommendations: []report.Recommendation{
			{Category: "Technical", Priority: report.PriorityMedium, Issue: "Missing canonical",
				Recommendation: "Add canonical tags", AffectedPages: []string{"https://" + domain + "/"}},
		},
		GeneratedAt: time.Now(),
	}
}

func TestListIncludesStoredAudits(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	_, err := db.SaveAudit(ctx, "", storedReport("old.com", 40))
	require.NoError(t, err)
	_, err = db.SaveAudit(ctx, "", storedReport("other.com", 90))
	require.NoError(t, err)

	// A fresh server has an empty session store, as after a restart
	s, _ := newTestServer(t, db)
	w := do(s, http.MethodPost, "/api/v1/analyses", `{"domain":"new.com"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var listed struct {
		Analyses []analysisItem `json:"analyses"`
		Count    int            `json:"count"`
	}
	w = do(s, http.MethodGet, "/api/v1/analyses", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Equal(t, 3, listed.Count)

	w = do(s, http.MethodGet, "/api/v1/analyses?domain=old.com", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Equal(t, 1, listed.Count)
	assert.Equal(t, "old.com", listed.Analyses[0].Domain)
	assert.Equal(t, 40, listed.Analyses[0].OverallScore)
	assert.True(t, listed.Analyses[0].Success)

	w = do(s, http.MethodGet, "/api/v1/analyses?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStoredPagesAndRecommendations(t *testing.T) {
	db := openDB(t)
	id, err := db.SaveAudit(context.Background(), "", storedReport("stored.com", 64))
	require.NoError(t, err)
	s, _ := newTestServer(t, db)

	w := do(s, http.MethodGet, "/api/v1/analyses/"+id+"/pages", "")
	require.Equal(t, http.StatusOK, w.Code)
	var pages struct {
		Pages []storage.AuditPage `json:"pages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pages))
	require.Len(t, pages.Pages, 1)
	assert.Equal(t, "https://stored.com/", pages.Pages[0].URL)

	w = do(s, http.MethodGet, "/api/v1/analyses/"+id+"/recommendations", "")
	require.Equal(t, http.StatusOK, w.Code)
	var recs struct {
		Recommendations []report.Recommendation `json:"recommendations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recs))
	require.Len(t, recs.Recommendations, 1)
	assert.Equal(t, "Missing canonical", recs.Recommendations[0].Issue)

	w = do(s, http.MethodGet, "/api/v1/analyses/missing/pages", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLatestAuditsAndSummary(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	for _, r := range []*report.AggregatedReport{storedReport("a.com", 50), storedReport("a.com", 60), storedReport("b.com", 70)} {
		_, err := db.SaveAudit(ctx, "", r)
		require.NoError(t, err)
	}
	s, _ := newTestServer(t, db)

	w := do(s, http.MethodGet, "/api/v1/audits/latest", "")
	require.Equal(t, http.StatusOK, w.Code)
	var latest struct {
		Audits []storage.Audit `json:"audits"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &latest))
	domains := make(map[string]bool)
	for _, a := range latest.Audits {
		domains[a.Domain] = true
	}
	assert.Equal(t, map[string]bool{"a.com": true, "b.com": true}, domains)

	w = do(s, http.MethodGet, "/api/v1/recommendations/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	var summary struct {
		Summary []storage.RecommendationSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	require.Len(t, summary.Summary, 1)
	assert.Equal(t, 3, summary.Summary[0].Count)
}

func TestHistoryRoutesNeedDatabase(t *testing.T) {
	s, _ := newTestServer(t, nil)
	for _, path := range []string{
		"/api/v1/audits/latest",
		"/api/v1/recommendations/summary",
		"/api/v1/analyses/x/pages",
		"/api/v1/analyses/x/recommendations",
	} {
		w := do(s, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}
