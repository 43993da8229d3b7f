// Package api exposes domain audits over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spider-crawler/seoaudit/internal/audit"
	"github.com/spider-crawler/seoaudit/internal/logging"
	"github.com/spider-crawler/seoaudit/internal/report"
	"github.com/spider-crawler/seoaudit/internal/session"
	"github.com/spider-crawler/seoaudit/internal/storage"
)

// Auditor runs domain audits. *audit.Service satisfies it.
type Auditor interface {
	AnalyzeDomain(ctx context.Context, domain string) audit.Result
}

// AnalysisRequest is the body of POST /api/v1/analyses.
type AnalysisRequest struct {
	Domain string `json:"domain" binding:"required"`
}

// AnalysisResponse carries a result and the ID it can be fetched by.
type AnalysisResponse struct {
	ID     string       `json:"id,omitempty"`
	Result audit.Result `json:"result"`
}

// Server is the HTTP front end.
type Server struct {
	router   *gin.Engine
	auditor  Auditor
	sessions session.Store
	db       *storage.Database
	logger   *zap.Logger
}

// NewServer creates a server. Results are looked up in sessions first
// and in db (optional) second.
func NewServer(auditor Auditor, sessions session.Store, db *storage.Database, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	s := &Server{
		router:   r,
		auditor:  auditor,
		sessions: sessions,
		db:       db,
		logger:   logging.OrNop(logger),
	}

	r.Use(s.requestLogger())
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		s.logger.Error("handler panicked", zap.Any("panic", recovered))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}))

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.healthHandler)

	v1 := s.router.Group("/api/v1")
	v1.POST("/analyses", s.createAnalysisHandler)
	v1.GET("/analyses", s.listAnalysesHandler)
	v1.GET("/analyses/:id", s.getAnalysisHandler)
	v1.GET("/analyses/:id/export", s.exportAnalysisHandler)
	v1.DELETE("/analyses/:id", s.deleteAnalysisHandler)

	// History, served from the database only
	v1.GET("/analyses/:id/pages", s.analysisPagesHandler)
	v1.GET("/analyses/:id/recommendations", s.analysisRecommendationsHandler)
	v1.GET("/audits/latest", s.latestAuditsHandler)
	v1.GET("/recommendations/summary", s.recommendationSummaryHandler)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) createAnalysisHandler(c *gin.Context) {
	var req AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "domain is required"})
		return
	}

	result := s.auditor.AnalyzeDomain(c.Request.Context(), req.Domain)
	c.JSON(http.StatusOK, AnalysisResponse{ID: result.ID, Result: result})
}

// analysisItem is one row of the analysis listing.
type analysisItem struct {
	ID           string    `json:"id"`
	Domain       string    `json:"domain"`
	Success      bool      `json:"success"`
	OverallScore int       `json:"overallScore"`
	CreatedAt    time.Time `json:"createdAt"`
}

// listAnalysesHandler lists results from the session store merged with the
// database. Query parameters: domain filters, limit caps database rows.
func (s *Server) listAnalysesHandler(c *gin.Context) {
	ctx := c.Request.Context()
	domain := c.Query("domain")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	entries, err := s.sessions.List(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	seen := make(map[string]bool)
	items := make([]analysisItem, 0, len(entries))
	for _, e := range entries {
		res, ok := e.Value.(audit.Result)
		if !ok {
			continue
		}
		it := analysisItem{ID: e.ID, Success: res.Success, CreatedAt: e.CreatedAt}
		if res.Data != nil {
			it.Domain = res.Data.Domain
			it.OverallScore = res.Data.OverallScore
		}
		if domain != "" && it.Domain != domain {
			continue
		}
		seen[it.ID] = true
		items = append(items, it)
	}

	if s.db != nil {
		stored, err := s.db.ListAudits(ctx, domain, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		for _, a := range stored {
			if seen[a.ID] {
				continue
			}
			items = append(items, analysisItem{
				ID:           a.ID,
				Domain:       a.Domain,
				Success:      a.Status == storage.StatusCompleted,
				OverallScore: a.OverallScore,
				CreatedAt:    a.CreatedAt,
			})
		}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	if len(items) > limit {
		items = items[:limit]
	}
	c.JSON(http.StatusOK, gin.H{"analyses": items, "count": len(items)})
}

func (s *Server) getAnalysisHandler(c *gin.Context) {
	id := c.Param("id")
	result, found, err := s.lookup(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
		return
	}
	c.JSON(http.StatusOK, AnalysisResponse{ID: id, Result: result})
}

func (s *Server) exportAnalysisHandler(c *gin.Context) {
	id := c.Param("id")
	format, err := report.ParseFormat(c.DefaultQuery("format", "json"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, found, err := s.lookup(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !found || result.Data == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
		return
	}

	filename := fmt.Sprintf("seo-audit-%s.%s", result.Data.Domain, format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	switch format {
	case report.FormatCSV:
		c.Header("Content-Type", "text/csv; charset=utf-8")
		err = report.WriteCSV(c.Writer, result.Data, ',', 0)
	case report.FormatXLSX:
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		err = report.WriteXLSX(c.Writer, result.Data, 0)
	default:
		c.Header("Content-Type", "application/json; charset=utf-8")
		err = report.WriteJSON(c.Writer, result.Data)
	}
	if err != nil {
		s.logger.Error("export failed", zap.String("id", id), zap.Error(err))
	}
}

func (s *Server) deleteAnalysisHandler(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	if err := s.sessions.Delete(ctx, id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if s.db != nil {
		if err := s.db.DeleteAudit(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.Status(http.StatusNoContent)
}

// requireDB answers 404 when persistence is disabled.
func (s *Server) requireDB(c *gin.Context) bool {
	if s.db == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "audit history is not enabled"})
		return false
	}
	return true
}

// storedAudit answers 404 unless id names a stored audit.
func (s *Server) storedAudit(c *gin.Context, id string) bool {
	_, err := s.db.GetAudit(c.Request.Context(), id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
		return false
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func (s *Server) analysisPagesHandler(c *gin.Context) {
	id := c.Param("id")
	if !s.requireDB(c) || !s.storedAudit(c, id) {
		return
	}
	pages, err := s.db.GetAuditPages(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if pages == nil {
		pages = []*storage.AuditPage{}
	}
	c.JSON(http.StatusOK, gin.H{"pages": pages, "count": len(pages)})
}

func (s *Server) analysisRecommendationsHandler(c *gin.Context) {
	id := c.Param("id")
	if !s.requireDB(c) || !s.storedAudit(c, id) {
		return
	}
	recs, err := s.db.GetRecommendations(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if recs == nil {
		recs = []report.Recommendation{}
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": recs, "count": len(recs)})
}

func (s *Server) latestAuditsHandler(c *gin.Context) {
	if !s.requireDB(c) {
		return
	}
	audits, err := s.db.LatestAudits(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if audits == nil {
		audits = []*storage.Audit{}
	}
	c.JSON(http.StatusOK, gin.H{"audits": audits, "count": len(audits)})
}

func (s *Server) recommendationSummaryHandler(c *gin.Context) {
	if !s.requireDB(c) {
		return
	}
	summary, err := s.db.RecommendationSummaries(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if summary == nil {
		summary = []storage.RecommendationSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// lookup finds a result in the session store, then in the database.
func (s *Server) lookup(ctx context.Context, id string) (audit.Result, bool, error) {
	entry, ok, err := s.sessions.Get(ctx, id)
	if err != nil {
		return audit.Result{}, false, err
	}
	if ok {
		if res, isResult := entry.Value.(audit.Result); isResult {
			return res, true, nil
		}
	}

	if s.db == nil {
		return audit.Result{}, false, nil
	}
	stored, err := s.db.GetAudit(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return audit.Result{}, false, nil
	}
	if err != nil {
		return audit.Result{}, false, err
	}
	return audit.Result{
		Success: stored.Status == storage.StatusCompleted,
		Data:    stored.Report,
		Error:   stored.ErrorMessage,
		ID:      stored.ID,
	}, true, nil
}
