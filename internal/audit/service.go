// Package audit runs a whole-domain SEO audit: discovery, batched page
// analysis and aggregation into a report.
package audit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/spider-crawler/seoaudit/internal/analyzer"
	"github.com/spider-crawler/seoaudit/internal/config"
	"github.com/spider-crawler/seoaudit/internal/fetcher"
	"github.com/spider-crawler/seoaudit/internal/frontier"
	"github.com/spider-crawler/seoaudit/internal/logging"
	"github.com/spider-crawler/seoaudit/internal/renderer"
	"github.com/spider-crawler/seoaudit/internal/report"
	"github.com/spider-crawler/seoaudit/internal/robots"
	"github.com/spider-crawler/seoaudit/internal/scheduler"
	"github.com/spider-crawler/seoaudit/internal/session"
	"github.com/spider-crawler/seoaudit/internal/storage"
	"github.com/spider-crawler/seoaudit/internal/urlutil"
)

// ErrInvalidDomain is returned for input that does not name a site.
var ErrInvalidDomain = errors.New("invalid domain")

// Result is the outcome of AnalyzeDomain. It is JSON-serializable and
// Error is set only when Success is false.
type Result struct {
	Success bool                     `json:"success"`
	Data    *report.AggregatedReport `json:"data,omitempty"`
	Error   string                   `json:"error,omitempty"`

	// ID under which the report was persisted or stored, if any
	ID string `json:"id,omitempty"`
}

// Service wires the audit pipeline together.
type Service struct {
	cfg    *config.AuditConfig
	logger *zap.Logger

	source     fetcher.Source
	primary    analyzer.Backend
	robots     *robots.Checker
	discoverer *frontier.Discoverer
	analyzer   *analyzer.Analyzer
	batcher    *scheduler.Batcher

	db       *storage.Database
	sessions session.Store

	closers []io.Closer
}

// Option customizes a Service.
type Option func(*Service)

// WithSource replaces the page source used for discovery and scraping.
func WithSource(src fetcher.Source) Option {
	return func(s *Service) { s.source = src }
}

// WithDatabase persists every finished audit.
func WithDatabase(db *storage.Database) Option {
	return func(s *Service) { s.db = db }
}

// WithSessionStore keeps every successful result in store.
func WithSessionStore(store session.Store) Option {
	return func(s *Service) { s.sessions = store }
}

// WithBackend replaces the configured primary analysis backend.
func WithBackend(b analyzer.Backend) Option {
	return func(s *Service) { s.primary = b }
}

// New creates a Service from cfg. cfg is copied and validated.
func New(cfg *config.AuditConfig, logger *zap.Logger, opts ...Option) (*Service, error) {
	cfg = cfg.Clone()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		cfg:     cfg,
		logger:  logging.OrNop(logger),
		batcher: scheduler.NewBatcher(cfg, logger),
	}
	for _, opt := range opts {
		opt(s)
	}

	httpFetcher := fetcher.NewFetcher(cfg, s.logger)
	s.closers = append(s.closers, closerFunc(func() error { httpFetcher.Close(); return nil }))

	if s.source == nil {
		if cfg.RenderMode == config.RenderJS {
			r := renderer.NewRenderer(cfg, s.logger)
			s.closers = append(s.closers, r)
			s.source = r
		} else {
			s.source = httpFetcher
		}
	}

	if s.primary == nil {
		primary, err := analyzer.NewBackend(cfg, s.logger)
		if err != nil {
			s.Close()
			return nil, err
		}
		if c, ok := primary.(io.Closer); ok {
			s.closers = append(s.closers, c)
		}
		s.primary = primary
	}
	s.analyzer = analyzer.New(s.primary, s.source, s.logger)

	classifier := urlutil.NewClassifier(cfg.ExcludeExtensions...)
	s.discoverer = frontier.NewDiscoverer(s.source, classifier, s.logger)

	if cfg.RespectRobotsTxt {
		// robots.txt is always fetched over plain HTTP
		s.robots = robots.NewChecker(httpFetcher, cfg.UserAgent, s.logger)
		s.discoverer.WithAccessChecker(s.robots)
		s.analyzer.WithAccessChecker(s.robots)
	}

	return s, nil
}

// Close releases browsers, caches and connections.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// DiscoverSubpages returns the in-domain pages reachable from seedURL
// within the configured limits, seed first.
func (s *Service) DiscoverSubpages(ctx context.Context, seedURL string) []string {
	return s.discoverer.Discover(ctx, seedURL, s.cfg.MaxPages, s.cfg.MaxDepth)
}

// AnalyzeDomain audits the site named by domain. It never panics and
// never returns an error: failures are reported in the Result.
func (s *Service) AnalyzeDomain(ctx context.Context, domain string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("domain analysis panicked",
				zap.String("domain", domain),
				zap.Any("panic", r),
				zap.Stack("stack"))
			res = Result{Success: false, Error: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	rep, err := s.analyze(ctx, domain)
	if err != nil {
		s.logger.Warn("domain analysis failed", zap.String("domain", domain), zap.Error(err))
		res = Result{Success: false, Error: err.Error()}
		if s.db != nil {
			if _, dbErr := s.db.SaveFailedAudit(ctx, "", domain, err.Error()); dbErr != nil {
				s.logger.Error("failed to record failed audit", zap.Error(dbErr))
			}
		}
		return res
	}

	res = Result{Success: true, Data: rep}
	s.store(ctx, &res)
	return res
}

func (s *Service) analyze(ctx context.Context, domain string) (*report.AggregatedReport, error) {
	seedURL, err := urlutil.SeedURL(domain)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDomain, err)
	}
	seed, err := url.Parse(seedURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDomain, err)
	}

	start := time.Now()
	s.logger.Info("starting domain analysis",
		zap.String("seed", seedURL),
		zap.Int("max_pages", s.cfg.MaxPages),
		zap.Int("max_depth", s.cfg.MaxDepth))

	urls := s.DiscoverSubpages(ctx, seedURL)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("discovery interrupted: %w", err)
	}

	attempts := scheduler.AnalyzeAll(ctx, s.batcherFor(ctx, seedURL), s.analyzer, urls)

	rep := report.Aggregate(attempts)
	rep.Domain = urlutil.StripWWW(seed.Hostname())
	rep.SeedURL = seedURL
	rep.Site = urlutil.RegistrableDomain(seed.Host)

	s.logger.Info("domain analysis finished",
		zap.String("domain", rep.Domain),
		zap.Int("pages", rep.TotalPages),
		zap.Int("analyzed", rep.AnalyzedPages),
		zap.Int("score", rep.OverallScore),
		zap.Duration("elapsed", time.Since(start)))

	return rep, nil
}

// batcherFor returns the batcher for one audit, slowed down to the
// robots.txt Crawl-delay of the site when one is set.
func (s *Service) batcherFor(ctx context.Context, seedURL string) *scheduler.Batcher {
	if s.robots == nil {
		return s.batcher
	}
	delay := s.robots.CrawlDelay(ctx, seedURL)
	if delay <= 0 {
		return s.batcher
	}

	u, err := url.Parse(seedURL)
	if err != nil {
		return s.batcher
	}

	b := s.batcher
	if b.Limiter == nil {
		cp := *b
		cp.Limiter = scheduler.NewHostRateLimiter(0, s.cfg.RequestsPerSecond)
		b = &cp
	}
	b.Limiter.SetCrawlDelay(u.Host, delay)
	s.logger.Debug("honouring robots.txt crawl delay", zap.String("host", u.Host), zap.Duration("delay", delay))
	return b
}

// store keeps a successful result in the session store and the
// database. Both share the session ID when there is one.
func (s *Service) store(ctx context.Context, res *Result) {
	if s.sessions != nil {
		id, err := s.sessions.Put(ctx, *res)
		if err != nil {
			s.logger.Error("failed to store session result", zap.Error(err))
		} else {
			res.ID = id
		}
	}
	if s.db != nil {
		id, err := s.db.SaveAudit(ctx, res.ID, res.Data)
		if err != nil {
			s.logger.Error("failed to persist audit", zap.Error(err))
		} else {
			res.ID = id
		}
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
