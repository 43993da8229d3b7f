package analyzer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spider-crawler/seoaudit/internal/config"
	"github.com/spider-crawler/seoaudit/internal/logging"
)

var (
	// ErrBackendUnavailable means the primary backend gave no usable answer.
	ErrBackendUnavailable = errors.New("analysis backend unavailable")

	// ErrRestrictedAccess means the page refused access to the crawler.
	ErrRestrictedAccess = errors.New("restricted_access")
)

// Backend is a primary analysis service. Analyze returns a *PrimaryResult
// when the page was analyzed, an *Unavailable when the service answered
// that it could not crawl the page, or an error.
type Backend interface {
	Name() Source
	Analyze(ctx context.Context, pageURL string) (Result, error)
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, pageURL string) (Result, error)

// Name implements Backend.
func (f BackendFunc) Name() Source { return SourceDataForSEO }

// Analyze implements Backend.
func (f BackendFunc) Analyze(ctx context.Context, pageURL string) (Result, error) {
	return f(ctx, pageURL)
}

// NoopBackend is used when no primary service is configured. Every page
// goes to the scrape path.
type NoopBackend struct{}

// Name implements Backend.
func (NoopBackend) Name() Source { return SourceNone }

// Analyze implements Backend.
func (NoopBackend) Analyze(_ context.Context, pageURL string) (Result, error) {
	return &Unavailable{URL: pageURL, Reason: fmt.Errorf("%w: disabled", ErrBackendUnavailable)}, nil
}

// NewBackend builds the primary backend selected by cfg. The DataForSEO
// backend falls back to NoopBackend when no credentials are configured.
func NewBackend(cfg *config.AuditConfig, logger *zap.Logger) (Backend, error) {
	logger = logging.OrNop(logger)

	var backend Backend
	switch cfg.Backend {
	case config.BackendDataForSEO:
		if !cfg.HasDataForSEOCredentials() {
			logger.Warn("DataForSEO credentials missing, using basic scrape only")
			backend = NoopBackend{}
		} else {
			backend = NewDataForSEOBackend(cfg.DataForSEO, logger)
		}
	case config.BackendNone, "":
		backend = NoopBackend{}
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	if cfg.Cache != nil && cfg.Cache.Enabled {
		if _, noop := backend.(NoopBackend); !noop {
			cached, err := NewCachedBackend(backend, cfg.Cache.TTL, cfg.Cache.MaxMB)
			if err != nil {
				return nil, err
			}
			backend = cached
		}
	}
	return backend, nil
}
