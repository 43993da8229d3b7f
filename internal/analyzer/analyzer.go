package analyzer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spider-crawler/seoaudit/internal/fetcher"
	"github.com/spider-crawler/seoaudit/internal/logging"
)

// AccessChecker reports whether a page may be crawled. *robots.Checker
// satisfies it.
type AccessChecker interface {
	Allowed(ctx context.Context, pageURL string) bool
}

// Analyzer analyzes single pages, primary backend first, scrape second.
type Analyzer struct {
	primary Backend
	source  fetcher.Source
	access  AccessChecker
	logger  *zap.Logger
}

// New creates an analyzer. A nil primary behaves like NoopBackend.
func New(primary Backend, source fetcher.Source, logger *zap.Logger) *Analyzer {
	if primary == nil {
		primary = NoopBackend{}
	}
	return &Analyzer{
		primary: primary,
		source:  source,
		logger:  logging.OrNop(logger),
	}
}

// WithAccessChecker makes pages disallowed by ac restricted without any
// request to them.
func (a *Analyzer) WithAccessChecker(ac AccessChecker) *Analyzer {
	a.access = ac
	return a
}

// Analyze produces the analysis attempt for pageURL. It does not return
// errors: failures are reported in the attempt.
func (a *Analyzer) Analyze(ctx context.Context, pageURL string) AnalysisAttempt {
	if a.access != nil && !a.access.Allowed(ctx, pageURL) {
		return a.restricted(pageURL, fmt.Errorf("%w: disallowed by robots.txt", ErrRestrictedAccess))
	}

	res, err := a.primary.Analyze(ctx, pageURL)
	if err == nil {
		if pr, ok := res.(*PrimaryResult); ok {
			return a.success(pageURL, a.primary.Name(), pr)
		}
		if u, ok := res.(*Unavailable); ok {
			err = u.Reason
		}
	}
	if _, noop := a.primary.(NoopBackend); !noop {
		a.logger.Warn("primary backend unavailable, falling back to scrape",
			zap.String("url", pageURL),
			zap.Error(err))
	}

	switch v := Scrape(ctx, a.source, pageURL).(type) {
	case *ScrapeResult:
		return a.success(pageURL, SourceBasicScrape, v)
	case *Unavailable:
		if v.Restricted {
			return a.restricted(pageURL, v.Reason)
		}
		a.logger.Debug("page analysis failed", zap.String("url", pageURL), zap.Error(v.Reason))
		return FailedAttempt(pageURL, v.Reason)
	default:
		return FailedAttempt(pageURL, ErrBackendUnavailable)
	}
}

func (a *Analyzer) success(pageURL string, source Source, r Result) AnalysisAttempt {
	analysis := Finalize(Normalize(r))
	analysis.URL = pageURL
	return AnalysisAttempt{
		URL:      pageURL,
		Success:  true,
		Source:   source,
		Analysis: analysis,
	}
}

func (a *Analyzer) restricted(pageURL string, reason error) AnalysisAttempt {
	if !errors.Is(reason, ErrRestrictedAccess) {
		reason = fmt.Errorf("%w: %v", ErrRestrictedAccess, reason)
	}
	a.logger.Info("restricted page", zap.String("url", pageURL), zap.Error(reason))

	attempt := FailedAttempt(pageURL, reason)
	analysis := Normalize(&Unavailable{URL: pageURL, Restricted: true})
	analysis.Issues = PageIssues(analysis)
	attempt.Analysis = analysis
	return attempt
}
