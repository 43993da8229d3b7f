package scheduler

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spider-crawler/seoaudit/internal/analyzer"
	"github.com/spider-crawler/seoaudit/internal/config"
	"github.com/spider-crawler/seoaudit/internal/logging"
)

// DefaultBatchSize is the number of URLs analyzed concurrently.
const DefaultBatchSize = 5

// Batcher partitions work into consecutive chunks. Tasks within a chunk
// run concurrently and all of them settle before the next chunk starts.
type Batcher struct {
	// Size is the chunk size (<= 0 means DefaultBatchSize)
	Size int

	// Delay is the pause between chunks, skipped after the last one
	Delay time.Duration

	// Limiter optionally throttles individual tasks
	Limiter *HostRateLimiter

	Logger *zap.Logger
}

// NewBatcher creates a batcher from the audit configuration.
func NewBatcher(cfg *config.AuditConfig, logger *zap.Logger) *Batcher {
	b := &Batcher{
		Size:   cfg.BatchSize,
		Delay:  cfg.BatchDelay,
		Logger: logging.OrNop(logger),
	}
	if cfg.RequestsPerSecond > 0 {
		b.Limiter = NewHostRateLimiter(0, cfg.RequestsPerSecond)
	}
	return b
}

// Task processes one URL.
type Task[R any] func(ctx context.Context, url string) (R, error)

// FailFunc builds the result recorded for a URL whose task failed,
// panicked or never ran.
type FailFunc[R any] func(url string, err error) R

// Run applies task to every URL in chunks and returns one result per URL
// in input order. Errors never abort sibling tasks; they are turned into
// results by onFail. When ctx is cancelled, URLs not yet started get an
// onFail result carrying ctx.Err().
func Run[R any](ctx context.Context, b *Batcher, urls []string, task Task[R], onFail FailFunc[R]) []R {
	size := b.Size
	if size <= 0 {
		size = DefaultBatchSize
	}
	logger := logging.OrNop(b.Logger)

	results := make([]R, len(urls))
	chunks := (len(urls) + size - 1) / size

	for c := 0; c < chunks; c++ {
		start := c * size
		end := start + size
		if end > len(urls) {
			end = len(urls)
		}

		if err := ctx.Err(); err != nil {
			for i := start; i < len(urls); i++ {
				results[i] = onFail(urls[i], err)
			}
			return results
		}

		logger.Debug("running batch",
			zap.Int("batch", c+1),
			zap.Int("of", chunks),
			zap.Int("size", end-start))

		var g errgroup.Group
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				results[i] = runOne(ctx, b.Limiter, urls[i], task, onFail)
				return nil
			})
		}
		_ = g.Wait()

		if c < chunks-1 && b.Delay > 0 {
			timer := time.NewTimer(b.Delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
			}
		}
	}

	return results
}

// runOne owns exactly one result slot.
func runOne[R any](ctx context.Context, limiter *HostRateLimiter, rawURL string, task Task[R], onFail FailFunc[R]) (result R) {
	defer func() {
		if r := recover(); r != nil {
			result = onFail(rawURL, fmt.Errorf("task panicked: %v", r))
		}
	}()

	if limiter != nil {
		host := rawURL
		if u, err := url.Parse(rawURL); err == nil {
			host = u.Host
		}
		if err := limiter.Wait(ctx, host); err != nil {
			return onFail(rawURL, err)
		}
	}

	r, err := task(ctx, rawURL)
	if err != nil {
		return onFail(rawURL, err)
	}
	return r
}

// AnalyzeAll analyzes urls with a in batches, one attempt per URL in
// input order.
func AnalyzeAll(ctx context.Context, b *Batcher, a *analyzer.Analyzer, urls []string) []analyzer.AnalysisAttempt {
	start := time.Now()
	attempts := Run(ctx, b, urls,
		func(ctx context.Context, pageURL string) (analyzer.AnalysisAttempt, error) {
			return a.Analyze(ctx, pageURL), nil
		},
		analyzer.FailedAttempt,
	)

	ok := 0
	for _, at := range attempts {
		if at.Success {
			ok++
		}
	}
	logging.OrNop(b.Logger).Info("batch analysis finished",
		zap.Int("pages", len(urls)),
		zap.Int("succeeded", ok),
		zap.Duration("elapsed", time.Since(start)))

	return attempts
}
