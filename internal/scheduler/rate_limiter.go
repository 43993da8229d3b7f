// Package scheduler runs page analyses in fixed-size concurrent batches
// with politeness delays.
package scheduler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostRateLimiter combines a global request rate with a minimum delay
// between requests to the same host.
type HostRateLimiter struct {
	mu          sync.Mutex
	nextAllowed map[string]time.Time
	crawlDelay  time.Duration
	hostDelays  map[string]time.Duration
	global      *rate.Limiter
}

// NewHostRateLimiter creates a limiter. globalRPS <= 0 disables the
// global rate; crawlDelay <= 0 disables the per-host delay.
func NewHostRateLimiter(crawlDelay time.Duration, globalRPS float64) *HostRateLimiter {
	limit := rate.Inf
	burst := 1
	if globalRPS > 0 {
		limit = rate.Limit(globalRPS)
		burst = int(globalRPS) + 1
	}
	return &HostRateLimiter{
		nextAllowed: make(map[string]time.Time),
		crawlDelay:  crawlDelay,
		hostDelays:  make(map[string]time.Duration),
		global:      rate.NewLimiter(limit, burst),
	}
}

// SetCrawlDelay raises the delay for one host, e.g. to its robots.txt
// Crawl-delay. It never lowers it.
func (r *HostRateLimiter) SetCrawlDelay(host string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d > r.hostDelays[host] {
		r.hostDelays[host] = d
	}
}

// Wait blocks until a request to host may be made or ctx is done.
func (r *HostRateLimiter) Wait(ctx context.Context, host string) error {
	if err := r.global.Wait(ctx); err != nil {
		return err
	}

	// Reserve the host slot under the lock, sleep outside it
	r.mu.Lock()
	now := time.Now()
	slot := now
	if next, ok := r.nextAllowed[host]; ok && next.After(now) {
		slot = next
	}
	delay := r.crawlDelay
	if d := r.hostDelays[host]; d > delay {
		delay = d
	}
	r.nextAllowed[host] = slot.Add(delay)
	r.mu.Unlock()

	wait := slot.Sub(now)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
