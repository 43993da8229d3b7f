package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	"golang.org/x/sync/singleflight"
)

// CachedBackend memoizes primary results in memory and collapses
// concurrent requests for the same URL into one upstream call. Only
// successful *PrimaryResult answers are cached.
type CachedBackend struct {
	next  Backend
	cache *bigcache.BigCache
	group singleflight.Group
}

// NewCachedBackend wraps next with a cache whose entries live for ttl.
func NewCachedBackend(next Backend, ttl time.Duration, maxMB int) (*CachedBackend, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	cfg := bigcache.DefaultConfig(ttl)
	cfg.Shards = 64
	cfg.CleanWindow = ttl / 2
	cfg.HardMaxCacheSize = maxMB
	cfg.Verbose = false

	cache, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	return &CachedBackend{next: next, cache: cache}, nil
}

// Name implements Backend.
func (c *CachedBackend) Name() Source { return c.next.Name() }

// Analyze implements Backend.
func (c *CachedBackend) Analyze(ctx context.Context, pageURL string) (Result, error) {
	if entry, err := c.cache.Get(pageURL); err == nil {
		var pr PrimaryResult
		if json.Unmarshal(entry, &pr) == nil {
			return &pr, nil
		}
	} else if !errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, err
	}

	// The shared call outlives any single caller; each caller still stops
	// waiting when its own context ends.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(pageURL, func() (interface{}, error) {
		res, err := c.next.Analyze(shared, pageURL)
		if err != nil {
			return nil, err
		}
		if pr, ok := res.(*PrimaryResult); ok {
			if entry, err := json.Marshal(pr); err == nil {
				_ = c.cache.Set(pageURL, entry)
			}
		}
		return res, nil
	})

	select {
	case out := <-ch:
		if out.Err != nil {
			return nil, out.Err
		}
		return out.Val.(Result), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close releases the cache.
func (c *CachedBackend) Close() error {
	return c.cache.Close()
}
