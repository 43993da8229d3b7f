package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spider-crawler/seoaudit/internal/analyzer"
	"github.com/spider-crawler/seoaudit/internal/config"
)

type outcome struct {
	url string
	ok  bool
	err string
}

func failed(url string, err error) outcome {
	return outcome{url: url, err: err.Error()}
}

func urlsN(n int) []string {
	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://example.com/p%d", i)
	}
	return urls
}

func TestRunPreservesInputOrder(t *testing.T) {
	urls := urlsN(13)
	b := &Batcher{Size: 5}

	out := Run(context.Background(), b, urls, func(_ context.Context, u string) (outcome, error) {
		time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)
		return outcome{url: u, ok: true}, nil
	}, failed)

	require.Len(t, out, len(urls))
	for i, o := range out {
		assert.Equal(t, urls[i], o.url)
		assert.True(t, o.ok)
	}
}

func TestRunChunksAreBoundedAndSequential(t *testing.T) {
	var running, peak atomic.Int32
	b := &Batcher{Size: 3}

	Run(context.Background(), b, urlsN(10), func(_ context.Context, u string) (outcome, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return outcome{url: u, ok: true}, nil
	}, failed)

	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestRunSingleChunkHasNoDelay(t *testing.T) {
	b := &Batcher{Size: 5, Delay: time.Second}

	start := time.Now()
	out := Run(context.Background(), b, urlsN(3), func(_ context.Context, u string) (outcome, error) {
		return outcome{url: u, ok: true}, nil
	}, failed)

	assert.Len(t, out, 3)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRunSingleChunkIsConcurrent(t *testing.T) {
	b := &Batcher{Size: 5}
	var wg sync.WaitGroup
	wg.Add(3)

	// Each task waits for all three to start; this only finishes if they
	// run at the same time
	done := make(chan struct{})
	go func() {
		Run(context.Background(), b, urlsN(3), func(_ context.Context, u string) (outcome, error) {
			wg.Done()
			wg.Wait()
			return outcome{url: u, ok: true}, nil
		}, failed)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks in one chunk did not run concurrently")
	}
}

func TestRunDelaysBetweenChunks(t *testing.T) {
	b := &Batcher{Size: 2, Delay: 150 * time.Millisecond}

	start := time.Now()
	Run(context.Background(), b, urlsN(5), func(_ context.Context, u string) (outcome, error) {
		return outcome{url: u, ok: true}, nil
	}, failed)

	// three chunks, two pauses
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
}

func TestRunIsolatesFailures(t *testing.T) {
	urls := urlsN(5)
	b := &Batcher{Size: 5}

	out := Run(context.Background(), b, urls, func(_ context.Context, u string) (outcome, error) {
		switch u {
		case urls[1]:
			return outcome{}, errors.New("fetch failed")
		case urls[3]:
			panic("parser exploded")
		}
		return outcome{url: u, ok: true}, nil
	}, failed)

	require.Len(t, out, 5)
	assert.Equal(t, outcome{url: urls[1], err: "fetch failed"}, out[1])
	assert.Equal(t, urls[3], out[3].url)
	assert.Contains(t, out[3].err, "panicked")
	for _, i := range []int{0, 2, 4} {
		assert.True(t, out[i].ok)
	}
}

func TestRunCancelledContextFillsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Batcher{Size: 2, Delay: time.Minute}

	var calls atomic.Int32
	out := Run(ctx, b, urlsN(6), func(_ context.Context, u string) (outcome, error) {
		if calls.Add(1) == 2 {
			cancel()
		}
		return outcome{url: u, ok: true}, nil
	}, failed)

	require.Len(t, out, 6)
	assert.True(t, out[0].ok)
	assert.True(t, out[1].ok)
	for _, o := range out[2:] {
		assert.False(t, o.ok)
		assert.Equal(t, context.Canceled.Error(), o.err)
	}
}

func TestAnalyzeAllReturnsOneAttemptPerURL(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchDelay = 0

	// No page is reachable: every attempt is a failure record
	a := analyzer.New(analyzer.NoopBackend{}, unreachable{}, nil)
	urls := urlsN(7)
	attempts := AnalyzeAll(context.Background(), NewBatcher(cfg, nil), a, urls)

	require.Len(t, attempts, len(urls))
	for i, at := range attempts {
		assert.Equal(t, urls[i], at.URL)
		assert.False(t, at.Success)
	}
}

func TestHostRateLimiterSpacesSameHost(t *testing.T) {
	l := NewHostRateLimiter(50*time.Millisecond, 0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(ctx, "example.com"))
	}
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)

	start = time.Now()
	require.NoError(t, l.Wait(ctx, "other.com"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestHostRateLimiterCrawlDelayIsPerHost(t *testing.T) {
	l := NewHostRateLimiter(0, 0)
	l.SetCrawlDelay("slow.com", 60*time.Millisecond)
	l.SetCrawlDelay("slow.com", time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(ctx, "fast.com"))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	start = time.Now()
	for i := 0; i < 2; i++ {
		require.NoError(t, l.Wait(ctx, "slow.com"))
	}
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestHostRateLimiterHonoursContext(t *testing.T) {
	l := NewHostRateLimiter(time.Minute, 0)
	require.NoError(t, l.Wait(context.Background(), "example.com"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, "example.com"))
}
