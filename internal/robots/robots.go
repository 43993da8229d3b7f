// Package robots decides whether robots.txt restricts access to a page.
package robots

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/spider-crawler/seoaudit/internal/fetcher"
	"github.com/spider-crawler/seoaudit/internal/logging"
)

// Checker fetches and caches robots.txt per host.
type Checker struct {
	source    fetcher.Source
	userAgent string
	logger    *zap.Logger

	mu    sync.Mutex
	hosts map[string]*robotstxt.RobotsData
}

// NewChecker creates a robots.txt checker that fetches through source.
func NewChecker(source fetcher.Source, userAgent string, logger *zap.Logger) *Checker {
	return &Checker{
		source:    source,
		userAgent: userAgent,
		logger:    logging.OrNop(logger),
		hosts:     make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether the configured user agent may crawl pageURL.
// An unreachable robots.txt allows everything; a 5xx answer disallows
// everything (robots.txt semantics).
func (c *Checker) Allowed(ctx context.Context, pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return true
	}

	data := c.robotsFor(ctx, u)
	if data == nil {
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.TestAgent(path, c.userAgent)
}

// CrawlDelay returns the crawl delay robots.txt requests for the host of
// pageURL, or zero.
func (c *Checker) CrawlDelay(ctx context.Context, pageURL string) time.Duration {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return 0
	}
	data := c.robotsFor(ctx, u)
	if data == nil {
		return 0
	}
	if group := data.FindGroup(c.userAgent); group != nil {
		return group.CrawlDelay
	}
	return 0
}

func (c *Checker) robotsFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	key := strings.ToLower(u.Scheme + "://" + u.Host)

	c.mu.Lock()
	data, ok := c.hosts[key]
	c.mu.Unlock()
	if ok {
		return data
	}

	resp := c.source.Fetch(ctx, key+"/robots.txt")
	if resp.StatusCode != 0 {
		data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, resp.Body)
		if err != nil {
			c.logger.Debug("unparsable robots.txt", zap.String("host", u.Host), zap.Error(err))
		} else {
			c.store(key, data)
			return data
		}
	}

	c.store(key, nil)
	return nil
}

func (c *Checker) store(key string, data *robotstxt.RobotsData) {
	c.mu.Lock()
	c.hosts[key] = data
	c.mu.Unlock()
}
