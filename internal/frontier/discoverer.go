package frontier

import (
	"bytes"
	"context"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/spider-crawler/seoaudit/internal/fetcher"
	"github.com/spider-crawler/seoaudit/internal/logging"
	"github.com/spider-crawler/seoaudit/internal/urlutil"
)

// AccessChecker reports whether a page may be fetched. *robots.Checker
// satisfies it.
type AccessChecker interface {
	Allowed(ctx context.Context, pageURL string) bool
}

// Discoverer walks a site breadth-first from a seed URL and collects the
// in-domain pages it finds. Fetches are sequential: each page decides the
// next state of the queue.
type Discoverer struct {
	source     fetcher.Source
	classifier *urlutil.Classifier
	normalizer *urlutil.Normalizer
	access     AccessChecker
	logger     *zap.Logger
}

// NewDiscoverer creates a discoverer fetching pages through source. A nil
// classifier uses the default extension list.
func NewDiscoverer(source fetcher.Source, classifier *urlutil.Classifier, logger *zap.Logger) *Discoverer {
	if classifier == nil {
		classifier = urlutil.NewClassifier()
	}
	return &Discoverer{
		source:     source,
		classifier: classifier,
		normalizer: urlutil.DefaultNormalizer(),
		logger:     logging.OrNop(logger),
	}
}

// WithAccessChecker makes the discoverer skip fetching pages the checker
// disallows. Such pages stay in the discovered list.
func (d *Discoverer) WithAccessChecker(ac AccessChecker) *Discoverer {
	d.access = ac
	return d
}

// Discover returns the in-domain pages reachable from seedURL, seed
// first, in discovery order. At most maxPages URLs are returned
// (maxPages <= 0 means no cap). When maxDepth > 0, pages at depth
// maxDepth are listed but not fetched. An unreachable seed yields
// []string{seedURL}.
func (d *Discoverer) Discover(ctx context.Context, seedURL string, maxPages, maxDepth int) []string {
	seed, err := url.Parse(seedURL)
	if err != nil || seed.Host == "" {
		return []string{seedURL}
	}
	seedKey, err := d.normalizer.Normalize(seedURL)
	if err != nil {
		return []string{seedURL}
	}

	f := NewMemoryFrontier(maxDepth, maxPages)
	f.Push(NewURLItem(seedKey, 0, ""))

	for !f.IsEmpty() {
		if ctx.Err() != nil {
			break
		}

		item := f.Pop()
		if f.HasVisited(item.URL) {
			continue
		}
		f.MarkVisited(item.URL)

		// No queued link can be accepted once the set is full
		if f.Full() {
			break
		}

		// Links found at the depth limit would be rejected anyway
		if maxDepth > 0 && item.Depth >= maxDepth {
			continue
		}

		if d.access != nil && !d.access.Allowed(ctx, item.URL) {
			d.logger.Debug("discovery skipped disallowed page", zap.String("url", item.URL))
			continue
		}

		links, err := d.pageLinks(ctx, item.URL)
		if err != nil {
			d.logger.Debug("discovery fetch failed",
				zap.String("url", item.URL),
				zap.Error(err))
			continue
		}

		for _, link := range links {
			if !urlutil.InDomain(seed.Host, link) || !d.classifier.IsValidPage(link) {
				continue
			}
			key, err := d.normalizer.Normalize(link.String())
			if err != nil || f.Contains(key) {
				continue
			}
			f.Push(NewURLItem(key, item.Depth+1, item.URL))
			if f.Full() {
				break
			}
		}
	}

	stats := f.Stats()
	d.logger.Info("discovery finished",
		zap.String("seed", seedURL),
		zap.Int("discovered", stats.Discovered),
		zap.Int("visited", stats.Visited),
		zap.Int("duplicates", stats.Duplicates))

	return f.Discovered()
}

// pageLinks fetches pageURL and returns every resolvable href on it.
func (d *Discoverer) pageLinks(ctx context.Context, pageURL string) ([]*url.URL, error) {
	resp := d.source.Fetch(ctx, pageURL)
	if resp.Error != nil {
		return nil, resp.Error
	}
	if !resp.IsHTML() {
		return nil, nil
	}

	base := resp.FinalURL
	if base == "" {
		base = pageURL
	}
	return ExtractLinks(base, resp.Body)
}

// ExtractLinks parses body and resolves every a[href] against baseURL.
// Unresolvable and non-http(s) hrefs are dropped.
func ExtractLinks(baseURL string, body []byte) ([]*url.URL, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(href); err == nil {
			base = base.ResolveReference(ref)
		}
	}

	var links []*url.URL
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if u, ok := urlutil.Resolve(base, href); ok {
			links = append(links, u)
		}
	})
	return links, nil
}
