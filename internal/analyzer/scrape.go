package analyzer

import (
	"context"
	"fmt"

	"github.com/spider-crawler/seoaudit/internal/fetcher"
	"github.com/spider-crawler/seoaudit/internal/parser"
)

// Scrape fetches pageURL through source and extracts its signals from
// the raw HTML. It never returns nil.
func Scrape(ctx context.Context, source fetcher.Source, pageURL string) Result {
	resp := source.Fetch(ctx, pageURL)

	if resp.Restricted() {
		return &Unavailable{
			URL:        pageURL,
			Reason:     fmt.Errorf("%w: HTTP %d", ErrRestrictedAccess, resp.StatusCode),
			Restricted: true,
		}
	}
	if resp.Error != nil {
		return &Unavailable{URL: pageURL, Reason: resp.Error}
	}
	if !resp.IsHTML() {
		return &Unavailable{URL: pageURL, Reason: fmt.Errorf("not an HTML page: %s", resp.ContentType)}
	}

	base := resp.FinalURL
	if base == "" {
		base = pageURL
	}
	page, err := parser.ParseHTML(base, resp.Body)
	if err != nil {
		return &Unavailable{URL: pageURL, Reason: fmt.Errorf("parse HTML: %w", err)}
	}

	return &ScrapeResult{
		URL:        pageURL,
		SSL:        resp.SSL(),
		Page:       page,
		LoadTimeMs: resp.ResponseTime.Milliseconds(),

		RobotsHeader: resp.Headers.Get("X-Robots-Tag"),
	}
}
