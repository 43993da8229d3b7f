// Package frontier implements the discovery frontier and the breadth-first
// link discoverer.
package frontier

import "time"

// URLItem represents a URL in the frontier queue.
type URLItem struct {
	// Absolute URL, also the dedup key
	URL string

	// The URL this was discovered from (empty for seeds)
	DiscoveredFrom string

	// Crawl depth (0 for seeds)
	Depth int

	// When this URL was added to the queue
	AddedAt time.Time
}

// NewURLItem creates a new URLItem.
func NewURLItem(url string, depth int, discoveredFrom string) *URLItem {
	return &URLItem{
		URL:            url,
		Depth:          depth,
		DiscoveredFrom: discoveredFrom,
		AddedAt:        time.Now(),
	}
}
