// Package frontier implements the URL frontier (queue) for crawling.
package frontier

import "time"

// URLItem represents a URL in the frontier queue.
type URLItem struct {
	// Canonical URL string; equality in the frontier is by this value
	URL string

	// The URL this was discovered from (empty for the seed)
	DiscoveredFrom string

	// Crawl depth (0 for the seed)
	Depth int

	// When this URL was added to the queue
	AddedAt time.Time
}

// NewURLItem creates a new URLItem for a canonical URL.
func NewURLItem(canonicalURL string, depth int, discoveredFrom string) *URLItem {
	return &URLItem{
		URL:            canonicalURL,
		DiscoveredFrom: discoveredFrom,
		Depth:          depth,
		AddedAt:        time.Now(),
	}
}
