// Package storage persists crawl results to SQLite.
package storage

import "time"

// Run is a stored crawl run.
type Run struct {
	ID             int64
	RunID          string
	SeedURL        string
	StartedAt      time.Time
	Duration       time.Duration
	ScrapedCount   int
	FailedCount    int
	RemainingQueue int
	Success        bool
}

// PageSummary is a row of the page_summary view.
type PageSummary struct {
	Position       int
	URL            string
	Title          string
	HeadingCount   int
	LinkCount      int
	ParagraphCount int
	ImageCount     int
}
