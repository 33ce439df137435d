package model

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// CrawlRequest describes one crawl run. It is not modified while the run is in progress.
type CrawlRequest struct {
	SeedURL string `json:"seedUrl" validate:"required,url"`

	// MaxPages bounds the number of successfully scraped pages.
	MaxPages int `json:"maxPages" validate:"gt=0"`

	// InterRequestDelay is the pause after a successful fetch before the next one.
	InterRequestDelay time.Duration `json:"interRequestDelay" validate:"gte=0"`

	SameDomainOnly bool `json:"sameDomainOnly"`

	// MaxRetriesPerURL is the number of render attempts a URL gets before it is
	// recorded as permanently failed.
	MaxRetriesPerURL int `json:"maxRetriesPerUrl" validate:"gte=0"`

	// RetryInterval is the fixed wait between attempts on the same URL.
	RetryInterval time.Duration `json:"retryInterval" validate:"gte=0"`

	// MaxDepth limits link depth from the seed (0 = unlimited).
	MaxDepth int `json:"maxDepth" validate:"gte=0"`
}

var validate = validator.New()

// Validate checks the request's field constraints.
func (r CrawlRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid crawl request: %w", err)
	}
	return nil
}

// CrawlResult is assembled once at the end of a run from the crawl state.
type CrawlResult struct {
	Success bool   `json:"success"`
	RunID   string `json:"runId"`
	SeedURL string `json:"seedUrl"`

	Pages []PageRecord `json:"pages"`

	ScrapedCount         int `json:"scrapedCount"`
	FailedCount          int `json:"failedCount"`
	RemainingQueueLength int `json:"remainingQueueLength"`

	ScrapedURLs []string `json:"scrapedUrls"`
	FailedURLs  []string `json:"failedUrls"`

	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
}
