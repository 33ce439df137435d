package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/spider-crawler/sitecrawl/internal/frontier"
	"github.com/spider-crawler/sitecrawl/internal/logging"
	"github.com/spider-crawler/sitecrawl/internal/model"
	"github.com/spider-crawler/sitecrawl/internal/renderer"
	"github.com/spider-crawler/sitecrawl/internal/urlutil"
)

// LinkFilter decides whether a discovered, in-scope URL may be queued.
type LinkFilter interface {
	Allow(ctx context.Context, url string) bool
}

// LinkFilterFunc adapts a function to LinkFilter.
type LinkFilterFunc func(ctx context.Context, url string) bool

// Allow calls f(ctx, url).
func (f LinkFilterFunc) Allow(ctx context.Context, url string) bool {
	return f(ctx, url)
}

// DelayAdvisor reports a minimum pause between pages for the host of a seed
// URL, such as a robots.txt Crawl-delay. Zero means no minimum.
type DelayAdvisor interface {
	CrawlDelay(ctx context.Context, url string) time.Duration
}

// Options configures a Scheduler.
type Options struct {
	Logger *log.Logger

	// Sleep is used for retry intervals and pacing delays (default Sleep)
	Sleep SleepFunc

	// Global cap on render attempts per second (0 = unlimited)
	RequestsPerSecond float64

	// Optional filter applied to discovered links (e.g. robots.txt)
	LinkFilter LinkFilter

	// Optional per-run minimum pause, looked up for each run's seed
	DelayAdvisor DelayAdvisor
}

// Scheduler runs crawls. Each run opens its own renderer session and owns its
// crawl state, so a Scheduler may run several crawls concurrently.
type Scheduler struct {
	opener renderer.Opener
	logger *log.Logger
	sleep  SleepFunc
	rps    float64
	filter LinkFilter
	delays DelayAdvisor
}

// New creates a scheduler that renders pages with sessions from opener.
func New(opener renderer.Opener, opts Options) *Scheduler {
	s := &Scheduler{
		opener: opener,
		logger: opts.Logger,
		sleep:  opts.Sleep,
		rps:    opts.RequestsPerSecond,
		filter: opts.LinkFilter,
		delays: opts.DelayAdvisor,
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.sleep == nil {
		s.sleep = Sleep
	}
	return s
}

// Run crawls breadth-first from req.SeedURL until req.MaxPages pages have been
// scraped or no URLs remain. Pages that fail after all retries are recorded in
// the result and do not stop the run. An error is returned only for fatal
// conditions, in which case no partial result is produced.
func (s *Scheduler) Run(ctx context.Context, req model.CrawlRequest) (*model.CrawlResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	seed, err := urlutil.Canonicalize(req.SeedURL)
	if err != nil {
		return nil, fmt.Errorf("invalid seed url: %w", err)
	}
	normalizer, err := urlutil.NewNormalizer(seed, req.SameDomainOnly)
	if err != nil {
		return nil, fmt.Errorf("invalid seed url: %w", err)
	}

	runID := uuid.NewString()
	logger := s.runLogger(runID)
	startedAt := time.Now()

	logger.Info().
		Str("seed", seed).
		Int("max_pages", req.MaxPages).
		Dur("delay", req.InterRequestDelay).
		Bool("same_domain_only", req.SameDomainOnly).
		Int("max_retries", req.MaxRetriesPerURL).
		Msg("starting crawl")

	session, err := s.opener.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open renderer: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close renderer session")
		}
	}()

	delay := req.InterRequestDelay
	if s.delays != nil {
		if d := s.delays.CrawlDelay(ctx, seed); d > delay {
			logger.Info().Dur("delay", d).Msg("using host crawl-delay")
			delay = d
		}
	}

	pacer := NewPacer(delay, s.rps, s.sleep)
	retrier := NewRetrier(req.RetryInterval, s.sleep, logger)
	render := func(ctx context.Context, url string) (*model.PageRecord, error) {
		if err := pacer.Throttle(ctx); err != nil {
			return nil, err
		}
		return session.NavigateAndExtract(ctx, url)
	}

	f := frontier.New()
	f.Enqueue(frontier.NewURLItem(seed, 0, ""))
	pages := make([]model.PageRecord, 0, req.MaxPages)

	for !f.IsEmpty() && !f.BudgetReached(req.MaxPages) {
		item := f.Dequeue()
		if f.IsTerminal(item.URL) {
			continue
		}

		logger.Info().
			Str("url", item.URL).
			Int("depth", item.Depth).
			Int("page", len(pages)+1).
			Int("max_pages", req.MaxPages).
			Msg("scraping page")

		outcome, err := retrier.Attempt(ctx, item.URL, req.MaxRetriesPerURL, render)
		if err != nil {
			logger.Error().Str("url", item.URL).Err(err).Msg("crawl aborted")
			return nil, fmt.Errorf("crawl %s: %w", item.URL, err)
		}

		if !outcome.Succeeded() {
			f.MarkFailed(item.URL)
			continue
		}

		f.MarkVisited(item.URL)
		pages = append(pages, *outcome.Record)

		headings, links, paragraphs := outcome.Record.Summary()
		logger.Info().
			Str("url", item.URL).
			Str("title", outcome.Record.Title).
			Int("headings", headings).
			Int("links", links).
			Int("paragraphs", paragraphs).
			Msg("scraped page")

		added := s.enqueueLinks(ctx, f, normalizer, item, outcome.Record, req.MaxDepth)
		logger.Info().Int("new_urls", added).Int("queue", f.Len()).Msg("queued links")

		if !f.IsEmpty() && !f.BudgetReached(req.MaxPages) {
			logger.Debug().Dur("delay", pacer.Delay()).Msg("waiting before next page")
			if err := pacer.Pause(ctx); err != nil {
				return nil, err
			}
		}
	}

	result := &model.CrawlResult{
		Success:              true,
		RunID:                runID,
		SeedURL:              seed,
		Pages:                pages,
		ScrapedCount:         len(pages),
		FailedCount:          len(f.Failed()),
		RemainingQueueLength: f.Len(),
		ScrapedURLs:          f.Visited(),
		FailedURLs:           f.Failed(),
		StartedAt:            startedAt,
		Duration:             time.Since(startedAt),
	}

	stats := f.Stats()
	logger.Info().
		Int("scraped", result.ScrapedCount).
		Int("failed", result.FailedCount).
		Int("remaining", result.RemainingQueueLength).
		Int("duplicates", stats.Duplicates).
		Strs("failed_urls", result.FailedURLs).
		Dur("duration", result.Duration).
		Msg("crawl complete")
	if result.RemainingQueueLength > 0 {
		logger.Debug().Strs("urls", f.Pending()).Msg("not scraped, budget reached")
	}

	return result, nil
}

// ScrapePage renders a single page with one attempt.
func (s *Scheduler) ScrapePage(ctx context.Context, rawURL string) (*model.PageRecord, error) {
	target, err := urlutil.Canonicalize(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	session, err := s.opener.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open renderer: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to close renderer session")
		}
	}()

	s.logger.Info().Str("url", target).Msg("scraping page")
	record, err := session.NavigateAndExtract(ctx, target)
	if err != nil {
		return nil, err
	}

	headings, links, paragraphs := record.Summary()
	s.logger.Info().
		Str("url", target).
		Int("headings", headings).
		Int("links", links).
		Int("paragraphs", paragraphs).
		Msg("scraped page")
	return record, nil
}

// enqueueLinks queues the in-scope links of a scraped page and returns how many were new.
func (s *Scheduler) enqueueLinks(ctx context.Context, f *frontier.Frontier, n *urlutil.Normalizer, parent *frontier.URLItem, record *model.PageRecord, maxDepth int) int {
	depth := parent.Depth + 1
	if maxDepth > 0 && depth > maxDepth {
		return 0
	}

	added := 0
	for _, link := range record.Links {
		u, ok := n.Normalize(link.Href)
		if !ok {
			continue
		}
		if s.filter != nil && !f.Seen(u) && !s.filter.Allow(ctx, u) {
			continue
		}
		if f.Enqueue(frontier.NewURLItem(u, depth, parent.URL)) {
			added++
		}
	}
	return added
}

func (s *Scheduler) runLogger(runID string) *log.Logger {
	l := *s.logger
	l.Context = log.NewContext(append([]byte(nil), s.logger.Context...)).Str("run_id", runID).Value()
	return &l
}
