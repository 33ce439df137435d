// Package robots filters discovered links by the target host's robots.txt.
package robots

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/phuslu/log"
	"github.com/temoto/robotstxt"

	"github.com/spider-crawler/sitecrawl/internal/config"
	"github.com/spider-crawler/sitecrawl/internal/logging"
)

// Cache lifetimes for robots.txt outcomes.
const (
	RulesTTL       = 24 * time.Hour  // parsed file or 4xx
	ServerErrorTTL = 5 * time.Minute // 5xx
)

// errServerError marks a 5xx robots.txt response.
var errServerError = errors.New("robots.txt server error")

// Checker evaluates robots.txt rules, caching one outcome per scheme and host.
// Hosts whose robots.txt cannot be fetched are treated as allowing everything.
// Transport failures and canceled requests are not cached.
type Checker struct {
	client    *http.Client
	userAgent string
	logger    *log.Logger
	now       func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	data    *robotstxt.RobotsData // nil allows everything
	expires time.Time
}

// NewChecker creates a robots.txt checker. A nil client gets a 10 second timeout.
func NewChecker(cfg config.RobotsConfig, client *http.Client, logger *log.Logger) *Checker {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "*"
	}

	return &Checker{
		client:    client,
		userAgent: userAgent,
		logger:    logger,
		now:       time.Now,
		cache:     make(map[string]cacheEntry),
	}
}

// Allow reports whether rawURL may be crawled.
func (c *Checker) Allow(ctx context.Context, rawURL string) bool {
	target, err := url.Parse(rawURL)
	if err != nil || !target.IsAbs() {
		return false
	}

	data := c.rules(ctx, target)
	if data == nil {
		return true
	}

	allowed := data.TestAgent(target.RequestURI(), c.userAgent)
	if !allowed {
		c.logger.Debug().Str("url", rawURL).Msg("disallowed by robots.txt")
	}
	return allowed
}

// CrawlDelay returns the Crawl-delay for the host of rawURL, or zero.
func (c *Checker) CrawlDelay(ctx context.Context, rawURL string) time.Duration {
	target, err := url.Parse(rawURL)
	if err != nil || !target.IsAbs() {
		return 0
	}

	data := c.rules(ctx, target)
	if data == nil {
		return 0
	}
	if group := data.FindGroup(c.userAgent); group != nil {
		return group.CrawlDelay
	}
	return 0
}

// rules returns the rules for target's host, fetching them when the cached
// outcome is missing or expired. The lock is held during the fetch so each
// host is requested once.
func (c *Checker) rules(ctx context.Context, target *url.URL) *robotstxt.RobotsData {
	key := strings.ToLower(target.Scheme + "://" + target.Host)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if entry, ok := c.cache[key]; ok && now.Before(entry.expires) {
		return entry.data
	}

	data, err := c.fetch(ctx, key+"/robots.txt")
	switch {
	case err == nil:
		c.cache[key] = cacheEntry{data: data, expires: now.Add(RulesTTL)}
	case errors.Is(err, errServerError):
		c.logger.Debug().Str("host", target.Host).Err(err).Msg("robots.txt unavailable, allowing all")
		c.cache[key] = cacheEntry{expires: now.Add(ServerErrorTTL)}
	default:
		c.logger.Debug().Str("host", target.Host).Err(err).Msg("robots.txt fetch failed, allowing this request")
	}
	return data
}

func (c *Checker) fetch(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build robots request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: status %d", errServerError, resp.StatusCode)
	}

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return data, nil
}
