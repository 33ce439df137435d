package robots

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spider-crawler/sitecrawl/internal/config"
	"github.com/spider-crawler/sitecrawl/internal/testutil"
)

func TestChecker_Allow(t *testing.T) {
	ts := testutil.NewTestServer()
	defer ts.Close()
	ts.AddPageWithType("/robots.txt", `User-agent: *
Disallow: /private/
Crawl-delay: 3

User-agent: sitecrawl
Disallow: /no-bots
`, "text/plain")

	c := NewChecker(config.RobotsConfig{Respect: true, UserAgent: "sitecrawl"}, nil, nil)
	ctx := context.Background()

	assert.True(t, c.Allow(ctx, ts.URL()+"/"))
	assert.True(t, c.Allow(ctx, ts.URL()+"/private/page"), "only the matching agent group applies")
	assert.False(t, c.Allow(ctx, ts.URL()+"/no-bots"))
	assert.Equal(t, 1, ts.GetHits("/robots.txt"), "rules are cached per host")

	other := NewChecker(config.RobotsConfig{Respect: true, UserAgent: "otherbot"}, nil, nil)
	assert.False(t, other.Allow(ctx, ts.URL()+"/private/page"))
	assert.True(t, other.Allow(ctx, ts.URL()+"/no-bots"))
	assert.Equal(t, 3*time.Second, other.CrawlDelay(ctx, ts.URL()+"/"))
}

func TestChecker_MissingRobotsAllowsAll(t *testing.T) {
	ts := testutil.NewTestServer()
	defer ts.Close()

	c := NewChecker(config.RobotsConfig{UserAgent: "sitecrawl"}, nil, nil)
	assert.True(t, c.Allow(context.Background(), ts.URL()+"/anything"))
}

func TestChecker_ServerErrorAllowsAllUntilExpiry(t *testing.T) {
	ts := testutil.NewTestServer()
	defer ts.Close()
	ts.SetError("/robots.txt", http.StatusInternalServerError)

	c := NewChecker(config.RobotsConfig{UserAgent: "sitecrawl"}, nil, nil)
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	assert.True(t, c.Allow(ctx, ts.URL()+"/anything"))
	assert.True(t, c.Allow(ctx, ts.URL()+"/other"))
	assert.Equal(t, 1, ts.GetHits("/robots.txt"))

	ts.Reset()
	ts.AddPageWithType("/robots.txt", "User-agent: *\nDisallow: /private\n", "text/plain")
	now = now.Add(ServerErrorTTL)

	assert.False(t, c.Allow(ctx, ts.URL()+"/private/a"), "expired 5xx outcome is refetched")
	assert.Equal(t, 1, ts.GetHits("/robots.txt"))
}

func TestChecker_RulesExpire(t *testing.T) {
	ts := testutil.NewTestServer()
	defer ts.Close()
	ts.AddPageWithType("/robots.txt", "User-agent: *\nDisallow: /private\n", "text/plain")

	c := NewChecker(config.RobotsConfig{UserAgent: "sitecrawl"}, nil, nil)
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	assert.False(t, c.Allow(ctx, ts.URL()+"/private/a"))
	now = now.Add(RulesTTL - time.Second)
	assert.False(t, c.Allow(ctx, ts.URL()+"/private/b"))
	assert.Equal(t, 1, ts.GetHits("/robots.txt"))

	now = now.Add(time.Second)
	assert.False(t, c.Allow(ctx, ts.URL()+"/private/c"))
	assert.Equal(t, 2, ts.GetHits("/robots.txt"))
}

func TestChecker_CanceledFetchIsNotCached(t *testing.T) {
	ts := testutil.NewTestServer()
	defer ts.Close()
	ts.AddPageWithType("/robots.txt", "User-agent: *\nDisallow: /private\n", "text/plain")

	c := NewChecker(config.RobotsConfig{UserAgent: "sitecrawl"}, nil, nil)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, c.Allow(canceled, ts.URL()+"/private/a"), "rules unknown, request allowed")

	assert.False(t, c.Allow(context.Background(), ts.URL()+"/private/b"))
	assert.Equal(t, 1, ts.GetHits("/robots.txt"))
}

func TestChecker_TransportErrorIsNotCached(t *testing.T) {
	ts := testutil.NewTestServer()
	defer ts.Close()
	ts.AddPageWithType("/robots.txt", "User-agent: *\nDisallow: /private\n", "text/plain")

	transport := &flakyTransport{failures: 1}
	c := NewChecker(config.RobotsConfig{UserAgent: "sitecrawl"}, &http.Client{Transport: transport}, nil)
	ctx := context.Background()

	assert.True(t, c.Allow(ctx, ts.URL()+"/private/a"))
	assert.False(t, c.Allow(ctx, ts.URL()+"/private/b"))
	assert.Equal(t, 1, ts.GetHits("/robots.txt"))
}

// flakyTransport fails the first failures round trips with a network error.
type flakyTransport struct {
	failures int
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("connection reset by peer")
	}
	return http.DefaultTransport.RoundTrip(req)
}

func TestChecker_RejectsRelative(t *testing.T) {
	c := NewChecker(config.RobotsConfig{}, nil, nil)
	assert.False(t, c.Allow(context.Background(), "/relative"))
}
