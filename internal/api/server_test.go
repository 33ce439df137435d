package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spider-crawler/sitecrawl/internal/config"
	"github.com/spider-crawler/sitecrawl/internal/model"
	"github.com/spider-crawler/sitecrawl/internal/renderer/renderertest"
	"github.com/spider-crawler/sitecrawl/internal/scheduler"
)

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *renderertest.Opener) {
	t.Helper()
	opener := renderertest.NewOpener()
	opener.AddPage("https://x.com/", "https://x.com/a", "https://x.com/b", "https://y.com/out")
	opener.AddPage("https://x.com/a", "https://x.com/")
	opener.AddPage("https://x.com/b")

	crawler := scheduler.New(opener, scheduler.Options{Sleep: noSleep})
	return NewServer(crawler, cfg, nil), opener
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Error
}

func TestServer_HealthRoutes(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rr := do(t, srv, http.MethodGet, "/test")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "<h1>")

	rr = do(t, srv, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
}

func TestServer_ScrapePage(t *testing.T) {
	srv, opener := newTestServer(t, nil)

	rr := do(t, srv, http.MethodGet, "/scrap?url=https://x.com/%23top")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body struct {
		Response model.PageRecord `json:"response"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "https://x.com/", body.Response.URL)
	assert.Len(t, body.Response.Links, 3)
	assert.Equal(t, []string{"https://x.com/"}, opener.Calls())
	assert.Equal(t, 1, opener.Closes())
}

func TestServer_ScrapePageFailure(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rr := do(t, srv, http.MethodGet, "/scrap?url=https://x.com/missing")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, decodeError(t, rr), "404")
}

func TestServer_Crawl(t *testing.T) {
	srv, opener := newTestServer(t, nil)

	rr := do(t, srv, http.MethodGet, "/scrap/detailed?url=https://x.com/&maxPages=5&delayMs=0&maxRetries=1")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body struct {
		Response model.CrawlResult `json:"response"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))

	res := body.Response
	assert.True(t, res.Success)
	assert.Equal(t, 3, res.ScrapedCount)
	assert.Equal(t, []string{"https://x.com/", "https://x.com/a", "https://x.com/b"}, res.ScrapedURLs)
	assert.Empty(t, res.FailedURLs)
	assert.Zero(t, res.RemainingQueueLength)
	assert.Zero(t, opener.CallCount("https://y.com/out"))
}

func TestServer_CrawlParams(t *testing.T) {
	srv, opener := newTestServer(t, nil)

	rr := do(t, srv, http.MethodGet, "/scrap/detailed?url=https://x.com/&maxPages=1&delayMs=0")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Response model.CrawlResult `json:"response"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Response.ScrapedCount)
	assert.Equal(t, 2, body.Response.RemainingQueueLength)
	assert.Equal(t, 1, opener.Opens())
}

func TestServer_DefaultTarget(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.DefaultTarget = "https://x.com/b"
	srv, opener := newTestServer(t, cfg)

	rr := do(t, srv, http.MethodGet, "/scrap")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"https://x.com/b"}, opener.Calls())
}

func TestServer_BadRequests(t *testing.T) {
	srv, opener := newTestServer(t, nil)

	tests := []struct {
		name   string
		target string
	}{
		{name: "missing url", target: "/scrap"},
		{name: "relative url", target: "/scrap?url=x.com"},
		{name: "bad maxPages", target: "/scrap/detailed?url=https://x.com/&maxPages=ten"},
		{name: "zero maxPages", target: "/scrap/detailed?url=https://x.com/&maxPages=0"},
		{name: "bad delay", target: "/scrap/detailed?url=https://x.com/&delayMs=soon"},
		{name: "negative delay", target: "/scrap/detailed?url=https://x.com/&delayMs=-5"},
		{name: "bad sameDomainOnly", target: "/scrap/detailed?url=https://x.com/&sameDomainOnly=maybe"},
		{name: "bad maxRetries", target: "/scrap/detailed?url=https://x.com/&maxRetries=x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodGet, tt.target)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.NotEmpty(t, decodeError(t, rr))
		})
	}
	assert.Zero(t, opener.Opens())
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	for _, path := range []string{"/test", "/health", "/scrap", "/scrap/detailed"} {
		rr := do(t, srv, http.MethodPost, path)
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code, path)
		assert.Equal(t, http.MethodGet, rr.Header().Get("Allow"))
	}
}

type blockingCrawler struct {
	started chan struct{}
	release chan struct{}
}

func (c *blockingCrawler) ScrapePage(ctx context.Context, url string) (*model.PageRecord, error) {
	c.started <- struct{}{}
	<-c.release
	return &model.PageRecord{URL: url}, nil
}

func (c *blockingCrawler) Run(ctx context.Context, req model.CrawlRequest) (*model.CrawlResult, error) {
	return &model.CrawlResult{Success: true, SeedURL: req.SeedURL}, nil
}

func TestServer_ConcurrentRunLimit(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.MaxConcurrentRuns = 1
	crawler := &blockingCrawler{started: make(chan struct{}), release: make(chan struct{})}
	srv := NewServer(crawler, cfg, nil)

	done := make(chan *httptest.ResponseRecorder)
	go func() {
		done <- do(t, srv, http.MethodGet, "/scrap?url=https://x.com/")
	}()
	<-crawler.started

	rr := do(t, srv, http.MethodGet, "/scrap/detailed?url=https://x.com/")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, ErrBusy.Error(), decodeError(t, rr))

	close(crawler.release)
	first := <-done
	assert.Equal(t, http.StatusOK, first.Code)

	rr = do(t, srv, http.MethodGet, "/scrap/detailed?url=https://x.com/")
	assert.Equal(t, http.StatusOK, rr.Code)
}
