package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spider-crawler/sitecrawl/internal/config"
	"github.com/spider-crawler/sitecrawl/internal/logging"
	"github.com/spider-crawler/sitecrawl/internal/model"
	"github.com/spider-crawler/sitecrawl/internal/storage"
	"github.com/spider-crawler/sitecrawl/internal/testutil"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func testSite(t *testing.T) *testutil.TestServer {
	t.Helper()
	ts := testutil.NewTestServer()
	ts.BuildTestSite()
	t.Cleanup(ts.Close)
	return ts
}

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()

	names := make([]string, 0)
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"scrape", "crawl", "serve", "version"}, names)

	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("log-level"))
}

func TestCrawlCmd_Flags(t *testing.T) {
	cmd := NewCrawlCmd()

	tests := []struct {
		name      string
		shorthand string
		def       string
	}{
		{name: "max-pages", shorthand: "p", def: "10"},
		{name: "delay", shorthand: "d", def: "2s"},
		{name: "same-domain", def: "true"},
		{name: "max-retries", shorthand: "r", def: "3"},
		{name: "engine", shorthand: "e", def: "chromedp"},
		{name: "out", shorthand: "o", def: ""},
		{name: "format", shorthand: "f", def: "json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := cmd.Flags().Lookup(tt.name)
			require.NotNil(t, flag)
			assert.Equal(t, tt.shorthand, flag.Shorthand)
			assert.Equal(t, tt.def, flag.DefValue)
		})
	}

	for name := range flagKeys {
		if NewServeCmd().Flags().Lookup(name) == nil && cmd.Flags().Lookup(name) == nil &&
			NewRootCmd().PersistentFlags().Lookup(name) == nil {
			t.Errorf("flag %q is mapped but never registered", name)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "sitecrawl version "))
	assert.Contains(t, out, "commit:")
}

func TestScrapeCmd(t *testing.T) {
	ts := testSite(t)

	out, err := execute(t, "scrape", "--engine", "http", "--log-level", "error", ts.URL()+"/about")
	require.NoError(t, err)

	var record model.PageRecord
	require.NoError(t, json.Unmarshal([]byte(out), &record))
	assert.Equal(t, "About Us", record.Title)
	assert.Equal(t, ts.URL()+"/about", record.URL)
	assert.Equal(t, 1, ts.GetHits("/about"))
}

func TestScrapeCmd_Failure(t *testing.T) {
	ts := testSite(t)

	_, err := execute(t, "scrape", "--engine", "http", "--log-level", "error", ts.URL()+"/nowhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestCrawlCmd_JSONToStdout(t *testing.T) {
	ts := testSite(t)

	out, err := execute(t, "crawl",
		"--engine", "http",
		"--log-level", "error",
		"--max-pages", "4",
		"--delay", "0s",
		"--max-retries", "1",
		ts.URL(),
	)
	require.NoError(t, err)

	var result model.CrawlResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Success)
	assert.Equal(t, 4, result.ScrapedCount)
	assert.Equal(t, []string{
		ts.URL() + "/",
		ts.URL() + "/about",
		ts.URL() + "/products",
		ts.URL() + "/blog",
	}, result.ScrapedURLs)
	assert.Equal(t, 6, result.RemainingQueueLength)
	assert.Empty(t, result.FailedURLs)
}

func TestCrawlCmd_ExportSQLite(t *testing.T) {
	ts := testSite(t)
	path := filepath.Join(t.TempDir(), "crawl.db")

	out, err := execute(t, "crawl",
		"--engine", "http",
		"--log-level", "error",
		"--max-pages", "2",
		"--delay", "0s",
		"--out", path,
		"--format", "sqlite",
		ts.URL(),
	)
	require.NoError(t, err)
	assert.Empty(t, out)

	db, err := storage.Open(path)
	require.NoError(t, err)
	defer db.Close()

	runs, err := db.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, ts.URL()+"/", runs[0].SeedURL)

	pages, err := db.GetPageSummaries(runs[0].RunID)
	require.NoError(t, err)
	assert.Len(t, pages, 2)
}

func TestCrawlCmd_ExportCSVSorted(t *testing.T) {
	ts := testSite(t)
	path := filepath.Join(t.TempDir(), "pages.csv")

	_, err := execute(t, "crawl",
		"--engine", "http",
		"--log-level", "error",
		"--max-pages", "4",
		"--delay", "0s",
		"--out", path,
		"--format", "csv",
		"--sort", "URL",
		"--sort-desc",
		"--filter", "URL="+ts.URL(),
		ts.URL(),
	)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)

	var urls []string
	for _, r := range records[1:] {
		urls = append(urls, r[0])
	}
	assert.Equal(t, []string{
		ts.URL() + "/products",
		ts.URL() + "/blog",
		ts.URL() + "/about",
		ts.URL() + "/",
	}, urls)
}

func TestCrawlCmd_BadExportOptions(t *testing.T) {
	ts := testSite(t)
	dir := t.TempDir()

	_, err := execute(t, "crawl", "--engine", "http", "--log-level", "error",
		"--out", filepath.Join(dir, "a.csv"), "--format", "csv", "--filter", "no-equals", ts.URL())
	require.Error(t, err)
	assert.Zero(t, ts.GetHits("/"), "filter is checked before crawling")

	_, err = execute(t, "crawl", "--engine", "http", "--log-level", "error", "--max-pages", "1",
		"--out", filepath.Join(dir, "b.csv"), "--format", "csv", "--sort", "Bogus", ts.URL())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown report column")
}

func TestNewScheduler_LeavesConfigUntouched(t *testing.T) {
	ts := testSite(t)
	ts.AddPageWithType("/robots.txt", "User-agent: *\nCrawl-delay: 3\n", "text/plain")

	cfg := config.DefaultConfig()
	cfg.Render.Engine = config.EngineHTTP
	cfg.Robots.Respect = true
	cfg.Server.DefaultTarget = ts.URL()
	cfg.Crawl.InterRequestDelay = 0

	_, err := newScheduler(cfg, logging.Discard())
	require.NoError(t, err)

	assert.Zero(t, cfg.Crawl.InterRequestDelay)
	assert.Zero(t, ts.GetHits("/robots.txt"), "crawl-delay is looked up per run")
}

func TestCrawlCmd_ConfigFile(t *testing.T) {
	ts := testSite(t)
	path := filepath.Join(t.TempDir(), "sitecrawl.yaml")
	content := "crawl:\n  max_pages: 1\n  inter_request_delay: 0s\nrender:\n  engine: http\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	out, err := execute(t, "crawl", "--config", path, ts.URL())
	require.NoError(t, err)

	var result model.CrawlResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 1, result.ScrapedCount)
}

func TestCrawlCmd_InvalidArgs(t *testing.T) {
	_, err := execute(t, "crawl")
	assert.Error(t, err)

	_, err = execute(t, "crawl", "--engine", "http", "not-a-url")
	assert.Error(t, err)

	_, err = execute(t, "crawl", "--engine", "firefox", "https://example.com")
	assert.Error(t, err)
}

func TestServe_Shutdown(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	err := serve(ctx, cfg, http.NotFoundHandler(), logging.Discard())
	assert.NoError(t, err)
}

func TestServe_ListenError(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.Addr = "127.0.0.1:-1"

	err := serve(context.Background(), cfg, http.NotFoundHandler(), logging.Discard())
	assert.Error(t, err)
}
