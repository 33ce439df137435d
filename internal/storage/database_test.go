package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spider-crawler/sitecrawl/internal/model"
)

func sampleResult() *model.CrawlResult {
	return &model.CrawlResult{
		Success: true,
		RunID:   "run-1",
		SeedURL: "https://x.com/",
		Pages: []model.PageRecord{
			{
				URL:             "https://x.com/",
				Title:           "Home",
				MetaDescription: "Welcome",
				Headings:        []model.Heading{{Level: 1, Text: "Home"}, {Level: 2, Text: "News"}},
				Paragraphs:      []string{"one", "two"},
				Links:           []model.Link{{Text: "About", Href: "https://x.com/about"}},
				Images:          []model.Image{{Src: "https://x.com/logo.png", Alt: "logo"}},
			},
			{
				URL:   "https://x.com/about",
				Title: "About",
			},
		},
		ScrapedCount:         2,
		FailedCount:          1,
		RemainingQueueLength: 3,
		ScrapedURLs:          []string{"https://x.com/", "https://x.com/about"},
		FailedURLs:           []string{"https://x.com/broken"},
		StartedAt:            time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration:             1500 * time.Millisecond,
	}
}

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "crawl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDatabase_SaveResult(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveResult(sampleResult()))

	run, err := db.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, "https://x.com/", run.SeedURL)
	assert.Equal(t, 2, run.ScrapedCount)
	assert.Equal(t, 1, run.FailedCount)
	assert.Equal(t, 3, run.RemainingQueue)
	assert.Equal(t, 1500*time.Millisecond, run.Duration)
	assert.True(t, run.Success)

	pages, err := db.GetPageSummaries("run-1")
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "https://x.com/", pages[0].URL)
	assert.Equal(t, "Home", pages[0].Title)
	assert.Equal(t, 2, pages[0].HeadingCount)
	assert.Equal(t, 1, pages[0].LinkCount)
	assert.Equal(t, 2, pages[0].ParagraphCount)
	assert.Equal(t, 1, pages[0].ImageCount)
	assert.Equal(t, "https://x.com/about", pages[1].URL)
	assert.Zero(t, pages[1].LinkCount)

	failed, err := db.GetFailedURLs("run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://x.com/broken"}, failed)
}

func TestDatabase_DuplicateRunRollsBack(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveResult(sampleResult()))

	dup := sampleResult()
	dup.Pages = append(dup.Pages, model.PageRecord{URL: "https://x.com/extra"})
	assert.Error(t, db.SaveResult(dup))

	pages, err := db.GetPageSummaries("run-1")
	require.NoError(t, err)
	assert.Len(t, pages, 2)
}

func TestDatabase_RunNotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := db.GetRun("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	failed, err := db.GetFailedURLs("missing")
	require.NoError(t, err)
	assert.Empty(t, failed)
}
