package report

import (
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
				Links: []model.Link{
					{Text: "About", Href: "https://x.com/about"},
					{Text: "Blog", Href: "https://x.com/blog"},
				},
				Images: []model.Image{{Src: "https://x.com/logo.png", Alt: "logo"}},
			},
			{
				URL:        "https://x.com/about",
				Title:      "About us",
				Paragraphs: []string{"team"},
			},
		},
		ScrapedCount: 2,
		FailedCount:  1,
		ScrapedURLs:  []string{"https://x.com/", "https://x.com/about"},
		FailedURLs:   []string{"https://x.com/broken"},
		StartedAt:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration:     2 * time.Second,
	}
}

func TestGenerator_Pages(t *testing.T) {
	report, err := NewGenerator(sampleResult()).Generate(ReportPages)
	require.NoError(t, err)

	require.Equal(t, 2, report.TotalCount)
	first := report.Rows[0].Values
	assert.Equal(t, "https://x.com/", first["URL"])
	assert.Equal(t, "Home", first["Title"])
	assert.Equal(t, 2, first["Headings"])
	assert.Equal(t, 2, first["Links"])
	assert.Equal(t, 2, first["Paragraphs"])
	assert.Equal(t, 1, first["Images"])
}

func TestGenerator_DetailReports(t *testing.T) {
	gen := NewGenerator(sampleResult())

	headings, err := gen.Generate(ReportHeadings)
	require.NoError(t, err)
	require.Len(t, headings.Rows, 2)
	assert.Equal(t, "H2", headings.Rows[1].Values["Level"])

	links, err := gen.Generate(ReportLinks)
	require.NoError(t, err)
	assert.Equal(t, 2, links.TotalCount)

	images, err := gen.Generate(ReportImages)
	require.NoError(t, err)
	assert.Equal(t, "logo", images.Rows[0].Values["Alt"])

	failed, err := gen.Generate(ReportFailedURLs)
	require.NoError(t, err)
	require.Len(t, failed.Rows, 1)
	assert.Equal(t, "https://x.com/broken", failed.Rows[0].Values["URL"])

	summary, err := gen.Generate(ReportCrawlSummary)
	require.NoError(t, err)
	assert.Len(t, summary.Definition.Columns, 2)
	assert.Equal(t, "Run ID", summary.Rows[0].Values["Metric"])
	assert.Equal(t, "run-1", summary.Rows[0].Values["Value"])
}

func TestGenerator_UnknownType(t *testing.T) {
	_, err := NewGenerator(sampleResult()).Generate("bogus")
	assert.Error(t, err)
}

func TestReport_SortAndFilter(t *testing.T) {
	report, err := NewGenerator(sampleResult()).Generate(ReportPages)
	require.NoError(t, err)

	report.SortReport("Title", false)
	assert.Equal(t, "About us", report.Rows[0].Values["Title"])

	filtered := report.FilterReport("Title", "HOME")
	require.Equal(t, 1, filtered.TotalCount)
	assert.Equal(t, "https://x.com/", filtered.Rows[0].Values["URL"])
}

func TestReport_SortCountsNumerically(t *testing.T) {
	result := sampleResult()
	for i := 0; i < 10; i++ {
		result.Pages[1].Paragraphs = append(result.Pages[1].Paragraphs, "more")
	}

	report, err := NewGenerator(result).Generate(ReportPages)
	require.NoError(t, err)

	report.SortReport("Paragraphs", true)
	assert.Equal(t, 2, report.Rows[0].Values["Paragraphs"])
	assert.Equal(t, 11, report.Rows[1].Values["Paragraphs"])
}
