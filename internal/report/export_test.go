package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/spider-crawler/sitecrawl/internal/config"
	"github.com/spider-crawler/sitecrawl/internal/model"
	"github.com/spider-crawler/sitecrawl/internal/storage"
)

func export(t *testing.T, format config.ExportFormat, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	err := NewExporter(&ExportOptions{Format: format, FilePath: path}).Export(sampleResult())
	require.NoError(t, err)
	return path
}

func TestExport_JSON(t *testing.T) {
	path := export(t, config.FormatJSON, "result.json")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got model.CrawlResult
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Len(t, got.Pages, 2)
	assert.Equal(t, []string{"https://x.com/broken"}, got.FailedURLs)
}

func TestExport_CSV(t *testing.T) {
	path := export(t, config.FormatCSV, "pages.csv")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}))

	records, err := csv.NewReader(bytes.NewReader(data[3:])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, getDefinition(ReportPages).Columns, records[0])
	assert.Equal(t, []string{"https://x.com/", "Home", "Welcome", "2", "2", "2", "1"}, records[1])
}

func TestExport_XLSX(t *testing.T) {
	path := export(t, config.FormatXLSX, "result.xlsx")

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Len(t, f.GetSheetList(), len(AllReports()))

	rows, err := f.GetRows("Pages")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "URL", rows[0][0])
	assert.Equal(t, "https://x.com/about", rows[2][0])

	failed, err := f.GetRows("Failed URLs")
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Equal(t, "https://x.com/broken", failed[1][0])
}

func TestExport_SQLite(t *testing.T) {
	path := export(t, config.FormatSQLite, "result.db")

	db, err := storage.Open(path)
	require.NoError(t, err)
	defer db.Close()

	pages, err := db.GetPageSummaries("run-1")
	require.NoError(t, err)
	assert.Len(t, pages, 2)
}

func TestExport_CSVSortAndFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.csv")
	err := NewExporter(&ExportOptions{
		Format:         config.FormatCSV,
		FilePath:       path,
		SortColumn:     "Title",
		SortDescending: true,
		FilterColumn:   "URL",
		FilterValue:    "X.COM",
	}).Export(sampleResult())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(data[3:])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Home", records[1][1])
	assert.Equal(t, "About us", records[2][1])
}

func TestExport_XLSXFilterOnlyTouchesMatchingSheets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.xlsx")
	err := NewExporter(&ExportOptions{
		Format:       config.FormatXLSX,
		FilePath:     path,
		FilterColumn: "Page",
		FilterValue:  "/about",
	}).Export(sampleResult())
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	links, err := f.GetRows("Links")
	require.NoError(t, err)
	assert.Len(t, links, 1, "only the header, the about page has no links")

	pages, err := f.GetRows("Pages")
	require.NoError(t, err)
	assert.Len(t, pages, 3, "Pages has no Page column")
}

func TestParseFilter(t *testing.T) {
	col, val, err := ParseFilter("Title=a=b")
	require.NoError(t, err)
	assert.Equal(t, "Title", col)
	assert.Equal(t, "a=b", val)

	_, _, err = ParseFilter("Title")
	assert.Error(t, err)

	_, _, err = ParseFilter("=x")
	assert.Error(t, err)
}

func TestExport_Errors(t *testing.T) {
	err := NewExporter(nil).Export(sampleResult())
	assert.Error(t, err, "path is required")

	path := filepath.Join(t.TempDir(), "out.txt")
	err = NewExporter(&ExportOptions{Format: "yaml", FilePath: path}).Export(sampleResult())
	assert.Error(t, err)

	err = NewExporter(&ExportOptions{Format: config.FormatCSV, FilePath: path, SortColumn: "Bogus"}).Export(sampleResult())
	assert.ErrorContains(t, err, "unknown report column")
}

func TestSanitizeSheetName(t *testing.T) {
	assert.Equal(t, "a_b_c", sanitizeSheetName("a/b:c"))
	assert.Len(t, sanitizeSheetName("a very long sheet name that exceeds the limit"), 31)
}
