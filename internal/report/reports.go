// Package report turns crawl results into tabular reports and exports them.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spider-crawler/sitecrawl/internal/model"
)

// ReportType defines the type of report.
type ReportType string

const (
	ReportPages        ReportType = "pages"
	ReportHeadings     ReportType = "headings"
	ReportLinks        ReportType = "links"
	ReportImages       ReportType = "images"
	ReportFailedURLs   ReportType = "failed_urls"
	ReportCrawlSummary ReportType = "crawl_summary"
)

// ReportDefinition defines a report type.
type ReportDefinition struct {
	Type        ReportType
	Name        string
	Description string
	Columns     []string
}

// AllReports returns all available report definitions.
func AllReports() []*ReportDefinition {
	return []*ReportDefinition{
		{
			Type:        ReportPages,
			Name:        "Pages",
			Description: "Scraped pages in crawl order",
			Columns:     []string{"URL", "Title", "Meta Description", "Headings", "Links", "Paragraphs", "Images"},
		},
		{
			Type:        ReportHeadings,
			Name:        "Headings",
			Description: "h1-h3 headings per page",
			Columns:     []string{"Page", "Level", "Text"},
		},
		{
			Type:        ReportLinks,
			Name:        "Links",
			Description: "Anchors found on scraped pages",
			Columns:     []string{"Page", "Text", "Href"},
		},
		{
			Type:        ReportImages,
			Name:        "Images",
			Description: "Images found on scraped pages",
			Columns:     []string{"Page", "Src", "Alt"},
		},
		{
			Type:        ReportFailedURLs,
			Name:        "Failed URLs",
			Description: "URLs that failed after all retries",
			Columns:     []string{"URL"},
		},
		{
			Type:        ReportCrawlSummary,
			Name:        "Crawl Summary",
			Description: "Overall crawl statistics",
			Columns:     []string{"Metric", "Value"},
		},
	}
}

// Row represents a single row in a report.
type Row struct {
	Values map[string]interface{}
}

// Report represents a generated report.
type Report struct {
	Definition *ReportDefinition
	Rows       []*Row
	TotalCount int
}

// Generator generates reports from a crawl result.
type Generator struct {
	result *model.CrawlResult
}

// NewGenerator creates a new report generator.
func NewGenerator(result *model.CrawlResult) *Generator {
	return &Generator{result: result}
}

// Generate generates a report of the specified type.
func (g *Generator) Generate(reportType ReportType) (*Report, error) {
	def := getDefinition(reportType)
	if def == nil {
		return nil, fmt.Errorf("unknown report type: %s", reportType)
	}

	report := &Report{
		Definition: def,
		Rows:       make([]*Row, 0),
	}

	switch reportType {
	case ReportPages:
		g.generatePages(report)
	case ReportHeadings:
		g.generateHeadings(report)
	case ReportLinks:
		g.generateLinks(report)
	case ReportImages:
		g.generateImages(report)
	case ReportFailedURLs:
		g.generateFailedURLs(report)
	case ReportCrawlSummary:
		g.generateCrawlSummary(report)
	}

	report.TotalCount = len(report.Rows)
	return report, nil
}

// HasColumn reports whether the definition includes column.
func (d *ReportDefinition) HasColumn(column string) bool {
	for _, c := range d.Columns {
		if c == column {
			return true
		}
	}
	return false
}

func getDefinition(reportType ReportType) *ReportDefinition {
	for _, def := range AllReports() {
		if def.Type == reportType {
			return def
		}
	}
	return nil
}

func (g *Generator) generatePages(report *Report) {
	for _, page := range g.result.Pages {
		headings, links, paragraphs := page.Summary()
		report.Rows = append(report.Rows, &Row{Values: map[string]interface{}{
			"URL":              page.URL,
			"Title":            page.Title,
			"Meta Description": page.MetaDescription,
			"Headings":         headings,
			"Links":            links,
			"Paragraphs":       paragraphs,
			"Images":           len(page.Images),
		}})
	}
}

func (g *Generator) generateHeadings(report *Report) {
	for _, page := range g.result.Pages {
		for _, h := range page.Headings {
			report.Rows = append(report.Rows, &Row{Values: map[string]interface{}{
				"Page":  page.URL,
				"Level": fmt.Sprintf("H%d", h.Level),
				"Text":  h.Text,
			}})
		}
	}
}

func (g *Generator) generateLinks(report *Report) {
	for _, page := range g.result.Pages {
		for _, link := range page.Links {
			report.Rows = append(report.Rows, &Row{Values: map[string]interface{}{
				"Page": page.URL,
				"Text": link.Text,
				"Href": link.Href,
			}})
		}
	}
}

func (g *Generator) generateImages(report *Report) {
	for _, page := range g.result.Pages {
		for _, img := range page.Images {
			report.Rows = append(report.Rows, &Row{Values: map[string]interface{}{
				"Page": page.URL,
				"Src":  img.Src,
				"Alt":  img.Alt,
			}})
		}
	}
}

func (g *Generator) generateFailedURLs(report *Report) {
	for _, u := range g.result.FailedURLs {
		report.Rows = append(report.Rows, &Row{Values: map[string]interface{}{"URL": u}})
	}
}

func (g *Generator) generateCrawlSummary(report *Report) {
	r := g.result
	metrics := []struct {
		name  string
		value interface{}
	}{
		{"Run ID", r.RunID},
		{"Seed URL", r.SeedURL},
		{"Started", r.StartedAt},
		{"Duration", r.Duration.String()},
		{"Scraped Pages", r.ScrapedCount},
		{"Failed URLs", r.FailedCount},
		{"Remaining In Queue", r.RemainingQueueLength},
	}
	for _, m := range metrics {
		report.Rows = append(report.Rows, &Row{Values: map[string]interface{}{
			"Metric": m.name,
			"Value":  m.value,
		}})
	}
}

// SortReport sorts report rows by a column.
func (r *Report) SortReport(column string, ascending bool) {
	sort.SliceStable(r.Rows, func(i, j int) bool {
		c := compareValues(r.Rows[i].Values[column], r.Rows[j].Values[column])
		if ascending {
			return c < 0
		}
		return c > 0
	})
}

// compareValues orders counts numerically and everything else by its text.
func compareValues(a, b interface{}) int {
	if ia, ok := a.(int); ok {
		if ib, ok := b.(int); ok {
			switch {
			case ia < ib:
				return -1
			case ia > ib:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(formatValue(a), formatValue(b))
}

// FilterReport returns the rows whose column contains value (case-insensitive).
func (r *Report) FilterReport(column, value string) *Report {
	filtered := &Report{
		Definition: r.Definition,
		Rows:       make([]*Row, 0),
	}
	needle := strings.ToLower(value)
	for _, row := range r.Rows {
		if strings.Contains(strings.ToLower(formatValue(row.Values[column])), needle) {
			filtered.Rows = append(filtered.Rows, row)
		}
	}
	filtered.TotalCount = len(filtered.Rows)
	return filtered
}
