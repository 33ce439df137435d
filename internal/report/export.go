package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/spider-crawler/sitecrawl/internal/config"
	"github.com/spider-crawler/sitecrawl/internal/model"
	"github.com/spider-crawler/sitecrawl/internal/storage"
)

// ExportOptions defines export configuration.
type ExportOptions struct {
	Format    config.ExportFormat
	FilePath  string
	Delimiter rune // For CSV, default is comma

	// Row ordering and filtering for tabular formats. Each applies only to
	// reports that have the named column.
	SortColumn     string
	SortDescending bool
	FilterColumn   string
	FilterValue    string
}

// DefaultExportOptions returns default export options.
func DefaultExportOptions() *ExportOptions {
	return &ExportOptions{
		Format:    config.FormatJSON,
		Delimiter: ',',
	}
}

// Exporter handles exporting crawl results to various formats.
type Exporter struct {
	options *ExportOptions
}

// NewExporter creates a new exporter.
func NewExporter(options *ExportOptions) *Exporter {
	if options == nil {
		options = DefaultExportOptions()
	}
	return &Exporter{options: options}
}

// ParseFilter splits a "Column=value" filter expression.
func ParseFilter(expr string) (column, value string, err error) {
	column, value, ok := strings.Cut(expr, "=")
	column = strings.TrimSpace(column)
	if !ok || column == "" {
		return "", "", fmt.Errorf("invalid filter %q, want Column=value", expr)
	}
	return column, value, nil
}

// Export writes result to the configured file.
func (e *Exporter) Export(result *model.CrawlResult) error {
	if e.options.FilePath == "" {
		return fmt.Errorf("export path is required")
	}
	for _, col := range []string{e.options.SortColumn, e.options.FilterColumn} {
		if col != "" && !knownColumn(col) {
			return fmt.Errorf("unknown report column: %s", col)
		}
	}

	switch e.options.Format {
	case config.FormatJSON, "":
		return e.exportJSON(result)
	case config.FormatCSV:
		return e.exportCSV(result)
	case config.FormatXLSX:
		return e.exportXLSX(result)
	case config.FormatSQLite:
		return e.exportSQLite(result)
	default:
		return fmt.Errorf("unsupported export format: %s", e.options.Format)
	}
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(v)
}

func (e *Exporter) exportJSON(result *model.CrawlResult) error {
	file, err := os.Create(e.options.FilePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := WriteJSON(file, result); err != nil {
		return fmt.Errorf("failed to write json: %w", err)
	}
	return file.Close()
}

func knownColumn(column string) bool {
	for _, def := range AllReports() {
		if def.HasColumn(column) {
			return true
		}
	}
	return false
}

// generate builds one report and applies the configured filter and sort.
func (e *Exporter) generate(gen *Generator, reportType ReportType) (*Report, error) {
	report, err := gen.Generate(reportType)
	if err != nil {
		return nil, err
	}

	if col := e.options.FilterColumn; col != "" && report.Definition.HasColumn(col) {
		report = report.FilterReport(col, e.options.FilterValue)
	}
	if col := e.options.SortColumn; col != "" && report.Definition.HasColumn(col) {
		report.SortReport(col, !e.options.SortDescending)
	}
	return report, nil
}

// exportCSV writes the pages report.
func (e *Exporter) exportCSV(result *model.CrawlResult) error {
	report, err := e.generate(NewGenerator(result), ReportPages)
	if err != nil {
		return err
	}

	file, err := os.Create(e.options.FilePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	// UTF-8 BOM for Excel compatibility
	if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	writer := csv.NewWriter(file)
	if e.options.Delimiter != 0 {
		writer.Comma = e.options.Delimiter
	}

	if err := writer.Write(report.Definition.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range report.Rows {
		values := make([]string, len(report.Definition.Columns))
		for i, col := range report.Definition.Columns {
			values[i] = formatValue(row.Values[col])
		}
		if err := writer.Write(values); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return file.Close()
}

// exportXLSX writes one sheet per report type.
func (e *Exporter) exportXLSX(result *model.CrawlResult) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"00C853"}},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	gen := NewGenerator(result)
	for i, def := range AllReports() {
		report, err := e.generate(gen, def.Type)
		if err != nil {
			return err
		}

		sheetName := sanitizeSheetName(def.Name)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheetName); err != nil {
				return fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheetName); err != nil {
			return fmt.Errorf("failed to create sheet: %w", err)
		}

		if err := writeSheet(f, sheetName, report, headerStyle); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	return f.SaveAs(e.options.FilePath)
}

func writeSheet(f *excelize.File, sheetName string, report *Report, headerStyle int) error {
	for i, col := range report.Definition.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, col); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)

		colName, _ := excelize.ColumnNumberToName(i + 1)
		width := float64(len(col) + 5)
		if width < 15 {
			width = 15
		}
		_ = f.SetColWidth(sheetName, colName, colName, width)
	}

	for rowIdx, row := range report.Rows {
		for i, col := range report.Definition.Columns {
			cell, _ := excelize.CoordinatesToCellName(i+1, rowIdx+2)
			if err := f.SetCellValue(sheetName, cell, row.Values[col]); err != nil {
				return fmt.Errorf("failed to write cell %s: %w", cell, err)
			}
		}
	}

	// Freeze header row
	return f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func (e *Exporter) exportSQLite(result *model.CrawlResult) error {
	db, err := storage.Open(e.options.FilePath)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.SaveResult(result)
}

// formatValue converts a value to string for export.
func formatValue(v interface{}) string {
	if v == nil {
		return ""
	}

	switch val := v.(type) {
	case string:
		return val
	case int:
		return fmt.Sprintf("%d", val)
	case bool:
		if val {
			return "Yes"
		}
		return "No"
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// sanitizeSheetName ensures sheet name is valid for Excel.
func sanitizeSheetName(name string) string {
	invalid := []string{"\\", "/", "?", "*", "[", "]", ":"}
	result := name
	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}

	// Max 31 characters
	if len(result) > 31 {
		result = result[:31]
	}

	return result
}
