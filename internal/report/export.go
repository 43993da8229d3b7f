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
)

// ExportFormat defines the export file format.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
	FormatJSON ExportFormat = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", s)
	}
}

// ExportOptions defines export configuration.
type ExportOptions struct {
	Format    ExportFormat
	FilePath  string
	MaxRows   int  // 0 = unlimited
	Delimiter rune // For CSV, default is comma
}

// DefaultExportOptions returns default export options.
func DefaultExportOptions() *ExportOptions {
	return &ExportOptions{
		Format:    FormatJSON,
		Delimiter: ',',
	}
}

// Exporter writes reports to files.
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

// Export writes report in the configured format.
func (e *Exporter) Export(report *AggregatedReport) error {
	switch e.options.Format {
	case FormatCSV:
		return e.exportCSV(report)
	case FormatXLSX:
		return e.exportXLSX(report)
	case FormatJSON:
		return e.exportJSON(report)
	default:
		return fmt.Errorf("unsupported export format: %s", e.options.Format)
	}
}

var pageColumns = []string{
	"URL", "Status", "Source", "Score", "Title", "Words", "Load Time (ms)", "Issues", "Error",
}

func pageRow(p PageSummary) []interface{} {
	status := "Analyzed"
	switch {
	case p.Restricted:
		status = "Restricted"
	case !p.Success:
		status = "Failed"
	}

	codes := make([]string, 0, len(p.Issues))
	for _, issue := range p.Issues {
		codes = append(codes, issue.Code)
	}

	return []interface{}{
		p.URL, status, string(p.Source), p.Score, p.Title, p.WordCount, p.LoadTimeMs,
		strings.Join(codes, " "), p.Error,
	}
}

// exportCSV writes the per-page table.
func (e *Exporter) exportCSV(report *AggregatedReport) error {
	file, err := os.Create(e.options.FilePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := WriteCSV(file, report, e.options.Delimiter, e.options.MaxRows); err != nil {
		return err
	}
	return file.Close()
}

// WriteCSV writes the per-page table of report to w, prefixed with a
// UTF-8 BOM for Excel.
func WriteCSV(w io.Writer, report *AggregatedReport, delimiter rune, maxRows int) error {
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if delimiter != 0 {
		writer.Comma = delimiter
	}

	if err := writer.Write(pageColumns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, p := range report.Pages {
		if maxRows > 0 && i >= maxRows {
			break
		}
		row := pageRow(p)
		values := make([]string, len(row))
		for j, v := range row {
			values[j] = formatValue(v)
		}
		if err := writer.Write(values); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// exportXLSX writes Summary, Pages and Recommendations sheets.
func (e *Exporter) exportXLSX(report *AggregatedReport) error {
	f, err := buildWorkbook(report, e.options.MaxRows)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(e.options.FilePath)
}

// WriteXLSX writes the workbook of report to w.
func WriteXLSX(w io.Writer, report *AggregatedReport, maxRows int) error {
	f, err := buildWorkbook(report, maxRows)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func buildWorkbook(report *AggregatedReport, maxRows int) (*excelize.File, error) {
	f := excelize.NewFile()

	headerStyle, _ := f.NewStyle(&excelize.Style{
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

	summary := "Summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	writeSummary(f, summary, report)

	pages := make([][]interface{}, 0, len(report.Pages))
	for i, p := range report.Pages {
		if maxRows > 0 && i >= maxRows {
			break
		}
		pages = append(pages, pageRow(p))
	}
	if err := writeTable(f, "Pages", pageColumns, pages, headerStyle); err != nil {
		f.Close()
		return nil, err
	}

	recs := make([][]interface{}, 0, len(report.Recommendations))
	for _, r := range report.Recommendations {
		recs = append(recs, []interface{}{
			string(r.Priority), r.Category, r.Issue, r.Recommendation, strings.Join(r.AffectedPages, "\n"),
		})
	}
	recColumns := []string{"Priority", "Category", "Issue", "Recommendation", "Affected Pages"}
	if err := writeTable(f, "Recommendations", recColumns, recs, headerStyle); err != nil {
		f.Close()
		return nil, err
	}

	f.SetActiveSheet(0)
	return f, nil
}

func writeSummary(f *excelize.File, sheet string, report *AggregatedReport) {
	rows := [][]interface{}{
		{"Domain", report.Domain},
		{"Seed URL", report.SeedURL},
		{"Site", report.Site},
		{"Overall Score", report.OverallScore},
		{"Total Pages", report.TotalPages},
		{"Analyzed Pages", report.AnalyzedPages},
		{"Failed Pages", report.FailedPages},
		{"Restricted Pages", report.RestrictedPages},
		{"Healthy Pages", report.HealthyPages},
		{"Pages With Issues", report.PagesWithIssues},
		{"Images", report.Totals.Images},
		{"Images Missing Alt", report.Totals.ImagesMissingAlt},
		{"Internal Links", report.Totals.InternalLinks},
		{"External Links", report.Totals.ExternalLinks},
		{"Average Words", report.Averages.WordCount},
		{"Average Load Time (ms)", report.Averages.LoadTimeMs},
		{"Generated", report.GeneratedAt},
		{"Tool", "seoaudit"},
	}

	for i, row := range rows {
		f.SetCellValue(sheet, fmt.Sprintf("A%d", i+1), row[0])
		f.SetCellValue(sheet, fmt.Sprintf("B%d", i+1), formatValue(row[1]))
	}

	f.SetColWidth(sheet, "A", "A", 24)
	f.SetColWidth(sheet, "B", "B", 50)
}

// writeTable adds a sheet with a styled header, autofilter and frozen
// first row.
func writeTable(f *excelize.File, sheet string, columns []string, rows [][]interface{}, headerStyle int) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, col)
		f.SetCellStyle(sheet, cell, cell, headerStyle)

		colName, _ := excelize.ColumnNumberToName(i + 1)
		width := float64(len(col) + 5)
		if width < 15 {
			width = 15
		}
		if width > 50 {
			width = 50
		}
		f.SetColWidth(sheet, colName, colName, width)
	}

	for r, row := range rows {
		for c, val := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			f.SetCellValue(sheet, cell, val)
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(columns))
	f.AutoFilter(sheet, fmt.Sprintf("A1:%s%d", lastCol, len(rows)+1), nil)

	f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
	return nil
}

// exportJSON writes the full report.
func (e *Exporter) exportJSON(report *AggregatedReport) error {
	file, err := os.Create(e.options.FilePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := WriteJSON(file, report); err != nil {
		return err
	}
	return file.Close()
}

// WriteJSON writes v as indented JSON without HTML escaping.
func WriteJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(v)
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
	case int64:
		return fmt.Sprintf("%d", val)
	case float64:
		return fmt.Sprintf("%.2f", val)
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
