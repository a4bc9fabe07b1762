// Package report renders a harvest as a standalone HTML page and a plain text summary.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ibeckermayer/xharvest/internal/types"
)

// Builder renders harvest reports
type Builder struct {
	maxRecords int
	template   *template.Template
}

// New creates a report builder. maxRecords caps the rows rendered; 0 renders all.
func New(maxRecords int) (*Builder, error) {
	tmpl, err := template.New("report").Parse(defaultTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	return &Builder{
		maxRecords: maxRecords,
		template:   tmpl,
	}, nil
}

// Summary describes the run a report is built for
type Summary struct {
	RunID    string
	Outcome  string
	Attempts int
	Finished time.Time
}

// Report is a rendered harvest
type Report struct {
	Title     string
	HTMLBody  string
	PlainBody string
	Rows      int
	CreatedAt time.Time
}

// ReportData is the template data structure
type ReportData struct {
	Title   string
	Date    string
	Columns []string
	Rows    []RowData
	Stats   StatsData
	Summary Summary
}

// RowData is one record in the template
type RowData struct {
	Cells []CellData
}

// CellData is one field value; URL is set for link fields
type CellData struct {
	Text string
	URL  string
}

// StatsData contains report statistics
type StatsData struct {
	TotalRecords  int
	TotalIncluded int
}

// Build renders records in schema field order
func (b *Builder) Build(schema types.Schema, records []types.Record, sum Summary) (*Report, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to include in report")
	}

	total := len(records)
	if b.maxRecords > 0 && len(records) > b.maxRecords {
		records = records[:b.maxRecords]
	}

	now := time.Now()
	if sum.Finished.IsZero() {
		sum.Finished = now
	}
	data := ReportData{
		Title:   fmt.Sprintf("X %s export", capitalize(string(schema.Name))),
		Date:    sum.Finished.Format("Monday, January 2 2006 15:04"),
		Columns: schema.Fields,
		Rows:    make([]RowData, len(records)),
		Stats: StatsData{
			TotalRecords:  total,
			TotalIncluded: len(records),
		},
		Summary: sum,
	}

	for i, r := range records {
		cells := make([]CellData, len(schema.Fields))
		for j, f := range schema.Fields {
			v := r.Get(f)
			cells[j] = CellData{Text: truncate(v, 280)}
			if f == "link" && strings.HasPrefix(v, "https://") {
				cells[j].URL = v
			}
		}
		data.Rows[i] = RowData{Cells: cells}
	}

	var htmlBuf bytes.Buffer
	if err := b.template.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	return &Report{
		Title:     data.Title,
		HTMLBody:  htmlBuf.String(),
		PlainBody: buildPlainText(data),
		Rows:      len(records),
		CreatedAt: now,
	}, nil
}

// WriteFile saves the HTML body to path
func (r *Report) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report dir: %w", err)
	}
	return os.WriteFile(path, []byte(r.HTMLBody), 0644)
}

func capitalize(s string) string {
	if len(s) == 0 {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

func buildPlainText(data ReportData) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s\n%s\n", data.Title, data.Date)
	if data.Summary.Outcome != "" {
		fmt.Fprintf(&buf, "Outcome: %s after %d scrolls\n", data.Summary.Outcome, data.Summary.Attempts)
	}
	fmt.Fprintf(&buf, "%d records\n\n", data.Stats.TotalRecords)

	for i, row := range data.Rows {
		parts := make([]string, 0, len(row.Cells))
		for _, c := range row.Cells {
			if c.Text != "" {
				parts = append(parts, c.Text)
			}
		}
		fmt.Fprintf(&buf, "%d. %s\n", i+1, strings.Join(parts, " | "))
	}

	return buf.String()
}

const defaultTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; margin: 0 auto; padding: 20px; background: #f5f5f5; }
        .container { background: white; border-radius: 8px; padding: 20px; }
        h1 { color: #1da1f2; margin-bottom: 5px; }
        .date { color: #666; margin-bottom: 20px; }
        table { border-collapse: collapse; width: 100%; }
        th { text-align: left; color: #666; font-weight: 600; border-bottom: 2px solid #eee; padding: 8px; }
        td { border-bottom: 1px solid #eee; padding: 8px; vertical-align: top; line-height: 1.4; }
        .link { color: #1da1f2; text-decoration: none; }
        .footer { margin-top: 20px; padding-top: 15px; border-top: 1px solid #eee; color: #999; font-size: 12px; text-align: center; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <div class="date">{{.Date}}{{with .Summary.Outcome}} · {{.}}{{end}}</div>

        <table>
            <tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr>
            {{range .Rows}}
            <tr>{{range .Cells}}<td>{{if .URL}}<a href="{{.URL}}" class="link">{{.Text}}</a>{{else}}{{.Text}}{{end}}</td>{{end}}</tr>
            {{end}}
        </table>

        <div class="footer">
            Showing {{.Stats.TotalIncluded}} of {{.Stats.TotalRecords}} records{{with .Summary.RunID}} · run {{.}}{{end}} · Generated by xharvest
        </div>
    </div>
</body>
</html>`
