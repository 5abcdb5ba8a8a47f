package pipeline

import (
	"bufio"
	"fmt"
	"html/template"
	"os"
	"strconv"
	"sync"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// htmlTemplates render the report table in three parts so rows can be streamed per
// batch; the closing tags are written on Close.
var htmlTemplates = template.Must(template.New("report").Parse(`
{{- define "head" -}}
<!DOCTYPE html><html><head><meta charset="utf-8">
<title>{{.}}</title>
<style>table{border-collapse:collapse;width:100%;}th,td{border:1px solid #ddd;padding:8px;font-family:Arial, sans-serif;font-size:14px;}th{background-color:#f4f4f4;text-align:left;}</style>
</head><body>
<h1>{{.}}</h1>
<table>
<thead><tr><th>ID</th><th>Name</th><th>Brand</th><th>Price</th><th>Average Rating</th><th>Review Count</th><th>Status</th></tr></thead>
<tbody>
{{end}}
{{- define "row" -}}
<tr><td>{{.ID}}</td><td>{{.Name}}</td><td>{{.Brand}}</td><td>{{.Price}}</td><td>{{.AverageRating}}</td><td>{{.ReviewCount}}</td><td>{{.Status}}</td></tr>
{{end}}
{{- define "foot" -}}
</tbody></table></body></html>
{{end}}`))

const htmlTitle = "Product catalog crawl"

type htmlRow struct {
	ID            string
	Name          string
	Brand         string
	Price         string
	AverageRating string
	ReviewCount   string
	Status        string
}

// HTMLWriter writes a browsable table with one row per product record. Entries
// without a record are skipped.
type HTMLWriter struct {
	file   *os.File
	writer *bufio.Writer
	rows   int
	mu     sync.Mutex
}

// NewHTMLWriter creates the file and writes the table header.
func NewHTMLWriter(filename string) (*HTMLWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create html file: %w", err)
	}

	w := bufio.NewWriter(f)
	if err := htmlTemplates.ExecuteTemplate(w, "head", htmlTitle); err != nil {
		f.Close()
		return nil, fmt.Errorf("write html header: %w", err)
	}
	return &HTMLWriter{file: f, writer: w}, nil
}

// Write appends one table row per product record.
func (hw *HTMLWriter) Write(entries []models.Entry) error {
	hw.mu.Lock()
	defer hw.mu.Unlock()

	for _, entry := range entries {
		if entry.Record == nil {
			continue
		}
		if err := htmlTemplates.ExecuteTemplate(hw.writer, "row", toHTMLRow(entry)); err != nil {
			return fmt.Errorf("write html row: %w", err)
		}
		hw.rows++
	}
	return hw.writer.Flush()
}

// Close writes the closing tags and closes the file.
func (hw *HTMLWriter) Close() error {
	hw.mu.Lock()
	defer hw.mu.Unlock()

	if err := htmlTemplates.ExecuteTemplate(hw.writer, "foot", nil); err != nil {
		hw.file.Close()
		return fmt.Errorf("write html footer: %w", err)
	}
	if err := hw.writer.Flush(); err != nil {
		hw.file.Close()
		return fmt.Errorf("flush html: %w", err)
	}
	return hw.file.Close()
}

// Validate reports an error when no product row was written.
func (hw *HTMLWriter) Validate() error {
	hw.mu.Lock()
	defer hw.mu.Unlock()

	if hw.rows == 0 {
		return fmt.Errorf("no product rows written to html")
	}
	return nil
}

func toHTMLRow(entry models.Entry) htmlRow {
	r := entry.Record
	row := htmlRow{
		ID:     r.Info.ID,
		Name:   str(r.Info.Name),
		Brand:  str(r.Info.Brand),
		Price:  str(r.Info.Price),
		Status: string(entry.Report.Status),
	}
	if r.Statistics != nil {
		row.AverageRating = strconv.FormatFloat(r.Statistics.AverageRating, 'f', 2, 64)
		row.ReviewCount = strconv.Itoa(r.Statistics.ReviewCount)
	}
	return row
}
