package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

var productHeader = []string{
	"id", "name", "brand", "price", "price_value", "currency", "is_available", "love_count",
	"image", "url", "variant_count", "review_count", "question_count", "average_rating",
	"partial", "status",
}

// CSVWriter writes one flat row per product record. Entries without a record are
// skipped.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	rows   int
	mu     sync.Mutex
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(productHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		file:   f,
		writer: writer,
	}, nil
}

// Write appends product rows to the CSV output.
func (cw *CSVWriter) Write(entries []models.Entry) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, entry := range entries {
		if entry.Record == nil {
			continue
		}
		if err := cw.writer.Write(productRow(entry)); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
		cw.rows++
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures at least one product row was written.
func (cw *CSVWriter) Validate() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.rows == 0 {
		return fmt.Errorf("csv file has no product rows")
	}
	return nil
}

func productRow(entry models.Entry) []string {
	r := entry.Record
	avg := ""
	if r.Statistics != nil {
		avg = strconv.FormatFloat(r.Statistics.AverageRating, 'f', 2, 64)
	}
	return []string{
		r.Info.ID,
		str(r.Info.Name),
		str(r.Info.Brand),
		str(r.Info.Price),
		num(r.Info.PriceValue),
		str(r.Info.Currency),
		boolean(r.Info.IsAvailable),
		integer(r.Info.LoveCount),
		str(r.Info.Image),
		r.Info.URL,
		strconv.Itoa(len(r.Variants)),
		strconv.Itoa(len(r.Reviews)),
		strconv.Itoa(len(r.Questions)),
		avg,
		strconv.FormatBool(r.Partial),
		string(entry.Report.Status),
	}
}

// JSONWriter writes one {record, report} object per line.
type JSONWriter struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
	lines   int
	mu      sync.Mutex
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	return &JSONWriter{
		file:    f,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
	}, nil
}

// Write appends entries in JSONL format.
func (jw *JSONWriter) Write(entries []models.Entry) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, entry := range entries {
		if err := jw.encoder.Encode(entry); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
		jw.lines++
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}

	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	if jw.lines == 0 {
		return fmt.Errorf("json file is empty")
	}
	return nil
}

// WriteSummaryFile writes the session summary as indented JSON.
func WriteSummaryFile(filename string, summary models.SessionSummary) error {
	if err := ensureDir(filename); err != nil {
		return err
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// SummaryPath returns the summary file written next to an output file.
func SummaryPath(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + ".summary.json"
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func num(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

func integer[T ~int | ~int64](p *T) string {
	if p == nil {
		return ""
	}
	return strconv.FormatInt(int64(*p), 10)
}

func boolean(p *bool) string {
	if p == nil {
		return ""
	}
	return strconv.FormatBool(*p)
}
