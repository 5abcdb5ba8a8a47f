package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
)

// MultiWriter fans entries out to several writers.
type MultiWriter struct {
	writers []OutputWriter
	mu      sync.Mutex
}

// NewMultiWriter combines writers; they are written and closed in order.
func NewMultiWriter(writers ...OutputWriter) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write writes entries to every writer, stopping at the first failure.
func (mw *MultiWriter) Write(entries []models.Entry) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	for _, w := range mw.writers {
		if err := w.Write(entries); err != nil {
			return fmt.Errorf("%T write failed: %w", w, err)
		}
	}
	return nil
}

// WriteSummary forwards the summary to writers that embed it.
func (mw *MultiWriter) WriteSummary(s models.SessionSummary) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	for _, w := range mw.writers {
		if sw, ok := w.(SummaryWriter); ok {
			if err := sw.WriteSummary(s); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes every writer.
func (mw *MultiWriter) Close() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	var errs []error
	for _, w := range mw.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%T close failed: %w", w, err))
		}
	}
	return errors.Join(errs...)
}

// Validate validates every output.
func (mw *MultiWriter) Validate() error {
	var errs []error
	for _, w := range mw.writers {
		if err := w.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%T validation failed: %w", w, err))
		}
	}
	return errors.Join(errs...)
}

// NewWriter creates the writer for an output format. Each format gets its own file
// extension next to filename.
func NewWriter(format, filename string) (OutputWriter, error) {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	var kinds []string
	switch format {
	case config.FormatJSONL, config.FormatCSV, config.FormatXLSX, config.FormatHTML:
		kinds = []string{format}
	case config.FormatDual:
		kinds = []string{config.FormatCSV, config.FormatJSONL}
	case config.FormatAll:
		kinds = []string{config.FormatCSV, config.FormatJSONL, config.FormatXLSX, config.FormatHTML}
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}

	writers := make([]OutputWriter, 0, len(kinds))
	for _, kind := range kinds {
		w, err := newFormatWriter(kind, base+"."+kind)
		if err != nil {
			for _, opened := range writers {
				opened.Close()
			}
			return nil, err
		}
		writers = append(writers, w)
	}
	if len(writers) == 1 {
		return writers[0], nil
	}
	return NewMultiWriter(writers...), nil
}

func newFormatWriter(kind, filename string) (OutputWriter, error) {
	switch kind {
	case config.FormatCSV:
		return NewCSVWriter(filename)
	case config.FormatXLSX:
		return NewExcelWriter(filename)
	case config.FormatHTML:
		return NewHTMLWriter(filename)
	default:
		return NewJSONWriter(filename)
	}
}
