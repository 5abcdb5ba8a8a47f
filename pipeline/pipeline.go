// Package pipeline validates crawl outcomes, stamps their status, keeps the session
// summary and batches the resulting entries to the export writers.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
)

var (
	// ErrPipelineClosed is returned when Add is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
	// ErrPipelineCloseTimeout is returned when pending entries are not written in time.
	ErrPipelineCloseTimeout = errors.New("pipeline: close timed out")
)

// drainTimeout bounds how long Close waits for pending writes.
var drainTimeout = 30 * time.Second

// errorSamplesPerClass bounds the representative messages kept per failure class.
const errorSamplesPerClass = 3

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(entries []models.Entry) error
	Close() error
	Validate() error
}

// SummaryWriter is implemented by writers that embed the session summary in their
// output. It is called once, before Close.
type SummaryWriter interface {
	WriteSummary(models.SessionSummary) error
}

// Aggregator turns scheduler outcomes into validated entries. It implements crawl.Sink.
type Aggregator struct {
	writer    OutputWriter
	entryCh   chan models.Entry
	batchSize int
	metrics   *scraper.Metrics

	wg sync.WaitGroup

	seen   map[string]struct{}
	seenMu sync.Mutex

	summaryMu sync.Mutex
	summary   models.SessionSummary

	mu     sync.Mutex // guards closed/err
	closed bool
	err    error

	closeOnce    sync.Once
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewAggregator builds an aggregator with a modest in-memory buffer. metrics may be nil.
func NewAggregator(writer OutputWriter, metrics *scraper.Metrics) *Aggregator {
	return &Aggregator{
		writer:    writer,
		entryCh:   make(chan models.Entry, 512),
		batchSize: 64,
		metrics:   metrics,
		seen:      make(map[string]struct{}),
		summary: models.SessionSummary{
			QualityFlags: make(map[string]int),
			ErrorSamples: make(map[string][]string),
		},
		shutdown: make(chan struct{}),
	}
}

// Start launches worker goroutines.
func (a *Aggregator) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	for i := 0; i < workers; i++ {
		a.wg.Add(1)
		go a.worker()
	}
}

// Add assembles the entry for one outcome and enqueues it for writing.
func (a *Aggregator) Add(out models.Outcome) error {
	closed, err := a.state()
	if err != nil {
		return err
	}
	if closed {
		return ErrPipelineClosed
	}
	return a.enqueue(Assemble(out))
}

// Close waits for workers to finish and prevents more submissions. It does not close
// the writer.
func (a *Aggregator) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
	}
	a.mu.Unlock()

	a.signalShutdown()
	a.closeOnce.Do(func() {
		close(a.entryCh)
	})

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return a.Err()
	case <-time.After(drainTimeout):
		return ErrPipelineCloseTimeout
	}
}

// Err returns the first error encountered during processing.
func (a *Aggregator) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Summary returns a snapshot of the session summary. It is safe to call while the
// session is running.
func (a *Aggregator) Summary() models.SessionSummary {
	a.summaryMu.Lock()
	defer a.summaryMu.Unlock()

	out := a.summary
	out.QualityFlags = maps.Clone(a.summary.QualityFlags)
	out.ErrorSamples = make(map[string][]string, len(a.summary.ErrorSamples))
	for class, samples := range a.summary.ErrorSamples {
		out.ErrorSamples[class] = append([]string(nil), samples...)
	}
	return out
}

// StartMetricsReporting emits periodic progress logs.
func (a *Aggregator) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s := a.Summary()
				slog.Info("crawl progress",
					slog.Int("targets", s.Targets),
					slog.Int("success", s.Success),
					slog.Int("partial", s.Partial),
					slog.Int("failed", s.Failed),
					slog.Int("reviews", s.Reviews),
				)
			case <-a.shutdown:
				return
			}
		}
	}()
}

func (a *Aggregator) worker() {
	defer a.wg.Done()

	batch := make([]models.Entry, 0, a.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := a.writer.Write(batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for entry := range a.entryCh {
		batch = append(batch, a.prepare(entry))
		if len(batch) >= a.batchSize {
			if err := flush(); err != nil {
				a.setErr(fmt.Errorf("write batch: %w", err))
				return
			}
		}
	}

	if err := flush(); err != nil {
		a.setErr(fmt.Errorf("write batch: %w", err))
	}
}

// prepare drops records whose id was already emitted, flagging their report, and folds
// the entry into the session summary.
func (a *Aggregator) prepare(entry models.Entry) models.Entry {
	if entry.Record != nil {
		a.seenMu.Lock()
		if _, ok := a.seen[entry.Record.Info.ID]; ok {
			a.seenMu.Unlock()
			slog.Warn("duplicate product record dropped",
				slog.String("product_id", entry.Record.Info.ID),
				slog.String("target", entry.Report.Target.Key()),
			)
			entry.Record = nil
			entry.Report.QualityFlags = append(slices.Clone(entry.Report.QualityFlags), models.FlagDuplicateRecordDropped)
		} else {
			a.seen[entry.Record.Info.ID] = struct{}{}
			a.seenMu.Unlock()
		}
	}

	a.observe(entry)
	return entry
}

func (a *Aggregator) observe(entry models.Entry) {
	report := entry.Report
	a.metrics.IncTarget(string(report.Status))

	a.summaryMu.Lock()
	defer a.summaryMu.Unlock()

	s := &a.summary
	s.Targets++
	switch report.Status {
	case models.StatusSuccess:
		s.Success++
	case models.StatusPartial:
		s.Partial++
	default:
		s.Failed++
	}
	for _, flag := range report.QualityFlags {
		s.QualityFlags[flag]++
	}
	if report.ErrorClass != "" && len(s.ErrorSamples[report.ErrorClass]) < errorSamplesPerClass {
		s.ErrorSamples[report.ErrorClass] = append(s.ErrorSamples[report.ErrorClass], report.Error)
	}
	if entry.Record != nil {
		s.ProductsEmitted++
		s.Reviews += report.Counts.Reviews
		s.Questions += report.Counts.Questions
		s.Variants += report.Counts.Variants
	}
}

func (a *Aggregator) enqueue(entry models.Entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrPipelineClosed
		}
	}()

	select {
	case <-a.shutdown:
		return ErrPipelineClosed
	case a.entryCh <- entry:
		return nil
	}
}

func (a *Aggregator) setErr(err error) {
	if err == nil {
		return
	}

	a.mu.Lock()
	if a.err != nil {
		a.mu.Unlock()
		return
	}
	a.err = err
	a.closed = true
	a.mu.Unlock()

	a.signalShutdown()
}

func (a *Aggregator) state() (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed, a.err
}

func (a *Aggregator) signalShutdown() {
	a.shutdownOnce.Do(func() {
		close(a.shutdown)
	})
}
