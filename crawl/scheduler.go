// Package crawl turns seed targets into per-product outcomes: category discovery,
// paginated review and Q&A collection, and the bounded worker pool that drives them.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
)

// ErrNoTargets is returned by Run when no seed target is given.
var ErrNoTargets = errors.New("no seed targets")

// Sink receives one outcome per target. It must be safe for concurrent use.
type Sink interface {
	Add(models.Outcome) error
}

// Scheduler executes crawl sessions over a fetch capability.
type Scheduler struct {
	cfg     *config.Config
	fetcher scraper.Fetcher
	metrics *scraper.Metrics
}

// NewScheduler builds a scheduler. metrics may be nil.
func NewScheduler(cfg *config.Config, fetcher scraper.Fetcher, metrics *scraper.Metrics) *Scheduler {
	return &Scheduler{cfg: cfg, fetcher: fetcher, metrics: metrics}
}

// Run crawls seeds with cfg.Concurrency workers and hands every outcome to sink. Each
// session gets its own id, dedup set, rate limiter and circuit breaker.
//
// Cancelling ctx, or losing the fetch capability, stops the session: in-flight targets
// are abandoned and, like targets still queued, reported with the cancellation cause.
// A lost fetch capability is also returned as RunStats.Fatal.
func (s *Scheduler) Run(ctx context.Context, seeds []models.Target, sink Sink) (models.RunStats, error) {
	stats := models.RunStats{SessionID: uuid.NewString(), StartedAt: time.Now().UTC()}
	if len(seeds) == 0 {
		return stats, ErrNoTargets
	}

	log := slog.Default().With(slog.String("session_id", stats.SessionID))
	sessionCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	fetch := newFetchStack(s.cfg, s.fetcher, s.metrics, log, func(err error) {
		log.Error("fetch capability lost, stopping session", slog.Any("error", err))
		cancel(err)
	})
	c := &crawler{
		cfg:       s.cfg,
		endpoints: scraper.NewEndpoints(s.cfg),
		fetch:     fetch,
		metrics:   s.metrics,
		log:       log,
	}

	q := newQueue(s.metrics)
	for _, seed := range seeds {
		q.push(seed)
	}

	g, gctx := errgroup.WithContext(sessionCtx)
	go func() {
		<-gctx.Done()
		q.close()
	}()

	workers := max(s.cfg.Concurrency, 1)
	log.Info("crawl session started",
		slog.Int("seeds", len(seeds)),
		slog.Int("workers", workers),
	)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for {
				t, ok := q.pop()
				if !ok {
					return nil
				}
				out := s.process(gctx, c, q, t)
				q.done()
				if err := sink.Add(out); err != nil {
					return fmt.Errorf("deliver outcome for %s: %w", t.Key(), err)
				}
			}
		})
	}
	runErr := g.Wait()

	if sessionCtx.Err() != nil {
		cause := context.Cause(sessionCtx)
		for _, t := range q.drain() {
			now := time.Now().UTC()
			if err := sink.Add(models.Outcome{Target: t, Err: cause, StartedAt: now, FinishedAt: now}); err != nil && runErr == nil {
				runErr = err
			}
		}
		if errors.Is(cause, scraper.ErrFetchUnavailable) {
			stats.Fatal = cause
		}
	}

	stats.FinishedAt = time.Now().UTC()
	stats.TargetsQueued, stats.DuplicateTargets = q.counts()
	stats.Retries = fetch.Retries()
	log.Info("crawl session finished",
		slog.Int("targets", stats.TargetsQueued),
		slog.Int("duplicates", stats.DuplicateTargets),
		slog.Int("retries", stats.Retries),
		slog.Duration("elapsed", stats.FinishedAt.Sub(stats.StartedAt)),
	)
	return stats, runErr
}

// process runs one target and enqueues whatever it discovers.
func (s *Scheduler) process(ctx context.Context, c *crawler, q *queue, t models.Target) models.Outcome {
	out := models.Outcome{Target: t, StartedAt: time.Now().UTC()}

	switch t.Kind {
	case models.KindCategory:
		targets, state, err := c.discover(ctx, t)
		enqueued := 0
		for _, d := range targets {
			if q.push(d) {
				enqueued++
			}
		}
		out.Category = &models.CategoryResult{Discovered: len(targets), Listing: state}
		if err != nil && (state.PagesFetched == 0 || ctx.Err() != nil) {
			out.Err = targetError(t, err)
		}
		c.log.Info("category expanded",
			slog.String("category", t.Locator),
			slog.Int("pages", state.PagesFetched),
			slog.Int("products", len(targets)),
			slog.Int("enqueued", enqueued),
			slog.String("stop_reason", string(state.StopReason)),
		)

	case models.KindProduct:
		record, similar, err := c.crawlProduct(ctx, t)
		for _, d := range similar {
			q.push(d)
		}
		out.Record = record
		if err != nil {
			out.Err = targetError(t, err)
			c.log.Error("target failed",
				slog.String("target", t.Key()),
				slog.String("class", scraper.FailureClass(err)),
				slog.Any("error", err),
			)
		}

	default:
		out.Err = targetError(t, fmt.Errorf("unknown target kind %q", t.Kind))
	}

	out.FinishedAt = time.Now().UTC()
	return out
}
