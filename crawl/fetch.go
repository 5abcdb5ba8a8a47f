package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/parser"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
)

// fetchStack is the session's single path to the network: retry policy outermost, then
// the central rate limiter, then the circuit breaker around the raw fetcher.
type fetchStack struct {
	fetcher scraper.Fetcher
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	policy  scraper.RetryPolicy
	retries atomic.Int64
	// onFatal is called once the breaker reports the fetch capability as lost.
	onFatal func(error)
}

func newFetchStack(cfg *config.Config, fetcher scraper.Fetcher, metrics *scraper.Metrics, log *slog.Logger, onFatal func(error)) *fetchStack {
	fs := &fetchStack{
		fetcher: fetcher,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		onFatal: onFatal,
	}

	threshold := uint32(cfg.BreakerThreshold)
	fs.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "fetch",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !scraper.IsConnectionFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	fs.policy = scraper.NewRetryPolicy(cfg, metrics)
	onRetry := fs.policy.OnRetry
	fs.policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		fs.retries.Add(1)
		onRetry(attempt, delay, err)
	}
	return fs
}

// fetch retrieves and adapts one payload.
func (fs *fetchStack) fetch(ctx context.Context, req scraper.Request) (*parser.Payload, error) {
	var raw parser.Raw
	err := fs.policy.Do(ctx, func(ctx context.Context) error {
		if err := fs.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
		out, err := fs.breaker.Execute(func() (interface{}, error) {
			return fs.fetcher.Fetch(ctx, req)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			fatal := fmt.Errorf("%w: %v", scraper.ErrFetchUnavailable, err)
			if fs.onFatal != nil {
				fs.onFatal(fatal)
			}
			return fatal
		}
		if err != nil {
			return err
		}
		raw = out.(parser.Raw)
		return nil
	})
	if err != nil {
		return nil, err
	}

	payload, err := parser.Adapt(raw)
	if err != nil {
		return nil, scraper.ErrMalformedPayload{Err: err}
	}
	return payload, nil
}

// Retries returns the number of retries scheduled so far.
func (fs *fetchStack) Retries() int {
	return int(fs.retries.Load())
}
