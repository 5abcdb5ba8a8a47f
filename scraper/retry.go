package scraper

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/config"
)

// RetryPolicy retries an operation with capped exponential backoff. It is shared by
// every fetch site of a session.
type RetryPolicy struct {
	// MaxAttempts counts the first try; values below 1 mean a single attempt.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter spreads each delay uniformly within ±Jitter of its nominal value.
	Jitter float64
	// Retryable decides whether an error is worth another attempt. Nil means IsTransient.
	Retryable func(error) bool
	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// NewRetryPolicy builds the session policy from cfg.
func NewRetryPolicy(cfg *config.Config, metrics *Metrics) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: cfg.MaxRetries + 1,
		BaseDelay:   cfg.RetryBackoff,
		MaxDelay:    cfg.RetryBackoffMax,
		Jitter:      cfg.RetryJitter,
		Retryable:   IsTransient,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			metrics.IncRetries()
			slog.Debug("retrying fetch",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.Any("error", err),
			)
		},
	}
}

// Backoff returns the nominal delay before retry number attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := p.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			break
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

func (p RetryPolicy) jittered(d time.Duration) time.Duration {
	if p.Jitter <= 0 || d <= 0 {
		return d
	}
	spread := (rand.Float64()*2 - 1) * p.Jitter
	return time.Duration(float64(d) * (1 + spread))
}

// Do runs fn until it succeeds, returns a non-retryable error or the attempts run out.
// The last error is returned. Cancellation of ctx during a backoff returns ctx.Err().
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}
	attempts := max(p.MaxAttempts, 1)

	var err error
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = fn(ctx)
		if err == nil || attempt >= attempts || !retryable(err) {
			return err
		}

		delay := p.jittered(p.Backoff(attempt))
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
