// Package retry runs startup probes against backing services with jittered
// exponential backoff.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Policy bounds how often and how patiently an operation is retried.
type Policy struct {
	Attempts int
	Base     time.Duration
	// Jitter spreads each wait by up to ±Jitter of its length.
	Jitter float64
}

// Startup gives up after three attempts spaced roughly 1s and 2s apart.
var Startup = Policy{Attempts: 3, Base: time.Second, Jitter: 0.25}

// Backoff returns the wait after the given 0-indexed attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	base := p.Base << max(attempt, 0)
	spread := p.Jitter * (2*rand.Float64() - 1) // #nosec G404 -- jitter only
	return base + time.Duration(float64(base)*spread)
}

// Do runs fn until it succeeds, returns an error retryable rejects, runs out
// of attempts, or ctx ends. A nil retryable retries every error and a nil
// logger keeps retries quiet.
func (p Policy) Do(ctx context.Context, logger *slog.Logger, what string, retryable func(error) bool, fn func() error) error {
	var err error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == p.Attempts-1 {
			break
		}
		wait := p.Backoff(attempt)
		if logger != nil {
			logger.WarnContext(ctx, what+" failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", p.Attempts),
				slog.Duration("backoff", wait),
				slog.String("error", err.Error()),
			)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: canceled during retry: %w", what, ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("%s after %d attempts: %w", what, p.Attempts, err)
}
