// Package poll runs a bounded, fixed-interval sampling loop whose ticks
// never overlap.
//
// The next tick is scheduled only after the current one has returned, using
// a single-shot timer that is re-armed each iteration. A free-running ticker
// would let a slow sample race the next one.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmylchreest/inspectai/internal/logger"
)

// ErrExhausted is returned when MaxAttempts ticks ran without success.
var ErrExhausted = errors.New("poll attempts exhausted")

// Config bounds a poll.
type Config struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultConfig returns 20 attempts at 500ms (a 10 second ceiling).
func DefaultConfig() Config {
	return Config{
		Interval:    500 * time.Millisecond,
		MaxAttempts: 20,
	}
}

// Sampler inspects the current state once. It returns ok=true when the
// value is final. A returned error, or a panic, counts as "not yet" and is
// logged; it never ends the poll early.
type Sampler[T any] func(ctx context.Context, attempt int) (value T, ok bool, err error)

// Run calls sample once per interval until it succeeds, the attempt bound is
// reached, or ctx is done. The first tick fires one interval after Run is
// called. It returns the value and the number of ticks used.
func Run[T any](ctx context.Context, cfg Config, sample Sampler[T]) (T, int, error) {
	var zero T
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}

	timer := time.NewTimer(cfg.Interval)
	defer timer.Stop()

	var lastErr error
	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return zero, attempt - 1, ctx.Err()
		case <-timer.C:
		}
		if err := ctx.Err(); err != nil {
			return zero, attempt - 1, err
		}

		value, ok, err := tick(ctx, attempt, sample)
		if ok {
			logger.Debug("poll succeeded", "attempt", attempt)
			return value, attempt, nil
		}
		if err != nil {
			lastErr = err
			logger.Debug("poll sample failed", "attempt", attempt, "error", err)
		}

		if attempt >= cfg.MaxAttempts {
			if lastErr != nil {
				return zero, attempt, fmt.Errorf("%w after %d attempts (last: %v)", ErrExhausted, attempt, lastErr)
			}
			return zero, attempt, fmt.Errorf("%w after %d attempts", ErrExhausted, attempt)
		}

		// The fired timer is drained, so Reset is safe here.
		timer.Reset(cfg.Interval)
	}
}

// tick isolates one sample so that a panic degrades to "not found".
func tick[T any](ctx context.Context, attempt int, sample Sampler[T]) (value T, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			value, ok, err = zero, false, fmt.Errorf("sample panicked: %v", r)
		}
	}()
	return sample(ctx, attempt)
}
