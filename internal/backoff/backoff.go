// Package backoff retries fallible operations with exponential delays.
package backoff

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/lydakis/corehost/internal/pkg/log"
)

// Policy controls how many times an operation is retried and how long to
// wait between attempts.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// Default mirrors the daemon's default connection policy.
func Default() Policy {
	return Policy{
		MaxRetries:   8,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   1.5,
	}
}

// Delay returns the wait before retry k (k >= 1):
// min(InitialDelay * Multiplier^(k-1), MaxDelay).
func (p Policy) Delay(k int) time.Duration {
	if k < 1 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.InitialDelay) * math.Pow(mult, float64(k-1))
	if p.MaxDelay > 0 && (d > float64(p.MaxDelay) || math.IsInf(d, 1)) {
		return p.MaxDelay
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Attempts is the total number of tries: MaxRetries+1.
func (p Policy) Attempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

type options struct {
	name   string
	logger log.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// Option customizes Retry.
type Option func(*options)

// WithName labels log lines for the retried operation.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger routes retry warnings to l.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSleep replaces the context-aware sleep between attempts.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) { o.sleep = fn }
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retry runs op until it succeeds or the policy is exhausted, sleeping
// Delay(k) before retry k. The first attempt runs immediately. The last
// error is returned when every attempt fails; a cancelled ctx stops early.
func Retry[T any](ctx context.Context, p Policy, op func(ctx context.Context, attempt int) (T, error), opts ...Option) (T, error) {
	o := options{
		name:   "operation",
		logger: log.Nop(),
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var zero T
	var lastErr error
	attempts := p.Attempts()
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			d := p.Delay(attempt)
			o.logger.Warnf("%s failed (attempt %d/%d): %v; retrying in %s", o.name, attempt, attempts, lastErr, d)
			if err := o.sleep(ctx, d); err != nil {
				return zero, fmt.Errorf("%s: %w (last error: %v)", o.name, err, lastErr)
			}
		}

		v, err := op(ctx, attempt)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return zero, lastErr
		}
	}

	o.logger.Errorf("%s failed after %d attempts: %v", o.name, attempts, lastErr)
	return zero, lastErr
}

// WithTimeout runs op under a deadline of d. A zero d means no deadline.
func WithTimeout[T any](ctx context.Context, d time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return op(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return op(ctx)
}
