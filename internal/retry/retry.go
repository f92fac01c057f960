// Package retry runs fallible steps under one bounded, fixed-delay policy.
//
// Every network call, DOM-timing-sensitive step and screenshot capture goes
// through Do, so all transient failures share the same recovery behavior.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const (
	DefaultAttempts = 3
	DefaultDelay    = time.Second
)

// Policy bounds a retried operation. Attempts counts total executions, not
// re-executions: Attempts=3 runs op at most three times with two delays in
// between. The delay is constant.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultPolicy is three attempts one second apart.
func DefaultPolicy() Policy {
	return Policy{Attempts: DefaultAttempts, Delay: DefaultDelay}
}

// WithDelay returns a copy of p using delay between attempts.
func (p Policy) WithDelay(delay time.Duration) Policy {
	p.Delay = delay
	return p
}

func (p Policy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

// Do executes op until it succeeds or the attempt budget is spent, sleeping
// p.Delay between attempts. The last error is returned once attempts run out.
// Cancelling ctx aborts the pending delay and returns the context error.
func Do[T any](ctx context.Context, p Policy, logger zerolog.Logger, op func(ctx context.Context) (T, error)) (T, error) {
	total := p.attempts()
	var b backoff.BackOff = backoff.NewConstantBackOff(p.Delay)
	b = backoff.WithMaxRetries(b, uint64(total-1))
	b = backoff.WithContext(b, ctx)

	attempt := 0
	return backoff.RetryNotifyWithData(func() (T, error) {
		attempt++
		return op(ctx)
	}, b, func(err error, delay time.Duration) {
		logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("of", total).
			Dur("delay", delay).
			Msg("attempt failed, retrying")
	})
}

// Run is Do for operations without a result value.
func Run(ctx context.Context, p Policy, logger zerolog.Logger, op func(ctx context.Context) error) error {
	_, err := Do(ctx, p, logger, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
