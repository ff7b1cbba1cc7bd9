package monitor

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retry runs fn up to attempts times with a fixed delay and no jitter between
// attempts. onError sees every failed attempt, numbered from 1. The last error
// is returned once attempts are exhausted; cancelling ctx stops retrying.
func Retry(ctx context.Context, attempts int, delay time.Duration, onError func(attempt int, err error), fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	if delay < 0 {
		delay = 0
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(attempts-1)),
		ctx,
	)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if onError != nil {
			onError(attempt, err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}
