package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds how often an operation is re-run after a transient
// failure. Attempts counts the first run.
type RetryPolicy struct {
	Attempts        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:        3,
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     100 * time.Millisecond,
	}
}

func NormalizeRetryPolicy(p RetryPolicy) RetryPolicy {
	defaults := DefaultRetryPolicy()
	if p.Attempts < 1 {
		p.Attempts = defaults.Attempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = defaults.InitialInterval
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = p.InitialInterval
	}
	return p
}

// Do runs op until it succeeds, returns an error retryable rejects, or the
// attempt budget is spent. The last error is returned unchanged.
func (p RetryPolicy) Do(ctx context.Context, retryable func(error) bool, op func(attempt int) error) error {
	p = NormalizeRetryPolicy(p)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := op(attempt)
		if err != nil && (retryable == nil || !retryable(err)) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(p.Attempts)),
	)

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	return err
}
