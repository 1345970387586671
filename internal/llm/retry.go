package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/signalnine/pantheon/internal/config"
)

// RetryPolicy bounds retries on transient provider failures. It is a
// value object so deployments can swap schedules without touching the
// client.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func PolicyFromConfig(r config.Retry) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    r.MaxAttempts,
		InitialBackoff: time.Duration(r.InitialBackoffMS) * time.Millisecond,
		MaxBackoff:     time.Duration(r.MaxBackoffMS) * time.Millisecond,
	}
}

// transientError marks a failure worth retrying (rate limit, 5xx,
// network, empty-content anomaly). Everything else is permanent:
// malformed output is never retried.
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// retryCall runs op under the policy, backing off exponentially on
// transient errors only.
func retryCall[T any](ctx context.Context, policy RetryPolicy, op func() (T, error)) (T, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = policy.InitialBackoff
	bo.MaxInterval = policy.MaxBackoff

	wrapped := func() (T, error) {
		v, err := op()
		if err == nil {
			return v, nil
		}
		if IsTransient(err) {
			return v, err
		}
		return v, backoff.Permanent(err)
	}

	return backoff.Retry(ctx, wrapped,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(policy.MaxAttempts)))
}
