package fetcher

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"scalable-rag-engine/internal/domain"
)

// RetryPolicy is a fixed backoff schedule plus a predicate deciding which
// errors are worth another attempt. Attempts = len(Backoff) + 1.
type RetryPolicy struct {
	Backoff   []time.Duration
	Retryable func(error) bool
	// Timer drives the waits; nil uses a real timer.
	Timer backoff.Timer
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Backoff:   []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
		Retryable: IsRetryable,
	}
}

func (p RetryPolicy) MaxAttempts() int { return len(p.Backoff) + 1 }

// Do calls op until it succeeds, returns a non-retryable error, or the
// schedule runs out. The last error is returned unchanged. attempt starts at 0.
func (p RetryPolicy) Do(ctx context.Context, op func(attempt int) error, notify func(err error, next time.Duration)) error {
	attempt := 0
	operation := func() error {
		err := op(attempt)
		attempt++
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	b := backoff.WithContext(&scheduleBackOff{delays: p.Backoff}, ctx)
	return backoff.RetryNotifyWithTimer(operation, b, notify, p.Timer)
}

// IsRetryable accepts transient fetch errors only.
func IsRetryable(err error) bool {
	var fe *domain.FetchError
	return errors.As(err, &fe) && fe.Transient()
}

// scheduleBackOff walks a fixed list of delays, then stops.
type scheduleBackOff struct {
	delays []time.Duration
	next   int
}

func (s *scheduleBackOff) NextBackOff() time.Duration {
	if s.next >= len(s.delays) {
		return backoff.Stop
	}
	d := s.delays[s.next]
	s.next++
	return d
}

func (s *scheduleBackOff) Reset() { s.next = 0 }
