package providers

import (
	"context"
	"time"
)

// RetryPolicy bounds the transport's attempt budget. Delay before retry n
// (0-indexed) is BaseDelay * 2^n.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
	}
}

func (p RetryPolicy) Delay(attempt int) time.Duration {
	return p.BaseDelay * (1 << attempt)
}

// RetryState tracks one logical call's progress through the attempt budget.
// It lives for the duration of a single Send and is discarded afterward.
type RetryState struct {
	Attempt int
	LastErr error
}

func (s *RetryState) exhausted(p RetryPolicy) bool {
	return s.Attempt >= p.MaxAttempts
}

// sleepFunc waits for d or until ctx is done. Injected so backoff timing is
// testable without real delays.
type sleepFunc func(ctx context.Context, d time.Duration) error

func contextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
