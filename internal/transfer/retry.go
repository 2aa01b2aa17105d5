package transfer

import (
	"context"
	"time"
)

// SleepFunc suspends until the duration elapses or ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// CtxSleep is the production SleepFunc.
func CtxSleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Policy bounds a retry loop. Attempt 1 is the first try, not a retry;
// after a failed attempt n the loop waits Backoff(n) before attempt n+1.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Backoff     func(base time.Duration, attempt int) time.Duration
}

// ExponentialBackoff doubles the wait after every failure: base * 2^(attempt-1).
func ExponentialBackoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}

// DefaultPolicy mirrors the transfer defaults: three attempts, waits of
// base and 2*base between them.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   10 * time.Second,
		Backoff:     ExponentialBackoff,
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Backoff == nil {
		p.Backoff = ExponentialBackoff
	}
	return p
}

// Retry runs fn up to p.MaxAttempts times, sleeping p.Backoff between
// failures. Returns the attempt count consumed and the last error (nil
// on success). The wait after the final failed attempt is skipped;
// exhaustion surfaces immediately.
func Retry(ctx context.Context, p Policy, sleep SleepFunc, fn func() error) (int, error) {
	p = p.withDefaults()
	if sleep == nil {
		sleep = CtxSleep
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return attempt, nil
		}
		if attempt == p.MaxAttempts {
			return attempt, lastErr
		}
		if err := sleep(ctx, p.Backoff(p.BaseDelay, attempt)); err != nil {
			return attempt, err
		}
	}
	return p.MaxAttempts, lastErr
}
