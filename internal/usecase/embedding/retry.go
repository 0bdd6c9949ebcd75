package embedding

import (
	"context"
	"fmt"
	"time"
)

// Policy is an explicit retry policy: bounded attempts, a backoff schedule,
// and an injectable sleep so tests never wait on real time.
type Policy struct {
	// MaxAttempts bounds the total number of tries (first call included).
	MaxAttempts int
	// Backoff returns the delay after the given 1-based failed attempt.
	Backoff func(attempt int) time.Duration
	// Sleep waits for d or until ctx is done. Nil means no waiting.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy retries up to maxAttempts with 2^attempt seconds between tries.
func DefaultPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		Backoff:     ExpBackoff,
		Sleep:       SleepContext,
	}
}

// ExpBackoff returns 2^attempt seconds.
func ExpBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// SleepContext waits for d or until ctx is done, whichever comes first.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("sleep interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// Do runs op until it succeeds or MaxAttempts is exhausted.
// Context cancellation stops retrying immediately.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}

	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if attempt == p.MaxAttempts {
			break
		}
		if ctx.Err() != nil {
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		}
		if p.Sleep != nil && p.Backoff != nil {
			if sleepErr := p.Sleep(ctx, p.Backoff(attempt)); sleepErr != nil {
				return sleepErr
			}
		}
	}
	return fmt.Errorf("after %d attempts: %w", p.MaxAttempts, err)
}
