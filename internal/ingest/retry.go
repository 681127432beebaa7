package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"backscroll/ingestor/internal/slack"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 2 * time.Second
)

// ErrRetryExhausted matches any RetryExhaustedError via errors.Is.
var ErrRetryExhausted = errors.New("retry attempts exhausted")

// RetryExhaustedError wraps the last error after every attempt failed.
type RetryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Last
}

func (e *RetryExhaustedError) Is(target error) bool {
	return target == ErrRetryExhausted
}

// Retryer reruns an operation on rate-limit and transport failures, with a
// bounded number of attempts. Rate limits wait the server-advised delay when
// one is given; everything else backs off exponentially from BaseDelay.
// Any other kind of error propagates immediately.
type Retryer struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRetryer(maxAttempts int, baseDelay time.Duration) *Retryer {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	return &Retryer{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		sleep:       sleepContext,
	}
}

// Do runs op until it succeeds, fails with a non-retryable error, or exhausts
// MaxAttempts. The sleep between attempts blocks the calling goroutine and
// aborts early when ctx is cancelled.
func (r *Retryer) Do(ctx context.Context, op func() error) error {
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}

		delay, retryable := r.classify(err, attempt)
		if !retryable {
			return err
		}
		if attempt >= r.MaxAttempts {
			return &RetryExhaustedError{Attempts: attempt, Last: err}
		}

		log.Printf("ingest: retryable error (attempt %d/%d), waiting %s: %v", attempt, r.MaxAttempts, delay, err)
		if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}
}

func (r *Retryer) classify(err error, attempt int) (time.Duration, bool) {
	var rateLimited *slack.RateLimitedError
	if errors.As(err, &rateLimited) {
		if rateLimited.RetryAfter > 0 {
			return rateLimited.RetryAfter, true
		}
		return r.backoff(attempt), true
	}
	if slack.IsTransport(err) {
		return r.backoff(attempt), true
	}
	return 0, false
}

// backoff returns base^attempt seconds: 2s, 4s, 8s for the default base 2,
// 3s, 9s, 27s for base 3. A sub-second BaseDelay falls back to doubling.
func (r *Retryer) backoff(attempt int) time.Duration {
	factor := time.Duration(r.BaseDelay / time.Second)
	if factor < 1 {
		factor = 2
	}
	delay := r.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= factor
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
