package retry

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"
)

type RetryConfig struct {
	jitterBaseMs   int
	jitterMaxMs    int
	maxAttempts    int
	isRetryableErr func(err error) bool
}

type NewRetryConfigArgs struct {
	JitterBaseMs int
	JitterMaxMs  int
	// MaxAttempts includes the first call, it is at least one.
	MaxAttempts int
	// IsRetryableErr defaults to retrying every error.
	IsRetryableErr func(err error) bool
}

func NewRetryConfig(args NewRetryConfigArgs) RetryConfig {
	isRetryableErr := args.IsRetryableErr
	if isRetryableErr == nil {
		isRetryableErr = func(_ error) bool { return true }
	}

	return RetryConfig{
		jitterBaseMs:   max(args.JitterBaseMs, 0),
		jitterMaxMs:    max(args.JitterMaxMs, 0),
		maxAttempts:    max(args.MaxAttempts, 1),
		isRetryableErr: isRetryableErr,
	}
}

// backoff is "full jitter": a random duration in [0, min(max, base * 2^attempt)).
func backoff(baseMs, maxMs, attempt int) time.Duration {
	if maxMs <= 0 {
		return 0
	}

	// Shifting past 30 overflows.
	if ceiling := baseMs << min(max(attempt, 0), 30); ceiling > 0 {
		maxMs = min(maxMs, ceiling)
	}

	return time.Duration(rand.IntN(maxMs)) * time.Millisecond
}

func (r RetryConfig) wait(ctx context.Context, attempt int, err error) error {
	sleep := backoff(r.jitterBaseMs, r.jitterMaxMs, attempt)
	slog.Debug("Retrying after error",
		slog.Duration("sleep", sleep),
		slog.Int("attemptsLeft", r.maxAttempts-attempt),
		slog.Any("err", err),
	)

	if sleep <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WithRetries calls [f] until it succeeds, returns a non-retryable error, runs out of attempts or [ctx] is done.
// [f] is handed the error of the previous attempt.
func WithRetries[T any](ctx context.Context, retryCfg RetryConfig, f func(attempt int, err error) (T, error)) (T, error) {
	var result T
	var err error
	for attempt := range retryCfg.maxAttempts {
		if attempt > 0 {
			if waitErr := retryCfg.wait(ctx, attempt, err); waitErr != nil {
				// Surface the last real error rather than the context one.
				return result, err
			}
		}

		result, err = f(attempt, err)
		if err == nil || !retryCfg.isRetryableErr(err) {
			return result, err
		}
	}
	return result, err
}
