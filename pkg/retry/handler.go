package retry

import (
	"context"
	"fmt"

	"github.com/rohmanhakim/cached-fetcher/pkg/failure"
	"github.com/rohmanhakim/cached-fetcher/pkg/timeutil"
)

// Retry executes the provided function with retry logic.
// It will retry the function up to MaxAttempts times, pausing for the fixed
// Delay between attempts. Only retryable errors will trigger a retry; any
// other error is returned as-is. The attempt number (1-based) is passed to fn.
//
// The pause honours ctx: if ctx is done while waiting, Retry gives up at once
// with an ErrInterrupted RetryError rather than continuing with a shortened wait.
//
// Type parameter T represents the return type of the function being retried.
func Retry[T any](
	ctx context.Context,
	retryParam RetryParam,
	fn func(attempt int) (T, failure.ClassifiedError),
) (T, failure.ClassifiedError) {
	var lastErr failure.ClassifiedError
	var zero T

	if retryParam.MaxAttempts < 1 {
		return zero, &RetryError{
			Message:   "max attempt cannot be 0",
			Cause:     ErrZeroAttempt,
			Retryable: false,
		}
	}

	for attempt := 1; attempt <= retryParam.MaxAttempts; attempt++ {
		result, err := fn(attempt)
		if err == nil {
			return result, nil
		}

		lastErr = err

		if !isErrorRetryable(err) {
			return zero, err
		}

		if attempt == retryParam.MaxAttempts {
			break
		}

		if retryParam.OnRetry != nil {
			retryParam.OnRetry(attempt, err)
		}

		if sleepErr := timeutil.Sleep(ctx, retryParam.Delay); sleepErr != nil {
			return zero, &RetryError{
				Message:   fmt.Sprintf("interrupted after attempt %d: %v", attempt, sleepErr),
				Cause:     ErrInterrupted,
				Retryable: false,
				Err:       sleepErr,
			}
		}
	}

	return zero, &RetryError{
		Message:   fmt.Sprintf("exhausted %d attempts. Last error: %v", retryParam.MaxAttempts, lastErr),
		Cause:     ErrExhaustedAttempts,
		Retryable: true,
		Err:       lastErr,
	}
}

// isErrorRetryable checks if an error should be retried.
// Errors exposing IsRetryable decide for themselves; otherwise the
// classified severity is used.
func isErrorRetryable(err failure.ClassifiedError) bool {
	type hasRetryable interface {
		IsRetryable() bool
	}

	if r, ok := err.(hasRetryable); ok {
		return r.IsRetryable()
	}

	return err.Severity() == failure.SeverityRecoverable
}
