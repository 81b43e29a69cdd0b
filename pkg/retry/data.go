package retry

import (
	"time"

	"github.com/rohmanhakim/cached-fetcher/pkg/failure"
)

// RetryParam holds the parameters for retry logic.
// These parameters are passed from outside (e.g., config) and should not
// be known by the retry handler internally.
type RetryParam struct {
	// Fixed pause between two attempts of the same call
	Delay       time.Duration
	MaxAttempts int
	// Optional hook invoked after a retryable failure, before sleeping
	OnRetry func(attempt int, err failure.ClassifiedError)
}

// NewRetryParam creates a new RetryParam with the given settings.
func NewRetryParam(
	delay time.Duration,
	maxAttempts int,
) RetryParam {
	return RetryParam{
		Delay:       delay,
		MaxAttempts: maxAttempts,
	}
}

// WithOnRetry returns a copy of the param with the retry hook set.
func (r RetryParam) WithOnRetry(hook func(attempt int, err failure.ClassifiedError)) RetryParam {
	r.OnRetry = hook
	return r
}
