package limiter

import "time"

// DelaySource supplies the failure-driven delay a Throttle adds on top of its
// fixed step. FibonacciBackoff is the production implementation.
type DelaySource interface {
	CurrentDelay() time.Duration
}

// backoff state; step is the increment applied on the next failure
type backoffState struct {
	delay    time.Duration
	step     time.Duration
	failures int
}

