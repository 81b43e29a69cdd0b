package timeutil

import (
	"context"
	"fmt"
	"time"
)

// DurationPtr is a helper function to create a pointer to a time.Duration
func DurationPtr(d time.Duration) *time.Duration {
	return &d
}

// NextFibonacciDelay advances the additive backoff sequence by one failure.
// Given the current delay and step it returns min(cap, delay+step) as the new
// delay and the old delay as the new step, so starting from (0, unit) the
// observed delays are 0, unit, unit, 2*unit, 3*unit, 5*unit, ...
// A non-positive cap disables capping.
func NextFibonacciDelay(delay, step, cap time.Duration) (time.Duration, time.Duration) {
	next := delay + step
	// overflow guard: durations are int64 nanoseconds
	if next < delay {
		next = delay
	}
	if cap > 0 && next > cap {
		next = cap
	}
	return next, delay
}

// Sleep blocks for d or until ctx is done, whichever comes first.
// It returns ctx.Err() when the wait was cut short.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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

// FormatCaptureTime renders t in UTC with second precision.
func FormatCaptureTime(t time.Time) string {
	return t.UTC().Format(CaptureTimeLayout)
}

// ParseCaptureTime is the inverse of FormatCaptureTime.
func ParseCaptureTime(s string) (time.Time, error) {
	t, err := time.Parse(CaptureTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid capture time %q: %w", s, err)
	}
	return t.UTC(), nil
}
