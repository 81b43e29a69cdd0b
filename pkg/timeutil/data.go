package timeutil

import "time"

// BackoffParam configures the additive (Fibonacci-like) backoff sequence.
// example:
//
//	unit := 1 * time.Second // first non-zero delay
//	cap := 1 * time.Hour    // delays never exceed this
type BackoffParam struct {
	unit        time.Duration
	maxDuration time.Duration
}

func NewBackoffParam(
	unit time.Duration,
	maxDuration time.Duration,
) BackoffParam {
	return BackoffParam{
		unit:        unit,
		maxDuration: maxDuration,
	}
}

func (b *BackoffParam) Unit() time.Duration {
	return b.unit
}

func (b *BackoffParam) MaxDuration() time.Duration {
	return b.maxDuration
}

// CaptureTimeLayout is the second-precision UTC layout used for cache record
// timestamps (yyyy-MM-ddTHH:mm:ssZ).
const CaptureTimeLayout = "2006-01-02T15:04:05Z"
