package fetcher

import "time"

// IsFresh reports whether a copy captured at capturedAt may be served at now.
// A nil maxAge accepts any copy; otherwise the copy must be strictly younger
// than maxAge.
func IsFresh(capturedAt time.Time, maxAge *time.Duration, now time.Time) bool {
	if maxAge == nil {
		return true
	}
	return now.Sub(capturedAt) < *maxAge
}
