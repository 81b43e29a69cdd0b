package cache

import (
	"net/url"
	"time"

	"github.com/rohmanhakim/cached-fetcher/pkg/httpheader"
)

// Record is a stored response: where it came from, its headers, its body and
// the time the store persisted it.
type Record struct {
	ID         string
	SourceURL  url.URL
	Headers    httpheader.List
	Body       []byte
	CapturedAt time.Time
}

// Age returns how old the record is at now.
func (r *Record) Age(now time.Time) time.Duration {
	return now.Sub(r.CapturedAt)
}
