package cache

import (
	"fmt"

	"github.com/rohmanhakim/cached-fetcher/pkg/failure"
)

type CacheIOErrorCause string

const (
	ErrCauseReadFailure        CacheIOErrorCause = "read failed"
	ErrCauseWriteFailure       CacheIOErrorCause = "write failed"
	ErrCauseCorruptRecord      CacheIOErrorCause = "corrupt record"
	ErrCauseBackendUnavailable CacheIOErrorCause = "backend unavailable"
	ErrCauseInvalidKey         CacheIOErrorCause = "invalid key"
)

// CacheIOError is a storage fault, distinct from "not found". It is never
// swallowed: a broken cache must not look like a cold one.
type CacheIOError struct {
	Message   string
	Retryable bool
	Cause     CacheIOErrorCause
	Backend   string
	ID        string
	Err       error
}

func (e *CacheIOError) Error() string {
	return fmt.Sprintf("cache error: %s [%s id=%q]: %s", e.Cause, e.Backend, e.ID, e.Message)
}

func (e *CacheIOError) Unwrap() error {
	return e.Err
}

func (e *CacheIOError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// NewCacheIOError builds a CacheIOError around err.
func NewCacheIOError(backend string, id string, cause CacheIOErrorCause, err error) *CacheIOError {
	msg := string(cause)
	if err != nil {
		msg = err.Error()
	}
	return &CacheIOError{
		Message:   msg,
		Retryable: cause == ErrCauseBackendUnavailable,
		Cause:     cause,
		Backend:   backend,
		ID:        id,
		Err:       err,
	}
}
