package fetcher

import (
	"errors"
	"fmt"

	"github.com/rohmanhakim/cached-fetcher/pkg/failure"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrFetchFailed    = errors.New("fetch failed")
)

type RequestErrorCause string

const (
	ErrCauseNullID       RequestErrorCause = "null id"
	ErrCauseBuildRequest RequestErrorCause = "cannot build request"
)

// RequestError rejects a request before any cache or network access.
type RequestError struct {
	Message   string
	Retryable bool
	Cause     RequestErrorCause
	ID        string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request error: %s: %s", e.Cause, e.Message)
}

func (e *RequestError) Severity() failure.Severity {
	return failure.SeverityFatal
}

func (e *RequestError) Is(target error) bool {
	return target == ErrInvalidRequest
}

type TransportErrorCause string

const (
	ErrCauseNetworkFailure        TransportErrorCause = "network issues"
	ErrCauseReadResponseBodyError TransportErrorCause = "failed to read response body"
	ErrCauseInterrupted           TransportErrorCause = "interrupted"
)

// TransportError is a failed exchange: no response, or a response whose body
// could not be read. Interruptions by the caller's context are not retryable.
type TransportError struct {
	Message   string
	Retryable bool
	Cause     TransportErrorCause
	URL       string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %s: %s", e.Cause, e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// IsRetryable returns whether this error is retryable
func (e *TransportError) IsRetryable() bool {
	return e.Retryable
}

// UpstreamStatusError is a completed exchange with a status other than 200.
// It is never retried within the same call.
type UpstreamStatusError struct {
	Message    string
	Retryable  bool
	StatusCode int
	// Status line as received, e.g. "503 Service Unavailable"
	Status string
	URL    string
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream status error: %s: %s", e.Status, e.Message)
}

func (e *UpstreamStatusError) Severity() failure.Severity {
	return failure.SeverityFatal
}

func (e *UpstreamStatusError) IsRetryable() bool {
	return false
}

// FetchError is the terminal failure of Execute when no cached copy could
// stand in. Err is the last underlying cause.
type FetchError struct {
	Message   string
	Retryable bool
	ID        string
	URL       string
	Attempts  int
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch error: id=%q url=%s after %d attempt(s): %s", e.ID, e.URL, e.Attempts, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed
}

func (e *FetchError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}
