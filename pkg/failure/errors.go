package failure

import "errors"

// Severity tells a caller whether a failure may clear up on a later attempt
// or whether the operation that produced it must be abandoned.
type Severity int

const (
	SeverityFatal Severity = iota
	SeverityRecoverable
)

type ClassifiedError interface {
	error
	Severity() Severity
}

// IsRecoverable reports whether err is a ClassifiedError marked recoverable.
// Unclassified errors are treated as fatal.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	var c ClassifiedError
	if !errors.As(err, &c) {
		return false
	}
	return c.Severity() == SeverityRecoverable
}
