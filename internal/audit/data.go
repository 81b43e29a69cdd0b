package audit

// Context travels with every audited exchange so sinks can tie attempts back
// to the logical request that caused them.
type Context struct {
	// RequestID is the caller's logical id, not a transport id.
	RequestID string
	// Attempt is 1-based.
	Attempt int
}

const (
	FieldKey       = "key"
	FieldAttempt   = "attempt"
	FieldTimestamp = "timestamp"
	FieldHost      = "host"
	FieldURL       = "url"
	FieldMethod    = "method"
	FieldStatus    = "status"
	FieldReason    = "reason"
	FieldElapsed   = "elapsed"
)

const outcomeError = "error"
