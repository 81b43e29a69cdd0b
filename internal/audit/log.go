package audit

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// LogAuditor writes one structured event per exchange.
type LogAuditor struct {
	logger zerolog.Logger
	now    func() time.Time
}

func NewLogAuditor(logger zerolog.Logger) *LogAuditor {
	return &LogAuditor{
		logger: logger.With().Str("component", "audit").Logger(),
		now:    time.Now,
	}
}

func (a *LogAuditor) AuditResponse(startedAt time.Time, req *http.Request, resp *http.Response, actx Context) {
	a.event(a.logger.Info(), startedAt, req, actx).
		Int(FieldStatus, resp.StatusCode).
		Str(FieldReason, statusReason(resp)).
		Msg("exchange completed")
}

func (a *LogAuditor) AuditError(startedAt time.Time, req *http.Request, err error, actx Context) {
	a.event(a.logger.Warn(), startedAt, req, actx).
		Err(err).
		Msg("exchange failed")
}

func (a *LogAuditor) event(e *zerolog.Event, startedAt time.Time, req *http.Request, actx Context) *zerolog.Event {
	e = e.Str(FieldKey, actx.RequestID).
		Int(FieldAttempt, actx.Attempt).
		Time(FieldTimestamp, startedAt).
		Dur(FieldElapsed, a.now().Sub(startedAt))
	if req != nil {
		e = e.Str(FieldMethod, req.Method)
		if req.URL != nil {
			e = e.Str(FieldHost, req.URL.Host).Str(FieldURL, req.URL.String())
		}
	}
	return e
}
