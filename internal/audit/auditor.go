package audit

import (
	"net/http"
	"time"
)

/*
Auditor observes every outbound exchange, successful or not.

Rules:
  - Audit calls are write-only. Nothing an auditor records may influence
    retries, caching or the result returned to the caller.
  - startedAt is taken before the exchange begins.
  - The response body belongs to the caller; auditors must not read it.
*/
type Auditor interface {
	AuditResponse(startedAt time.Time, req *http.Request, resp *http.Response, actx Context)
	AuditError(startedAt time.Time, req *http.Request, err error, actx Context)
}

// NoopAuditor implements Auditor but does nothing.
type NoopAuditor struct{}

func (NoopAuditor) AuditResponse(time.Time, *http.Request, *http.Response, Context) {}

func (NoopAuditor) AuditError(time.Time, *http.Request, error, Context) {}

// Multi fans every event out to each auditor in order.
func Multi(auditors ...Auditor) Auditor {
	filtered := make(multiAuditor, 0, len(auditors))
	for _, a := range auditors {
		if a != nil {
			filtered = append(filtered, a)
		}
	}
	switch len(filtered) {
	case 0:
		return NoopAuditor{}
	case 1:
		return filtered[0]
	}
	return filtered
}

type multiAuditor []Auditor

func (m multiAuditor) AuditResponse(startedAt time.Time, req *http.Request, resp *http.Response, actx Context) {
	for _, a := range m {
		a.AuditResponse(startedAt, req, resp, actx)
	}
}

func (m multiAuditor) AuditError(startedAt time.Time, req *http.Request, err error, actx Context) {
	for _, a := range m {
		a.AuditError(startedAt, req, err, actx)
	}
}

func statusReason(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return resp.Status
}
