package audit

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// MetricsAuditor counts exchanges and their latency on a private registry.
type MetricsAuditor struct {
	registry  *prometheus.Registry
	exchanges *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	now       func() time.Time
}

func NewMetricsAuditor() *MetricsAuditor {
	registry := prometheus.NewRegistry()

	exchanges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fetcher_exchanges_total",
		Help: "Outbound exchanges by host, method and outcome",
	}, []string{"host", "method", "outcome"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fetcher_exchange_duration_seconds",
		Help:    "Time from request start to response headers or failure",
		Buckets: prometheus.DefBuckets,
	}, []string{"host", "method"})

	registry.MustRegister(exchanges, duration)

	return &MetricsAuditor{
		registry:  registry,
		exchanges: exchanges,
		duration:  duration,
		now:       time.Now,
	}
}

func (m *MetricsAuditor) Registry() *prometheus.Registry {
	return m.registry
}

func (m *MetricsAuditor) AuditResponse(startedAt time.Time, req *http.Request, resp *http.Response, _ Context) {
	m.observe(startedAt, req, statusClass(resp.StatusCode))
}

func (m *MetricsAuditor) AuditError(startedAt time.Time, req *http.Request, _ error, _ Context) {
	m.observe(startedAt, req, outcomeError)
}

func (m *MetricsAuditor) observe(startedAt time.Time, req *http.Request, outcome string) {
	host, method := "", ""
	if req != nil {
		method = req.Method
		if req.URL != nil {
			host = req.URL.Host
		}
	}
	m.exchanges.WithLabelValues(host, method, outcome).Inc()
	m.duration.WithLabelValues(host, method).Observe(m.now().Sub(startedAt).Seconds())
}

// WriteText dumps every metric in the Prometheus text exposition format.
func (m *MetricsAuditor) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return strconv.Itoa(status)
	}
	return strconv.Itoa(status/100) + "xx"
}
