package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/amoylab/agridash/internal/common/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the apiserver collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry    *prometheus.Registry
	httpReqCnt  *prometheus.CounterVec
	httpDur     *prometheus.HistogramVec
	httpInfl    *prometheus.GaugeVec
	aiCallCnt   *prometheus.CounterVec
	aiCallDur   *prometheus.HistogramVec
	auditFail   prometheus.Counter
	wsConns     prometheus.Gauge
	rateLimited *prometheus.CounterVec
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry:   r,
		httpReqCnt: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"}),
		httpDur:    prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: cfg.Buckets}, []string{"method", "route", "status"}),
		httpInfl:   prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_inflight"}, []string{"route"}),
		// source is "ai" when the hosted model answered and "fallback" otherwise
		aiCallCnt:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "ai_calls_total"}, []string{"kind", "source"}),
		aiCallDur:   prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "ai_call_duration_seconds", Buckets: cfg.Buckets}, []string{"kind", "source"}),
		auditFail:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "ai_audit_write_failures_total"}),
		wsConns:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "realtime_connections"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "rate_limited_requests_total"}, []string{"scope"}),
	}
	r.MustRegister(m.httpReqCnt, m.httpDur, m.httpInfl)
	r.MustRegister(m.aiCallCnt, m.aiCallDur, m.auditFail)
	r.MustRegister(m.wsConns, m.rateLimited)
	return m
}

// AICall records one proxied model call
func (m *Metrics) AICall(kind, source string, d time.Duration) {
	if m == nil {
		return
	}
	m.aiCallCnt.WithLabelValues(kind, source).Inc()
	m.aiCallDur.WithLabelValues(kind, source).Observe(d.Seconds())
}

// AuditWriteFailed counts swallowed audit-log write errors
func (m *Metrics) AuditWriteFailed() {
	if m == nil {
		return
	}
	m.auditFail.Inc()
}

func (m *Metrics) WSConnected() {
	if m == nil {
		return
	}
	m.wsConns.Inc()
}

func (m *Metrics) WSDisconnected() {
	if m == nil {
		return
	}
	m.wsConns.Dec()
}

func (m *Metrics) RateLimited(scope string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(scope).Inc()
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpInfl.WithLabelValues(route).Inc()
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpInfl.WithLabelValues(route).Dec()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
