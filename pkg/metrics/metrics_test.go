package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amoylab/agridash/internal/common/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMiddlewareAndCollectors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(config.MetricsConfig{Namespace: "agri"})

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/data/regions", func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/data/regions", nil))
	require.Equal(t, http.StatusOK, w.Code)

	m.AICall("chat", "fallback", 20*time.Millisecond)
	m.AuditWriteFailed()
	m.WSConnected()
	m.RateLimited("auth")

	out := scrape(t, m)
	assert.Contains(t, out, `agri_http_requests_total{method="GET",route="/api/data/regions",status="200"} 1`)
	assert.Contains(t, out, `agri_ai_calls_total{kind="chat",source="fallback"} 1`)
	assert.Contains(t, out, `agri_ai_audit_write_failures_total 1`)
	assert.Contains(t, out, `agri_realtime_connections 1`)
	assert.Contains(t, out, `agri_rate_limited_requests_total{scope="auth"} 1`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AICall("chat", "ai", time.Second)
		m.AuditWriteFailed()
		m.WSConnected()
		m.WSDisconnected()
		m.RateLimited("api")
	})

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
