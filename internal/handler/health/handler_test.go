package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func newEngine(reg *prometheus.Registry, checks map[string]Check) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(reg, checks).RegisterRoutes(r.Group(""))
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestReadiness(t *testing.T) {
	ok := func(ctx context.Context) error { return nil }
	failing := func(ctx context.Context) error { return errors.New("connection refused") }

	r := newEngine(prometheus.NewRegistry(), map[string]Check{"database": ok})
	assert.Equal(t, http.StatusOK, get(r, "/health/ready").Code)

	r = newEngine(prometheus.NewRegistry(), map[string]Check{"database": ok, "redis": failing})
	w := get(r, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "redis")
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "booking_probe_total", Help: "probe"})
	reg.MustRegister(counter)
	counter.Inc()

	r := newEngine(reg, nil)
	assert.Equal(t, http.StatusOK, get(r, "/health/live").Code)

	w := get(r, "/health/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "booking_probe_total 1")
}
