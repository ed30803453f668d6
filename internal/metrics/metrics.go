package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"cmms/internal/apperr"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestCounter counts all HTTP requests with labels
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	// RequestDurationHistogram records request duration in seconds
	RequestDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)

	// StatusCodeCategoryCounter counts responses by 2xx/4xx/5xx
	StatusCodeCategoryCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_status_category_total",
			Help: "Total number of responses by status category (2xx, 4xx, 5xx)",
		},
		[]string{"service", "category"},
	)

	// PermissionDecisions counts guard outcomes by decision and reason
	PermissionDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmms_permission_decisions_total",
			Help: "Permission guard decisions",
		},
		[]string{"decision", "reason"},
	)

	// BreakGlassGrants counts bootstrap bypasses per permission
	BreakGlassGrants = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmms_rbac_break_glass_total",
			Help: "Requests allowed through the break-glass bootstrap path",
		},
		[]string{"permission"},
	)

	// TenantCacheLookups counts implicit tenant cache hits and misses
	TenantCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmms_tenant_cache_lookups_total",
			Help: "Implicit tenant cache lookups",
		},
		[]string{"result"},
	)

	// TenantFallbacks counts requests served with the fallback identity
	TenantFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cmms_tenant_fallback_total",
			Help: "Implicit tenant resolutions that degraded to the fallback identity",
		},
	)

	// SlaBreaches counts SLA breach alerts by entity
	SlaBreaches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmms_sla_breach_alerts_total",
			Help: "SLA breach alerts raised by the sweep",
		},
		[]string{"entity"},
	)

	registerOnce sync.Once
)

// Register adds every collector to the default registry. Safe to call
// more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDurationHistogram,
			StatusCodeCategoryCounter,
			PermissionDecisions,
			BreakGlassGrants,
			TenantCacheLookups,
			TenantFallbacks,
			SlaBreaches,
		)
	})
}

// HTTPMetrics records request metrics for one service
type HTTPMetrics struct {
	ServiceName string
}

func NewHTTPMetrics(serviceName string) *HTTPMetrics {
	Register()
	return &HTTPMetrics{ServiceName: serviceName}
}

func statusCategory(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 200 && status < 300:
		return "2xx"
	default:
		return ""
	}
}

// Middleware creates an Echo middleware function that records HTTP request metrics
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				var ae *apperr.Error
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if errors.As(err, &ae) {
					status = ae.Kind.Status()
				} else {
					status = http.StatusInternalServerError
				}
			}
			method := c.Request().Method
			path := c.Path()
			statusStr := strconv.Itoa(status)

			RequestCounter.WithLabelValues(m.ServiceName, method, path, statusStr).Inc()
			if category := statusCategory(status); category != "" {
				StatusCodeCategoryCounter.WithLabelValues(m.ServiceName, category).Inc()
			}
			RequestDurationHistogram.WithLabelValues(m.ServiceName, method, path, statusStr).
				Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// Handler returns an HTTP handler for exposing Prometheus metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
