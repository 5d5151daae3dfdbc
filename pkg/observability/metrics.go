package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	PermissionChecksTotal    *prometheus.CounterVec
	PermissionCheckDuration  *prometheus.HistogramVec
	VisibilityQueryDuration  *prometheus.HistogramVec
	EffectiveMembersDuration *prometheus.HistogramVec
	TreeBuildDuration        prometheus.Histogram

	// AutoJoin metrics
	DomainVerificationsTotal *prometheus.CounterVec
	AutoJoinResolutionsTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grove_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "grove_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		PermissionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grove_permission_checks_total",
				Help: "Total number of permission checks by outcome",
			},
			[]string{"resource_type", "outcome"},
		),
		PermissionCheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "grove_permission_check_duration_seconds",
				Help:    "Permission check duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"resource_type"},
		),
		VisibilityQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "grove_visibility_query_duration_seconds",
				Help:    "Visibility set resolution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"resource_type"},
		),
		EffectiveMembersDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "grove_effective_members_duration_seconds",
				Help:    "Effective member listing duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"resource_type"},
		),
		TreeBuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "grove_tree_build_duration_seconds",
				Help:    "Hierarchy tree build duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		DomainVerificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grove_domain_verifications_total",
				Help: "Total number of DNS domain verification attempts by outcome",
			},
			[]string{"outcome"},
		),
		AutoJoinResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grove_autojoin_resolutions_total",
				Help: "Total number of auto-join domain resolutions by outcome",
			},
			[]string{"outcome"},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "grove_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "grove_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PermissionChecksTotal,
		m.PermissionCheckDuration,
		m.VisibilityQueryDuration,
		m.EffectiveMembersDuration,
		m.TreeBuildDuration,
		m.DomainVerificationsTotal,
		m.AutoJoinResolutionsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// Handler returns an HTTP handler exposing the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObservePermissionCheck records one permission check
func (m *Metrics) ObservePermissionCheck(resourceType string, allowed bool, duration time.Duration) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	m.PermissionChecksTotal.WithLabelValues(resourceType, outcome).Inc()
	m.PermissionCheckDuration.WithLabelValues(resourceType).Observe(duration.Seconds())
}

// InstrumentHandler wraps an HTTP handler with request metrics
func (m *Metrics) InstrumentHandler(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration.Seconds())
	})
}

// statusRecorder captures the response status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
