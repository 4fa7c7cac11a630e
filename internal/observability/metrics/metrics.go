package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "surelog_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "surelog_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "surelog_login_attempts_total",
		Help: "Count of login attempts by result",
	}, []string{"result"})

	authzDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "surelog_authz_decisions_total",
		Help: "Count of authorization decisions",
	}, []string{"decision"})

	userCountRepairs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "surelog_user_count_repairs_total",
		Help: "Count of tenant user_count rows repaired by the reconciliation worker",
	})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "surelog_active_sessions",
		Help: "Number of live browser sessions (sampled)",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveLogin records a login attempt with result "success" or "rejected"
func ObserveLogin(result string) {
	loginAttempts.WithLabelValues(result).Inc()
}

// ObserveAuthzDecision records an authorization decision, "allow" or "deny"
func ObserveAuthzDecision(decision string) {
	authzDecisions.WithLabelValues(decision).Inc()
}

// ObserveUserCountRepairs adds repaired rows from a reconciliation pass
func ObserveUserCountRepairs(count int64) {
	if count > 0 {
		userCountRepairs.Add(float64(count))
	}
}

// SetActiveSessions sets the sampled session gauge
func SetActiveSessions(count int) {
	if count < 0 {
		count = 0
	}
	activeSessions.Set(float64(count))
}
