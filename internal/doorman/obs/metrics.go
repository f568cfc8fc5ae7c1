// Package obs holds the service's prometheus metrics and the HTTP
// instrumentation middleware.
package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LoginAttempts counts login outcomes: authenticated, invalid_credentials,
	// locked, disabled, error.
	LoginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doorman_login_attempts_total",
			Help: "Login attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// AuditWriteFailures counts audit records that could not be persisted.
	// The security decision they describe still stood; operators watch this.
	AuditWriteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "doorman_audit_write_failures_total",
		Help: "Audit records that failed to persist.",
	})

	// AccountLockouts counts lock transitions.
	AccountLockouts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "doorman_account_lockouts_total",
		Help: "Accounts locked after repeated failed logins.",
	})

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Init registers the metrics with the default registry. Call once at startup.
func Init() {
	prometheus.MustRegister(
		LoginAttempts,
		AuditWriteFailures,
		AccountLockouts,
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
	)
}

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument wraps next with request count, latency, and in-flight tracking.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpInFlight.Dec()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
