package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
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

	checkDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "evaluate_check_duration_seconds",
		Help:    "Permission check latencies in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	checksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evaluate_checks_total",
			Help: "Total permission checks by outcome.",
		},
		[]string{"allowed"},
	)

	trustCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trust_cache_lookups_total",
			Help: "Trust cache lookups by entity kind and freshness.",
		},
		[]string{"kind", "state"},
	)

	tokenVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_verifications_total",
			Help: "Token verification attempts by outcome.",
		},
		[]string{"outcome"},
	)

	ready = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "1 when the readiness probe passes.",
	})
)

// Init registers all metrics with the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		checkDuration, checksTotal, trustCacheLookups, tokenVerifications,
		ready,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCheck records one permission check.
func ObserveCheck(d time.Duration, allowed bool) {
	checkDuration.Observe(d.Seconds())
	checksTotal.WithLabelValues(strconv.FormatBool(allowed)).Inc()
}

// CacheLookup records one trust cache lookup outcome.
func CacheLookup(kind, state string) {
	trustCacheLookups.WithLabelValues(kind, state).Inc()
}

// TokenVerification records one verification attempt outcome
// (ok, unauthorized, expired, forbidden, not_found, unavailable).
func TokenVerification(outcome string) {
	tokenVerifications.WithLabelValues(outcome).Inc()
}

// SetReady flips the readiness gauge.
func SetReady(ok bool) {
	if ok {
		ready.Set(1)
		return
	}
	ready.Set(0)
}

// Instrument wraps an HTTP handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
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
