// Package telemetry exposes ingestion counters and request timing via
// Prometheus. The /metrics endpoint is wired by the app router.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"chatsink/pkg/logger"
)

var (
	// PayloadsTotal counts raw payloads by intake mode and terminal outcome.
	// Outcomes: applied, dropped, skipped, error.
	PayloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsink_payloads_total",
		Help: "Raw payloads processed, by intake mode and outcome.",
	}, []string{"mode", "outcome"})

	// IntentsTotal counts normalized intents by kind (upsert, status).
	IntentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsink_intents_total",
		Help: "Normalized intents applied, by kind.",
	}, []string{"kind"})

	// FanoutTotal counts outward notifications by event name.
	FanoutTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsink_fanout_events_total",
		Help: "Fanout notifications emitted, by event.",
	}, []string{"event"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chatsink_http_request_duration_seconds",
		Help:    "HTTP request latency by path, method and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method", "status"})
)

// requests slower than this get a log line even without debug logging
const slowThreshold = 200 * time.Millisecond

// Middleware records request latency and logs slow requests.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		srw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(srw, r)
		dur := time.Since(start)
		httpDuration.WithLabelValues(r.URL.Path, r.Method, strconv.Itoa(srw.status)).Observe(dur.Seconds())
		if dur > slowThreshold {
			logger.Warn("slow_request", "path", r.URL.Path, "method", r.Method, "status", srw.status, "duration_ms", dur.Milliseconds())
		}
	})
}

// statusRecorder captures the response status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer, which the
// websocket upgrade needs to hijack the connection.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
