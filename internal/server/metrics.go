package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"samu/dispatch/internal/dispatch"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_http_requests_total",
			Help: "Total number of HTTP requests received by the API.",
		},
		[]string{"route", "method", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_http_request_duration_seconds",
			Help:    "Duration of HTTP requests handled by the API.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)

	dispatchTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_dispatch_transitions_total",
			Help: "Lifecycle transitions applied to dispatches, by target state.",
		},
		[]string{"state", "priority"},
	)

	dispatchCompletionMinutes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_dispatch_completion_minutes",
			Help:    "Assignment-to-completion duration per dispatch priority.",
			Buckets: []float64{5, 10, 15, 20, 30, 45, 60, 90, 120, 180},
		},
		[]string{"priority"},
	)

	optimizationFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "api_optimization_fallbacks_total",
			Help: "Optimization requests answered with the degraded fallback suggestion.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		dispatchTransitionsTotal,
		dispatchCompletionMinutes,
		optimizationFallbacksTotal,
	)
}

// metricsMiddleware records basic request metrics for Prometheus (RPS and latency).
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		durationSeconds := time.Since(start).Seconds()
		status := strconv.Itoa(ww.Status())
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		httpRequestsTotal.WithLabelValues(route, r.Method, status).Inc()
		httpRequestDurationSeconds.WithLabelValues(route, r.Method, status).Observe(durationSeconds)
	})
}

// observeTransition counts the applied transition and, on completion, records
// the assignment-to-completion duration already computed on the record.
func observeTransition(d dispatch.Dispatch) {
	dispatchTransitionsTotal.WithLabelValues(string(d.State), string(d.Priority)).Inc()

	if d.State == dispatch.StateCompleted && d.ActualMinutes != nil {
		dispatchCompletionMinutes.WithLabelValues(string(d.Priority)).Observe(float64(*d.ActualMinutes))
	}
}
