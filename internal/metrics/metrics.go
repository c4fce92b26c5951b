// Package metrics holds the prometheus collectors for the processing
// pipeline and its HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadflow_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadflow_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadflow_runs_total",
			Help: "Pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	contactsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadflow_contacts_processed_total",
			Help: "Contacts processed by outcome and terminal stage",
		},
		[]string{"outcome", "stage"},
	)

	sheetsRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadflow_sheets_retries_total",
			Help: "Retried Google Sheets API calls",
		},
		[]string{"operation"},
	)

	verifierResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadflow_verifier_results_total",
			Help: "Email verifier outcomes",
		},
		[]string{"result"},
	)
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := strconv.Itoa(rw.statusCode)
		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// RecordRun counts a run by outcome ("completed", "test", "load_failed", "connect_failed").
func RecordRun(outcome string) {
	runsTotal.WithLabelValues(outcome).Inc()
}

// RecordContact counts one processed contact.
func RecordContact(outcome, stage string) {
	contactsProcessed.WithLabelValues(outcome, stage).Inc()
}

// RecordSheetsRetry counts one retried Sheets call.
func RecordSheetsRetry(operation string) {
	sheetsRetries.WithLabelValues(operation).Inc()
}

// RecordVerifierResult counts a verifier outcome ("valid", "invalid",
// "fail_open", "circuit_open").
func RecordVerifierResult(result string) {
	verifierResults.WithLabelValues(result).Inc()
}
