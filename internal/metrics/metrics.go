// Package metrics exposes prometheus instrumentation for the portal.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transit", Name: "http_requests_total", Help: "HTTP requests by method and status",
	}, []string{"method", "status"})
	HTTPDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "transit", Name: "http_request_seconds", Help: "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	})
	ReportsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transit", Name: "reports_created_total", Help: "Reports created by kind",
	}, []string{"kind"})
	StatusTransitions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "transit", Name: "status_transitions_total", Help: "Successful report status transitions",
	})
)

func init() {
	prometheus.MustRegister(HTTPRequests, HTTPDuration, ReportsCreated, StatusTransitions)
}

// Handler serves the prometheus scrape endpoint.
func Handler() http.Handler { return promhttp.Handler() }

// Instrument records request count and latency for every handled request.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(ww.status)).Inc()
		HTTPDuration.Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
