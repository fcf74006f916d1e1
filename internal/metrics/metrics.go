// Package metrics holds the Prometheus instrumentation of the resolver service.
//
//	vembed_resolutions_total              counter: resolutions by provider/stage/outcome
//	vembed_cache_lookups_total            counter: cache hits and misses
//	vembed_http_requests_total            counter: requests by method/path/status
//	vembed_http_request_duration_seconds  histogram: request latency by method/path
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var Resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vembed_resolutions_total",
	Help: "Embed resolutions by provider, stage and outcome.",
}, []string{"provider", "stage", "outcome"})

var CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vembed_cache_lookups_total",
	Help: "Resolution cache lookups by result (hit, miss, error).",
}, []string{"result"})

var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vembed_http_requests_total",
	Help: "Total HTTP requests handled.",
}, []string{"method", "path", "status"})

var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "vembed_http_request_duration_seconds",
	Help:    "HTTP request latency in seconds.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "path"})

// Outcome labels.
const (
	OutcomeSuccess       = "success"
	OutcomeNotEmbeddable = "not_embeddable"
	OutcomeInvalid       = "invalid"
	OutcomeError         = "error"
)

func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency. The path label is the chi route
// pattern so ids in URLs do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		path := routePattern(r)
		HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(rw.status)).Inc()
		HTTPDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
