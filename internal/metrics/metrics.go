// Package metrics defines the Prometheus collectors used by the search server
// and the import pipeline. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "report_search"

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	SearchLatency       prometheus.Histogram
	SearchResultsCount  prometheus.Histogram
	SearchErrorsTotal   *prometheus.CounterVec
	DroppedHitsTotal    *prometheus.CounterVec
	RecordsImported     prometheus.Counter
	RecordsSkipped      prometheus.Counter

	gatherer prometheus.Gatherer
}

// New creates all collectors and registers them on reg.
// If reg is also a prometheus.Gatherer, Handler serves it.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		SearchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_duration_seconds",
				Help:      "Time to query the index and resolve hits",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_results",
				Help:      "Number of resolved records returned per search",
				Buckets:   []float64{0, 1, 2, 5, 10},
			},
		),
		SearchErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_errors_total",
				Help:      "Failed searches by kind (parse, index, store)",
			},
			[]string{"kind"},
		),
		DroppedHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dropped_hits_total",
				Help:      "Index hits that could not be resolved to a stored record",
			},
			[]string{"reason"},
		),
		RecordsImported: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_imported_total",
				Help:      "Records written to the store and queued for indexing",
			},
		),
		RecordsSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_skipped_total",
				Help:      "Records excluded from import for lacking a foreign id",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SearchLatency,
		m.SearchResultsCount,
		m.SearchErrorsTotal,
		m.DroppedHitsTotal,
		m.RecordsImported,
		m.RecordsSkipped,
	)

	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}

	return m
}

// ObserveSearch records a completed search
func (m *Metrics) ObserveSearch(duration time.Duration, results int) {
	if m == nil {
		return
	}
	m.SearchLatency.Observe(duration.Seconds())
	m.SearchResultsCount.Observe(float64(results))
}

// SearchFailed counts a failed search
func (m *Metrics) SearchFailed(kind string) {
	if m == nil {
		return
	}
	m.SearchErrorsTotal.WithLabelValues(kind).Inc()
}

// HitDropped counts a hit the resolver had to drop
func (m *Metrics) HitDropped(reason string) {
	if m == nil {
		return
	}
	m.DroppedHitsTotal.WithLabelValues(reason).Inc()
}

// RecordImported counts a record written during import
func (m *Metrics) RecordImported() {
	if m == nil {
		return
	}
	m.RecordsImported.Inc()
}

// RecordSkipped counts a record excluded during import
func (m *Metrics) RecordSkipped() {
	if m == nil {
		return
	}
	m.RecordsSkipped.Inc()
}

// Handler serves the registry passed to New, or the default gatherer.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records HTTP request duration and count.
func (m *Metrics) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			// Use the chi route pattern to keep label cardinality bounded
			path := "unknown"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				path = rctx.RoutePattern()
			}

			m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
			m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.status)).Inc()
		})
	}
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.wroteHeader = true
	}
	return w.ResponseWriter.Write(b)
}
