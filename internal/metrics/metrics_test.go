package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveSearch(time.Millisecond, 3)
	m.SearchFailed("parse")
	m.HitDropped("not_found")
	m.RecordImported()
	m.RecordSkipped()

	h := m.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	assert.Equal(t, http.StatusTeapot, rr.Code)
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.HitDropped("decode")
	m.HitDropped("decode")
	m.RecordImported()
	m.RecordSkipped()
	m.SearchFailed("parse")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DroppedHitsTotal.WithLabelValues("decode")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsImported))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsSkipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchErrorsTotal.WithLabelValues("parse")))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(m.Middleware())
	r.Get("/docs/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/docs/123", http.NoBody))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/docs/{id}", "404")))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordImported()

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "report_search_records_imported_total 1"))
}
