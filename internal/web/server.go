package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	logpkg "github.com/renderinc/report-search/internal/logger"
	"github.com/renderinc/report-search/internal/metrics"
	"github.com/renderinc/report-search/internal/report"
	"github.com/renderinc/report-search/internal/search"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

const maxBodyBytes = 64 << 10

// Searcher answers searches and reports index health
type Searcher interface {
	Search(ctx context.Context, text string) ([]*report.Record, error)
	Stats(ctx context.Context) (search.Stats, error)
}

type Server struct {
	searcher       Searcher
	templates      *template.Template
	logger         *zap.Logger
	metrics        *metrics.Metrics
	limiter        *rate.Limiter
	requestTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimit caps search requests at rps per second with the given burst.
// A non-positive rps disables the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps <= 0 {
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRequestTimeout bounds how long a search request may run
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.requestTimeout = d
	}
}

// SearchRequest is the JSON body of POST /search
type SearchRequest struct {
	Query string `json:"query"`
}

type resultsPage struct {
	Query  string
	Titles []string
}

func NewServer(searcher Searcher, logger *zap.Logger, m *metrics.Metrics, opts ...Option) (*Server, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("error parsing templates: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		searcher:  searcher,
		templates: tmpl,
		logger:    logger,
		metrics:   m,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(s.metrics.Middleware())

	static, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(rateLimit(s.limiter))
		}
		if s.requestTimeout > 0 {
			r.Use(chiMiddleware.Timeout(s.requestTimeout))
		}
		r.Get("/query", s.handleQuery)
		r.Post("/search", s.handleSearch)
	})

	r.Handle("/metrics", s.metrics.Handler())

	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", nil); err != nil {
		logpkg.FromContext(r.Context()).Error("render index", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// handleQuery renders the titles of the matching records as HTML
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	records, err := s.searcher.Search(r.Context(), query)
	if err != nil {
		s.logError(r, err)
		http.Error(w, errorMessage(err), statusCode(err))
		return
	}

	page := resultsPage{Query: query, Titles: make([]string, 0, len(records))}
	for _, rec := range records {
		page.Titles = append(page.Titles, rec.Title)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "results.html", page); err != nil {
		logpkg.FromContext(r.Context()).Error("render results", zap.Error(err))
	}
}

// handleSearch returns the matching records as a JSON array
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query, err := readQuery(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	records, err := s.searcher.Search(r.Context(), query)
	if err != nil {
		s.logError(r, err)
		writeError(w, statusCode(err), errorCode(err), errorMessage(err))
		return
	}

	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := s.searcher.Stats(r.Context())
	if err != nil {
		s.logError(r, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":             "ok",
		"documents_in_store": stats.StoreDocuments,
		"documents_in_index": stats.IndexDocuments,
	})
}

// readQuery accepts a JSON body {"query": ...} or a form with query or q
func readQuery(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseForm(); err != nil {
			return "", fmt.Errorf("invalid form: %w", err)
		}
		if q := r.PostForm.Get("query"); q != "" {
			return q, nil
		}
		return r.PostForm.Get("q"), nil
	default:
		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", fmt.Errorf("invalid request body: %w", err)
		}
		return req.Query, nil
	}
}

func (s *Server) logError(r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	if errors.Is(err, search.ErrQueryParse) {
		log.Debug("rejected query", zap.Error(err))
		return
	}
	log.Error("search failed", zap.Error(err))
}

func statusCode(err error) int {
	if errors.Is(err, search.ErrQueryParse) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func errorCode(err error) string {
	if errors.Is(err, search.ErrQueryParse) {
		return "invalid_query"
	}
	return "internal_error"
}

// errorMessage hides internal failure details from clients
func errorMessage(err error) string {
	if errors.Is(err, search.ErrQueryParse) {
		return strings.TrimSpace(err.Error())
	}
	return "internal error"
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}
