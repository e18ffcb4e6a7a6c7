package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	apppipeline "github.com/bryanwahyu/historify/internal/application/pipeline"
	domain "github.com/bryanwahyu/historify/internal/domain/analysis"
	"github.com/bryanwahyu/historify/internal/middleware"
)

type Router struct {
	svc           *apppipeline.Service
	maxUploadSize int64
}

func NewRouter(svc *apppipeline.Service, maxUploadSize int64, checkers map[string]middleware.HealthChecker) http.Handler {
	if maxUploadSize <= 0 {
		maxUploadSize = 10 << 20
	}
	r := &Router{svc: svc, maxUploadSize: maxUploadSize}
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.RateLimitMiddleware(100, 10))

	mux.Get("/health", middleware.HealthHandler(checkers))
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/analyses", r.wrap(r.handleAnalyze))
		rt.Get("/analyses/latest", r.wrap(r.handleLatest))
		rt.Get("/analyses/search", r.wrap(r.handleSearch))
		rt.Get("/analyses/{id}", r.wrap(r.handleGet))
		rt.Get("/stats", r.wrap(r.handleStats))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			if errors.Is(err, domain.ErrQuotaExceeded) {
				http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// POST /v1/analyses
// multipart/form-data with an "image" file. The pipeline runs synchronously
// within its own deadline; the response always carries a schema-complete
// record, with stored=false when no backend accepted it.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUploadSize)
	if err := req.ParseMultipartForm(r.maxUploadSize); err != nil {
		http.Error(w, "image upload too large or malformed", http.StatusBadRequest)
		return nil
	}
	file, header, err := req.FormFile("image")
	if err != nil {
		http.Error(w, "image file is required", http.StatusBadRequest)
		return nil
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	middleware.IncrementAnalyses()
	result, err := r.svc.Analyze(req.Context(), apppipeline.AnalyzeCommand{
		ImageName: header.Filename,
		Data:      data,
	})
	if err != nil {
		return err
	}

	middleware.AddStageFailures(len(result.Record.StageErrors))
	if !result.Stored {
		middleware.IncrementPersistenceExhausted()
	} else if backends := r.svc.Chain.Backends(); len(backends) > 0 && result.Backend != backends[0].Name() {
		middleware.IncrementPersistenceFallbacks()
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(result)
}

// GET /v1/analyses/latest?limit=20
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.readFallback(req, func(repo domain.Repository) (any, error) {
		return repo.Latest(req.Context(), limit)
	})
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/analyses/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")

	rec, err := r.readFallback(req, func(repo domain.Repository) (any, error) {
		return repo.Get(req.Context(), domain.RecordID(id))
	})
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(rec)
}

// GET /v1/analyses/search?q=berlin&limit=20
func (r *Router) handleSearch(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query().Get("q")
	if q == "" {
		http.Error(w, "q is required", http.StatusBadRequest)
		return nil
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.readFallback(req, func(repo domain.Repository) (any, error) {
		return repo.Search(req.Context(), q, limit)
	})
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/stats
func (r *Router) handleStats(w http.ResponseWriter, req *http.Request) error {
	stats, err := r.readFallback(req, func(repo domain.Repository) (any, error) {
		return repo.Stats(req.Context())
	})
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(stats)
}

// readFallback queries the chain's tiers in order. Reads normally land on
// the primary, but keep working from a fallback tier when the primary is
// down; sql.ErrNoRows stops the walk so missing records stay a 404.
func (r *Router) readFallback(req *http.Request, fn func(domain.Repository) (any, error)) (any, error) {
	backends := r.svc.Chain.Backends()
	if len(backends) == 0 {
		return nil, fmt.Errorf("no storage backend configured")
	}
	var lastErr error
	for _, backend := range backends {
		out, err := fn(backend)
		if err == nil || errors.Is(err, sql.ErrNoRows) {
			return out, err
		}
		lastErr = err
	}
	return nil, lastErr
}
