// Package api exposes the HTTP interface for the scraper service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/internradar/crawler/internal/config"
	"github.com/internradar/crawler/internal/metrics"
	"github.com/internradar/crawler/internal/scrape"
)

// Crawler is the slice of the orchestrator the API depends on.
type Crawler interface {
	Crawl(ctx context.Context, pageCount, maxConcurrentPages int) ([]scrape.Listing, error)
	CrawlKeyword(ctx context.Context, keyword string) ([]scrape.Listing, error)
}

// Server wires HTTP handlers to the crawler and snapshot store.
type Server struct {
	router  chi.Router
	crawler Crawler
	store   scrape.Store
	cfg     config.Config
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(crawler Crawler, store scrape.Store, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		crawler: crawler,
		store:   store,
		cfg:     cfg,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/internships", s.listInternships)
		r.Get("/search", s.search)
		r.Post("/refresh", s.refresh)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.Load(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "snapshot store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listInternships(w http.ResponseWriter, r *http.Request) {
	listings, err := s.store.Load(r.Context())
	if err != nil {
		s.logger.Error("snapshot load failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load internships")
		return
	}
	if listings == nil {
		listings = []scrape.Listing{}
	}
	writeJSON(w, http.StatusOK, listings)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("keyword")
	if keyword == "" {
		writeError(w, http.StatusBadRequest, "keyword query parameter is required")
		return
	}
	listings, err := s.crawler.CrawlKeyword(r.Context(), keyword)
	if err != nil {
		s.logger.Error("keyword crawl failed", zap.String("keyword", keyword), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "keyword crawl failed")
		return
	}
	if listings == nil {
		listings = []scrape.Listing{}
	}
	writeJSON(w, http.StatusOK, listings)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	req := scrape.CrawlRequest{
		PageCount:          s.cfg.Crawl.PageCount,
		MaxConcurrentPages: s.cfg.Crawl.MaxConcurrentPages,
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	if req.PageCount <= 0 || req.MaxConcurrentPages <= 0 {
		writeError(w, http.StatusBadRequest, "pageCount and maxConcurrentPages must be positive")
		return
	}

	start := time.Now()
	listings, err := s.crawler.Crawl(r.Context(), req.PageCount, req.MaxConcurrentPages)
	if err != nil {
		s.logger.Error("refresh crawl failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "refresh crawl failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "data refreshed",
		"count":    len(listings),
		"duration": time.Since(start).String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("response write failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
