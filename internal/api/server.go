// Package api exposes the macro expansion service over HTTP.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"forgeworks/macrod/internal/cache"
	"forgeworks/macrod/internal/config"
	"forgeworks/macrod/internal/pipeline"
)

// Server wires the HTTP routes to the expansion pipeline.
type Server struct {
	cfg      *config.Config
	log      *slog.Logger
	orch     *pipeline.Orchestrator
	expander *pipeline.Expander
	cache    *cache.Cache
	router   *chi.Mux
}

func NewServer(cfg *config.Config, log *slog.Logger, orch *pipeline.Orchestrator, expander *pipeline.Expander, c *cache.Cache) *Server {
	s := &Server{
		cfg:      cfg,
		log:      log,
		orch:     orch,
		expander: expander,
		cache:    c,
		router:   chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// Router returns the configured HTTP handler.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.MacrodAPIKey, s.log))

		r.Get("/tools", s.handleListTools)
		r.Get("/tools/expand", s.handleExpandTool)
		r.Get("/tools/lint", s.handleLintTool)
		r.Get("/tools/help", s.handleToolHelp)

		r.Post("/batch", s.handleSubmitBatch)
		r.Get("/batch/{jobID}/status", s.handleBatchStatus)

		r.Get("/stats", s.handleStats)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
