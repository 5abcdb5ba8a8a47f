// Package server exposes the live state of a crawl session over HTTP: Prometheus
// metrics, a health probe and the running session summary.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// SummaryFunc returns a snapshot of the running session.
type SummaryFunc func() models.SessionSummary

// NewRouter builds the status routes. registry and summary may be nil.
func NewRouter(registry *prometheus.Registry, summary SummaryFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Get("/summary", func(w http.ResponseWriter, r *http.Request) {
		if summary == nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no session running"})
			return
		}
		respondJSON(w, http.StatusOK, summary())
	})

	return r
}

// Server runs the status routes in the background.
type Server struct {
	srv *http.Server
}

// New creates a server listening on addr.
func New(addr string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Start serves in a goroutine. Listen failures are logged.
func (s *Server) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("status server failed", slog.Any("error", err))
		}
	}()
	slog.Info("status server enabled", slog.String("addr", s.srv.Addr))
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", slog.Any("error", err))
	}
}
