// Package api provides the HTTP server for tillsync.
// It exposes the sale endpoint for the register UI and the queue
// inspection/maintenance endpoints for the operator.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tillsync/tillsync/internal/app/inspector"
	"github.com/tillsync/tillsync/internal/app/submitter"
	"github.com/tillsync/tillsync/internal/app/syncer"
	"github.com/tillsync/tillsync/internal/domain"
)

// Version is the tillsync build version reported by /api/version.
const Version = "0.1.0"

// Server is the tillsync HTTP API server.
type Server struct {
	submitter      *submitter.Submitter
	engine         *syncer.Engine
	inspector      *inspector.Inspector
	conn           domain.Connectivity
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(sub *submitter.Submitter, engine *syncer.Engine, insp *inspector.Inspector, conn domain.Connectivity) *Server {
	return &Server{submitter: sub, engine: engine, inspector: insp, conn: conn}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Minute))
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"version": Version})
		})

		r.Post("/sale", s.handleSale)
		r.Post("/sync", s.handleSync)

		r.Route("/queue", func(r chi.Router) {
			r.Get("/", s.handleQueueList)
			r.Get("/summary", s.handleQueueSummary)
			r.Post("/purge", s.handleQueuePurge)
			r.Get("/{id}", s.handleQueueGet)
			r.Post("/{id}/retry", s.handleQueueRetry)
		})
	})

	// Prometheus metrics endpoint
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// corsMiddleware adds CORS headers for the register UI.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
