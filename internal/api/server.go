// Package api provides the local HTTP status server for the idle guard.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/idlelock/idlelock/internal/domain"
	"github.com/idlelock/idlelock/internal/health"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 1000
	snapshotTimeout     = 2 * time.Second
)

// Guard is satisfied by the guard loop.
type Guard interface {
	Snapshot(ctx context.Context) (domain.Status, error)
}

// History is satisfied by the journal database.
type History interface {
	ListWarnings(limit int) ([]domain.WarningRecord, error)
	ListTransitions(limit int) ([]domain.TransitionRecord, error)
}

// HealthReporter is satisfied by the health checker.
type HealthReporter interface {
	Statuses() []health.Status
	IsHealthy() bool
}

// HistoryResponse is the body of GET /api/history.
type HistoryResponse struct {
	Warnings    []domain.WarningRecord    `json:"warnings"`
	Transitions []domain.TransitionRecord `json:"transitions"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string          `json:"status"`
	Checks []health.Status `json:"checks,omitempty"`
}

// Server is the idlelock HTTP API server.
type Server struct {
	guard          Guard
	history        History
	health         HealthReporter
	version        string
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(guard Guard, version string) *Server {
	return &Server{guard: guard, version: version}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHistory mounts /api/history on the journal.
func (s *Server) SetHistory(h History) { s.history = h }

// SetHealth reports health check results on /health.
func (s *Server) SetHealth(h HealthReporter) { s.health = h }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/history", s.handleHistory)
		r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
		})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}
	resp := HealthResponse{Status: "ok", Checks: s.health.Statuses()}
	status := http.StatusOK
	if !s.health.IsHealthy() {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), snapshotTimeout)
	defer cancel()

	st, err := s.guard.Snapshot(ctx)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "journal is disabled")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	warnings, err := s.history.ListWarnings(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	transitions, err := s.history.ListTransitions(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := HistoryResponse{Warnings: warnings, Transitions: transitions}
	if resp.Warnings == nil {
		resp.Warnings = []domain.WarningRecord{}
	}
	if resp.Transitions == nil {
		resp.Transitions = []domain.TransitionRecord{}
	}
	writeJSON(w, http.StatusOK, resp)
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
