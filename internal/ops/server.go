// Package ops serves the operational HTTP endpoints: liveness and a small
// stats dashboard. The surface is read-only; nothing here can mutate
// incidents or complaints.
package ops

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/civicroute/incidentd/internal/scheduler"
	"github.com/civicroute/incidentd/pkg/models"
)

// StatsStore is the storage surface the stats endpoint reads.
type StatsStore interface {
	Ping() error
	DashboardStats(ctx context.Context) (models.StoreStats, error)
}

// SnapshotProvider exposes the scheduler's current state.
type SnapshotProvider interface {
	Stats() scheduler.Snapshot
}

// Server is the ops HTTP server.
type Server struct {
	store     StatsStore
	sched     SnapshotProvider
	log       zerolog.Logger
	router    chi.Router
	srv       *http.Server
	version   string
	startTime time.Time
}

// New creates the ops server listening on addr.
func New(addr string, store StatsStore, sched SnapshotProvider, version string, log zerolog.Logger) *Server {
	s := &Server{
		store:     store,
		sched:     sched,
		log:       log,
		version:   version,
		startTime: time.Now(),
	}
	s.router = s.routes()
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/stats", s.handleStats)
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.srv.Addr).Msg("ops server listening")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		s.log.Warn().Err(err).Msg("health check failed")
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}

type statsResponse struct {
	Scheduler scheduler.Snapshot `json:"scheduler"`
	Store     models.StoreStats  `json:"store"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	storeStats, err := s.store.DashboardStats(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("stats query failed")
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, statsResponse{
		Scheduler: s.sched.Stats(),
		Store:     storeStats,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("encode response failed")
	}
}
