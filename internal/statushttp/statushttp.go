// Package statushttp serves the single aggregate GET /status endpoint plus
// Prometheus's /metrics, local-only and read-only by design: nothing here
// can mutate hub or provider state.
package statushttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/wargames-arena/marketfeed/internal/quote"
	"github.com/wargames-arena/marketfeed/internal/telemetry"
)

// ProviderHealth is the subset of hub.Provider that Status needs; kept as an
// interface so statushttp never imports hub (hub already depends on lower
// layers, statushttp sits beside it).
type ProviderHealth interface {
	HealthSnapshot() map[quote.Source]bool
}

// HubStats is the subset of hub.Hub needed for the status payload.
type HubStats interface {
	RejectionCount() int64
}

// StreamStats reports one WebSocket Stream Manager's current state.
type StreamStats interface {
	StateName() string
	Endpoint() string
}

// Status is the JSON body served at GET /status.
type Status struct {
	Timestamp      time.Time                `json:"timestamp"`
	SourceHealth   map[quote.Source]bool    `json:"source_health"`
	StreamStates   map[string]string        `json:"stream_states"`
	GuardRejections int64                    `json:"guard_rejections"`
}

// Server is the local-only status/metrics HTTP server.
type Server struct {
	router   *mux.Router
	server   *http.Server
	provider ProviderHealth
	hub      HubStats
	streams  []StreamStats
	metrics  *telemetry.Registry
}

// Config holds bind address and timeouts.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig binds to localhost only, matching the teacher's read-only
// local server posture.
func DefaultConfig() Config {
	return Config{Addr: "127.0.0.1:8090", ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second}
}

// New builds a Server. provider/hub may be nil in tests; streams may be empty.
func New(cfg Config, provider ProviderHealth, hub HubStats, streams []StreamStats, metrics *telemetry.Registry) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		provider: provider,
		hub:      hub,
		streams:  streams,
		metrics:  metrics,
	}
	s.router.Use(s.loggingMiddleware)
	s.router.HandleFunc("/status", s.handleStatus).Methods("GET")
	if metrics != nil {
		s.router.Handle("/metrics", metrics.Handler()).Methods("GET")
	}
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Dur("duration", time.Since(start)).Msg("statushttp request")
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := Status{
		Timestamp:    time.Now(),
		SourceHealth: map[quote.Source]bool{},
		StreamStates: map[string]string{},
	}
	if s.provider != nil {
		status.SourceHealth = s.provider.HealthSnapshot()
	}
	if s.hub != nil {
		status.GuardRejections = s.hub.RejectionCount()
	}
	for _, st := range s.streams {
		status.StreamStates[st.Endpoint()] = st.StateName()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("statushttp: encode status failed")
		http.Error(w, "encode failed", http.StatusInternalServerError)
	}
}

// Start runs the server until it errors or Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("statushttp listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("statushttp: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
