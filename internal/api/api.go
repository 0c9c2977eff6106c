// Package api provides HTTP handlers and the main API server logic for HabitAudit.
//
// It exposes RESTful endpoints for initiating, continuing, and resuming
// habit-difficulty assessments, plus quota and value-of-information lookups.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server wires HTTP transport onto the assessment orchestrator.
type Server struct {
	orchestrator Orchestrator
	addr         string
	httpServer   *http.Server
}

// NewServer creates an API server around the given orchestrator.
func NewServer(orchestrator Orchestrator, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{orchestrator: orchestrator, addr: cfg.Addr}
}

// Handler builds the route table. Exposed separately from Run so tests can
// drive the server through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /assessments", s.initiateHandler)
	mux.HandleFunc("GET /assessments/{id}", s.getSessionHandler)
	mux.HandleFunc("POST /assessments/{id}/messages", s.continueHandler)
	mux.HandleFunc("POST /assessments/resume", s.resumeHandler)
	mux.HandleFunc("GET /habits/{id}/result", s.resultHandler)
	mux.HandleFunc("GET /habits/{id}/audit-trail", s.auditTrailHandler)
	mux.HandleFunc("GET /users/{id}/quota", s.quotaHandler)
	mux.HandleFunc("POST /voi/questions", s.voiHandler)
	mux.HandleFunc("GET /health", s.healthHandler)
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: HabitAudit API listening", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("Server.Run: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
