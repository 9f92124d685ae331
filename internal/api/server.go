// Package api provides the HTTP surface of intervox: the streaming chat
// endpoint, interview metadata lookup, and health probes.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/talvik/intervox/internal/archive"
	"github.com/talvik/intervox/internal/chat"
	"github.com/talvik/intervox/internal/log"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger       log.Logger
	Orchestrator *chat.Orchestrator // Required
	Catalog      *archive.Catalog   // Optional: nil disables /interviews
	Pool         *pgxpool.Pool      // Optional: nil disables the pool ping in /readyz
}

// Server is the intervox HTTP server.
type Server struct {
	handler http.Handler
}

// NewServer creates a server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}
	logger := cfg.Logger
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	mux := http.NewServeMux()

	ch := &chatHandler{orchestrator: cfg.Orchestrator, logger: logger}
	mux.HandleFunc("POST /chat", ch.handleChat)

	if cfg.Catalog != nil {
		ih := &interviewHandler{catalog: cfg.Catalog, logger: logger}
		mux.HandleFunc("GET /interviews", ih.list)
	}

	hh := &healthHandler{logger: logger}
	if cfg.Pool != nil {
		hh.pool = cfg.Pool
	}
	mux.HandleFunc("GET /healthz", hh.live)
	mux.HandleFunc("GET /readyz", hh.ready)

	// Middleware stack, outermost first:
	//   Recovery → RequestID → Logging → Routes
	// RequestID precedes Logging so request_id appears in log attributes.
	var handler http.Handler = mux
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	return &Server{handler: handler}, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// pinger abstracts the readiness dependency check.
type pinger interface {
	Ping(ctx context.Context) error
}
