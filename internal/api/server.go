// Package api provides the HTTP control plane for bastion.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/bastionproject/bastion/internal/backup"
	"github.com/bastionproject/bastion/internal/config"
	"github.com/bastionproject/bastion/internal/logging"
	"github.com/bastionproject/bastion/internal/monitor"
	"github.com/bastionproject/bastion/internal/recovery"
	"github.com/bastionproject/bastion/internal/retention"
	"github.com/bastionproject/bastion/internal/scheduler"
	"github.com/bastionproject/bastion/internal/verify"
)

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	addr       string

	store        backup.Repository
	dbProducer   *backup.DatabaseProducer
	docProducer  *backup.DocumentProducer
	verifier     *verify.Verifier
	enforcer     *retention.Enforcer
	monitor      *monitor.Engine
	alerts       *monitor.AlertStore
	orchestrator *recovery.Orchestrator
	sched        *scheduler.Scheduler

	rateLimiter *RateLimiter
}

// Deps bundles the components the server serves.
type Deps struct {
	Store        backup.Repository
	DBProducer   *backup.DatabaseProducer
	DocProducer  *backup.DocumentProducer
	Verifier     *verify.Verifier
	Enforcer     *retention.Enforcer
	Monitor      *monitor.Engine
	Alerts       *monitor.AlertStore
	Orchestrator *recovery.Orchestrator
	Scheduler    *scheduler.Scheduler
}

// NewServer creates the API server.
func NewServer(cfg config.APIConfig, deps Deps) *Server {
	s := &Server{
		addr:         cfg.ListenAddr,
		store:        deps.Store,
		dbProducer:   deps.DBProducer,
		docProducer:  deps.DocProducer,
		verifier:     deps.Verifier,
		enforcer:     deps.Enforcer,
		monitor:      deps.Monitor,
		alerts:       deps.Alerts,
		orchestrator: deps.Orchestrator,
		sched:        deps.Scheduler,
		rateLimiter: NewRateLimiter(&RateLimitConfig{
			RequestsPerSecond: cfg.RequestsPerSecond,
			BurstSize:         cfg.BurstSize,
			CleanupInterval:   time.Minute,
			MaxAge:            5 * time.Minute,
		}),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      withLogging(withCORS(s.rateLimiter.Middleware(mux))),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.Info("starting bastion API server", logging.String("addr", s.addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Stop()
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Handler returns the server's HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
