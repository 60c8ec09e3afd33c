// Package server assembles the HTTP surface: chi router, shared
// middleware, and the batch, powder, and job route groups.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	fulmerrors "github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	apperrors "github.com/coatworks/sprayshop/internal/errors"
	"github.com/coatworks/sprayshop/internal/observability"
	"github.com/coatworks/sprayshop/internal/server/handlers"
	"github.com/coatworks/sprayshop/internal/server/middleware"
	"github.com/coatworks/sprayshop/pkg/spraytime"
)

// Server owns the listener lifecycle. Routes are assembled once at
// construction; Start blocks until Shutdown or listener failure.
type Server struct {
	host string
	port int

	engine *spraytime.Engine
	db     *sql.DB

	rateLimitRPS   float64
	rateLimitBurst int

	readTimeout  time.Duration
	writeTimeout time.Duration
	idleTimeout  time.Duration

	httpServer *http.Server
	router     chi.Router
}

// Option customizes a Server at construction time.
type Option func(*Server)

// WithEngine wires the spray-batch engine and its database into the
// router. Without it only the health and version routes are served.
func WithEngine(engine *spraytime.Engine, db *sql.DB) Option {
	return func(s *Server) {
		s.engine = engine
		s.db = db
	}
}

// WithRateLimit bounds request throughput. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		s.rateLimitRPS = rps
		s.rateLimitBurst = burst
	}
}

// WithTimeouts overrides the default read/write/idle timeouts.
func WithTimeouts(read, write, idle time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = read
		s.writeTimeout = write
		s.idleTimeout = idle
	}
}

// New builds a Server bound to host:port. Port 0 asks the OS for a free
// port at Start.
func New(host string, port int, opts ...Option) *Server {
	s := &Server{
		host:         host,
		port:         port,
		readTimeout:  30 * time.Second,
		writeTimeout: 30 * time.Second,
		idleTimeout:  120 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.buildRouter()
	return s
}

// Port returns the configured port, not the bound one.
func (s *Server) Port() int {
	return s.port
}

// Handler exposes the assembled router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.ErrorHandler)
	if s.rateLimitRPS > 0 {
		r.Use(middleware.RateLimit(s.rateLimitRPS, s.rateLimitBurst))
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeRouterError(w, req, apperrors.CodeNotFound,
			fmt.Sprintf("route %s not found", req.URL.Path), http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeRouterError(w, req, apperrors.CodeMethodNotAllowed,
			fmt.Sprintf("method %s not allowed", req.Method), http.StatusMethodNotAllowed)
	})

	r.Get("/health", handlers.Health)
	r.Get("/health/live", handlers.HealthLive)
	r.Get("/health/ready", handlers.HealthReady)
	r.Get("/health/startup", handlers.HealthStartup)
	r.Get("/version", handlers.Version)

	if s.engine != nil {
		handlers.NewBatchHandlers(s.engine).Register(r)
	}
	if s.db != nil {
		handlers.NewPowderHandlers(s.db).Register(r)
		handlers.NewJobHandlers(s.db).Register(r)
	}

	return r
}

func writeRouterError(w http.ResponseWriter, r *http.Request, code, message string, status int) {
	envelope := fulmerrors.NewErrorEnvelope(code, message)
	if id := apperrors.RequestIDFrom(r.Context()); id != "" {
		envelope = envelope.WithCorrelationID(id)
	}
	apperrors.WriteEnvelope(w, envelope, status)
}

// Start binds the listener and serves until Shutdown. It returns nil on
// graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port))
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  s.idleTimeout,
	}

	observability.ServerLogger.Info("http server listening", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown drains in-flight requests, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
