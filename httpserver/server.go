package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/isdmx/runbox/config"
	"github.com/isdmx/runbox/job"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 30 * time.Second
	idleTimeout       = 60 * time.Second

	// Added to the execution timeout so slow container starts and cleanup
	// still fit in one response.
	writeTimeoutMargin = 30 * time.Second
)

// Executor is what the HTTP handlers need from the job coordinator
type Executor interface {
	Execute(ctx context.Context, req job.Request) (job.Result, error)
	StrategyName() string
}

// Server owns the router and the underlying http.Server
type Server struct {
	config     *config.Config
	logger     *zap.Logger
	executor   Executor
	mcpHandler http.Handler
	handler    http.Handler

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
}

// Option defines a functional option for Server
type Option func(*Server)

// WithMCPHandler mounts h at mcp.path
func WithMCPHandler(h http.Handler) Option {
	return func(s *Server) {
		s.mcpHandler = h
	}
}

// New creates a Server and builds its router
func New(cfg *config.Config, logger *zap.Logger, executor Executor, opts ...Option) *Server {
	s := &Server{
		config:   cfg,
		logger:   logger.Named("http"),
		executor: executor,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.handler = s.routes()

	return s
}

func (s *Server) routes() http.Handler {
	mux := chi.NewRouter()

	mux.Use(cors.AllowAll().Handler)
	mux.Use(middleware.RequestID)
	mux.Use(s.accessLog)
	mux.Use(s.recoverer)

	mux.Post("/execute", s.handleExecute)
	mux.Get("/healthz", s.handleHealthz)

	if s.mcpHandler != nil {
		mux.Handle(s.config.MCP.Path, s.mcpHandler)
		s.logger.Info("MCP transport mounted", zap.String("path", s.config.MCP.Path))
	}

	return mux
}

// Handler returns the router with all middleware applied
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on server.port and serves in the background
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return errors.New("http server already started")
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Server.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.config.Server.Port, err)
	}

	s.srv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      s.config.GetTimeout() + s.config.GetKillGrace() + writeTimeoutMargin,
		IdleTimeout:       idleTimeout,
		ErrorLog:          zap.NewStdLog(s.logger),
	}
	s.listener = listener
	s.done = make(chan struct{})

	s.logger.Info("http server listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("mode", s.executor.StrategyName()))

	go func(srv *http.Server, done chan struct{}) {
		defer close(done)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", zap.Error(err))
		}
	}(s.srv, s.done)

	return nil
}

// Addr returns the bound address, or "" before Start
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop drains in-flight requests within server.shutdown_timeout_sec
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.srv, s.done
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.GetShutdownTimeout())
	defer cancel()

	s.logger.Info("shutting down http server")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	<-done

	return nil
}
