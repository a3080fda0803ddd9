package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/echoes/internal/shared"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

// Deps are the collaborators served over HTTP.
type Deps struct {
	Engine    Recommender
	Publisher PlaylistPublisher
	Auth      Authenticator
	Logger    *log.Logger
}

// Server is the long-running HTTP API.
type Server struct {
	cfg    shared.ServerConfig
	router *BasicRouter
	logger *log.Logger
}

// New builds the router: health and metrics, the browser login flow, and the rate-limited JSON API.
func New(cfg shared.ServerConfig, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = shared.NewLogger(nil)
	}
	logger := shared.WithLogger(deps.Logger, "component", "server")

	requests := cfg.RateLimitRequests
	if requests <= 0 {
		requests = 60
	}
	window := time.Duration(cfg.RateLimitWindowSeconds) * time.Second
	if window <= 0 {
		window = time.Minute
	}

	router := NewBasicRouter()
	router.Use(Recoverer(logger), RequestLogger(logger), CORS(cfg.AllowedOrigins))

	router.Handle(http.MethodGet, "/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))
	router.Handle(http.MethodGet, "/metrics", promhttp.Handler())

	if deps.Auth != nil {
		router.Handler(NewSessionHandler(deps.Auth, "", deps.Logger))
	}
	router.Handler(NewAPIHandler(deps.Engine, deps.Publisher, deps.Logger), RateLimit(requests, window))

	return &Server{cfg: cfg, router: router, logger: logger}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
