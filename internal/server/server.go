// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

// Package server is the read-only observation gateway: a chi router with a
// huma API serving the current snapshot, the projected point cloud and the
// websocket push stream.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	nurseryerr "github.com/daneel-ai/nursery/pkg/errors"
)

// Config holds HTTP gateway configuration.
type Config struct {
	ListenAddr   string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	RateLimit    RateLimitConfig
}

// Server wraps a chi router with a huma API and the observer endpoints.
type Server struct {
	router   chi.Router
	api      huma.API
	cfg      Config
	logger   *slog.Logger
	services *Services

	// done stops the rate limiter's cleanup goroutine on shutdown.
	done chan struct{}
}

// New creates a Server with chi router, huma API, health endpoint, CORS
// and optional per-IP rate limiting. Observation routes return 503 until
// RegisterServices is called.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, nurseryerr.New(nurseryerr.CodeConfigValidateInvalidValue,
			"listen address is required")
	}
	if err := cfg.RateLimit.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	done := make(chan struct{})
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware(cfg.RateLimit, done))

	// Huma API with OpenAPI spec
	humaConfig := huma.DefaultConfig("Nursery Observer", "0.1.0")
	humaConfig.Info.Description = "Read-only observation gateway for a developing mind"
	api := humachi.New(r, humaConfig)

	srv := &Server{
		router: r,
		api:    api,
		cfg:    cfg,
		logger: logger,
		done:   done,
	}

	// Health endpoint: alive means the observer process runs, regardless
	// of whether the mind's stores answer.
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*HealthResponse, error) {
		return &HealthResponse{Body: HealthBody{Status: "ok", Service: "nursery"}}, nil
	})

	// Register the websocket route (returns 503 until services are set).
	srv.registerObserverRoute()

	return srv, nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// API returns the huma API for registering additional operations.
func (s *Server) API() huma.API {
	return s.api
}

// Start runs the HTTP server and blocks until the context is cancelled,
// then performs graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return nurseryerr.Wrapf(err, nurseryerr.CodeServerStartFailure,
			"listening on %s", s.cfg.ListenAddr)
	}
	defer close(s.done)

	s.logger.Info("gateway listening", "addr", ln.Addr().String())

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return nurseryerr.Wrap(err, nurseryerr.CodeServerShutdownFailure,
			"shutting down gateway")
	}

	return <-errCh
}

// HealthBody is the JSON body of the health endpoint response.
type HealthBody struct {
	Status  string `json:"status" example:"ok" doc:"Service health"`
	Service string `json:"service" example:"nursery" doc:"Service name"`
}

// HealthResponse wraps the health check response.
type HealthResponse struct {
	Body HealthBody
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// The gateway is read-only, so only GET ever crosses an origin.
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
}
