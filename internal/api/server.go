// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes the playback engine to a UI collaborator over HTTP:
// JSON control endpoints, a status snapshot and a websocket event stream.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ManuGH/radiosync/internal/api/middleware"
	"github.com/ManuGH/radiosync/internal/bus"
	"github.com/ManuGH/radiosync/internal/engine"
	xglog "github.com/ManuGH/radiosync/internal/log"
	"github.com/ManuGH/radiosync/internal/profile"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Controller is the engine surface the API drives.
type Controller interface {
	Status() engine.Status
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Interact(ctx context.Context) error
	SetVolume(ctx context.Context, v float64) error
	SetMuted(ctx context.Context, muted bool) error
	SetNetwork(ctx context.Context, class profile.NetworkClass) error
}

var _ Controller = (*engine.Engine)(nil)

// Config configures the HTTP server.
type Config struct {
	Listen string
	// RateLimit is control requests per minute per client IP; zero disables it.
	RateLimit int
	// TracingService enables OpenTelemetry spans under this service name.
	TracingService string
	Version        string
	// PingInterval is the websocket keepalive period.
	PingInterval time.Duration
}

// Server serves the status API.
type Server struct {
	cfg      Config
	ctrl     Controller
	bus      bus.Bus
	logger   zerolog.Logger
	router   chi.Router
	upgrader websocket.Upgrader
}

// New builds the router. Nothing listens until Run.
func New(cfg Config, ctrl Controller, b bus.Bus) *Server {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	s := &Server{
		cfg:    cfg,
		ctrl:   ctrl,
		bus:    b,
		logger: xglog.WithComponent("api"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  true,
		TracingService: s.cfg.TracingService,
		EnableLogging:  true,
	})

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/status", s.handleStatus)
	r.Get("/events", s.handleEvents)

	r.Group(func(r chi.Router) {
		r.Use(middleware.ControlRateLimit(s.cfg.RateLimit))
		r.Post("/connect", s.handleConnect)
		r.Post("/disconnect", s.handleDisconnect)
		r.Post("/interact", s.handleInteract)
		r.Post("/volume", s.handleVolume)
		r.Post("/network", s.handleNetwork)
	})
	return r
}

// Run listens on cfg.Listen until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	s.logger.Info().
		Str("event", "api.listening").
		Str("addr", ln.Addr().String()).
		Msg("status API listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn().Err(err).Str("event", "api.shutdown_failed").Msg("graceful shutdown incomplete")
		_ = srv.Close()
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info().Str("event", "api.stopped").Msg("status API stopped")
	return nil
}
