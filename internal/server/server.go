// Package server exposes the relay over HTTP with echo.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/shineum/mailrelay/internal/relay"
)

// shutdownTimeout is the maximum time to wait for in-flight requests
// during graceful shutdown.
const shutdownTimeout = 30 * time.Second

// Config holds the configuration for the HTTP server.
type Config struct {
	// Addr is the address to listen on (e.g., ":5000").
	Addr string

	// BodyLimit caps request bodies, in echo's size notation ("10M").
	BodyLimit string

	// CORSOrigins lists the allowed origins; "*" allows any.
	CORSOrigins []string

	// StaticDir is served at / when it exists. Empty disables it.
	StaticDir string

	// TLSConfig enables HTTPS when set.
	TLSConfig *tls.Config

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server is the HTTP front of the relay.
type Server struct {
	config     Config
	echo       *echo.Echo
	dispatcher *relay.Dispatcher
	logger     *slog.Logger
	listener   net.Listener
}

// New creates the echo instance, registers middleware in order of execution
// and mounts the routes.
func New(cfg Config, d *relay.Dispatcher) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		config:     cfg,
		echo:       e,
		dispatcher: d,
		logger:     logger,
	}

	e.HTTPErrorHandler = s.errorHandler

	// Recovery must be outermost to catch panics from all other middleware.
	e.Use(recovery(logger))
	e.Use(requestLogger(logger))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAccept, echo.HeaderOrigin},
	}))
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	s.routes()

	return s
}

func (s *Server) routes() {
	api := s.echo.Group("/api")
	api.POST("/send-email", s.sendEmail)
	api.GET("/status", s.status)

	if dir := s.config.StaticDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			s.echo.Static("/", dir)
		} else {
			s.logger.Debug("static directory not found, not serving assets", "dir", dir)
		}
	}
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// ListenAndServe listens on the configured address and serves until the
// context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until the context is cancelled. On
// cancellation it stops accepting and waits up to 30 seconds for in-flight
// requests to complete.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.config.TLSConfig != nil {
		ln = tls.NewListener(ln, s.config.TLSConfig)
	}
	s.listener = ln

	srv := &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	s.logger.Info("HTTP server listening",
		"addr", ln.Addr().String(),
		"provider", s.dispatcher.Provider().Name(),
		"tls_enabled", s.config.TLSConfig != nil,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("shutdown timeout reached, forcing close", "error", err)
		return srv.Close()
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the listener address, or empty string if not listening.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
