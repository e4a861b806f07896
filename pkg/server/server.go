package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/fern/pkg/middleware"
)

type Config struct {
	ServiceName       string
	Port              int
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int
	AllowOrigins      []string
	AllowMethods      []string
	AllowHeaders      []string
	TracingEnabled    bool
	MetricsEnabled    bool
}

// Server owns the echo instance and the http.Server it is mounted on.
type Server struct {
	echo     *echo.Echo
	http     *http.Server
	cfg      Config
	logger   ectologger.Logger
	listener net.Listener
	done     chan error
}

func New(cfg Config, logger ectologger.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)

	e.Use(middleware.Context())
	if cfg.TracingEnabled {
		e.Use(otelecho.Middleware(cfg.ServiceName))
	}
	e.Use(middleware.Logger(logger))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
		AllowHeaders: cfg.AllowHeaders,
	}))

	if cfg.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	return &Server{
		echo: e,
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           e,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			MaxHeaderBytes:    cfg.MaxHeaderBytes,
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Echo exposes the router so routes can be registered before Start.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Addr is the bound address once Start has returned.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.http.Addr
	}
	return s.listener.Addr().String()
}

// Start binds the port and serves in the background. Bind errors are returned
// directly.
func (s *Server) Start(ctx context.Context) error {
	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.http.Addr, err)
	}
	s.listener = listener
	s.done = make(chan error, 1)

	go func() {
		err := s.http.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()

	s.logger.WithContext(ctx).Infof("HTTP server listening on %s", s.Addr())
	return nil
}

// Stop drains in-flight requests for up to ShutdownTimeout.
func (s *Server) Stop(ctx context.Context) error {
	if s.done == nil {
		return nil
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	err := <-s.done
	s.done = nil
	s.logger.WithContext(ctx).Info("HTTP server stopped")
	return err
}
