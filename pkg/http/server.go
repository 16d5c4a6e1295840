package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"StockCast/pkg/http/middleware"
	"StockCast/pkg/logger"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler mounts its routes on the server's Echo instance.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

// ServerOption configures Server.
type ServerOption func(*ServerConfig)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORS            bool
	AllowOrigins    []string
	MetricsPath     string
	Registry        *prometheus.Registry
	SlowThreshold   time.Duration
	Middleware      []echo.MiddlewareFunc
	Logger          *logger.Logger
}

// Server wraps Echo HTTP server.
type Server struct {
	echo   *echo.Echo
	config *ServerConfig
	log    *logger.Logger
}

// NewServer creates a new HTTP server with Echo.
func NewServer(handler Handler, opts ...ServerOption) *Server {
	cfg := &ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		CORS:            true,
		AllowOrigins:    []string{"*"},
		SlowThreshold:   2 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout
	e.HTTPErrorHandler = errorHandler(cfg.Logger)

	e.Use(middleware.Recover(cfg.Logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogging(cfg.Logger))

	if cfg.MetricsPath != "" {
		var reg prometheus.Registerer = prometheus.DefaultRegisterer
		var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
		if cfg.Registry != nil {
			reg, gatherer = cfg.Registry, cfg.Registry
		}
		e.Use(middleware.Metrics(reg, cfg.Logger, cfg.SlowThreshold))
		e.GET(cfg.MetricsPath, echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	if cfg.CORS {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins: cfg.AllowOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{
				echo.HeaderOrigin,
				echo.HeaderContentType,
				echo.HeaderAccept,
				echo.HeaderAuthorization,
				echo.HeaderXRequestID,
			},
			ExposeHeaders: []string{echo.HeaderXRequestID},
		}))
	}

	e.Use(cfg.Middleware...)

	if handler != nil {
		handler.RegisterRoutes(e)
	}

	return &Server{
		echo:   e,
		config: cfg,
		log:    cfg.Logger,
	}
}

// Start binds the listen address and serves in the background. Bind errors are returned.
func (s *Server) Start() error {
	addr := s.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.echo.Listener = ln

	go func() {
		s.log.Info("http server: listening", logger.String("addr", ln.Addr().String()))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server error", logger.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.log.Info("http server: stopped gracefully")
	return nil
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// WithHost sets the listen host.
func WithHost(host string) ServerOption {
	return func(c *ServerConfig) { c.Host = host }
}

// WithPort sets the listen port; 0 picks a free one.
func WithPort(port int) ServerOption {
	return func(c *ServerConfig) { c.Port = port }
}

// WithTimeouts sets read, write and shutdown timeouts. Zero keeps the default.
func WithTimeouts(read, write, shutdown time.Duration) ServerOption {
	return func(c *ServerConfig) {
		if read > 0 {
			c.ReadTimeout = read
		}
		if write > 0 {
			c.WriteTimeout = write
		}
		if shutdown > 0 {
			c.ShutdownTimeout = shutdown
		}
	}
}

// WithCORS toggles CORS. Without origins every origin is allowed.
func WithCORS(enabled bool, origins ...string) ServerOption {
	return func(c *ServerConfig) {
		c.CORS = enabled
		if len(origins) > 0 {
			c.AllowOrigins = origins
		}
	}
}

func WithLogger(l *logger.Logger) ServerOption {
	return func(c *ServerConfig) { c.Logger = l }
}

// WithMetrics serves reg on path and records request metrics; slow requests above slow are logged.
func WithMetrics(path string, reg *prometheus.Registry, slow time.Duration) ServerOption {
	return func(c *ServerConfig) {
		c.MetricsPath = path
		c.Registry = reg
		if slow > 0 {
			c.SlowThreshold = slow
		}
	}
}

// WithMiddleware appends middleware that runs after the built-in chain.
func WithMiddleware(mw ...echo.MiddlewareFunc) ServerOption {
	return func(c *ServerConfig) { c.Middleware = append(c.Middleware, mw...) }
}

// errorHandler renders echo's own errors (unknown route, bad method) in the AppError envelope.
func errorHandler(l *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var he *echo.HTTPError
		if errors.As(err, &he) {
			appErr := NewAppError(CodeForStatus(he.Code), "", fmt.Sprint(he.Message), he.Code)
			_ = AppErrorResponse(c, appErr)
			return
		}
		l.Error("unhandled handler error", logger.String("path", c.Path()), logger.Error(err))
		_ = InternalServerErrorResponse(c)
	}
}
