package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/perpdash/internal/domain"
	"github.com/alanyoungcy/perpdash/internal/server/handler"
	"github.com/alanyoungcy/perpdash/internal/server/middleware"
	"github.com/alanyoungcy/perpdash/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // empty disables authentication

	// RateLimit requests per RateWindow per client IP; 0 disables.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates the HTTP handlers the server registers. Metrics and
// the hub are optional.
type Handlers struct {
	Health    *handler.HealthHandler
	Orders    *handler.OrderHandler
	Sizing    *handler.SizingHandler
	Portfolio *handler.PortfolioHandler
	Metrics   http.Handler
}

// Server is the HTTP + WebSocket API of perpdash.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// public paths skip authentication.
var public = []string{"/api/health", "/metrics"}

// NewServer registers every route and wraps the mux in the middleware chain:
// rate limit, auth, logging, CORS (outermost last).
func NewServer(cfg Config, handlers Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("POST /api/orders/preview", handlers.Orders.Preview)
	mux.HandleFunc("POST /api/orders", handlers.Orders.Submit)
	mux.HandleFunc("GET /api/orders", handlers.Orders.List)
	mux.HandleFunc("GET /api/orders/{id}", handlers.Orders.Get)

	mux.HandleFunc("POST /api/sizing/convert", handlers.Sizing.Convert)
	mux.HandleFunc("POST /api/sizing/percentage", handlers.Sizing.Percentage)

	mux.HandleFunc("GET /api/portfolio", handlers.Portfolio.Get)
	mux.HandleFunc("POST /api/portfolio/refresh", handlers.Portfolio.Refresh)
	mux.HandleFunc("GET /api/portfolio/history", handlers.Portfolio.History)

	if handlers.Metrics != nil {
		mux.Handle("GET /metrics", handlers.Metrics)
	}
	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow, logger)(h)
	h = middleware.Auth(cfg.APIKey, public...)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		handler: h,
		logger:  logger,
	}
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
