// Package http exposes the chatbot over an HTTP API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/tungtran1995/chatbot-server-test/internal/config"
	"github.com/tungtran1995/chatbot-server-test/internal/logging"
	"github.com/tungtran1995/chatbot-server-test/internal/orchestrator"
)

// ChatHandler serves one chat request. Implemented by the
// orchestrator; a fake in tests.
type ChatHandler interface {
	Handle(ctx context.Context, req orchestrator.Request) orchestrator.Reply
}

// Server hosts the chatbot HTTP endpoints.
type Server struct {
	echo    *echo.Echo
	handler ChatHandler
	logger  *logging.Logger
	config  config.ServerConfig
	metrics *Metrics
}

// NewServer creates the HTTP server with routing and middleware.
func NewServer(handler ChatHandler, cfg config.ServerConfig, logger *logging.Logger) (*Server, error) {
	if handler == nil {
		return nil, fmt.Errorf("chat handler is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if len(cfg.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.CORSOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		}))
	}
	if timeout := cfg.RequestTimeout.Duration(); timeout > 0 {
		e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
			Timeout: timeout,
		}))
	}

	s := &Server{
		echo:    e,
		handler: handler,
		logger:  logger,
		config:  cfg,
		metrics: NewMetrics(logger),
	}

	e.Use(s.requestLogger)
	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/chatbot", s.handleChat)
}

// requestLogger logs every request and records its metrics, carrying
// the request id on the context so downstream log lines correlate.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		requestID := c.Response().Header().Get(echo.HeaderXRequestID)
		ctx := logging.WithRequestID(c.Request().Context(), requestID)
		c.SetRequest(c.Request().WithContext(ctx))

		err := next(c)
		duration := time.Since(start)

		status := c.Response().Status
		if err != nil {
			if httpErr, ok := err.(*echo.HTTPError); ok {
				status = httpErr.Code
			}
		}

		s.metrics.Record(ctx, c.Request().Method, c.Path(), status, duration)
		s.logger.Info(ctx, "http request",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", status),
			zap.Duration("duration", duration),
		)

		return err
	}
}

// ChatRequest is the body for POST /api/v1/chatbot.
type ChatRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

// HealthResponse is the body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleChat runs one query through the orchestrator. Responses marked
// cacheable here: the orchestrator still only writes the cache on the
// product route.
func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}

	ctx := logging.WithSessionID(c.Request().Context(), req.SessionID)

	reply := s.handler.Handle(ctx, orchestrator.Request{
		Query:     req.Query,
		SessionID: req.SessionID,
		Cacheable: true,
	})

	return c.JSON(http.StatusOK, reply)
}

// Start serves until the listener closes.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Echo exposes the router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
