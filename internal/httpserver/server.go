// Package httpserver exposes the read surface of the pipeline: health,
// the latest digest snapshot, prometheus metrics, and a websocket feed
// of live digest updates.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/0xNerd/degen-server/internal/domain"
)

var (
	errHubFull    = errors.New("websocket hub full")
	errHubStopped = errors.New("websocket hub stopped")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Per-IP websocket connection rate, tokens per second plus burst.
const (
	wsConnRate  = 2.0
	wsConnBurst = 5
)

type Server struct {
	echo      *echo.Echo
	port      string
	store     domain.Store
	health    HealthChecker
	hub       *Hub
	wsLimiter *connRateLimiter
	startTime time.Time
}

// NewServer creates the HTTP server. hub may already be forwarding a
// digest feed; the server only registers and unregisters clients.
func NewServer(port string, store domain.Store, health HealthChecker, hub *Hub) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())

	srv := &Server{
		echo:      e,
		port:      port,
		store:     store,
		health:    health,
		hub:       hub,
		wsLimiter: newConnRateLimiter(wsConnRate, wsConnBurst),
		startTime: time.Now(),
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/api/digest/latest", s.handleLatestDigest)
	s.echo.GET("/ws", s.handleWebSocket)
}

func (s *Server) Start() error {
	slog.Info("starting http server", "port", s.port)
	return s.echo.Start(fmt.Sprintf(":%s", s.port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := s.health.Ping(ctx); err != nil {
		return c.JSON(503, map[string]any{
			"status":       "unhealthy",
			"failed_check": "redis",
			"error":        err.Error(),
		})
	}

	return c.JSON(200, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Seconds(),
	})
}

// handleLatestDigest serves the last-known-good snapshot. A pipeline
// that has not completed a cycle yet (or whose snapshot expired) is a
// 404, not an error.
func (s *Server) handleLatestDigest(c echo.Context) error {
	payload, found, err := s.store.Get(c.Request().Context(), domain.KeyLatestDigest)
	if err != nil {
		slog.Error("failed to read digest snapshot", "error", err)
		return c.JSON(500, map[string]string{"error": "snapshot unavailable"})
	}
	if !found {
		return c.JSON(404, map[string]string{"error": "no digest published yet"})
	}
	return c.JSONBlob(200, payload)
}

func (s *Server) handleWebSocket(c echo.Context) error {
	if !s.wsLimiter.allow(c.RealIP()) {
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "connection rate exceeded"})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("upgrade websocket: %w", err)
	}

	if err := s.hub.Register(conn); err != nil {
		return nil
	}

	// Read pump, blocks until the client disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.hub.Unregister(conn)
	return nil
}
