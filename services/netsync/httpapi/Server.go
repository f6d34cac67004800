// Package httpapi serves the debug and status endpoints of a NetworkManager:
// health, JSON and text status, manual refresh, a websocket stream of sync
// state changes and prometheus metrics.
package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/timecoin/walletsync/errors"
	"github.com/timecoin/walletsync/services/netsync"
	"github.com/timecoin/walletsync/ulogger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server is the debug HTTP API of one NetworkManager.
type Server struct {
	logger    ulogger.Logger
	manager   netsync.ManagerI
	e         *echo.Echo
	clients   *clientChannelMap
	startedAt time.Time
	done      chan struct{}
	doneOnce  sync.Once
}

// New creates the server and registers its routes. Nothing listens until Start.
func New(logger ulogger.Logger, manager netsync.ManagerI) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost},
	}))

	s := &Server{
		logger:    logger,
		manager:   manager,
		e:         e,
		clients:   newClientChannelMap(),
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	e.GET("/status", s.GetStatus)
	e.GET("/status/sync", s.GetSyncStatus)
	e.GET("/status/peers", s.GetPeerInfo)

	e.GET("/api/v1/sync", s.GetSync)
	e.GET("/api/v1/peers", s.GetPeers)
	e.POST("/api/v1/refresh", s.PostRefresh)

	e.GET("/ws", s.HandleWebSocket)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Start serves on addr until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.logger.Infof("[DebugAPI] listening on %s", addr)

	go s.RunNotifications(ctx)

	go func() {
		<-ctx.Done()
		s.logger.Infof("[DebugAPI] shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.Stop(shutdownCtx); err != nil {
			s.logger.Errorf("[DebugAPI] shutdown error: %v", err)
		}
	}()

	err := s.e.Start(addr)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.NewServiceError("[DebugAPI] failed to serve on %s", addr, err)
	}

	return nil
}

// Stop closes websocket clients and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.doneOnce.Do(func() {
		close(s.done)
	})

	s.clients.closeAll()

	return s.e.Shutdown(ctx)
}
