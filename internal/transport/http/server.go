// Package http provides the HTTP server implementation for the chat proxy.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/integritas/internal/config"
	"github.com/xiaot623/integritas/internal/service"
	"github.com/xiaot623/integritas/internal/transport/ws"
)

// NewServer creates and configures the HTTP server. The chat, stream, upload
// and WebSocket routes live under cfg.BasePath; /health and /metrics do not.
func NewServer(cfg *config.Config, svc *service.Service) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(svc.Metrics().Middleware())

	// Handlers
	h := NewHandler(svc, cfg.UploadMaxSize)
	wsServer := ws.NewServer(svc)

	// Register Routes
	api := e.Group(cfg.BasePath)
	h.RegisterRoutes(e, api)
	wsServer.RegisterRoutes(api)

	return e
}
