package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// PingHandler serves /api/health for liveness.
type PingHandler struct {
	logger *slog.Logger
}

// NewPingHandler creates a ping handler.
func NewPingHandler(log *slog.Logger) *PingHandler {
	return &PingHandler{logger: log.With(slog.String("handler", "ping"))}
}

// Register mounts GET and HEAD /api/health on the Echo instance.
func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/api/health", h.Health)
	e.HEAD("/api/health", h.HealthHead)
}

// Health returns 200 JSON {"status":"ok"}.
func (h *PingHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// HealthHead returns 200 No Content for health checks.
func (h *PingHandler) HealthHead(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
