package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chatdesk/internal/presence"
)

// HealthHandler reports liveness plus the state of the backing stores.
type HealthHandler struct {
	DB       interface{ PingContext(context.Context) error }
	Presence interface{ State() presence.State }
}

// Health answers 200 while the database is reachable.  A degraded presence
// store is reported but does not fail the check: chats keep working
// without it.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	body := echo.Map{"status": "ok"}
	if h.Presence != nil {
		body["presence"] = h.Presence.State().String()
	}
	if h.DB != nil {
		if err := h.DB.PingContext(ctx); err != nil {
			body["status"] = "unavailable"
			body["database"] = "down"
			return c.JSON(http.StatusServiceUnavailable, body)
		}
		body["database"] = "up"
	}
	return c.JSON(http.StatusOK, body)
}
