package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chatdesk/internal/service"
)

// WidgetHandler serves the embeddable widget.  Every route is public and
// keyed by the company's widget key.
type WidgetHandler struct {
	Widget *service.WidgetService
}

func NewWidgetHandler(w *service.WidgetService) *WidgetHandler {
	return &WidgetHandler{Widget: w}
}

func (h *WidgetHandler) Config(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	cfg, err := h.Widget.Config(ctx, c.Param("widgetKey"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, cfg)
}

func (h *WidgetHandler) OnlineAgents(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	agents, err := h.Widget.OnlineAgents(ctx, c.QueryParam("widgetKey"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"agents": agents, "online": len(agents) > 0})
}
