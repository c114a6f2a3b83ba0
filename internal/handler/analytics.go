package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chatdesk/internal/service"
)

type AnalyticsHandler struct {
	Analytics *service.AnalyticsService
}

func NewAnalyticsHandler(a *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{Analytics: a}
}

func (h *AnalyticsHandler) ChatStats(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	stats, err := h.Analytics.ChatStats(ctx, companyID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// Events lists recorded lifecycle events, optionally filtered by ?type=.
func (h *AnalyticsHandler) Events(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	page, err := h.Analytics.Events(ctx, companyID(c), c.QueryParam("type"), paging(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, page)
}
