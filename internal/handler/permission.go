package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chatdesk/internal/service"
)

// PermissionHandler exposes the read-only permission catalogue.
type PermissionHandler struct {
	Perms *service.PermissionEvaluator
}

func NewPermissionHandler(p *service.PermissionEvaluator) *PermissionHandler {
	return &PermissionHandler{Perms: p}
}

func (h *PermissionHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Perms.ListPermissions(ctx, c.QueryParam("category"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *PermissionHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Perms.GetPermission(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}
