package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chatdesk/internal/service"
)

type RoleHandler struct {
	Roles *service.RoleService
}

func NewRoleHandler(r *service.RoleService) *RoleHandler {
	return &RoleHandler{Roles: r}
}

type roleReq struct {
	Name          *string  `json:"name" validate:"omitempty,min=1,max=100"`
	Description   *string  `json:"description" validate:"omitempty,max=500"`
	PermissionIDs []string `json:"permissionIds" validate:"omitempty,dive,required"`
}

func (r roleReq) input() service.RoleInput {
	return service.RoleInput{Name: r.Name, Description: r.Description, PermissionIDs: r.PermissionIDs}
}

func (h *RoleHandler) Create(c echo.Context) error {
	var req roleReq
	if err := bindValid(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	role, err := h.Roles.Create(ctx, companyID(c), req.input())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, role)
}

// List returns the system roles plus the tenant's own.
func (h *RoleHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	roles, err := h.Roles.FindAll(ctx, companyID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, roles)
}

func (h *RoleHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	role, err := h.Roles.FindOne(ctx, companyID(c), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, role)
}

func (h *RoleHandler) Update(c echo.Context) error {
	var req roleReq
	if err := bindValid(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	role, err := h.Roles.Update(ctx, companyID(c), c.Param("id"), req.input())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, role)
}

func (h *RoleHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Roles.Remove(ctx, companyID(c), c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
