package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chatdesk/internal/service"
)

type DepartmentHandler struct {
	Departments *service.DepartmentService
}

func NewDepartmentHandler(d *service.DepartmentService) *DepartmentHandler {
	return &DepartmentHandler{Departments: d}
}

type departmentReq struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	IsActive    *bool   `json:"isActive"`
}

func (r departmentReq) input() service.DepartmentInput {
	return service.DepartmentInput{Name: r.Name, Description: r.Description, IsActive: r.IsActive}
}

func (h *DepartmentHandler) Create(c echo.Context) error {
	var req departmentReq
	if err := bindValid(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	d, err := h.Departments.Create(ctx, companyID(c), req.input())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *DepartmentHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Departments.FindAll(ctx, companyID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *DepartmentHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	d, err := h.Departments.FindOne(ctx, companyID(c), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *DepartmentHandler) Update(c echo.Context) error {
	var req departmentReq
	if err := bindValid(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	d, err := h.Departments.Update(ctx, companyID(c), c.Param("id"), req.input())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *DepartmentHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Departments.Remove(ctx, companyID(c), c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
