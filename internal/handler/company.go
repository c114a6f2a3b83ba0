package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chatdesk/internal/model"
	"github.com/iliyamo/chatdesk/internal/service"
)

type CompanyHandler struct {
	Companies *service.CompanyService
}

func NewCompanyHandler(s *service.CompanyService) *CompanyHandler {
	return &CompanyHandler{Companies: s}
}

type createCompanyReq struct {
	Name   string `json:"name" validate:"required,max=255"`
	Slug   string `json:"slug" validate:"omitempty,max=63"`
	Domain string `json:"domain" validate:"omitempty,fqdn"`
}

type updateCompanyReq struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=255"`
	Domain   *string `json:"domain" validate:"omitempty,max=255"`
	IsActive *bool   `json:"isActive"`
}

type widgetThemeReq struct {
	Theme model.JSONMap `json:"theme" validate:"required"`
}

func (h *CompanyHandler) Create(c echo.Context) error {
	var req createCompanyReq
	if err := bindValid(c, &req); err != nil {
		return fail(c, err)
	}
	id, err := identity(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	co, err := h.Companies.Create(ctx, id, service.CreateCompanyInput{Name: req.Name, Slug: req.Slug, Domain: req.Domain})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, co)
}

func (h *CompanyHandler) List(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	page, err := h.Companies.FindAll(ctx, id, paging(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// Me returns the caller's own company.
func (h *CompanyHandler) Me(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	co, err := h.Companies.Mine(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, co)
}

func (h *CompanyHandler) Get(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	co, err := h.Companies.FindOne(ctx, id, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, co)
}

// BySlug is public so that login pages can show the tenant's name.
func (h *CompanyHandler) BySlug(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	co, err := h.Companies.FindBySlug(ctx, c.Param("slug"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": co.ID, "name": co.Name, "slug": co.Slug})
}

func (h *CompanyHandler) Update(c echo.Context) error {
	var req updateCompanyReq
	if err := bindValid(c, &req); err != nil {
		return fail(c, err)
	}
	id, err := identity(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	co, err := h.Companies.Update(ctx, id, c.Param("id"), service.UpdateCompanyInput{
		Name:     req.Name,
		Domain:   req.Domain,
		IsActive: req.IsActive,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, co)
}

func (h *CompanyHandler) UpdateWidgetTheme(c echo.Context) error {
	var req widgetThemeReq
	if err := bindValid(c, &req); err != nil {
		return fail(c, err)
	}
	id, err := identity(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	co, err := h.Companies.UpdateWidgetTheme(ctx, id, req.Theme)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, co)
}

func (h *CompanyHandler) Delete(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Companies.Deactivate(ctx, id, c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
