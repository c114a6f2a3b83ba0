package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chatdesk/internal/service"
)

type PlanHandler struct {
	Plans *service.PlanService
}

func NewPlanHandler(p *service.PlanService) *PlanHandler {
	return &PlanHandler{Plans: p}
}

type planReq struct {
	Name           *string  `json:"name" validate:"omitempty,min=1,max=100"`
	Slug           *string  `json:"slug" validate:"omitempty,max=50"`
	Price          *float64 `json:"price" validate:"omitempty,min=0"`
	MaxUsers       *int     `json:"maxUsers"`
	MaxAgents      *int     `json:"maxAgents"`
	MaxDepartments *int     `json:"maxDepartments"`
	Features       []string `json:"features"`
	RetentionDays  *int     `json:"retentionDays"`
	IsActive       *bool    `json:"isActive"`
}

func (r planReq) input() service.PlanInput {
	return service.PlanInput{
		Name:           r.Name,
		Slug:           r.Slug,
		Price:          r.Price,
		MaxUsers:       r.MaxUsers,
		MaxAgents:      r.MaxAgents,
		MaxDepartments: r.MaxDepartments,
		Features:       r.Features,
		RetentionDays:  r.RetentionDays,
		IsActive:       r.IsActive,
	}
}

func (h *PlanHandler) Create(c echo.Context) error {
	var req planReq
	if err := bindValid(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Plans.Create(ctx, req.input())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// List returns active plans by price; ?all=true includes inactive ones.
func (h *PlanHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Plans.FindAll(ctx, c.QueryParam("all") != "true")
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *PlanHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Plans.FindOne(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *PlanHandler) Update(c echo.Context) error {
	var req planReq
	if err := bindValid(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Plans.Update(ctx, c.Param("id"), req.input())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *PlanHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Plans.Remove(ctx, c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
