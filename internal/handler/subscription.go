package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chatdesk/internal/model"
	"github.com/iliyamo/chatdesk/internal/service"
)

// SubscriptionHandler manages the caller's company subscription.
type SubscriptionHandler struct {
	Subs *service.SubscriptionService
}

func NewSubscriptionHandler(s *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{Subs: s}
}

type planChangeReq struct {
	PlanID string `json:"planId" validate:"required"`
}

func (h *SubscriptionHandler) Current(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	sub, err := h.Subs.Current(ctx, companyID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, sub)
}

func (h *SubscriptionHandler) Create(c echo.Context) error {
	return h.apply(c, http.StatusCreated, h.Subs.Create)
}

func (h *SubscriptionHandler) ChangePlan(c echo.Context) error {
	return h.apply(c, http.StatusOK, h.Subs.ChangePlan)
}

func (h *SubscriptionHandler) Upgrade(c echo.Context) error {
	return h.apply(c, http.StatusOK, h.Subs.Upgrade)
}

func (h *SubscriptionHandler) apply(c echo.Context, status int, op func(ctx context.Context, companyID, planID string) (model.Subscription, error)) error {
	var req planChangeReq
	if err := bindValid(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	sub, err := op(ctx, companyID(c), req.PlanID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(status, sub)
}

func (h *SubscriptionHandler) Cancel(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	sub, err := h.Subs.Cancel(ctx, companyID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, sub)
}

// Limits reports plan limits next to current usage.
func (h *SubscriptionHandler) Limits(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	usage, err := h.Subs.Limits(ctx, companyID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, usage)
}
