package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chatdesk/internal/service"
)

// AuthHandler serves registration, login and token lifecycle endpoints.
type AuthHandler struct {
	Auth *service.AuthService
}

func NewAuthHandler(a *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: a}
}

// ----- DTOs -----

type registerReq struct {
	CompanyName string `json:"companyName" validate:"required,max=255"`
	Slug        string `json:"slug" validate:"omitempty,max=63"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	FirstName   string `json:"firstName" validate:"required,max=100"`
	LastName    string `json:"lastName" validate:"max=100"`
	Plan        string `json:"plan" validate:"omitempty,max=50"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
	All          bool   `json:"all"`
}

// RegisterCompany creates a tenant with its first administrator and logs
// the administrator in.
func (h *AuthHandler) RegisterCompany(c echo.Context) error {
	var req registerReq
	if err := bindValid(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Auth.RegisterCompany(ctx, service.RegisterInput{
		CompanyName: req.CompanyName,
		Slug:        req.Slug,
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PlanSlug:    req.Plan,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// CompanyLogin authenticates company staff.
func (h *AuthHandler) CompanyLogin(c echo.Context) error {
	return h.login(c, service.AudienceCompany)
}

// AdminLogin authenticates platform administrators.
func (h *AuthHandler) AdminLogin(c echo.Context) error {
	return h.login(c, service.AudienceAdmin)
}

func (h *AuthHandler) login(c echo.Context, aud service.Audience) error {
	var req loginReq
	if err := bindValid(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Auth.Login(ctx, req.Email, req.Password, aud)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Refresh rotates a refresh token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bindValid(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Auth.Refresh(ctx, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Logout revokes the given refresh token, or every session of its user
// when "all" is set.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := bindValid(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Auth.Logout(ctx, strings.TrimSpace(req.RefreshToken), req.All); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated user and company.
func (h *AuthHandler) Me(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, co, err := h.Auth.Me(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u, "company": co})
}
