package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chatdesk/internal/service"
)

type UserHandler struct {
	Users *service.UserService
}

func NewUserHandler(u *service.UserService) *UserHandler {
	return &UserHandler{Users: u}
}

type createUserReq struct {
	Email         string   `json:"email" validate:"required,email"`
	Password      string   `json:"password" validate:"required,min=8,max=72"`
	FirstName     string   `json:"firstName" validate:"required,max=100"`
	LastName      string   `json:"lastName" validate:"max=100"`
	RoleID        string   `json:"roleId" validate:"required"`
	DepartmentIDs []string `json:"departmentIds" validate:"omitempty,dive,required"`
}

type updateUserReq struct {
	FirstName     *string  `json:"firstName" validate:"omitempty,max=100"`
	LastName      *string  `json:"lastName" validate:"omitempty,max=100"`
	Password      *string  `json:"password" validate:"omitempty,min=8,max=72"`
	RoleID        *string  `json:"roleId"`
	IsActive      *bool    `json:"isActive"`
	DepartmentIDs []string `json:"departmentIds" validate:"omitempty,dive,required"`
}

func (h *UserHandler) Create(c echo.Context) error {
	var req createUserReq
	if err := bindValid(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Users.Create(ctx, companyID(c), service.CreateUserInput{
		Email:         req.Email,
		Password:      req.Password,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		RoleID:        req.RoleID,
		DepartmentIDs: req.DepartmentIDs,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *UserHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	page, err := h.Users.FindAll(ctx, companyID(c), paging(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *UserHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Users.FindOne(ctx, companyID(c), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *UserHandler) Update(c echo.Context) error {
	var req updateUserReq
	if err := bindValid(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Users.Update(ctx, companyID(c), c.Param("id"), service.UpdateUserInput{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Password:      req.Password,
		RoleID:        req.RoleID,
		IsActive:      req.IsActive,
		DepartmentIDs: req.DepartmentIDs,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// Delete deactivates the user; rows are never removed.
func (h *UserHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Users.Deactivate(ctx, companyID(c), c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
