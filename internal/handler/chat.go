package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chatdesk/internal/middleware"
	"github.com/iliyamo/chatdesk/internal/model"
	"github.com/iliyamo/chatdesk/internal/service"
)

// ChatHandler serves chat lifecycle endpoints.  Chat creation is public and
// identified by widget key; everything else is tenant scoped.
type ChatHandler struct {
	Chats  *service.ChatService
	Widget *service.WidgetService
}

func NewChatHandler(chats *service.ChatService, widget *service.WidgetService) *ChatHandler {
	return &ChatHandler{Chats: chats, Widget: widget}
}

type createChatReq struct {
	WidgetKey    string        `json:"widgetKey"`
	VisitorID    string        `json:"visitorId" validate:"omitempty,max=100"`
	VisitorName  string        `json:"visitorName" validate:"omitempty,max=255"`
	VisitorEmail string        `json:"visitorEmail" validate:"omitempty,email"`
	DepartmentID string        `json:"departmentId" validate:"omitempty,uuid"`
	Priority     string        `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	Metadata     model.JSONMap `json:"metadata"`
}

type updateChatReq struct {
	Status       *string `json:"status" validate:"omitempty,oneof=pending active assigned closed"`
	Priority     *string `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	DepartmentID *string `json:"departmentId"`
	Rating       *int    `json:"rating" validate:"omitempty,min=1,max=5"`
	Feedback     *string `json:"feedback" validate:"omitempty,max=2000"`
}

type assignReq struct {
	AgentID string `json:"agentId" validate:"required"`
}

// Create opens a chat from the widget.  The widget key comes from the
// X-Widget-Key header or the body.
func (h *ChatHandler) Create(c echo.Context) error {
	var req createChatReq
	if err := bindValid(c, &req); err != nil {
		return fail(c, err)
	}
	key := c.Request().Header.Get(middleware.HeaderWidgetKey)
	if key == "" {
		key = req.WidgetKey
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	company, err := h.Widget.ResolveWidgetKey(ctx, key)
	if err != nil {
		return fail(c, err)
	}
	d, err := h.Chats.Create(ctx, company.ID, service.CreateChatInput{
		VisitorID:    req.VisitorID,
		VisitorName:  req.VisitorName,
		VisitorEmail: req.VisitorEmail,
		DepartmentID: req.DepartmentID,
		Priority:     req.Priority,
		Metadata:     req.Metadata,
		VisitorIP:    c.RealIP(),
		UserAgent:    c.Request().UserAgent(),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *ChatHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	page, err := h.Chats.FindAll(ctx, companyID(c), service.ChatFilter{Status: c.QueryParam("status"), Paging: paging(c)})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// Queue lists pending chats, oldest first.
func (h *ChatHandler) Queue(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	chats, err := h.Chats.Queue(ctx, companyID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": chats, "total": len(chats)})
}

func (h *ChatHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	d, err := h.Chats.FindOne(ctx, companyID(c), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *ChatHandler) Update(c echo.Context) error {
	var req updateChatReq
	if err := bindValid(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	chat, err := h.Chats.Update(ctx, companyID(c), c.Param("id"), service.UpdateChatInput{
		Status:       req.Status,
		Priority:     req.Priority,
		DepartmentID: req.DepartmentID,
		Rating:       req.Rating,
		Feedback:     req.Feedback,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, chat)
}

func (h *ChatHandler) Assign(c echo.Context) error {
	var req assignReq
	if err := bindValid(c, &req); err != nil {
		return fail(c, err)
	}
	id, err := identity(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	d, err := h.Chats.Assign(ctx, companyID(c), c.Param("id"), req.AgentID, id.UserID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// Assignments returns the assignment history of a chat.
func (h *ChatHandler) Assignments(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Chats.Assignments(ctx, companyID(c), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, list)
}
