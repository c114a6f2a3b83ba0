package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chatdesk/internal/model"
	"github.com/iliyamo/chatdesk/internal/service"
)

// MessagePoster serialises message creation per chat and fans the stored
// message out to connected clients.
type MessagePoster interface {
	PostMessage(chatID string, create func() (model.Message, error)) (model.Message, error)
}

type MessageHandler struct {
	Messages *service.MessageService
	Rooms    MessagePoster // optional
}

func NewMessageHandler(m *service.MessageService, rooms MessagePoster) *MessageHandler {
	return &MessageHandler{Messages: m, Rooms: rooms}
}

type createMessageReq struct {
	ChatID      string        `json:"chatId" validate:"required"`
	Content     string        `json:"content" validate:"required,max=10000"`
	MessageType string        `json:"messageType" validate:"omitempty,oneof=text image file system"`
	SenderType  string        `json:"senderType" validate:"omitempty,oneof=agent system"`
	Metadata    model.JSONMap `json:"metadata"`
}

// Create posts a message as the authenticated user.
func (h *MessageHandler) Create(c echo.Context) error {
	var req createMessageReq
	if err := bindValid(c, &req); err != nil {
		return fail(c, err)
	}
	id, err := identity(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	create := func() (model.Message, error) {
		return h.Messages.Create(ctx, companyID(c), service.CreateMessageInput{
			ChatID:      req.ChatID,
			Content:     req.Content,
			MessageType: req.MessageType,
			SenderType:  req.SenderType,
			SenderID:    id.UserID,
			Metadata:    req.Metadata,
		})
	}
	var m model.Message
	if h.Rooms != nil {
		m, err = h.Rooms.PostMessage(req.ChatID, create)
	} else {
		m, err = create()
	}
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *MessageHandler) ListByChat(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	page, err := h.Messages.ListByChat(ctx, companyID(c), c.Param("chatId"), paging(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *MessageHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	m, err := h.Messages.FindOne(ctx, companyID(c), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// MarkRead marks the chat's messages from others as read by the caller.
func (h *MessageHandler) MarkRead(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	n, err := h.Messages.MarkAsRead(ctx, companyID(c), c.Param("chatId"), id.UserID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"updated": n})
}
