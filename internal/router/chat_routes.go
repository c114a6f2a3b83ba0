package router

import (
	"github.com/labstack/echo/v4"
)

// registerChatRoutes covers agent-side chat handling and messaging.
func registerChatRoutes(g *echo.Group, h Handlers) {
	g.GET("/chats", h.Chats.List)
	g.GET("/chats/queue", h.Chats.Queue)
	g.GET("/chats/:id", h.Chats.Get)
	g.PATCH("/chats/:id", h.Chats.Update)
	g.POST("/chats/:id/assign", h.Chats.Assign)
	g.GET("/chats/:id/assignments", h.Chats.Assignments)

	g.POST("/messages", h.Messages.Create)
	g.GET("/messages/chat/:chatId", h.Messages.ListByChat)
	g.POST("/messages/chat/:chatId/read", h.Messages.MarkRead)
	g.GET("/messages/:id", h.Messages.Get)

	g.GET("/analytics/chats", h.Analytics.ChatStats)
	g.GET("/analytics/events", h.Analytics.Events)
}
