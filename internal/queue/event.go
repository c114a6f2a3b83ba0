// Package queue carries chat lifecycle events over RabbitMQ.  Events are
// consumed by the analytics writer; losing one never affects chat state.
package queue

import "time"

// ChatEventsQueue is the durable queue chat events are published to.
const ChatEventsQueue = "chat.events"

// Event types.
const (
	EventChatCreated  = "chat_created"
	EventChatAssigned = "chat_assigned"
	EventChatClosed   = "chat_closed"
	EventMessageSent  = "message_sent"
)

// ChatEvent is published whenever a chat changes state or receives a
// message.  It carries enough context for analytics without a lookup.
type ChatEvent struct {
	Type       string         `json:"type"`
	CompanyID  string         `json:"company_id"`
	ChatID     string         `json:"chat_id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
