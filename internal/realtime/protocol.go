// Package realtime is the websocket gateway: agents and widget visitors
// join company and chat rooms, exchange messages and typing signals, and
// receive server pushes such as newly queued chats.
package realtime

import "encoding/json"

// Client events.
const (
	EventJoinChat    = "join_chat"
	EventSendMessage = "send_message"
	EventTyping      = "typing"
)

// Server events.
const (
	EventReady      = "ready"
	EventAck        = "ack"
	EventNewMessage = "new_message"
)

// Frame is an inbound client frame.  ID is echoed back in the ack.
type Frame struct {
	ID    string          `json:"id,omitempty"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Envelope is an outbound server frame.  Acks carry either Data or Error.
type Envelope struct {
	ID    string `json:"id,omitempty"`
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type joinChatData struct {
	ChatID string `json:"chatId"`
}

type sendMessageData struct {
	ChatID      string `json:"chatId"`
	Content     string `json:"content"`
	MessageType string `json:"messageType,omitempty"`
}

type typingData struct {
	ChatID   string `json:"chatId"`
	IsTyping bool   `json:"isTyping"`
}

// TypingEvent is broadcast to the other members of a chat room.
type TypingEvent struct {
	ChatID     string `json:"chatId"`
	IsTyping   bool   `json:"isTyping"`
	SenderType string `json:"senderType"`
	SenderID   string `json:"senderId,omitempty"`
}

// Room names.
func CompanyRoom(companyID string) string { return "company:" + companyID }
func ChatRoom(chatID string) string       { return "chat:" + chatID }
