package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/chatdesk/internal/model"
	"github.com/iliyamo/chatdesk/internal/queue"
)

// CreateMessageInput is a message posted to a chat.
type CreateMessageInput struct {
	ChatID      string
	Content     string
	MessageType string
	SenderType  string
	SenderID    string
	Metadata    model.JSONMap
}

// MessageService ingests and lists chat messages.  Every operation is
// scoped through the chat's company.
type MessageService struct {
	messages MessageStore
	users    UserStore
	chats    *ChatService
	events   EventPublisher
}

func NewMessageService(messages MessageStore, users UserStore, chats *ChatService, events EventPublisher) *MessageService {
	if events == nil {
		events = nopPublisher{}
	}
	return &MessageService{messages: messages, users: users, chats: chats, events: events}
}

// Create persists a message.  A visitor message on a pending chat moves the
// chat to active.  The returned message is durable before Create returns.
func (s *MessageService) Create(ctx context.Context, companyID string, in CreateMessageInput) (model.Message, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return model.Message{}, badRequest("content is required")
	}
	chat, err := s.chats.Get(ctx, companyID, in.ChatID)
	if err != nil {
		return model.Message{}, err
	}
	if chat.Status == model.ChatClosed {
		return model.Message{}, conflict("chat is closed")
	}

	m := model.Message{
		ID:          uuid.NewString(),
		ChatID:      chat.ID,
		Content:     content,
		MessageType: in.MessageType,
		SenderType:  in.SenderType,
		Metadata:    in.Metadata,
	}
	if m.MessageType == "" {
		m.MessageType = "text"
	}
	if in.SenderID != "" {
		if m.SenderType == model.SenderVisitor {
			return model.Message{}, badRequest("a visitor message cannot carry a user sender")
		}
		if _, err := s.users.GetUserForCompany(ctx, companyID, in.SenderID); err != nil {
			return model.Message{}, translate(err, "sender")
		}
		m.SenderID = &in.SenderID
		if m.SenderType == "" {
			m.SenderType = model.SenderAgent
		}
	}
	if m.SenderType == "" {
		m.SenderType = model.SenderVisitor
	}
	switch m.SenderType {
	case model.SenderVisitor, model.SenderAgent, model.SenderSystem:
	default:
		return model.Message{}, badRequest("unknown sender type %q", m.SenderType)
	}

	if err := s.messages.CreateMessage(ctx, &m); err != nil {
		return model.Message{}, translate(err, "message")
	}
	if m.SenderType == model.SenderVisitor && chat.Status == model.ChatPending {
		if err := s.chats.MarkActive(ctx, companyID, chat.ID); err != nil {
			return m, err
		}
	}

	ev := queue.ChatEvent{Type: queue.EventMessageSent, CompanyID: companyID, ChatID: chat.ID,
		Data: map[string]any{"senderType": m.SenderType, "messageType": m.MessageType}}
	if m.SenderID != nil {
		ev.UserID = *m.SenderID
	}
	s.events.Publish(ctx, ev)
	return m, nil
}

// ListByChat pages backwards from the newest message: page 1 holds the
// latest messages, each page in chronological order.
func (s *MessageService) ListByChat(ctx context.Context, companyID, chatID string, p Paging) (Page[model.Message], error) {
	if _, err := s.chats.Get(ctx, companyID, chatID); err != nil {
		return Page[model.Message]{}, err
	}
	p = p.normalize(50)
	msgs, total, err := s.messages.ListMessages(ctx, chatID, p.offset(), p.Limit)
	if err != nil {
		return Page[model.Message]{}, err
	}
	return newPage(msgs, total, p), nil
}

// FindOne returns a message if its chat belongs to companyID.
func (s *MessageService) FindOne(ctx context.Context, companyID, id string) (model.Message, error) {
	m, err := s.messages.GetMessage(ctx, id)
	if err != nil {
		return m, translate(err, "message")
	}
	if _, err := s.chats.Get(ctx, companyID, m.ChatID); err != nil {
		return model.Message{}, err
	}
	return m, nil
}

// MarkAsRead marks the chat's messages not sent by userID as read and
// returns how many changed.
func (s *MessageService) MarkAsRead(ctx context.Context, companyID, chatID, userID string) (int64, error) {
	if _, err := s.chats.Get(ctx, companyID, chatID); err != nil {
		return 0, err
	}
	return s.messages.MarkRead(ctx, chatID, userID, nowUTC())
}
