package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/chatdesk/internal/logger"
	"github.com/iliyamo/chatdesk/internal/model"
	"github.com/iliyamo/chatdesk/internal/queue"
	"github.com/iliyamo/chatdesk/internal/repository"
)

// CreateChatInput is a visitor-initiated chat request.
type CreateChatInput struct {
	VisitorID    string
	VisitorName  string
	VisitorEmail string
	DepartmentID string
	Priority     string
	Metadata     model.JSONMap
	VisitorIP    string
	UserAgent    string
}

// UpdateChatInput is a partial update; nil fields are left unchanged.
type UpdateChatInput struct {
	Status       *string
	Priority     *string
	DepartmentID *string
	Rating       *int
	Feedback     *string
}

// ChatFilter narrows FindAll.
type ChatFilter struct {
	Status string
	Paging
}

// ChatDetail is a chat with its current assignment and message count, and
// for FindOne its history.
type ChatDetail struct {
	model.Chat
	Assignment   *model.ChatAssignment `json:"assignment"`
	MessageCount int                   `json:"messageCount"`
	Messages     []model.Message       `json:"messages,omitempty"`
}

// ChatService drives the chat lifecycle: pending -> active -> assigned ->
// closed.  Persistence is the source of truth; the queue is an index kept in
// step on a best-effort basis.
type ChatService struct {
	chats    ChatStore
	messages MessageStore
	depts    DepartmentStore
	users    UserStore
	queue    Queue
	events   EventPublisher
	notify   Notifier
}

func NewChatService(chats ChatStore, messages MessageStore, depts DepartmentStore, users UserStore,
	q Queue, events EventPublisher, notify Notifier) *ChatService {
	if events == nil {
		events = nopPublisher{}
	}
	if notify == nil {
		notify = nopNotifier{}
	}
	return &ChatService{chats: chats, messages: messages, depts: depts, users: users, queue: q, events: events, notify: notify}
}

// Create opens a pending chat for a visitor and queues it.
func (s *ChatService) Create(ctx context.Context, companyID string, in CreateChatInput) (ChatDetail, error) {
	c := model.Chat{
		ID:        uuid.NewString(),
		CompanyID: companyID,
		VisitorID: strings.TrimSpace(in.VisitorID),
		Status:    model.ChatPending,
		Priority:  in.Priority,
		Metadata:  in.Metadata,
	}
	if c.VisitorID == "" {
		c.VisitorID = "visitor_" + uuid.NewString()
	}
	if c.Priority == "" {
		c.Priority = "normal"
	}
	c.VisitorName = optional(in.VisitorName)
	c.VisitorEmail = optional(in.VisitorEmail)
	c.VisitorIP = optional(in.VisitorIP)
	c.UserAgent = optional(in.UserAgent)

	if in.DepartmentID != "" {
		if err := s.checkDepartment(ctx, companyID, in.DepartmentID); err != nil {
			return ChatDetail{}, err
		}
		c.DepartmentID = &in.DepartmentID
	}

	if err := s.chats.CreateChat(ctx, &c); err != nil {
		return ChatDetail{}, translate(err, "chat")
	}
	s.queue.Enqueue(ctx, companyID, c.ID)

	s.events.Publish(ctx, queue.ChatEvent{Type: queue.EventChatCreated, CompanyID: companyID, ChatID: c.ID,
		Data: map[string]any{"visitorId": c.VisitorID}})
	s.notify.NotifyCompany(companyID, "chat_queued", c)
	logger.FromContext(ctx).Info("chat created", zap.String("chat_id", c.ID), zap.String("company_id", companyID))

	return ChatDetail{Chat: c}, nil
}

func (s *ChatService) checkDepartment(ctx context.Context, companyID, deptID string) error {
	if _, err := s.depts.GetDepartmentForCompany(ctx, companyID, deptID); err != nil {
		return translate(err, "department")
	}
	return nil
}

// FindAll pages through the company's chats, newest first.
func (s *ChatService) FindAll(ctx context.Context, companyID string, f ChatFilter) (Page[ChatDetail], error) {
	p := f.Paging.normalize(10)
	if f.Status != "" && !model.ValidChatStatus(f.Status) {
		return Page[ChatDetail]{}, badRequest("unknown chat status %q", f.Status)
	}
	chats, total, err := s.chats.ListChats(ctx, companyID, f.Status, p.offset(), p.Limit)
	if err != nil {
		return Page[ChatDetail]{}, err
	}
	out := make([]ChatDetail, 0, len(chats))
	for _, c := range chats {
		d, err := s.decorate(ctx, c)
		if err != nil {
			return Page[ChatDetail]{}, err
		}
		out = append(out, d)
	}
	return newPage(out, total, p), nil
}

// Get returns the chat if it belongs to companyID: NotFound when it does not
// exist, Forbidden when it belongs to another company.
func (s *ChatService) Get(ctx context.Context, companyID, id string) (model.Chat, error) {
	c, err := s.chats.GetChatForCompany(ctx, companyID, id)
	return c, translate(err, "chat")
}

// FindOne returns the chat with its assignment and full message history.
func (s *ChatService) FindOne(ctx context.Context, companyID, id string) (ChatDetail, error) {
	c, err := s.Get(ctx, companyID, id)
	if err != nil {
		return ChatDetail{}, err
	}
	d, err := s.decorate(ctx, c)
	if err != nil {
		return ChatDetail{}, err
	}
	msgs, _, err := s.messages.ListMessages(ctx, c.ID, 0, maxHistory)
	if err != nil {
		return ChatDetail{}, err
	}
	d.Messages = msgs
	return d, nil
}

// maxHistory bounds the history returned inline by FindOne.
const maxHistory = 500

func (s *ChatService) decorate(ctx context.Context, c model.Chat) (ChatDetail, error) {
	a, err := s.chats.ActiveAssignment(ctx, c.ID)
	if err != nil {
		return ChatDetail{}, err
	}
	n, err := s.messages.CountMessages(ctx, c.ID)
	if err != nil {
		return ChatDetail{}, err
	}
	return ChatDetail{Chat: c, Assignment: a, MessageCount: n}, nil
}

// Update applies a partial update to the row as locked by the store; only
// supplied fields change.  Closing a chat stamps closedAt once and drops it
// from the queue.
func (s *ChatService) Update(ctx context.Context, companyID, id string, in UpdateChatInput) (model.Chat, error) {
	if in.Status != nil && !model.ValidChatStatus(*in.Status) {
		return model.Chat{}, badRequest("unknown chat status %q", *in.Status)
	}
	if in.Rating != nil && (*in.Rating < 1 || *in.Rating > 5) {
		return model.Chat{}, badRequest("rating must be between 1 and 5")
	}
	if _, err := s.Get(ctx, companyID, id); err != nil {
		return model.Chat{}, err
	}
	if in.DepartmentID != nil && *in.DepartmentID != "" {
		if err := s.checkDepartment(ctx, companyID, *in.DepartmentID); err != nil {
			return model.Chat{}, err
		}
	}

	var closing bool
	c, err := s.chats.UpdateChat(ctx, companyID, id, func(c *model.Chat) error {
		if in.Status != nil {
			wasClosed := c.Status == model.ChatClosed
			c.Status = *in.Status
			closing = c.Status == model.ChatClosed && !wasClosed
			switch {
			case closing:
				now := nowUTC()
				c.ClosedAt = &now
			case c.Status != model.ChatClosed:
				c.ClosedAt = nil
			}
		}
		if in.Rating != nil {
			c.Rating = in.Rating
		}
		if in.Priority != nil {
			c.Priority = *in.Priority
		}
		if in.Feedback != nil {
			c.Feedback = in.Feedback
		}
		if in.DepartmentID != nil {
			if *in.DepartmentID == "" {
				c.DepartmentID = nil
			} else {
				c.DepartmentID = in.DepartmentID
			}
		}
		return nil
	})
	if err != nil {
		return c, translate(err, "chat")
	}

	// the queue only follows explicit status changes
	if in.Status != nil {
		if c.Status == model.ChatPending {
			s.queue.Enqueue(ctx, companyID, c.ID)
		} else {
			s.queue.Dequeue(ctx, companyID, c.ID)
		}
	}
	if closing {
		s.events.Publish(ctx, queue.ChatEvent{Type: queue.EventChatClosed, CompanyID: companyID, ChatID: c.ID})
	}
	return c, nil
}

// Assign makes agentID the single active assignee of the chat.  The
// deactivate-then-insert sequence runs as one transaction in the store.
func (s *ChatService) Assign(ctx context.Context, companyID, id, agentID, assignedBy string) (ChatDetail, error) {
	if _, err := s.Get(ctx, companyID, id); err != nil {
		return ChatDetail{}, err
	}
	agent, err := s.users.GetUserForCompany(ctx, companyID, agentID)
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrForbidden):
		// an agent of another company is reported as missing
		return ChatDetail{}, notFound("agent")
	case err != nil:
		return ChatDetail{}, err
	case !agent.IsActive:
		return ChatDetail{}, notFound("agent")
	}

	a := model.ChatAssignment{ID: uuid.NewString(), UserID: agent.ID}
	if assignedBy != "" {
		a.AssignedBy = &assignedBy
	}
	if err := s.chats.ReassignChat(ctx, companyID, id, &a); err != nil {
		return ChatDetail{}, translate(err, "chat")
	}
	s.queue.Dequeue(ctx, companyID, id)

	s.events.Publish(ctx, queue.ChatEvent{Type: queue.EventChatAssigned, CompanyID: companyID, ChatID: id, UserID: agent.ID})

	c, err := s.Get(ctx, companyID, id)
	if err != nil {
		return ChatDetail{}, err
	}
	d, err := s.decorate(ctx, c)
	if err != nil {
		return ChatDetail{}, err
	}
	s.notify.NotifyCompany(companyID, "chat_assigned", d)
	return d, nil
}

// Queue returns the company's pending chats, oldest first.  The queue
// store only nominates candidates; each is re-checked against the database
// and stale members are removed from the index.
func (s *ChatService) Queue(ctx context.Context, companyID string) ([]model.Chat, error) {
	ids := s.queue.QueuedChatIDs(ctx, companyID)
	if len(ids) == 0 {
		return []model.Chat{}, nil
	}
	chats, err := s.chats.ListPendingByIDs(ctx, companyID, ids)
	if err != nil {
		return nil, err
	}
	if len(chats) < len(ids) {
		live := make(map[string]bool, len(chats))
		for _, c := range chats {
			live[c.ID] = true
		}
		var stale []string
		for _, id := range ids {
			if !live[id] {
				stale = append(stale, id)
			}
		}
		s.queue.Dequeue(ctx, companyID, stale...)
	}
	return chats, nil
}

// MarkActive moves a pending chat to active.  Called when a visitor sends
// the first message.
func (s *ChatService) MarkActive(ctx context.Context, companyID, id string) error {
	moved, err := s.chats.ActivatePending(ctx, companyID, id)
	if err != nil {
		return err
	}
	if moved {
		s.queue.Dequeue(ctx, companyID, id)
	}
	return nil
}

// Assignments returns the assignment history of a chat.
func (s *ChatService) Assignments(ctx context.Context, companyID, id string) ([]model.ChatAssignment, error) {
	if _, err := s.Get(ctx, companyID, id); err != nil {
		return nil, err
	}
	return s.chats.ListAssignments(ctx, id)
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
