package model

import "time"

// Chat statuses.  Only these four form the lifecycle; priority is free text.
const (
	ChatPending  = "pending"
	ChatActive   = "active"
	ChatAssigned = "assigned"
	ChatClosed   = "closed"
)

// ValidChatStatus reports whether s is a known lifecycle status.
func ValidChatStatus(s string) bool {
	switch s {
	case ChatPending, ChatActive, ChatAssigned, ChatClosed:
		return true
	}
	return false
}

// Sender types of a message.
const (
	SenderVisitor = "visitor"
	SenderAgent   = "agent"
	SenderSystem  = "system"
)

// Chat is a visitor conversation with a company.
type Chat struct {
	ID           string     `db:"id" json:"id"`
	CompanyID    string     `db:"company_id" json:"companyId"`
	DepartmentID *string    `db:"department_id" json:"departmentId,omitempty"`
	VisitorID    string     `db:"visitor_id" json:"visitorId"`
	VisitorName  *string    `db:"visitor_name" json:"visitorName,omitempty"`
	VisitorEmail *string    `db:"visitor_email" json:"visitorEmail,omitempty"`
	VisitorIP    *string    `db:"visitor_ip" json:"visitorIp,omitempty"`
	UserAgent    *string    `db:"user_agent" json:"userAgent,omitempty"`
	Status       string     `db:"status" json:"status"`
	Priority     string     `db:"priority" json:"priority"`
	Rating       *int       `db:"rating" json:"rating,omitempty"`
	Feedback     *string    `db:"feedback" json:"feedback,omitempty"`
	Metadata     JSONMap    `db:"metadata" json:"metadata,omitempty"`
	ClosedAt     *time.Time `db:"closed_at" json:"closedAt,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// ChatAssignment binds a chat to one agent.  At most one row per chat has
// IsActive set.
type ChatAssignment struct {
	ID           string     `db:"id" json:"id"`
	ChatID       string     `db:"chat_id" json:"chatId"`
	UserID       string     `db:"user_id" json:"userId"`
	AssignedBy   *string    `db:"assigned_by" json:"assignedBy,omitempty"`
	IsActive     bool       `db:"is_active" json:"isActive"`
	AssignedAt   time.Time  `db:"assigned_at" json:"assignedAt"`
	UnassignedAt *time.Time `db:"unassigned_at" json:"unassignedAt,omitempty"`
}

// Message belongs to a chat.  SenderID is nil for visitor messages.
type Message struct {
	ID          string     `db:"id" json:"id"`
	ChatID      string     `db:"chat_id" json:"chatId"`
	SenderID    *string    `db:"sender_id" json:"senderId,omitempty"`
	SenderType  string     `db:"sender_type" json:"senderType"`
	Content     string     `db:"content" json:"content"`
	MessageType string     `db:"message_type" json:"messageType"`
	Metadata    JSONMap    `db:"metadata" json:"metadata,omitempty"`
	IsRead      bool       `db:"is_read" json:"isRead"`
	ReadAt      *time.Time `db:"read_at" json:"readAt,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
}

// AnalyticsEvent is an append-only, company scoped record.
type AnalyticsEvent struct {
	ID        string    `db:"id" json:"id"`
	CompanyID string    `db:"company_id" json:"companyId"`
	EventType string    `db:"event_type" json:"eventType"`
	ChatID    *string   `db:"chat_id" json:"chatId,omitempty"`
	UserID    *string   `db:"user_id" json:"userId,omitempty"`
	Data      JSONMap   `db:"data" json:"data,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
