package service

import (
	"context"
	"time"

	"github.com/iliyamo/chatdesk/internal/model"
	"github.com/iliyamo/chatdesk/internal/queue"
)

// The interfaces below are the persistence surface the services need.  The
// MySQL repositories implement them; tests use an in-memory store.
// Tenant-scoped lookups take the company id explicitly and report a row of
// another company as repository.ErrForbidden.

type CompanyStore interface {
	GetCompany(ctx context.Context, id string) (model.Company, error)
	GetCompanyBySlug(ctx context.Context, slug string) (model.Company, error)
	GetCompanyByWidgetKey(ctx context.Context, key string) (model.Company, error)
	CreateCompany(ctx context.Context, c *model.Company) error
	UpdateCompany(ctx context.Context, c model.Company) error
	ListCompanies(ctx context.Context, offset, limit int) ([]model.Company, int, error)
	CountCompanies(ctx context.Context, activeOnly bool) (int, error)
	RegisterCompany(ctx context.Context, c *model.Company, admin *model.User, sub *model.Subscription) error
}

type UserStore interface {
	GetUser(ctx context.Context, id string) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	GetUserForCompany(ctx context.Context, companyID, id string) (model.User, error)
	ListUsers(ctx context.Context, companyID string, offset, limit int) ([]model.User, int, error)
	ListUsersByIDs(ctx context.Context, companyID string, ids []string) ([]model.User, error)
	CreateUser(ctx context.Context, u *model.User) error
	UpdateUser(ctx context.Context, u model.User) error
	CountActiveUsers(ctx context.Context, companyID, roleName string) (int, error)
	CountUsers(ctx context.Context) (int, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

type RoleStore interface {
	GetRole(ctx context.Context, id string) (model.Role, error)
	GetSystemRoleByName(ctx context.Context, name string) (model.Role, error)
	ListRoles(ctx context.Context, companyID string) ([]model.Role, error)
	RoleNameExists(ctx context.Context, companyID, name, excludeID string) (bool, error)
	CreateRole(ctx context.Context, r *model.Role, permissionIDs []string) error
	UpdateRole(ctx context.Context, r model.Role, permissionIDs []string) error
	DeleteRole(ctx context.Context, id string) error
	CountUsersWithRole(ctx context.Context, roleID string) (int, error)
	PermissionNamesForRole(ctx context.Context, roleID string) ([]string, error)
	ListPermissions(ctx context.Context, category string) ([]model.Permission, error)
	GetPermission(ctx context.Context, id string) (model.Permission, error)
	PermissionsByIDs(ctx context.Context, ids []string) ([]model.Permission, error)
}

type PlanStore interface {
	GetPlan(ctx context.Context, id string) (model.Plan, error)
	GetPlanBySlug(ctx context.Context, slug string) (model.Plan, error)
	ListPlans(ctx context.Context, activeOnly bool) ([]model.Plan, error)
	CreatePlan(ctx context.Context, p *model.Plan) error
	UpdatePlan(ctx context.Context, p model.Plan) error
	DeletePlan(ctx context.Context, id string) error
	CountSubscriptionsForPlan(ctx context.Context, planID string) (int, error)
	GetSubscriptionByCompany(ctx context.Context, companyID string) (model.Subscription, error)
	CreateSubscription(ctx context.Context, s *model.Subscription) error
	UpdateSubscription(ctx context.Context, s model.Subscription) error
}

type DepartmentStore interface {
	GetDepartmentForCompany(ctx context.Context, companyID, id string) (model.Department, error)
	ListDepartments(ctx context.Context, companyID string) ([]model.Department, error)
	DepartmentNameExists(ctx context.Context, companyID, name, excludeID string) (bool, error)
	CreateDepartment(ctx context.Context, d *model.Department) error
	UpdateDepartment(ctx context.Context, d model.Department) error
	DeleteDepartment(ctx context.Context, companyID, id string) error
	CountActiveDepartments(ctx context.Context, companyID string) (int, error)
	CountChatsForDepartment(ctx context.Context, id string) (int, error)
	CountDepartmentsInCompany(ctx context.Context, companyID string, ids []string) (int, error)
}

type ChatStore interface {
	CreateChat(ctx context.Context, c *model.Chat) error
	GetChatForCompany(ctx context.Context, companyID, id string) (model.Chat, error)
	ListChats(ctx context.Context, companyID, status string, offset, limit int) ([]model.Chat, int, error)
	// UpdateChat locks the chat, passes it to apply and writes back the
	// result.  Concurrent writers to the same chat are serialised.
	UpdateChat(ctx context.Context, companyID, id string, apply func(*model.Chat) error) (model.Chat, error)
	ActivatePending(ctx context.Context, companyID, id string) (bool, error)
	ReassignChat(ctx context.Context, companyID, chatID string, a *model.ChatAssignment) error
	ActiveAssignment(ctx context.Context, chatID string) (*model.ChatAssignment, error)
	ListAssignments(ctx context.Context, chatID string) ([]model.ChatAssignment, error)
	ListPendingByIDs(ctx context.Context, companyID string, ids []string) ([]model.Chat, error)
	CountChatsByStatus(ctx context.Context, companyID string) (map[string]int, error)
	CountChats(ctx context.Context) (int, error)
}

type MessageStore interface {
	CreateMessage(ctx context.Context, m *model.Message) error
	GetMessage(ctx context.Context, id string) (model.Message, error)
	ListMessages(ctx context.Context, chatID string, offset, limit int) ([]model.Message, int, error)
	CountMessages(ctx context.Context, chatID string) (int, error)
	MarkRead(ctx context.Context, chatID, readerID string, at time.Time) (int64, error)
	AvgFirstResponseSeconds(ctx context.Context, companyID string) (float64, error)
}

type AnalyticsStore interface {
	InsertEvent(ctx context.Context, e *model.AnalyticsEvent) error
	ListEvents(ctx context.Context, companyID, eventType string, offset, limit int) ([]model.AnalyticsEvent, int, error)
}

type TokenStore interface {
	StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (string, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

// Queue is the pending-chat index.  Implementations never fail; an
// unavailable backend answers with an empty list.
type Queue interface {
	Enqueue(ctx context.Context, companyID, chatID string)
	Dequeue(ctx context.Context, companyID string, chatIDs ...string)
	QueuedChatIDs(ctx context.Context, companyID string) []string
}

// Presence tracks online agents with the same never-fail contract.
type Presence interface {
	MarkOnline(ctx context.Context, companyID, userID string)
	MarkOffline(ctx context.Context, companyID, userID string)
	OnlineUserIDs(ctx context.Context, companyID string) []string
}

// EventPublisher emits chat lifecycle events.  Delivery is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ChatEvent)
}

// Notifier pushes server-initiated events to a company's connected agents.
type Notifier interface {
	NotifyCompany(companyID, event string, data any)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, queue.ChatEvent) {}

type nopNotifier struct{}

func (nopNotifier) NotifyCompany(string, string, any) {}
