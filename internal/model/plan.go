package model

import "time"

// Subscription statuses.
const (
	SubscriptionTrial     = "trial"
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
)

// Plan is a global subscription tier: numeric ceilings plus feature flags.
type Plan struct {
	ID             string     `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	Slug           string     `db:"slug" json:"slug"`
	Price          float64    `db:"price" json:"price"`
	MaxUsers       int        `db:"max_users" json:"maxUsers"`
	MaxAgents      int        `db:"max_agents" json:"maxAgents"`
	MaxDepartments int        `db:"max_departments" json:"maxDepartments"`
	Features       StringList `db:"features" json:"features"`
	RetentionDays  int        `db:"retention_days" json:"retentionDays"`
	IsActive       bool       `db:"is_active" json:"isActive"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// Subscription links a company to a plan.  One per company.
type Subscription struct {
	ID                 string    `db:"id" json:"id"`
	CompanyID          string    `db:"company_id" json:"companyId"`
	PlanID             string    `db:"plan_id" json:"planId"`
	Status             string    `db:"status" json:"status"`
	CurrentPeriodStart time.Time `db:"current_period_start" json:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time `db:"current_period_end" json:"currentPeriodEnd"`
	CancelAtPeriodEnd  bool      `db:"cancel_at_period_end" json:"cancelAtPeriodEnd"`
	CreatedAt          time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time `db:"updated_at" json:"updatedAt"`

	Plan *Plan `db:"-" json:"plan,omitempty"`
}

// Entitled reports whether the subscription grants plan features.
func (s Subscription) Entitled() bool {
	return s.Status == SubscriptionActive || s.Status == SubscriptionTrial
}
