package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/chatdesk/internal/model"
)

const (
	planColumns = "id, name, slug, price, max_users, max_agents, max_departments, features, retention_days, is_active, created_at, updated_at"
	subColumns  = "id, company_id, plan_id, status, current_period_start, current_period_end, cancel_at_period_end, created_at, updated_at"
)

// PlanRepo persists the plan catalogue and company subscriptions.
type PlanRepo struct{ db *sqlx.DB }

func NewPlanRepo(db *sqlx.DB) *PlanRepo { return &PlanRepo{db: db} }

func (r *PlanRepo) GetPlan(ctx context.Context, id string) (model.Plan, error) {
	var p model.Plan
	err := r.db.GetContext(ctx, &p, "SELECT "+planColumns+" FROM plans WHERE id = ? LIMIT 1", id)
	return p, mapErr(err)
}

func (r *PlanRepo) GetPlanBySlug(ctx context.Context, slug string) (model.Plan, error) {
	var p model.Plan
	err := r.db.GetContext(ctx, &p, "SELECT "+planColumns+" FROM plans WHERE slug = ? LIMIT 1", slug)
	return p, mapErr(err)
}

// ListPlans returns plans ordered by price.
func (r *PlanRepo) ListPlans(ctx context.Context, activeOnly bool) ([]model.Plan, error) {
	q := "SELECT " + planColumns + " FROM plans"
	if activeOnly {
		q += " WHERE is_active = 1"
	}
	out := []model.Plan{}
	err := r.db.SelectContext(ctx, &out, q+" ORDER BY price ASC")
	return out, err
}

func (r *PlanRepo) CreatePlan(ctx context.Context, p *model.Plan) error {
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO plans
		(id, name, slug, price, max_users, max_agents, max_departments, features, retention_days, is_active, created_at, updated_at)
		VALUES (:id, :name, :slug, :price, :max_users, :max_agents, :max_departments, :features, :retention_days, :is_active, :created_at, :updated_at)`, p)
	return mapErr(err)
}

func (r *PlanRepo) UpdatePlan(ctx context.Context, p model.Plan) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := r.db.NamedExecContext(ctx, `UPDATE plans SET name = :name, slug = :slug, price = :price,
		max_users = :max_users, max_agents = :max_agents, max_departments = :max_departments,
		features = :features, retention_days = :retention_days, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`, p)
	return mapErr(err)
}

func (r *PlanRepo) DeletePlan(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM plans WHERE id = ?", id)
	return mapErr(err)
}

// CountSubscriptionsForPlan counts subscriptions referencing planID.
func (r *PlanRepo) CountSubscriptionsForPlan(ctx context.Context, planID string) (int, error) {
	return countQuery(ctx, r.db, "SELECT COUNT(*) FROM subscriptions WHERE plan_id = ?", planID)
}

// GetSubscriptionByCompany returns the company's subscription with its plan.
func (r *PlanRepo) GetSubscriptionByCompany(ctx context.Context, companyID string) (model.Subscription, error) {
	var s model.Subscription
	if err := r.db.GetContext(ctx, &s,
		"SELECT "+subColumns+" FROM subscriptions WHERE company_id = ? LIMIT 1", companyID); err != nil {
		return s, mapErr(err)
	}
	p, err := r.GetPlan(ctx, s.PlanID)
	if err != nil {
		return s, err
	}
	s.Plan = &p
	return s, nil
}

func (r *PlanRepo) CreateSubscription(ctx context.Context, s *model.Subscription) error {
	return mapErr(insertSubscription(ctx, r.db, s))
}

func insertSubscription(ctx context.Context, db sqlx.ExtContext, s *model.Subscription) error {
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	_, err := sqlx.NamedExecContext(ctx, db, `INSERT INTO subscriptions
		(id, company_id, plan_id, status, current_period_start, current_period_end, cancel_at_period_end, created_at, updated_at)
		VALUES (:id, :company_id, :plan_id, :status, :current_period_start, :current_period_end, :cancel_at_period_end, :created_at, :updated_at)`, s)
	return err
}

func (r *PlanRepo) UpdateSubscription(ctx context.Context, s model.Subscription) error {
	s.UpdatedAt = time.Now().UTC()
	_, err := r.db.NamedExecContext(ctx, `UPDATE subscriptions SET plan_id = :plan_id, status = :status,
		current_period_start = :current_period_start, current_period_end = :current_period_end,
		cancel_at_period_end = :cancel_at_period_end, updated_at = :updated_at WHERE id = :id AND company_id = :company_id`, s)
	return mapErr(err)
}
