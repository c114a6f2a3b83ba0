package service

import (
	"context"
	"errors"

	"github.com/iliyamo/chatdesk/internal/model"
	"github.com/iliyamo/chatdesk/internal/repository"
)

// LimitType names a countable plan resource.
type LimitType string

const (
	LimitUsers       LimitType = "users"
	LimitAgents      LimitType = "agents"
	LimitDepartments LimitType = "departments"
)

// Plan features.
const (
	FeatureRoles      = "roles"
	FeatureReports    = "reports"
	FeatureAutomation = "automation"
	FeatureAPIAccess  = "api_access"
)

// PlanChecker enforces a company's subscription tier.  Limit checks are
// soft: they are not in the same transaction as the create that follows, so
// two concurrent creates may both pass and end one over the limit.
type PlanChecker struct {
	plans PlanStore
	users UserStore
	depts DepartmentStore
}

func NewPlanChecker(plans PlanStore, users UserStore, depts DepartmentStore) *PlanChecker {
	return &PlanChecker{plans: plans, users: users, depts: depts}
}

// Subscription returns the company's entitled subscription with its plan,
// or Forbidden when there is none.
func (p *PlanChecker) Subscription(ctx context.Context, companyID string) (model.Subscription, error) {
	sub, err := p.plans.GetSubscriptionByCompany(ctx, companyID)
	if errors.Is(err, repository.ErrNotFound) {
		return sub, forbidden("active subscription required")
	}
	if err != nil {
		return sub, err
	}
	if !sub.Entitled() || sub.Plan == nil {
		return sub, forbidden("active subscription required")
	}
	return sub, nil
}

// CheckFeatureAccess reports whether the company's plan includes feature.
func (p *PlanChecker) CheckFeatureAccess(ctx context.Context, companyID, feature string) (bool, error) {
	sub, err := p.Subscription(ctx, companyID)
	if err != nil {
		return false, err
	}
	return sub.Plan.Features.Contains(feature), nil
}

// RequireFeature is CheckFeatureAccess turned into a Forbidden error.
func (p *PlanChecker) RequireFeature(ctx context.Context, companyID, feature string) error {
	ok, err := p.CheckFeatureAccess(ctx, companyID, feature)
	if err != nil {
		return err
	}
	if !ok {
		e := forbidden("feature %q is not available on your plan", feature)
		e.Details = map[string]any{"feature": feature}
		return e
	}
	return nil
}

// CheckLimit fails with Forbidden when the company is at or above the
// plan's maximum for the resource.
func (p *PlanChecker) CheckLimit(ctx context.Context, companyID string, limit LimitType) error {
	sub, err := p.Subscription(ctx, companyID)
	if err != nil {
		return err
	}
	current, err := p.count(ctx, companyID, limit)
	if err != nil {
		return err
	}
	max := maxFor(*sub.Plan, limit)
	if current >= max {
		e := forbidden("plan limit reached for %s: %d/%d, please upgrade your plan", limit, current, max)
		e.Details = map[string]any{"limit": string(limit), "current": current, "max": max}
		return e
	}
	return nil
}

func (p *PlanChecker) count(ctx context.Context, companyID string, limit LimitType) (int, error) {
	switch limit {
	case LimitUsers:
		return p.users.CountActiveUsers(ctx, companyID, "")
	case LimitAgents:
		return p.users.CountActiveUsers(ctx, companyID, model.RoleAgent)
	case LimitDepartments:
		return p.depts.CountActiveDepartments(ctx, companyID)
	}
	return 0, badRequest("unknown limit type %q", limit)
}

func maxFor(plan model.Plan, limit LimitType) int {
	switch limit {
	case LimitUsers:
		return plan.MaxUsers
	case LimitAgents:
		return plan.MaxAgents
	case LimitDepartments:
		return plan.MaxDepartments
	}
	return 0
}

// Usage is current/max/remaining of one resource.
type Usage struct {
	Current   int `json:"current"`
	Max       int `json:"max"`
	Remaining int `json:"remaining"`
}

// PlanUsage summarises a company's plan consumption.
type PlanUsage struct {
	Plan     model.Plan          `json:"plan"`
	Status   string              `json:"status"`
	Limits   map[LimitType]Usage `json:"limits"`
	Features []string            `json:"features"`
}

// Limits reports usage of every limited resource.
func (p *PlanChecker) Limits(ctx context.Context, companyID string) (PlanUsage, error) {
	sub, err := p.Subscription(ctx, companyID)
	if err != nil {
		return PlanUsage{}, err
	}
	out := PlanUsage{Plan: *sub.Plan, Status: sub.Status, Limits: map[LimitType]Usage{}, Features: sub.Plan.Features}
	for _, l := range []LimitType{LimitUsers, LimitAgents, LimitDepartments} {
		current, err := p.count(ctx, companyID, l)
		if err != nil {
			return PlanUsage{}, err
		}
		max := maxFor(*sub.Plan, l)
		remaining := max - current
		if remaining < 0 {
			remaining = 0
		}
		out.Limits[l] = Usage{Current: current, Max: max, Remaining: remaining}
	}
	return out, nil
}
