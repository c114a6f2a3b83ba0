package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/chatdesk/internal/logger"
	"github.com/iliyamo/chatdesk/internal/model"
	"github.com/iliyamo/chatdesk/internal/repository"
)

// subscriptionPeriodDays is the length of a paid billing period.
const subscriptionPeriodDays = 30

// SubscriptionService manages the single subscription of a company.  No
// payment is taken; status changes are bookkeeping only.
type SubscriptionService struct {
	plans   PlanStore
	checker *PlanChecker
}

func NewSubscriptionService(plans PlanStore, checker *PlanChecker) *SubscriptionService {
	return &SubscriptionService{plans: plans, checker: checker}
}

// Current returns the company's subscription with its plan, whatever its status.
func (s *SubscriptionService) Current(ctx context.Context, companyID string) (model.Subscription, error) {
	sub, err := s.plans.GetSubscriptionByCompany(ctx, companyID)
	return sub, translate(err, "subscription")
}

// Create subscribes a company that has none yet.
func (s *SubscriptionService) Create(ctx context.Context, companyID, planID string) (model.Subscription, error) {
	_, err := s.plans.GetSubscriptionByCompany(ctx, companyID)
	switch {
	case err == nil:
		return model.Subscription{}, conflict("company already has a subscription")
	case !errors.Is(err, repository.ErrNotFound):
		return model.Subscription{}, err
	}
	plan, err := s.activePlan(ctx, planID)
	if err != nil {
		return model.Subscription{}, err
	}
	now := nowUTC()
	sub := model.Subscription{
		ID:                 uuid.NewString(),
		CompanyID:          companyID,
		PlanID:             plan.ID,
		Status:             model.SubscriptionActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 0, subscriptionPeriodDays),
		Plan:               &plan,
	}
	if err := s.plans.CreateSubscription(ctx, &sub); err != nil {
		return sub, translate(err, "subscription")
	}
	return sub, nil
}

// ChangePlan moves the company to another plan and starts a new period.
func (s *SubscriptionService) ChangePlan(ctx context.Context, companyID, planID string) (model.Subscription, error) {
	return s.change(ctx, companyID, planID, false)
}

// Upgrade is ChangePlan restricted to a more expensive plan.
func (s *SubscriptionService) Upgrade(ctx context.Context, companyID, planID string) (model.Subscription, error) {
	return s.change(ctx, companyID, planID, true)
}

func (s *SubscriptionService) change(ctx context.Context, companyID, planID string, upgradeOnly bool) (model.Subscription, error) {
	sub, err := s.Current(ctx, companyID)
	if err != nil {
		return sub, err
	}
	plan, err := s.activePlan(ctx, planID)
	if err != nil {
		return sub, err
	}
	if upgradeOnly && sub.Plan != nil && plan.Price <= sub.Plan.Price {
		return sub, forbidden("can only upgrade to a higher plan")
	}
	now := nowUTC()
	sub.PlanID = plan.ID
	sub.Plan = &plan
	sub.Status = model.SubscriptionActive
	sub.CancelAtPeriodEnd = false
	sub.CurrentPeriodStart = now
	sub.CurrentPeriodEnd = now.AddDate(0, 0, subscriptionPeriodDays)
	if err := s.plans.UpdateSubscription(ctx, sub); err != nil {
		return sub, translate(err, "subscription")
	}
	logger.FromContext(ctx).Info("subscription changed",
		zap.String("company_id", companyID), zap.String("plan", plan.Slug))
	return sub, nil
}

// Cancel marks the subscription cancelled at the end of its period.
func (s *SubscriptionService) Cancel(ctx context.Context, companyID string) (model.Subscription, error) {
	sub, err := s.Current(ctx, companyID)
	if err != nil {
		return sub, err
	}
	if sub.Status == model.SubscriptionCancelled {
		return sub, conflict("subscription already cancelled")
	}
	sub.Status = model.SubscriptionCancelled
	sub.CancelAtPeriodEnd = true
	if err := s.plans.UpdateSubscription(ctx, sub); err != nil {
		return sub, translate(err, "subscription")
	}
	return sub, nil
}

// Limits reports plan usage for the company.
func (s *SubscriptionService) Limits(ctx context.Context, companyID string) (PlanUsage, error) {
	return s.checker.Limits(ctx, companyID)
}

func (s *SubscriptionService) activePlan(ctx context.Context, planID string) (model.Plan, error) {
	plan, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return plan, translate(err, "plan")
	}
	if !plan.IsActive {
		return plan, badRequest("plan %q is not available", plan.Slug)
	}
	return plan, nil
}
