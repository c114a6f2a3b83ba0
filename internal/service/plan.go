package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/chatdesk/internal/model"
)

// PlanInput creates or partially updates a catalogue plan.
type PlanInput struct {
	Name           *string
	Slug           *string
	Price          *float64
	MaxUsers       *int
	MaxAgents      *int
	MaxDepartments *int
	Features       []string
	RetentionDays  *int
	IsActive       *bool
}

// PlanService manages the global plan catalogue.  Reads are open to every
// authenticated caller; writes are gated to platform administrators by the
// route policy.
type PlanService struct {
	plans PlanStore
}

func NewPlanService(plans PlanStore) *PlanService {
	return &PlanService{plans: plans}
}

func (s *PlanService) Create(ctx context.Context, in PlanInput) (model.Plan, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return model.Plan{}, badRequest("name is required")
	}
	p := model.Plan{ID: uuid.NewString(), IsActive: true, Features: model.StringList{}}
	if in.Slug == nil {
		slug := Slugify(*in.Name)
		in.Slug = &slug
	}
	if err := applyPlan(&p, in); err != nil {
		return p, err
	}
	if _, err := s.plans.GetPlanBySlug(ctx, p.Slug); err == nil {
		return p, conflict("plan %q already exists", p.Slug)
	}
	if err := s.plans.CreatePlan(ctx, &p); err != nil {
		return p, translate(err, "plan")
	}
	return p, nil
}

// FindAll lists plans by ascending price.
func (s *PlanService) FindAll(ctx context.Context, activeOnly bool) ([]model.Plan, error) {
	return s.plans.ListPlans(ctx, activeOnly)
}

func (s *PlanService) FindOne(ctx context.Context, id string) (model.Plan, error) {
	p, err := s.plans.GetPlan(ctx, id)
	return p, translate(err, "plan")
}

func (s *PlanService) Update(ctx context.Context, id string, in PlanInput) (model.Plan, error) {
	p, err := s.FindOne(ctx, id)
	if err != nil {
		return p, err
	}
	oldSlug := p.Slug
	if err := applyPlan(&p, in); err != nil {
		return p, err
	}
	if p.Slug != oldSlug {
		if _, err := s.plans.GetPlanBySlug(ctx, p.Slug); err == nil {
			return p, conflict("plan %q already exists", p.Slug)
		}
	}
	if err := s.plans.UpdatePlan(ctx, p); err != nil {
		return p, translate(err, "plan")
	}
	return p, nil
}

// Remove deletes a plan no subscription references.
func (s *PlanService) Remove(ctx context.Context, id string) error {
	if _, err := s.FindOne(ctx, id); err != nil {
		return err
	}
	n, err := s.plans.CountSubscriptionsForPlan(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return conflict("plan has %d subscription(s)", n)
	}
	return translate(s.plans.DeletePlan(ctx, id), "plan")
}

func applyPlan(p *model.Plan, in PlanInput) error {
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return badRequest("name must not be empty")
		}
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Slug != nil {
		if p.Slug = Slugify(*in.Slug); p.Slug == "" {
			return badRequest("slug must not be empty")
		}
	}
	if in.Price != nil {
		if *in.Price < 0 {
			return badRequest("price must not be negative")
		}
		p.Price = *in.Price
	}
	for _, f := range []struct {
		src *int
		dst *int
		n   string
	}{
		{in.MaxUsers, &p.MaxUsers, "maxUsers"},
		{in.MaxAgents, &p.MaxAgents, "maxAgents"},
		{in.MaxDepartments, &p.MaxDepartments, "maxDepartments"},
		{in.RetentionDays, &p.RetentionDays, "retentionDays"},
	} {
		if f.src == nil {
			continue
		}
		if *f.src < 0 {
			return badRequest("%s must not be negative", f.n)
		}
		*f.dst = *f.src
	}
	if in.Features != nil {
		p.Features = model.StringList(dedupe(in.Features))
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	return nil
}
