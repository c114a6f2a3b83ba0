package service

import (
	"context"
	"strings"

	"github.com/iliyamo/chatdesk/internal/model"
)

// defaultWidgetTheme is served when a company never customised its widget.
func defaultWidgetTheme() model.JSONMap {
	return model.JSONMap{"primaryColor": "#007bff", "position": "bottom-right"}
}

// WidgetConfig is the public configuration of an embedded chat widget.
type WidgetConfig struct {
	CompanyID string        `json:"companyId"`
	WidgetKey string        `json:"widgetKey"`
	Theme     model.JSONMap `json:"theme"`
	IsActive  bool          `json:"isActive"`
}

// OnlineAgent is the public view of an available agent.
type OnlineAgent struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// WidgetService serves the unauthenticated widget endpoints.  Callers are
// identified by the company's widget key only.
type WidgetService struct {
	companies CompanyStore
	users     UserStore
	plans     *PlanChecker
	presence  Presence
}

func NewWidgetService(companies CompanyStore, users UserStore, plans *PlanChecker, presence Presence) *WidgetService {
	return &WidgetService{companies: companies, users: users, plans: plans, presence: presence}
}

// ResolveWidgetKey returns the active company owning key.
func (s *WidgetService) ResolveWidgetKey(ctx context.Context, key string) (model.Company, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return model.Company{}, badRequest("widget key is required")
	}
	c, err := s.companies.GetCompanyByWidgetKey(ctx, key)
	if err != nil {
		return c, translate(err, "widget")
	}
	if !c.IsActive {
		return c, forbidden("company is inactive")
	}
	return c, nil
}

// Config returns the widget configuration.  The company must be active and
// hold an entitled subscription.
func (s *WidgetService) Config(ctx context.Context, key string) (WidgetConfig, error) {
	c, err := s.ResolveWidgetKey(ctx, key)
	if err != nil {
		return WidgetConfig{}, err
	}
	if _, err := s.plans.Subscription(ctx, c.ID); err != nil {
		return WidgetConfig{}, err
	}
	theme := c.WidgetTheme
	if len(theme) == 0 {
		theme = defaultWidgetTheme()
	}
	return WidgetConfig{CompanyID: c.ID, WidgetKey: c.WidgetKey, Theme: theme, IsActive: c.IsActive}, nil
}

// OnlineAgents lists the company's active agents that currently hold a
// realtime connection.  An unavailable presence store yields an empty list.
func (s *WidgetService) OnlineAgents(ctx context.Context, key string) ([]OnlineAgent, error) {
	c, err := s.ResolveWidgetKey(ctx, key)
	if err != nil {
		return nil, err
	}
	out := []OnlineAgent{}
	ids := s.presence.OnlineUserIDs(ctx, c.ID)
	if len(ids) == 0 {
		return out, nil
	}
	users, err := s.users.ListUsersByIDs(ctx, c.ID, ids)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.IsActive && u.RoleName == model.RoleAgent {
			out = append(out, OnlineAgent{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName})
		}
	}
	return out, nil
}
