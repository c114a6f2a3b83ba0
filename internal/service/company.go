package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/chatdesk/internal/model"
)

// CreateCompanyInput is a platform-admin company creation.
type CreateCompanyInput struct {
	Name   string
	Slug   string
	Domain string
}

// UpdateCompanyInput is a partial update.  IsActive is honoured for
// platform administrators only.
type UpdateCompanyInput struct {
	Name     *string
	Domain   *string
	IsActive *bool
}

type CompanyService struct {
	companies CompanyStore
}

func NewCompanyService(companies CompanyStore) *CompanyService {
	return &CompanyService{companies: companies}
}

func (s *CompanyService) Create(ctx context.Context, id Identity, in CreateCompanyInput) (model.Company, error) {
	if !id.IsSuperAdmin() {
		return model.Company{}, forbidden("insufficient role")
	}
	slug := Slugify(in.Slug)
	if slug == "" {
		slug = Slugify(in.Name)
	}
	if slug == "" {
		return model.Company{}, badRequest("company name or slug is required")
	}
	if _, err := s.companies.GetCompanyBySlug(ctx, slug); err == nil {
		return model.Company{}, conflict("company slug %q is taken", slug)
	}
	c := model.Company{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Slug:      slug,
		Domain:    optional(in.Domain),
		WidgetKey: "widget_" + uuid.NewString(),
		IsActive:  true,
	}
	if err := s.companies.CreateCompany(ctx, &c); err != nil {
		return c, translate(err, "company")
	}
	return c, nil
}

func (s *CompanyService) FindAll(ctx context.Context, id Identity, p Paging) (Page[model.Company], error) {
	if !id.IsSuperAdmin() {
		return Page[model.Company]{}, forbidden("insufficient role")
	}
	p = p.normalize(10)
	list, total, err := s.companies.ListCompanies(ctx, p.offset(), p.Limit)
	if err != nil {
		return Page[model.Company]{}, err
	}
	return newPage(list, total, p), nil
}

// FindOne returns a company; callers other than platform administrators may
// only read their own.
func (s *CompanyService) FindOne(ctx context.Context, id Identity, companyID string) (model.Company, error) {
	c, err := s.companies.GetCompany(ctx, companyID)
	if err != nil {
		return c, translate(err, "company")
	}
	if !id.IsSuperAdmin() && c.ID != id.CompanyID {
		return model.Company{}, forbidden("access to company denied")
	}
	return c, nil
}

func (s *CompanyService) FindBySlug(ctx context.Context, slug string) (model.Company, error) {
	c, err := s.companies.GetCompanyBySlug(ctx, strings.ToLower(slug))
	return c, translate(err, "company")
}

// Mine returns the caller's own company.
func (s *CompanyService) Mine(ctx context.Context, id Identity) (model.Company, error) {
	return s.FindOne(ctx, id, id.CompanyID)
}

func (s *CompanyService) Update(ctx context.Context, id Identity, companyID string, in UpdateCompanyInput) (model.Company, error) {
	c, err := s.FindOne(ctx, id, companyID)
	if err != nil {
		return c, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return c, badRequest("name must not be empty")
		}
		c.Name = name
	}
	if in.Domain != nil {
		c.Domain = optional(*in.Domain)
	}
	if in.IsActive != nil {
		if !id.IsSuperAdmin() {
			return c, forbidden("only platform administrators may change company status")
		}
		c.IsActive = *in.IsActive
	}
	if err := s.companies.UpdateCompany(ctx, c); err != nil {
		return c, translate(err, "company")
	}
	return c, nil
}

// UpdateWidgetTheme replaces the widget theme of the caller's company.
func (s *CompanyService) UpdateWidgetTheme(ctx context.Context, id Identity, theme model.JSONMap) (model.Company, error) {
	c, err := s.Mine(ctx, id)
	if err != nil {
		return c, err
	}
	c.WidgetTheme = theme
	if err := s.companies.UpdateCompany(ctx, c); err != nil {
		return c, translate(err, "company")
	}
	return c, nil
}

// Deactivate marks a company inactive.  Its users lose access on their next
// request.
func (s *CompanyService) Deactivate(ctx context.Context, id Identity, companyID string) error {
	active := false
	_, err := s.Update(ctx, id, companyID, UpdateCompanyInput{IsActive: &active})
	return err
}
