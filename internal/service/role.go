package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/chatdesk/internal/model"
)

// RoleInput creates or, with nil fields left alone, updates a custom role.
type RoleInput struct {
	Name          *string
	Description   *string
	PermissionIDs []string
}

// RoleService manages custom roles.  System roles are read-only and visible
// to every company.
type RoleService struct {
	roles RoleStore
	users UserStore
	plans *PlanChecker
	perms *PermissionEvaluator
}

func NewRoleService(roles RoleStore, users UserStore, plans *PlanChecker, perms *PermissionEvaluator) *RoleService {
	return &RoleService{roles: roles, users: users, plans: plans, perms: perms}
}

func (s *RoleService) Create(ctx context.Context, companyID string, in RoleInput) (model.Role, error) {
	if err := s.plans.RequireFeature(ctx, companyID, FeatureRoles); err != nil {
		return model.Role{}, err
	}
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return model.Role{}, badRequest("name is required")
	}
	name := strings.TrimSpace(*in.Name)
	if err := s.uniqueName(ctx, companyID, name, ""); err != nil {
		return model.Role{}, err
	}
	perms, err := s.resolvePermissions(ctx, in.PermissionIDs)
	if err != nil {
		return model.Role{}, err
	}
	r := model.Role{
		ID:          uuid.NewString(),
		CompanyID:   &companyID,
		Name:        name,
		Description: in.Description,
		Permissions: perms,
	}
	if err := s.roles.CreateRole(ctx, &r, dedupe(in.PermissionIDs)); err != nil {
		return r, translate(err, "role")
	}
	return r, nil
}

// FindAll lists the company's custom roles and the system roles.
func (s *RoleService) FindAll(ctx context.Context, companyID string) ([]model.Role, error) {
	return s.roles.ListRoles(ctx, companyID)
}

func (s *RoleService) FindOne(ctx context.Context, companyID, id string) (model.Role, error) {
	r, err := s.roles.GetRole(ctx, id)
	if err != nil {
		return r, translate(err, "role")
	}
	if !r.VisibleTo(companyID) {
		return model.Role{}, forbidden("access to role denied")
	}
	return r, nil
}

func (s *RoleService) Update(ctx context.Context, companyID, id string, in RoleInput) (model.Role, error) {
	r, err := s.editable(ctx, companyID, id)
	if err != nil {
		return r, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return r, badRequest("name must not be empty")
		}
		if err := s.uniqueName(ctx, companyID, name, r.ID); err != nil {
			return r, err
		}
		r.Name = name
	}
	if in.Description != nil {
		r.Description = in.Description
	}
	var ids []string
	if in.PermissionIDs != nil {
		if r.Permissions, err = s.resolvePermissions(ctx, in.PermissionIDs); err != nil {
			return r, err
		}
		ids = dedupe(in.PermissionIDs)
	}
	if err := s.roles.UpdateRole(ctx, r, ids); err != nil {
		return r, translate(err, "role")
	}
	s.perms.Invalidate(r.ID)
	return r, nil
}

// Remove deletes a custom role that no user holds.
func (s *RoleService) Remove(ctx context.Context, companyID, id string) error {
	r, err := s.editable(ctx, companyID, id)
	if err != nil {
		return err
	}
	n, err := s.roles.CountUsersWithRole(ctx, r.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		return conflict("role is assigned to %d user(s)", n)
	}
	if err := s.roles.DeleteRole(ctx, r.ID); err != nil {
		return translate(err, "role")
	}
	s.perms.Invalidate(r.ID)
	return nil
}

func (s *RoleService) editable(ctx context.Context, companyID, id string) (model.Role, error) {
	r, err := s.FindOne(ctx, companyID, id)
	if err != nil {
		return r, err
	}
	if r.IsSystem {
		return r, forbidden("system roles cannot be modified")
	}
	return r, nil
}

func (s *RoleService) uniqueName(ctx context.Context, companyID, name, excludeID string) error {
	exists, err := s.roles.RoleNameExists(ctx, companyID, name, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return conflict("role %q already exists", name)
	}
	return nil
}

func (s *RoleService) resolvePermissions(ctx context.Context, ids []string) ([]model.Permission, error) {
	ids = dedupe(ids)
	perms, err := s.roles.PermissionsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(perms) != len(ids) {
		return nil, notFound("one or more permissions")
	}
	return perms, nil
}
