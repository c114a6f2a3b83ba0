package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/chatdesk/internal/model"
)

// DepartmentInput creates or partially updates a department.
type DepartmentInput struct {
	Name        *string
	Description *string
	IsActive    *bool
}

type DepartmentService struct {
	depts DepartmentStore
	plans *PlanChecker
}

func NewDepartmentService(depts DepartmentStore, plans *PlanChecker) *DepartmentService {
	return &DepartmentService{depts: depts, plans: plans}
}

func (s *DepartmentService) Create(ctx context.Context, companyID string, in DepartmentInput) (model.Department, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return model.Department{}, badRequest("name is required")
	}
	if err := s.plans.CheckLimit(ctx, companyID, LimitDepartments); err != nil {
		return model.Department{}, err
	}
	name := strings.TrimSpace(*in.Name)
	if err := s.uniqueName(ctx, companyID, name, ""); err != nil {
		return model.Department{}, err
	}
	d := model.Department{
		ID:          uuid.NewString(),
		CompanyID:   companyID,
		Name:        name,
		Description: in.Description,
		IsActive:    true,
	}
	if err := s.depts.CreateDepartment(ctx, &d); err != nil {
		return d, translate(err, "department")
	}
	return d, nil
}

func (s *DepartmentService) FindAll(ctx context.Context, companyID string) ([]model.Department, error) {
	return s.depts.ListDepartments(ctx, companyID)
}

func (s *DepartmentService) FindOne(ctx context.Context, companyID, id string) (model.Department, error) {
	d, err := s.depts.GetDepartmentForCompany(ctx, companyID, id)
	return d, translate(err, "department")
}

func (s *DepartmentService) Update(ctx context.Context, companyID, id string, in DepartmentInput) (model.Department, error) {
	d, err := s.FindOne(ctx, companyID, id)
	if err != nil {
		return d, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return d, badRequest("name must not be empty")
		}
		if err := s.uniqueName(ctx, companyID, name, d.ID); err != nil {
			return d, err
		}
		d.Name = name
	}
	if in.Description != nil {
		d.Description = in.Description
	}
	if in.IsActive != nil && *in.IsActive != d.IsActive {
		if *in.IsActive {
			if err := s.plans.CheckLimit(ctx, companyID, LimitDepartments); err != nil {
				return d, err
			}
		}
		d.IsActive = *in.IsActive
	}
	if err := s.depts.UpdateDepartment(ctx, d); err != nil {
		return d, translate(err, "department")
	}
	return d, nil
}

// Remove deletes a department that no chat references.
func (s *DepartmentService) Remove(ctx context.Context, companyID, id string) error {
	d, err := s.FindOne(ctx, companyID, id)
	if err != nil {
		return err
	}
	n, err := s.depts.CountChatsForDepartment(ctx, d.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		return conflict("department has %d chat(s)", n)
	}
	return translate(s.depts.DeleteDepartment(ctx, companyID, d.ID), "department")
}

func (s *DepartmentService) uniqueName(ctx context.Context, companyID, name, excludeID string) error {
	exists, err := s.depts.DepartmentNameExists(ctx, companyID, name, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return conflict("department %q already exists", name)
	}
	return nil
}
