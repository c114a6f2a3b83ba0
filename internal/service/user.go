package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/chatdesk/internal/model"
	"github.com/iliyamo/chatdesk/internal/repository"
	"github.com/iliyamo/chatdesk/internal/utils"
)

// CreateUserInput adds a user to the caller's company.
type CreateUserInput struct {
	Email         string
	Password      string
	FirstName     string
	LastName      string
	RoleID        string
	DepartmentIDs []string
}

// UpdateUserInput is a partial update.  A non-nil DepartmentIDs replaces
// the user's departments.
type UpdateUserInput struct {
	FirstName     *string
	LastName      *string
	Password      *string
	RoleID        *string
	IsActive      *bool
	DepartmentIDs []string
}

type UserService struct {
	users      UserStore
	roles      RoleStore
	depts      DepartmentStore
	plans      *PlanChecker
	bcryptCost int
}

func NewUserService(users UserStore, roles RoleStore, depts DepartmentStore, plans *PlanChecker, bcryptCost int) *UserService {
	return &UserService{users: users, roles: roles, depts: depts, plans: plans, bcryptCost: bcryptCost}
}

func (s *UserService) Create(ctx context.Context, companyID string, in CreateUserInput) (model.User, error) {
	role, err := s.visibleRole(ctx, companyID, in.RoleID)
	if err != nil {
		return model.User{}, err
	}
	if err := s.plans.CheckLimit(ctx, companyID, LimitUsers); err != nil {
		return model.User{}, err
	}
	if role.Name == model.RoleAgent {
		if err := s.plans.CheckLimit(ctx, companyID, LimitAgents); err != nil {
			return model.User{}, err
		}
	}
	email := normalizeEmail(in.Email)
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return model.User{}, conflict("email already registered")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.User{}, err
	}
	if err := s.checkDepartments(ctx, companyID, in.DepartmentIDs); err != nil {
		return model.User{}, err
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return model.User{}, err
	}

	u := model.User{
		ID:            uuid.NewString(),
		CompanyID:     companyID,
		RoleID:        role.ID,
		RoleName:      role.Name,
		Email:         email,
		PasswordHash:  hash,
		FirstName:     strings.TrimSpace(in.FirstName),
		LastName:      strings.TrimSpace(in.LastName),
		IsActive:      true,
		DepartmentIDs: dedupe(in.DepartmentIDs),
	}
	if err := s.users.CreateUser(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return u, conflict("email already registered")
		}
		return u, err
	}
	return u, nil
}

func (s *UserService) FindAll(ctx context.Context, companyID string, p Paging) (Page[model.User], error) {
	p = p.normalize(10)
	list, total, err := s.users.ListUsers(ctx, companyID, p.offset(), p.Limit)
	if err != nil {
		return Page[model.User]{}, err
	}
	return newPage(list, total, p), nil
}

func (s *UserService) FindOne(ctx context.Context, companyID, id string) (model.User, error) {
	u, err := s.users.GetUserForCompany(ctx, companyID, id)
	return u, translate(err, "user")
}

func (s *UserService) Update(ctx context.Context, companyID, id string, in UpdateUserInput) (model.User, error) {
	u, err := s.FindOne(ctx, companyID, id)
	if err != nil {
		return u, err
	}
	if in.FirstName != nil {
		u.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		u.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Password != nil {
		if u.PasswordHash, err = s.hash(*in.Password); err != nil {
			return u, err
		}
	}
	if in.RoleID != nil && *in.RoleID != u.RoleID {
		role, err := s.visibleRole(ctx, companyID, *in.RoleID)
		if err != nil {
			return u, err
		}
		if role.Name == model.RoleAgent && u.IsActive {
			if err := s.plans.CheckLimit(ctx, companyID, LimitAgents); err != nil {
				return u, err
			}
		}
		u.RoleID, u.RoleName = role.ID, role.Name
	}
	if in.IsActive != nil && *in.IsActive != u.IsActive {
		if *in.IsActive {
			if err := s.plans.CheckLimit(ctx, companyID, LimitUsers); err != nil {
				return u, err
			}
		}
		u.IsActive = *in.IsActive
	}
	if in.DepartmentIDs != nil {
		if err := s.checkDepartments(ctx, companyID, in.DepartmentIDs); err != nil {
			return u, err
		}
		u.DepartmentIDs = dedupe(in.DepartmentIDs)
	}
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return u, translate(err, "user")
	}
	return u, nil
}

// Deactivate disables a user.  Users are never hard-deleted because chats
// and messages reference them.
func (s *UserService) Deactivate(ctx context.Context, companyID, id string) error {
	inactive := false
	_, err := s.Update(ctx, companyID, id, UpdateUserInput{IsActive: &inactive})
	return err
}

func (s *UserService) visibleRole(ctx context.Context, companyID, roleID string) (model.Role, error) {
	role, err := s.roles.GetRole(ctx, roleID)
	if err != nil {
		return role, translate(err, "role")
	}
	if !role.VisibleTo(companyID) {
		return role, forbidden("role belongs to another company")
	}
	if role.Name == model.RoleSuperAdmin {
		return role, forbidden("super_admin cannot be assigned")
	}
	return role, nil
}

func (s *UserService) checkDepartments(ctx context.Context, companyID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	n, err := s.depts.CountDepartmentsInCompany(ctx, companyID, ids)
	if err != nil {
		return err
	}
	if n != len(dedupe(ids)) {
		return forbidden("departments must belong to your company")
	}
	return nil
}

func (s *UserService) hash(password string) (string, error) {
	h, err := utils.HashPassword(password, s.bcryptCost)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return "", badRequest("%v", err)
	}
	return h, err
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
