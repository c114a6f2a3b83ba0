package storetest

import (
	"github.com/google/uuid"

	"github.com/iliyamo/chatdesk/internal/model"
	"github.com/iliyamo/chatdesk/internal/utils"
)

// Role ids seeded by New.
const (
	RoleSuperAdmin   = "role-super-admin"
	RoleCompanyAdmin = "role-company-admin"
	RoleManager      = "role-manager"
	RoleAgent        = "role-agent"
)

// Password is the plain password of every fixture user.
const Password = "secret-password"

var passwordHash string

func init() {
	h, err := utils.HashPassword(Password, 4)
	if err != nil {
		panic(err)
	}
	passwordHash = h
}

// AddCompany inserts an active company with a subscription on planID in the
// given status.  An empty status leaves the company without subscription.
func (s *Store) AddCompany(slug, planID, status string) model.Company {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := model.Company{ID: uuid.NewString(), Name: slug, Slug: slug, WidgetKey: "widget_" + uuid.NewString(), IsActive: true}
	if err := s.insertCompany(&c); err != nil {
		panic(err)
	}
	if status != "" {
		now := s.now()
		s.insertSubscription(&model.Subscription{ID: uuid.NewString(), CompanyID: c.ID, PlanID: planID,
			Status: status, CurrentPeriodStart: now, CurrentPeriodEnd: now.AddDate(0, 1, 0)})
	}
	return c
}

// SetCompanyActive flips a company's active flag.
func (s *Store) SetCompanyActive(id string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.companies[id]
	c.IsActive = active
	s.companies[id] = c
}

// AddUser inserts an active user with the fixture password.
func (s *Store) AddUser(companyID, roleID, email string) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := model.User{ID: uuid.NewString(), CompanyID: companyID, RoleID: roleID, Email: email,
		PasswordHash: passwordHash, FirstName: "Test", LastName: email, IsActive: true}
	s.insertUser(&u)
	return s.withRole(u)
}

// SetUserActive flips a user's active flag.
func (s *Store) SetUserActive(id string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[id]
	u.IsActive = active
	s.users[id] = u
}

// AddDepartment inserts an active department.
func (s *Store) AddDepartment(companyID, name string) model.Department {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := model.Department{ID: uuid.NewString(), CompanyID: companyID, Name: name, IsActive: true}
	d.CreatedAt = s.now()
	d.UpdatedAt = d.CreatedAt
	s.departments[d.ID] = d
	return d
}
