// Package storetest provides an in-memory implementation of every
// persistence interface the services depend on.  A single mutex serialises
// all operations, so multi-step writes such as chat reassignment are atomic
// the way a MySQL transaction holding a row lock makes them.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/chatdesk/internal/model"
	"github.com/iliyamo/chatdesk/internal/repository"
)

// Store holds every table in maps keyed by id.
type Store struct {
	mu sync.Mutex

	companies     map[string]model.Company
	users         map[string]model.User
	userDepts     map[string][]string
	roles         map[string]model.Role
	rolePerms     map[string][]string
	permissions   map[string]model.Permission
	plans         map[string]model.Plan
	subscriptions map[string]model.Subscription // by company id
	departments   map[string]model.Department
	chats         map[string]model.Chat
	assignments   []model.ChatAssignment
	messages      map[string]model.Message
	events        []model.AnalyticsEvent
	tokens        map[string]model.RefreshToken // by hash

	seq   int64
	clock time.Time
}

// New returns a store seeded with the permission catalogue, the three
// plans and the four system roles.
func New() *Store {
	s := &Store{
		companies:     map[string]model.Company{},
		users:         map[string]model.User{},
		userDepts:     map[string][]string{},
		roles:         map[string]model.Role{},
		rolePerms:     map[string][]string{},
		permissions:   map[string]model.Permission{},
		plans:         map[string]model.Plan{},
		subscriptions: map[string]model.Subscription{},
		departments:   map[string]model.Department{},
		chats:         map[string]model.Chat{},
		messages:      map[string]model.Message{},
		tokens:        map[string]model.RefreshToken{},
		clock:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	perms := []struct{ id, name, cat string }{
		{"perm-create-agent", "create_agent", "users"},
		{"perm-edit-agent", "edit_agent", "users"},
		{"perm-delete-agent", "delete_agent", "users"},
		{"perm-assign-chat", "assign_chat", "chats"},
		{"perm-view-all-chats", "view_all_chats", "chats"},
		{"perm-view-reports", "view_reports", "analytics"},
		{"perm-billing-access", "billing_access", "billing"},
		{"perm-manage-roles", "manage_roles", "roles"},
		{"perm-manage-departments", "manage_departments", "departments"},
		{"perm-api-access", "api_access", "integration"},
		{"perm-automation", "automation", "integration"},
	}
	var all []string
	for _, p := range perms {
		s.permissions[p.id] = model.Permission{ID: p.id, Name: p.name, Category: p.cat}
		all = append(all, p.id)
	}
	s.plans["plan-basic"] = model.Plan{ID: "plan-basic", Name: "Basic", Slug: "basic", Price: 29, MaxUsers: 5,
		MaxAgents: 3, MaxDepartments: 2, Features: model.StringList{"roles", "reports"}, RetentionDays: 30, IsActive: true}
	s.plans["plan-pro"] = model.Plan{ID: "plan-pro", Name: "Pro", Slug: "pro", Price: 99, MaxUsers: 20,
		MaxAgents: 10, MaxDepartments: 5, Features: model.StringList{"roles", "reports", "automation", "api_access"},
		RetentionDays: 90, IsActive: true}
	s.plans["plan-enterprise"] = model.Plan{ID: "plan-enterprise", Name: "Enterprise", Slug: "enterprise", Price: 299,
		MaxUsers: 100, MaxAgents: 50, MaxDepartments: 20, Features: model.StringList{"roles", "reports", "automation", "api_access"},
		RetentionDays: 365, IsActive: true}

	for id, name := range map[string]string{
		"role-super-admin":   model.RoleSuperAdmin,
		"role-company-admin": model.RoleCompanyAdmin,
		"role-manager":       model.RoleManager,
		"role-agent":         model.RoleAgent,
	} {
		s.roles[id] = model.Role{ID: id, Name: name, IsSystem: true}
	}
	s.rolePerms["role-super-admin"] = all
	s.rolePerms["role-company-admin"] = all
	s.rolePerms["role-manager"] = []string{"perm-assign-chat", "perm-view-all-chats", "perm-view-reports"}
	s.rolePerms["role-agent"] = []string{"perm-assign-chat", "perm-view-all-chats"}
	return s
}

// now returns a strictly increasing timestamp so ordering by creation time
// is deterministic.  Callers hold mu.
func (s *Store) now() time.Time {
	s.seq++
	return s.clock.Add(time.Duration(s.seq) * time.Millisecond)
}

func owned(rowCompanyID, companyID string) error {
	if rowCompanyID != companyID {
		return repository.ErrForbidden
	}
	return nil
}

func window[T any](list []T, offset, limit int) []T {
	if offset >= len(list) {
		return []T{}
	}
	end := offset + limit
	if end > len(list) {
		end = len(list)
	}
	return list[offset:end]
}

// ---- companies ----

func (s *Store) GetCompany(_ context.Context, id string) (model.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[id]
	if !ok {
		return c, repository.ErrNotFound
	}
	return c, nil
}

func (s *Store) findCompany(match func(model.Company) bool) (model.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.companies {
		if match(c) {
			return c, nil
		}
	}
	return model.Company{}, repository.ErrNotFound
}

func (s *Store) GetCompanyBySlug(_ context.Context, slug string) (model.Company, error) {
	return s.findCompany(func(c model.Company) bool { return c.Slug == slug })
}

func (s *Store) GetCompanyByWidgetKey(_ context.Context, key string) (model.Company, error) {
	return s.findCompany(func(c model.Company) bool { return c.WidgetKey == key })
}

func (s *Store) CreateCompany(_ context.Context, c *model.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertCompany(c)
}

func (s *Store) insertCompany(c *model.Company) error {
	for _, o := range s.companies {
		if o.Slug == c.Slug || o.WidgetKey == c.WidgetKey {
			return repository.ErrConflict
		}
	}
	c.CreatedAt = s.now()
	c.UpdatedAt = c.CreatedAt
	s.companies[c.ID] = *c
	return nil
}

func (s *Store) UpdateCompany(_ context.Context, c model.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.companies[c.ID]; !ok {
		return repository.ErrNotFound
	}
	c.UpdatedAt = s.now()
	s.companies[c.ID] = c
	return nil
}

func (s *Store) ListCompanies(_ context.Context, offset, limit int) ([]model.Company, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]model.Company, 0, len(s.companies))
	for _, c := range s.companies {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return window(list, offset, limit), len(list), nil
}

func (s *Store) CountCompanies(_ context.Context, activeOnly bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.companies {
		if !activeOnly || c.IsActive {
			n++
		}
	}
	return n, nil
}

func (s *Store) RegisterCompany(_ context.Context, c *model.Company, admin *model.User, sub *model.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkUser(admin); err != nil {
		return err
	}
	if err := s.insertCompany(c); err != nil {
		return err
	}
	s.insertUser(admin)
	s.insertSubscription(sub)
	return nil
}

// ---- users ----

func (s *Store) withRole(u model.User) model.User {
	u.RoleName = s.roles[u.RoleID].Name
	if ids := s.userDepts[u.ID]; len(ids) > 0 {
		u.DepartmentIDs = append([]string(nil), ids...)
	}
	return u
}

func (s *Store) GetUser(_ context.Context, id string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return u, repository.ErrNotFound
	}
	return s.withRole(u), nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			return s.withRole(u), nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (s *Store) GetUserForCompany(ctx context.Context, companyID, id string) (model.User, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return u, err
	}
	return u, owned(u.CompanyID, companyID)
}

func (s *Store) ListUsers(_ context.Context, companyID string, offset, limit int) ([]model.User, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []model.User
	for _, u := range s.users {
		if companyID == "" || u.CompanyID == companyID {
			list = append(list, s.withRole(u))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return window(list, offset, limit), len(list), nil
}

func (s *Store) ListUsersByIDs(_ context.Context, companyID string, ids []string) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.User{}
	for _, id := range ids {
		if u, ok := s.users[id]; ok && u.CompanyID == companyID && u.IsActive {
			out = append(out, s.withRole(u))
		}
	}
	return out, nil
}

func (s *Store) checkUser(u *model.User) error {
	for _, o := range s.users {
		if o.Email == u.Email && o.ID != u.ID {
			return repository.ErrConflict
		}
	}
	return nil
}

func (s *Store) insertUser(u *model.User) {
	u.CreatedAt = s.now()
	u.UpdatedAt = u.CreatedAt
	row := *u
	row.RoleName, row.DepartmentIDs = "", nil
	s.users[u.ID] = row
	if len(u.DepartmentIDs) > 0 {
		s.userDepts[u.ID] = append([]string(nil), u.DepartmentIDs...)
	}
}

func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkUser(u); err != nil {
		return err
	}
	s.insertUser(u)
	return nil
}

func (s *Store) UpdateUser(_ context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.users[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if err := s.checkUser(&u); err != nil {
		return err
	}
	if u.DepartmentIDs != nil {
		s.userDepts[u.ID] = append([]string(nil), u.DepartmentIDs...)
	}
	u.CreatedAt = old.CreatedAt
	u.UpdatedAt = s.now()
	u.RoleName, u.DepartmentIDs = "", nil
	s.users[u.ID] = u
	return nil
}

func (s *Store) CountActiveUsers(_ context.Context, companyID, roleName string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.users {
		if u.CompanyID == companyID && u.IsActive && (roleName == "" || s.roles[u.RoleID].Name == roleName) {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountUsers(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), nil
}

func (s *Store) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.LastLoginAt = &at
	s.users[id] = u
	return nil
}

// ---- roles and permissions ----

func (s *Store) GetRole(_ context.Context, id string) (model.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[id]
	if !ok {
		return r, repository.ErrNotFound
	}
	for _, pid := range s.rolePerms[id] {
		r.Permissions = append(r.Permissions, s.permissions[pid])
	}
	return r, nil
}

func (s *Store) GetSystemRoleByName(_ context.Context, name string) (model.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.roles {
		if r.IsSystem && r.Name == name {
			return r, nil
		}
	}
	return model.Role{}, repository.ErrNotFound
}

func (s *Store) ListRoles(_ context.Context, companyID string) ([]model.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Role{}
	for _, r := range s.roles {
		if r.VisibleTo(companyID) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsSystem != out[j].IsSystem {
			return !out[i].IsSystem
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) RoleNameExists(_ context.Context, companyID, name, excludeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.roles {
		if r.CompanyID != nil && *r.CompanyID == companyID && r.Name == name && r.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CreateRole(_ context.Context, r *model.Role, permissionIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.CreatedAt = s.now()
	r.UpdatedAt = r.CreatedAt
	row := *r
	row.Permissions = nil
	s.roles[r.ID] = row
	s.rolePerms[r.ID] = append([]string(nil), permissionIDs...)
	return nil
}

func (s *Store) UpdateRole(_ context.Context, r model.Role, permissionIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[r.ID]; !ok {
		return repository.ErrNotFound
	}
	r.UpdatedAt = s.now()
	r.Permissions = nil
	s.roles[r.ID] = r
	if permissionIDs != nil {
		s.rolePerms[r.ID] = append([]string(nil), permissionIDs...)
	}
	return nil
}

func (s *Store) DeleteRole(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[id]
	if !ok || r.IsSystem {
		return repository.ErrNotFound
	}
	delete(s.roles, id)
	delete(s.rolePerms, id)
	return nil
}

func (s *Store) CountUsersWithRole(_ context.Context, roleID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.users {
		if u.RoleID == roleID {
			n++
		}
	}
	return n, nil
}

func (s *Store) PermissionNamesForRole(_ context.Context, roleID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := []string{}
	for _, pid := range s.rolePerms[roleID] {
		names = append(names, s.permissions[pid].Name)
	}
	return names, nil
}

func (s *Store) ListPermissions(_ context.Context, category string) ([]model.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Permission{}
	for _, p := range s.permissions {
		if category == "" || p.Category == category {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) GetPermission(_ context.Context, id string) (model.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.permissions[id]
	if !ok {
		return p, repository.ErrNotFound
	}
	return p, nil
}

func (s *Store) PermissionsByIDs(_ context.Context, ids []string) ([]model.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Permission{}
	for _, id := range ids {
		if p, ok := s.permissions[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// ---- plans and subscriptions ----

func (s *Store) GetPlan(_ context.Context, id string) (model.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return p, repository.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetPlanBySlug(_ context.Context, slug string) (model.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.plans {
		if p.Slug == slug {
			return p, nil
		}
	}
	return model.Plan{}, repository.ErrNotFound
}

func (s *Store) ListPlans(_ context.Context, activeOnly bool) ([]model.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Plan{}
	for _, p := range s.plans {
		if !activeOnly || p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out, nil
}

func (s *Store) CreatePlan(_ context.Context, p *model.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.plans {
		if o.Slug == p.Slug {
			return repository.ErrConflict
		}
	}
	p.CreatedAt = s.now()
	p.UpdatedAt = p.CreatedAt
	s.plans[p.ID] = *p
	return nil
}

func (s *Store) UpdatePlan(_ context.Context, p model.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[p.ID]; !ok {
		return repository.ErrNotFound
	}
	p.UpdatedAt = s.now()
	s.plans[p.ID] = p
	return nil
}

func (s *Store) DeletePlan(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.plans, id)
	return nil
}

func (s *Store) CountSubscriptionsForPlan(_ context.Context, planID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sub := range s.subscriptions {
		if sub.PlanID == planID {
			n++
		}
	}
	return n, nil
}

func (s *Store) GetSubscriptionByCompany(_ context.Context, companyID string) (model.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[companyID]
	if !ok {
		return sub, repository.ErrNotFound
	}
	if p, ok := s.plans[sub.PlanID]; ok {
		sub.Plan = &p
	}
	return sub, nil
}

func (s *Store) insertSubscription(sub *model.Subscription) {
	sub.CreatedAt = s.now()
	sub.UpdatedAt = sub.CreatedAt
	row := *sub
	row.Plan = nil
	s.subscriptions[sub.CompanyID] = row
}

func (s *Store) CreateSubscription(_ context.Context, sub *model.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscriptions[sub.CompanyID]; ok {
		return repository.ErrConflict
	}
	s.insertSubscription(sub)
	return nil
}

func (s *Store) UpdateSubscription(_ context.Context, sub model.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscriptions[sub.CompanyID]; !ok {
		return repository.ErrNotFound
	}
	sub.UpdatedAt = s.now()
	sub.Plan = nil
	s.subscriptions[sub.CompanyID] = sub
	return nil
}

// ---- departments ----

func (s *Store) GetDepartmentForCompany(_ context.Context, companyID, id string) (model.Department, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.departments[id]
	if !ok {
		return d, repository.ErrNotFound
	}
	return d, owned(d.CompanyID, companyID)
}

func (s *Store) ListDepartments(_ context.Context, companyID string) ([]model.Department, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Department{}
	for _, d := range s.departments {
		if d.CompanyID == companyID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) DepartmentNameExists(_ context.Context, companyID, name, excludeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.departments {
		if d.CompanyID == companyID && d.Name == name && d.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CreateDepartment(_ context.Context, d *model.Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.CreatedAt = s.now()
	d.UpdatedAt = d.CreatedAt
	s.departments[d.ID] = *d
	return nil
}

func (s *Store) UpdateDepartment(_ context.Context, d model.Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.departments[d.ID]; !ok {
		return repository.ErrNotFound
	}
	d.UpdatedAt = s.now()
	s.departments[d.ID] = d
	return nil
}

func (s *Store) DeleteDepartment(_ context.Context, companyID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.departments[id]
	if !ok {
		return repository.ErrNotFound
	}
	if err := owned(d.CompanyID, companyID); err != nil {
		return err
	}
	delete(s.departments, id)
	for uid, ids := range s.userDepts {
		kept := ids[:0]
		for _, v := range ids {
			if v != id {
				kept = append(kept, v)
			}
		}
		s.userDepts[uid] = kept
	}
	return nil
}

func (s *Store) CountActiveDepartments(_ context.Context, companyID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, d := range s.departments {
		if d.CompanyID == companyID && d.IsActive {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountChatsForDepartment(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.chats {
		if c.DepartmentID != nil && *c.DepartmentID == id {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountDepartmentsInCompany(_ context.Context, companyID string, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	seen := map[string]bool{}
	for _, id := range ids {
		if d, ok := s.departments[id]; ok && d.CompanyID == companyID && !seen[id] {
			seen[id] = true
			n++
		}
	}
	return n, nil
}

// ---- chats ----

func (s *Store) CreateChat(_ context.Context, c *model.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.CreatedAt = s.now()
	c.UpdatedAt = c.CreatedAt
	s.chats[c.ID] = *c
	return nil
}

func (s *Store) GetChatForCompany(_ context.Context, companyID, id string) (model.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[id]
	if !ok {
		return c, repository.ErrNotFound
	}
	return c, owned(c.CompanyID, companyID)
}

func (s *Store) ListChats(_ context.Context, companyID, status string, offset, limit int) ([]model.Chat, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []model.Chat
	for _, c := range s.chats {
		if c.CompanyID == companyID && (status == "" || c.Status == status) {
			list = append(list, c)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return window(list, offset, limit), len(list), nil
}

func (s *Store) UpdateChat(_ context.Context, companyID, id string, apply func(*model.Chat) error) (model.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[id]
	if !ok {
		return model.Chat{}, repository.ErrNotFound
	}
	if err := owned(c.CompanyID, companyID); err != nil {
		return model.Chat{}, err
	}
	if err := apply(&c); err != nil {
		return model.Chat{}, err
	}
	c.UpdatedAt = s.now()
	s.chats[id] = c
	return c, nil
}

func (s *Store) ActivatePending(_ context.Context, companyID, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[id]
	if !ok || c.CompanyID != companyID || c.Status != model.ChatPending {
		return false, nil
	}
	c.Status = model.ChatActive
	c.UpdatedAt = s.now()
	s.chats[id] = c
	return true, nil
}

func (s *Store) ReassignChat(_ context.Context, companyID, chatID string, a *model.ChatAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return repository.ErrNotFound
	}
	if err := owned(c.CompanyID, companyID); err != nil {
		return err
	}
	now := s.now()
	for i := range s.assignments {
		if s.assignments[i].ChatID == chatID && s.assignments[i].IsActive {
			s.assignments[i].IsActive = false
			s.assignments[i].UnassignedAt = &now
		}
	}
	a.ChatID, a.IsActive, a.AssignedAt, a.UnassignedAt = chatID, true, now, nil
	s.assignments = append(s.assignments, *a)
	c.Status = model.ChatAssigned
	c.UpdatedAt = now
	s.chats[chatID] = c
	return nil
}

func (s *Store) ActiveAssignment(_ context.Context, chatID string) (*model.ChatAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		if a.ChatID == chatID && a.IsActive {
			a := a
			return &a, nil
		}
	}
	return nil, nil
}

func (s *Store) ListAssignments(_ context.Context, chatID string) ([]model.ChatAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.ChatAssignment{}
	for _, a := range s.assignments {
		if a.ChatID == chatID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) ListPendingByIDs(_ context.Context, companyID string, ids []string) ([]model.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Chat{}
	for _, id := range ids {
		if c, ok := s.chats[id]; ok && c.CompanyID == companyID && c.Status == model.ChatPending {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CountChatsByStatus(_ context.Context, companyID string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]int{}
	for _, c := range s.chats {
		if c.CompanyID == companyID {
			out[c.Status]++
		}
	}
	return out, nil
}

func (s *Store) CountChats(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chats), nil
}

// ---- messages ----

func (s *Store) CreateMessage(_ context.Context, m *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.CreatedAt = s.now()
	s.messages[m.ID] = *m
	return nil
}

func (s *Store) GetMessage(_ context.Context, id string) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return m, repository.ErrNotFound
	}
	return m, nil
}

func (s *Store) chatMessages(chatID string) []model.Message {
	var list []model.Message
	for _, m := range s.messages {
		if m.ChatID == chatID {
			list = append(list, m)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list
}

// ListMessages mirrors the MySQL paging: page 1 holds the newest limit
// messages, each page in chronological order.
func (s *Store) ListMessages(_ context.Context, chatID string, offset, limit int) ([]model.Message, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.chatMessages(chatID)
	total := len(list)
	end := total - offset
	if end <= 0 {
		return []model.Message{}, total, nil
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	return append([]model.Message(nil), list[start:end]...), total, nil
}

func (s *Store) CountMessages(_ context.Context, chatID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chatMessages(chatID)), nil
}

func (s *Store) MarkRead(_ context.Context, chatID, readerID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, m := range s.messages {
		if m.ChatID != chatID || m.IsRead || (m.SenderID != nil && *m.SenderID == readerID) {
			continue
		}
		m.IsRead, m.ReadAt = true, &at
		s.messages[id] = m
		n++
	}
	return n, nil
}

func (s *Store) AvgFirstResponseSeconds(_ context.Context, companyID string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum float64
	var n int
	for _, c := range s.chats {
		if c.CompanyID != companyID {
			continue
		}
		for _, m := range s.chatMessages(c.ID) {
			if m.SenderType == model.SenderAgent {
				sum += m.CreatedAt.Sub(c.CreatedAt).Seconds()
				n++
				break
			}
		}
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}

// ---- analytics ----

func (s *Store) InsertEvent(_ context.Context, e *model.AnalyticsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *e)
	return nil
}

func (s *Store) ListEvents(_ context.Context, companyID, eventType string, offset, limit int) ([]model.AnalyticsEvent, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []model.AnalyticsEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		e := s.events[i]
		if e.CompanyID == companyID && (eventType == "" || e.EventType == eventType) {
			list = append(list, e)
		}
	}
	return window(list, offset, limit), len(list), nil
}

// ---- refresh tokens ----

func (s *Store) StoreRefresh(_ context.Context, userID, tokenHash string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tokenHash] = model.RefreshToken{UserID: userID, TokenHash: tokenHash, ExpiresAt: exp, CreatedAt: s.now()}
	return nil
}

func (s *Store) ValidateRefresh(_ context.Context, tokenHash string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[tokenHash]
	if !ok || t.RevokedAt != nil || time.Now().After(t.ExpiresAt) {
		return "", repository.ErrNotFound
	}
	return t.UserID, nil
}

func (s *Store) RevokeByHash(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[tokenHash]; ok && t.RevokedAt == nil {
		now := time.Now()
		t.RevokedAt = &now
		s.tokens[tokenHash] = t
	}
	return nil
}

func (s *Store) RevokeAllForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for h, t := range s.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			s.tokens[h] = t
		}
	}
	return nil
}

// ActiveAssignmentCount counts the active assignments of a chat, for tests
// asserting the single-assignee invariant.
func (s *Store) ActiveAssignmentCount(chatID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.assignments {
		if a.ChatID == chatID && a.IsActive {
			n++
		}
	}
	return n
}

// Events returns every recorded analytics event.
func (s *Store) Events() []model.AnalyticsEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AnalyticsEvent(nil), s.events...)
}
