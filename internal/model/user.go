package model

import "time"

// System role names.  System roles are shared by every company and cannot
// be modified or deleted.
const (
	RoleSuperAdmin   = "super_admin"
	RoleCompanyAdmin = "company_admin"
	RoleManager      = "manager"
	RoleAgent        = "agent"
)

// User belongs to exactly one company and has exactly one role.  RoleName
// is filled from a join on roles and is not a column of users.
type User struct {
	ID           string     `db:"id" json:"id"`
	CompanyID    string     `db:"company_id" json:"companyId"`
	RoleID       string     `db:"role_id" json:"roleId"`
	RoleName     string     `db:"role_name" json:"roleName"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FirstName    string     `db:"first_name" json:"firstName"`
	LastName     string     `db:"last_name" json:"lastName"`
	IsActive     bool       `db:"is_active" json:"isActive"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`

	DepartmentIDs []string `db:"-" json:"departmentIds,omitempty"`
}

// Role is either a system role (CompanyID nil, IsSystem true) or a custom
// role owned by one company.
type Role struct {
	ID          string    `db:"id" json:"id"`
	CompanyID   *string   `db:"company_id" json:"companyId,omitempty"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	IsSystem    bool      `db:"is_system" json:"isSystem"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`

	Permissions []Permission `db:"-" json:"permissions,omitempty"`
}

// VisibleTo reports whether companyID may read the role.
func (r Role) VisibleTo(companyID string) bool {
	return r.IsSystem || (r.CompanyID != nil && *r.CompanyID == companyID)
}

// Permission is a global catalogue entry, never tenant scoped.
type Permission struct {
	ID          string  `db:"id" json:"id"`
	Name        string  `db:"name" json:"name"`
	Category    string  `db:"category" json:"category"`
	Description *string `db:"description" json:"description,omitempty"`
}

// RefreshToken models a row of refresh_tokens.  Only the SHA-256 hash of
// the raw token is stored.
type RefreshToken struct {
	ID        uint64     `db:"id"`
	UserID    string     `db:"user_id"`
	TokenHash string     `db:"token_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	RevokedAt *time.Time `db:"revoked_at"`
	CreatedAt time.Time  `db:"created_at"`
}
