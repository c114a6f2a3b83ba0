package repository

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/chatdesk/internal/model"
)

const userSelect = `SELECT u.id, u.company_id, u.role_id, r.name AS role_name, u.email, u.password_hash,
	u.first_name, u.last_name, u.is_active, u.last_login_at, u.created_at, u.updated_at
	FROM users u JOIN roles r ON r.id = u.role_id`

// UserRepo persists users and their department memberships.
type UserRepo struct{ db *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// GetUser fetches a user by id regardless of company.  Used by
// authentication, where the company comes from the user row itself.
func (r *UserRepo) GetUser(ctx context.Context, id string) (model.User, error) {
	var u model.User
	if err := r.db.GetContext(ctx, &u, userSelect+" WHERE u.id = ? LIMIT 1", id); err != nil {
		return u, mapErr(err)
	}
	return u, r.loadDepartments(ctx, &u)
}

// GetUserByEmail fetches a user by normalised email.
func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	err := r.db.GetContext(ctx, &u, userSelect+" WHERE u.email = ? LIMIT 1", strings.ToLower(strings.TrimSpace(email)))
	return u, mapErr(err)
}

// GetUserForCompany fetches a user owned by companyID.
func (r *UserRepo) GetUserForCompany(ctx context.Context, companyID, id string) (model.User, error) {
	u, err := r.GetUser(ctx, id)
	if err != nil {
		return u, err
	}
	return u, ownedBy(u.CompanyID, companyID)
}

// ListUsers pages through the users of one company.  An empty companyID
// lists every company (platform administration).
func (r *UserRepo) ListUsers(ctx context.Context, companyID string, offset, limit int) ([]model.User, int, error) {
	where, args := "", []any{}
	if companyID != "" {
		where, args = " WHERE u.company_id = ?", append(args, companyID)
	}
	total, err := countQuery(ctx, r.db, "SELECT COUNT(*) FROM users u"+where, args...)
	if err != nil {
		return nil, 0, err
	}
	out := []model.User{}
	err = r.db.SelectContext(ctx, &out, userSelect+where+" ORDER BY u.created_at DESC LIMIT ? OFFSET ?",
		append(args, limit, offset)...)
	return out, total, err
}

// ListUsersByIDs returns the active users of companyID whose id is in ids.
func (r *UserRepo) ListUsersByIDs(ctx context.Context, companyID string, ids []string) ([]model.User, error) {
	out := []model.User{}
	if len(ids) == 0 {
		return out, nil
	}
	q, args, err := sqlx.In(userSelect+" WHERE u.company_id = ? AND u.is_active = 1 AND u.id IN (?)", companyID, ids)
	if err != nil {
		return nil, err
	}
	err = r.db.SelectContext(ctx, &out, r.db.Rebind(q), args...)
	return out, err
}

// CreateUser inserts u together with its department memberships.
func (r *UserRepo) CreateUser(ctx context.Context, u *model.User) error {
	return mapErr(withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := insertUser(ctx, tx, u); err != nil {
			return err
		}
		return replaceDepartments(ctx, tx, u.ID, u.DepartmentIDs)
	}))
}

func insertUser(ctx context.Context, db sqlx.ExtContext, u *model.User) error {
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	_, err := sqlx.NamedExecContext(ctx, db, `INSERT INTO users
		(id, company_id, role_id, email, password_hash, first_name, last_name, is_active, created_at, updated_at)
		VALUES (:id, :company_id, :role_id, :email, :password_hash, :first_name, :last_name, :is_active, :created_at, :updated_at)`, u)
	return err
}

// UpdateUser writes the mutable columns of u.  When u.DepartmentIDs is
// non-nil the memberships are replaced.
func (r *UserRepo) UpdateUser(ctx context.Context, u model.User) error {
	u.UpdatedAt = time.Now().UTC()
	return mapErr(withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `UPDATE users SET role_id = :role_id, email = :email,
			password_hash = :password_hash, first_name = :first_name, last_name = :last_name,
			is_active = :is_active, updated_at = :updated_at WHERE id = :id AND company_id = :company_id`, u)
		if err != nil {
			return err
		}
		if u.DepartmentIDs == nil {
			return nil
		}
		return replaceDepartments(ctx, tx, u.ID, u.DepartmentIDs)
	}))
}

func replaceDepartments(ctx context.Context, tx *sqlx.Tx, userID string, deptIDs []string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM user_departments WHERE user_id = ?", userID); err != nil {
		return err
	}
	for _, d := range deptIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO user_departments (user_id, department_id) VALUES (?, ?)", userID, d); err != nil {
			return err
		}
	}
	return nil
}

func (r *UserRepo) loadDepartments(ctx context.Context, u *model.User) error {
	ids := []string{}
	if err := r.db.SelectContext(ctx, &ids,
		"SELECT department_id FROM user_departments WHERE user_id = ? ORDER BY department_id", u.ID); err != nil {
		return err
	}
	u.DepartmentIDs = ids
	return nil
}

// CountActiveUsers counts active users of a company.  A non-empty roleName
// restricts the count to users holding that role.
func (r *UserRepo) CountActiveUsers(ctx context.Context, companyID, roleName string) (int, error) {
	q := "SELECT COUNT(*) FROM users u JOIN roles r ON r.id = u.role_id WHERE u.company_id = ? AND u.is_active = 1"
	args := []any{companyID}
	if roleName != "" {
		q += " AND r.name = ?"
		args = append(args, roleName)
	}
	return countQuery(ctx, r.db, q, args...)
}

// CountUsers counts users across every company.
func (r *UserRepo) CountUsers(ctx context.Context) (int, error) {
	return countQuery(ctx, r.db, "SELECT COUNT(*) FROM users")
}

// TouchLastLogin records a successful login.
func (r *UserRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, "UPDATE users SET last_login_at = ? WHERE id = ?", at, id)
	return err
}
