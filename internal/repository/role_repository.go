package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/chatdesk/internal/model"
)

const roleColumns = "id, company_id, name, description, is_system, created_at, updated_at"

// RoleRepo persists roles, the permission catalogue and the role to
// permission join.
type RoleRepo struct{ db *sqlx.DB }

func NewRoleRepo(db *sqlx.DB) *RoleRepo { return &RoleRepo{db: db} }

// GetRole fetches a role with its permissions.
func (r *RoleRepo) GetRole(ctx context.Context, id string) (model.Role, error) {
	var role model.Role
	if err := r.db.GetContext(ctx, &role, "SELECT "+roleColumns+" FROM roles WHERE id = ? LIMIT 1", id); err != nil {
		return role, mapErr(err)
	}
	perms := []model.Permission{}
	err := r.db.SelectContext(ctx, &perms, `SELECT p.id, p.name, p.category, p.description
		FROM role_permissions rp JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = ? ORDER BY p.category, p.name`, id)
	role.Permissions = perms
	return role, err
}

// GetSystemRoleByName fetches a shared role such as company_admin.
func (r *RoleRepo) GetSystemRoleByName(ctx context.Context, name string) (model.Role, error) {
	var role model.Role
	err := r.db.GetContext(ctx, &role,
		"SELECT "+roleColumns+" FROM roles WHERE is_system = 1 AND name = ? LIMIT 1", name)
	return role, mapErr(err)
}

// ListRoles returns the custom roles of companyID followed by the system roles.
func (r *RoleRepo) ListRoles(ctx context.Context, companyID string) ([]model.Role, error) {
	out := []model.Role{}
	err := r.db.SelectContext(ctx, &out, "SELECT "+roleColumns+
		" FROM roles WHERE company_id = ? OR is_system = 1 ORDER BY is_system, name", companyID)
	return out, err
}

// RoleNameExists reports whether companyID already has a role called name,
// ignoring excludeID.
func (r *RoleRepo) RoleNameExists(ctx context.Context, companyID, name, excludeID string) (bool, error) {
	n, err := countQuery(ctx, r.db,
		"SELECT COUNT(*) FROM roles WHERE company_id = ? AND name = ? AND id <> ?", companyID, name, excludeID)
	return n > 0, err
}

// CreateRole inserts the role and its permission links in one transaction.
func (r *RoleRepo) CreateRole(ctx context.Context, role *model.Role, permissionIDs []string) error {
	now := time.Now().UTC()
	role.CreatedAt, role.UpdatedAt = now, now
	return mapErr(withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO roles
			(id, company_id, name, description, is_system, created_at, updated_at)
			VALUES (:id, :company_id, :name, :description, :is_system, :created_at, :updated_at)`, role); err != nil {
			return err
		}
		return linkPermissions(ctx, tx, role.ID, permissionIDs)
	}))
}

// UpdateRole writes name/description and, when permissionIDs is non-nil,
// replaces the permission links.
func (r *RoleRepo) UpdateRole(ctx context.Context, role model.Role, permissionIDs []string) error {
	role.UpdatedAt = time.Now().UTC()
	return mapErr(withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx,
			"UPDATE roles SET name = :name, description = :description, updated_at = :updated_at WHERE id = :id AND is_system = 0",
			role); err != nil {
			return err
		}
		if permissionIDs == nil {
			return nil
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM role_permissions WHERE role_id = ?", role.ID); err != nil {
			return err
		}
		return linkPermissions(ctx, tx, role.ID, permissionIDs)
	}))
}

func linkPermissions(ctx context.Context, tx *sqlx.Tx, roleID string, permissionIDs []string) error {
	for _, p := range permissionIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO role_permissions (role_id, permission_id) VALUES (?, ?)", roleID, p); err != nil {
			return err
		}
	}
	return nil
}

// DeleteRole removes a custom role.  Links cascade.
func (r *RoleRepo) DeleteRole(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM roles WHERE id = ? AND is_system = 0", id)
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountUsersWithRole counts users referencing roleID.
func (r *RoleRepo) CountUsersWithRole(ctx context.Context, roleID string) (int, error) {
	return countQuery(ctx, r.db, "SELECT COUNT(*) FROM users WHERE role_id = ?", roleID)
}

// PermissionNamesForRole resolves role -> role_permissions -> permission names.
func (r *RoleRepo) PermissionNamesForRole(ctx context.Context, roleID string) ([]string, error) {
	names := []string{}
	err := r.db.SelectContext(ctx, &names, `SELECT p.name FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id WHERE rp.role_id = ?`, roleID)
	return names, err
}

// ListPermissions returns the catalogue ordered by category then name,
// optionally filtered to one category.
func (r *RoleRepo) ListPermissions(ctx context.Context, category string) ([]model.Permission, error) {
	q, args := "SELECT id, name, category, description FROM permissions", []any{}
	if category != "" {
		q, args = q+" WHERE category = ?", append(args, category)
	}
	out := []model.Permission{}
	err := r.db.SelectContext(ctx, &out, q+" ORDER BY category, name", args...)
	return out, err
}

func (r *RoleRepo) GetPermission(ctx context.Context, id string) (model.Permission, error) {
	var p model.Permission
	err := r.db.GetContext(ctx, &p, "SELECT id, name, category, description FROM permissions WHERE id = ?", id)
	return p, mapErr(err)
}

// PermissionsByIDs returns the catalogue entries whose id is in ids.
func (r *RoleRepo) PermissionsByIDs(ctx context.Context, ids []string) ([]model.Permission, error) {
	out := []model.Permission{}
	if len(ids) == 0 {
		return out, nil
	}
	q, args, err := sqlx.In("SELECT id, name, category, description FROM permissions WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	err = r.db.SelectContext(ctx, &out, r.db.Rebind(q), args...)
	return out, err
}
