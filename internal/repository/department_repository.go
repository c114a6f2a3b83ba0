package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/chatdesk/internal/model"
)

const departmentColumns = "id, company_id, name, description, is_active, created_at, updated_at"

// DepartmentRepo persists company departments.
type DepartmentRepo struct{ db *sqlx.DB }

func NewDepartmentRepo(db *sqlx.DB) *DepartmentRepo { return &DepartmentRepo{db: db} }

// GetDepartmentForCompany fetches a department owned by companyID.
func (r *DepartmentRepo) GetDepartmentForCompany(ctx context.Context, companyID, id string) (model.Department, error) {
	var d model.Department
	if err := r.db.GetContext(ctx, &d, "SELECT "+departmentColumns+" FROM departments WHERE id = ? LIMIT 1", id); err != nil {
		return d, mapErr(err)
	}
	return d, ownedBy(d.CompanyID, companyID)
}

func (r *DepartmentRepo) ListDepartments(ctx context.Context, companyID string) ([]model.Department, error) {
	out := []model.Department{}
	err := r.db.SelectContext(ctx, &out,
		"SELECT "+departmentColumns+" FROM departments WHERE company_id = ? ORDER BY name", companyID)
	return out, err
}

// DepartmentNameExists reports a name clash inside one company, ignoring excludeID.
func (r *DepartmentRepo) DepartmentNameExists(ctx context.Context, companyID, name, excludeID string) (bool, error) {
	n, err := countQuery(ctx, r.db,
		"SELECT COUNT(*) FROM departments WHERE company_id = ? AND name = ? AND id <> ?", companyID, name, excludeID)
	return n > 0, err
}

func (r *DepartmentRepo) CreateDepartment(ctx context.Context, d *model.Department) error {
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO departments
		(id, company_id, name, description, is_active, created_at, updated_at)
		VALUES (:id, :company_id, :name, :description, :is_active, :created_at, :updated_at)`, d)
	return mapErr(err)
}

func (r *DepartmentRepo) UpdateDepartment(ctx context.Context, d model.Department) error {
	d.UpdatedAt = time.Now().UTC()
	_, err := r.db.NamedExecContext(ctx, `UPDATE departments SET name = :name, description = :description,
		is_active = :is_active, updated_at = :updated_at WHERE id = :id AND company_id = :company_id`, d)
	return mapErr(err)
}

func (r *DepartmentRepo) DeleteDepartment(ctx context.Context, companyID, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM departments WHERE id = ? AND company_id = ?", id, companyID)
	return mapErr(err)
}

// CountActiveDepartments feeds the departments plan limit.
func (r *DepartmentRepo) CountActiveDepartments(ctx context.Context, companyID string) (int, error) {
	return countQuery(ctx, r.db, "SELECT COUNT(*) FROM departments WHERE company_id = ? AND is_active = 1", companyID)
}

// CountChatsForDepartment counts chats routed to the department.
func (r *DepartmentRepo) CountChatsForDepartment(ctx context.Context, id string) (int, error) {
	return countQuery(ctx, r.db, "SELECT COUNT(*) FROM chats WHERE department_id = ?", id)
}

// CountDepartmentsInCompany counts how many of ids belong to companyID.
func (r *DepartmentRepo) CountDepartmentsInCompany(ctx context.Context, companyID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q, args, err := sqlx.In("SELECT COUNT(*) FROM departments WHERE company_id = ? AND id IN (?)", companyID, ids)
	if err != nil {
		return 0, err
	}
	return countQuery(ctx, r.db, r.db.Rebind(q), args...)
}
