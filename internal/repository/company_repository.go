package repository

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/chatdesk/internal/model"
)

const companyColumns = "id, name, slug, domain, widget_key, widget_theme, is_active, created_at, updated_at"

// CompanyRepo persists tenants.
type CompanyRepo struct{ db *sqlx.DB }

func NewCompanyRepo(db *sqlx.DB) *CompanyRepo { return &CompanyRepo{db: db} }

func (r *CompanyRepo) GetCompany(ctx context.Context, id string) (model.Company, error) {
	return r.getBy(ctx, "id", id)
}

// GetCompanyBySlug looks a company up by its subdomain label.
func (r *CompanyRepo) GetCompanyBySlug(ctx context.Context, slug string) (model.Company, error) {
	return r.getBy(ctx, "slug", strings.ToLower(slug))
}

// GetCompanyByWidgetKey looks a company up by its public widget key.
func (r *CompanyRepo) GetCompanyByWidgetKey(ctx context.Context, key string) (model.Company, error) {
	return r.getBy(ctx, "widget_key", key)
}

func (r *CompanyRepo) getBy(ctx context.Context, column, value string) (model.Company, error) {
	var c model.Company
	err := r.db.GetContext(ctx, &c, "SELECT "+companyColumns+" FROM companies WHERE "+column+" = ? LIMIT 1", value)
	return c, mapErr(err)
}

// CreateCompany inserts a company.  A duplicate slug or widget key yields ErrConflict.
func (r *CompanyRepo) CreateCompany(ctx context.Context, c *model.Company) error {
	return mapErr(insertCompany(ctx, r.db, c))
}

func insertCompany(ctx context.Context, db sqlx.ExtContext, c *model.Company) error {
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	_, err := sqlx.NamedExecContext(ctx, db, `INSERT INTO companies
		(id, name, slug, domain, widget_key, widget_theme, is_active, created_at, updated_at)
		VALUES (:id, :name, :slug, :domain, :widget_key, :widget_theme, :is_active, :created_at, :updated_at)`, c)
	return err
}

// UpdateCompany writes the mutable columns of c.
func (r *CompanyRepo) UpdateCompany(ctx context.Context, c model.Company) error {
	c.UpdatedAt = time.Now().UTC()
	res, err := r.db.NamedExecContext(ctx, `UPDATE companies SET name = :name, domain = :domain,
		widget_theme = :widget_theme, is_active = :is_active, updated_at = :updated_at WHERE id = :id`, c)
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports 0 for unchanged rows too; confirm existence.
		if _, err := r.GetCompany(ctx, c.ID); err != nil {
			return err
		}
	}
	return nil
}

// ListCompanies returns one page of companies, newest first, plus the total count.
func (r *CompanyRepo) ListCompanies(ctx context.Context, offset, limit int) ([]model.Company, int, error) {
	total, err := countQuery(ctx, r.db, "SELECT COUNT(*) FROM companies")
	if err != nil {
		return nil, 0, err
	}
	out := []model.Company{}
	err = r.db.SelectContext(ctx, &out,
		"SELECT "+companyColumns+" FROM companies ORDER BY created_at DESC LIMIT ? OFFSET ?", limit, offset)
	return out, total, err
}

// CountCompanies counts all companies, or only active ones.
func (r *CompanyRepo) CountCompanies(ctx context.Context, activeOnly bool) (int, error) {
	q := "SELECT COUNT(*) FROM companies"
	if activeOnly {
		q += " WHERE is_active = 1"
	}
	return countQuery(ctx, r.db, q)
}

// RegisterCompany creates the company, its first administrator and its
// subscription in one transaction.
func (r *CompanyRepo) RegisterCompany(ctx context.Context, c *model.Company, admin *model.User, sub *model.Subscription) error {
	return mapErr(withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := insertCompany(ctx, tx, c); err != nil {
			return err
		}
		if err := insertUser(ctx, tx, admin); err != nil {
			return err
		}
		return insertSubscription(ctx, tx, sub)
	}))
}
