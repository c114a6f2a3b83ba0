package model

import "time"

// Company is the tenant root.  Every tenant-scoped row references a company
// by id; deactivating a company denies further access without deleting data.
type Company struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Slug        string    `db:"slug" json:"slug"`                 // subdomain label
	Domain      *string   `db:"domain" json:"domain,omitempty"`   // optional custom domain
	WidgetKey   string    `db:"widget_key" json:"widgetKey"`      // public widget identifier
	WidgetTheme JSONMap   `db:"widget_theme" json:"widgetTheme,omitempty"`
	IsActive    bool      `db:"is_active" json:"isActive"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// Department groups agents for chat routing inside one company.
type Department struct {
	ID          string    `db:"id" json:"id"`
	CompanyID   string    `db:"company_id" json:"companyId"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	IsActive    bool      `db:"is_active" json:"isActive"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}
