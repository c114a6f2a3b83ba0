package service

import "github.com/iliyamo/chatdesk/internal/model"

// Identity is the authenticated caller, bound to one company.
type Identity struct {
	UserID    string
	CompanyID string
	RoleID    string
	RoleName  string
	Email     string
}

// IsSuperAdmin reports whether the caller administers the platform.
func (i Identity) IsSuperAdmin() bool { return i.RoleName == model.RoleSuperAdmin }

// Page is one page of a listing.
type Page[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// Paging normalises page/limit query values.
type Paging struct {
	Page  int
	Limit int
}

const maxPageSize = 100

// normalize applies the default limit and bounds.
func (p Paging) normalize(defaultLimit int) Paging {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	return p
}

func (p Paging) offset() int { return (p.Page - 1) * p.Limit }

func newPage[T any](data []T, total int, p Paging) Page[T] {
	if data == nil {
		data = []T{}
	}
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Page[T]{Data: data, Total: total, Page: p.Page, Limit: p.Limit, TotalPages: pages}
}
