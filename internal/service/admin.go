package service

import (
	"context"

	"github.com/iliyamo/chatdesk/internal/model"
)

// PlatformStats is the platform-wide dashboard.
type PlatformStats struct {
	Companies       int `json:"companies"`
	ActiveCompanies int `json:"activeCompanies"`
	Users           int `json:"users"`
	Chats           int `json:"chats"`
}

// AdminService serves cross-tenant views to platform administrators.  The
// route policy restricts it to super_admin.
type AdminService struct {
	companies CompanyStore
	users     UserStore
	chats     ChatStore
}

func NewAdminService(companies CompanyStore, users UserStore, chats ChatStore) *AdminService {
	return &AdminService{companies: companies, users: users, chats: chats}
}

func (s *AdminService) Stats(ctx context.Context) (PlatformStats, error) {
	var st PlatformStats
	var err error
	if st.Companies, err = s.companies.CountCompanies(ctx, false); err != nil {
		return st, err
	}
	if st.ActiveCompanies, err = s.companies.CountCompanies(ctx, true); err != nil {
		return st, err
	}
	if st.Users, err = s.users.CountUsers(ctx); err != nil {
		return st, err
	}
	st.Chats, err = s.chats.CountChats(ctx)
	return st, err
}

func (s *AdminService) Companies(ctx context.Context, p Paging) (Page[model.Company], error) {
	p = p.normalize(20)
	list, total, err := s.companies.ListCompanies(ctx, p.offset(), p.Limit)
	if err != nil {
		return Page[model.Company]{}, err
	}
	return newPage(list, total, p), nil
}

// Users lists users of every company.
func (s *AdminService) Users(ctx context.Context, p Paging) (Page[model.User], error) {
	p = p.normalize(20)
	list, total, err := s.users.ListUsers(ctx, "", p.offset(), p.Limit)
	if err != nil {
		return Page[model.User]{}, err
	}
	return newPage(list, total, p), nil
}
