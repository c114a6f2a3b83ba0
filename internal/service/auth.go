package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/chatdesk/internal/logger"
	"github.com/iliyamo/chatdesk/internal/model"
	"github.com/iliyamo/chatdesk/internal/repository"
	"github.com/iliyamo/chatdesk/internal/utils"
)

// Audience selects which login endpoint is used.  Company login refuses
// platform administrators and admin login accepts nobody else.
type Audience int

const (
	AudienceCompany Audience = iota
	AudienceAdmin
)

// AuthConfig carries the token and hashing settings.
type AuthConfig struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
	TrialDays      int
	DefaultPlan    string
}

// RegisterInput creates a tenant with its first administrator.
type RegisterInput struct {
	CompanyName string
	Slug        string
	Email       string
	Password    string
	FirstName   string
	LastName    string
	PlanSlug    string
}

// TokenPair is what a successful login returns.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// AuthResult bundles the user, its company and fresh tokens.
type AuthResult struct {
	User    model.User    `json:"user"`
	Company model.Company `json:"company"`
	Tokens  TokenPair     `json:"tokens"`
}

// AuthService validates credentials and issues, rotates and revokes tokens.
type AuthService struct {
	cfg       AuthConfig
	users     UserStore
	companies CompanyStore
	roles     RoleStore
	plans     PlanStore
	tokens    TokenStore
}

func NewAuthService(cfg AuthConfig, users UserStore, companies CompanyStore, roles RoleStore, plans PlanStore, tokens TokenStore) *AuthService {
	if cfg.TrialDays <= 0 {
		cfg.TrialDays = 14
	}
	if cfg.DefaultPlan == "" {
		cfg.DefaultPlan = "basic"
	}
	return &AuthService{cfg: cfg, users: users, companies: companies, roles: roles, plans: plans, tokens: tokens}
}

var errBadCredentials = newErr(ErrUnauthorized, "invalid credentials")

// Login checks email and password for the given audience.
func (s *AuthService) Login(ctx context.Context, email, password string, aud Audience) (AuthResult, error) {
	u, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return AuthResult{}, err
	}
	// unknown emails still pay for a bcrypt comparison
	if !utils.VerifyPassword(u.PasswordHash, password) || !u.IsActive {
		return AuthResult{}, errBadCredentials
	}
	switch {
	case aud == AudienceAdmin && u.RoleName != model.RoleSuperAdmin:
		return AuthResult{}, newErr(ErrUnauthorized, "admin access required")
	case aud == AudienceCompany && u.RoleName == model.RoleSuperAdmin:
		return AuthResult{}, newErr(ErrUnauthorized, "use the admin login")
	}
	c, err := s.companies.GetCompany(ctx, u.CompanyID)
	if err != nil || !c.IsActive {
		return AuthResult{}, newErr(ErrUnauthorized, "company is inactive")
	}

	now := nowUTC()
	if err := s.users.TouchLastLogin(ctx, u.ID, now); err != nil {
		logger.FromContext(ctx).Warn("record last login", zap.String("user_id", u.ID), zap.Error(err))
	}
	u.LastLoginAt = &now
	return s.issue(ctx, u, c)
}

var slugCleaner = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a company name into a subdomain label.
func Slugify(name string) string {
	s := slugCleaner.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	return strings.Trim(s, "-")
}

// RegisterCompany creates a company, its company_admin user and a trial
// subscription in one transaction, and logs the new admin in.
func (s *AuthService) RegisterCompany(ctx context.Context, in RegisterInput) (AuthResult, error) {
	slug := Slugify(in.Slug)
	if slug == "" {
		slug = Slugify(in.CompanyName)
	}
	if slug == "" {
		return AuthResult{}, badRequest("company name or slug is required")
	}
	if _, err := s.companies.GetCompanyBySlug(ctx, slug); err == nil {
		return AuthResult{}, conflict("company slug %q is taken", slug)
	}
	if _, err := s.users.GetUserByEmail(ctx, normalizeEmail(in.Email)); err == nil {
		return AuthResult{}, conflict("email already registered")
	}

	planSlug := in.PlanSlug
	if planSlug == "" {
		planSlug = s.cfg.DefaultPlan
	}
	plan, err := s.plans.GetPlanBySlug(ctx, planSlug)
	if err != nil {
		return AuthResult{}, translate(err, "plan")
	}
	role, err := s.roles.GetSystemRoleByName(ctx, model.RoleCompanyAdmin)
	if err != nil {
		return AuthResult{}, translate(err, "role")
	}
	hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, utils.ErrPasswordTooLong) {
			return AuthResult{}, badRequest("%v", err)
		}
		return AuthResult{}, err
	}

	now := nowUTC()
	c := model.Company{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.CompanyName),
		Slug:      slug,
		WidgetKey: "widget_" + uuid.NewString(),
		IsActive:  true,
	}
	u := model.User{
		ID:           uuid.NewString(),
		CompanyID:    c.ID,
		RoleID:       role.ID,
		RoleName:     role.Name,
		Email:        normalizeEmail(in.Email),
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		IsActive:     true,
	}
	sub := model.Subscription{
		ID:                 uuid.NewString(),
		CompanyID:          c.ID,
		PlanID:             plan.ID,
		Status:             model.SubscriptionTrial,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 0, s.cfg.TrialDays),
	}
	if err := s.companies.RegisterCompany(ctx, &c, &u, &sub); err != nil {
		return AuthResult{}, translate(err, "company")
	}
	logger.FromContext(ctx).Info("company registered", zap.String("company_id", c.ID), zap.String("slug", slug))
	return s.issue(ctx, u, c)
}

// platformSlug is the company that owns platform administrators.
const platformSlug = "platform"

// EnsureSuperAdmin creates the platform company and a super_admin user
// with the given credentials unless the email is already registered.
func (s *AuthService) EnsureSuperAdmin(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return badRequest("super admin email and password are required")
	}
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	role, err := s.roles.GetSystemRoleByName(ctx, model.RoleSuperAdmin)
	if err != nil {
		return translate(err, "role")
	}
	hash, err := utils.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	u := model.User{
		ID:           uuid.NewString(),
		RoleID:       role.ID,
		RoleName:     role.Name,
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Platform",
		LastName:     "Admin",
		IsActive:     true,
	}
	log := logger.FromContext(ctx)

	if c, err := s.companies.GetCompanyBySlug(ctx, platformSlug); err == nil {
		u.CompanyID = c.ID
		if err := s.users.CreateUser(ctx, &u); err != nil {
			return translate(err, "user")
		}
		log.Info("super admin created", zap.String("user_id", u.ID))
		return nil
	}

	plans, err := s.plans.ListPlans(ctx, true)
	if err != nil || len(plans) == 0 {
		return newErr(ErrNotFound, "no active plan for the platform company")
	}
	plan := plans[len(plans)-1]
	now := nowUTC()
	c := model.Company{
		ID:        uuid.NewString(),
		Name:      "Platform",
		Slug:      platformSlug,
		WidgetKey: "widget_" + uuid.NewString(),
		IsActive:  true,
	}
	u.CompanyID = c.ID
	sub := model.Subscription{
		ID:                 uuid.NewString(),
		CompanyID:          c.ID,
		PlanID:             plan.ID,
		Status:             model.SubscriptionActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(100, 0, 0),
	}
	if err := s.companies.RegisterCompany(ctx, &c, &u, &sub); err != nil {
		return translate(err, "company")
	}
	log.Info("platform company and super admin created", zap.String("company_id", c.ID), zap.String("user_id", u.ID))
	return nil
}

// Refresh rotates a refresh token: the old one is revoked and a new pair issued.
func (s *AuthService) Refresh(ctx context.Context, raw string) (AuthResult, error) {
	hash := utils.HashRefreshRaw(raw)
	userID, err := s.tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return AuthResult{}, newErr(ErrUnauthorized, "invalid refresh token")
	}
	u, c, err := s.loadActive(ctx, userID)
	if err != nil {
		return AuthResult{}, err
	}
	if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
		return AuthResult{}, err
	}
	return s.issue(ctx, u, c)
}

// Logout revokes one refresh token, or every token of its user when all is set.
func (s *AuthService) Logout(ctx context.Context, raw string, all bool) error {
	hash := utils.HashRefreshRaw(raw)
	if !all {
		return s.tokens.RevokeByHash(ctx, hash)
	}
	userID, err := s.tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return newErr(ErrUnauthorized, "invalid refresh token")
	}
	return s.tokens.RevokeAllForUser(ctx, userID)
}

// Authenticate verifies a bearer access token and reloads its user and
// company; both must still be active.
func (s *AuthService) Authenticate(ctx context.Context, bearer string) (Identity, error) {
	claims, err := utils.ParseAccessToken(s.cfg.JWTSecret, bearer)
	if err != nil {
		return Identity{}, newErr(ErrUnauthorized, "invalid token")
	}
	u, _, err := s.loadActive(ctx, claims.Subject)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: u.ID, CompanyID: u.CompanyID, RoleID: u.RoleID, RoleName: u.RoleName, Email: u.Email}, nil
}

// Me returns the caller's user and company.
func (s *AuthService) Me(ctx context.Context, id Identity) (model.User, model.Company, error) {
	return s.loadActive(ctx, id.UserID)
}

func (s *AuthService) loadActive(ctx context.Context, userID string) (model.User, model.Company, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return u, model.Company{}, newErr(ErrUnauthorized, "user no longer exists")
		}
		return u, model.Company{}, err
	}
	if !u.IsActive {
		return u, model.Company{}, newErr(ErrUnauthorized, "user is inactive")
	}
	c, err := s.companies.GetCompany(ctx, u.CompanyID)
	if err != nil {
		return u, c, newErr(ErrUnauthorized, "company no longer exists")
	}
	if !c.IsActive {
		return u, c, newErr(ErrUnauthorized, "company is inactive")
	}
	return u, c, nil
}

func (s *AuthService) issue(ctx context.Context, u model.User, c model.Company) (AuthResult, error) {
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.CompanyID, u.RoleID, u.RoleName, s.cfg.AccessTTLMin)
	if err != nil {
		return AuthResult{}, err
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return AuthResult{}, err
	}
	if err := s.tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return AuthResult{}, err
	}
	return AuthResult{User: u, Company: c, Tokens: TokenPair{
		AccessToken: access.Token, AccessExpiresAt: access.Exp,
		RefreshToken: refresh.Raw, RefreshExpiresAt: refresh.Exp,
	}}, nil
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
