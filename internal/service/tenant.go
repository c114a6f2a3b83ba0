package service

import (
	"context"
	"net"
	"strings"

	"github.com/iliyamo/chatdesk/internal/model"
)

const loopbackHost = "localhost"

// ExtractSubdomain derives the tenant label from a Host value: strip the
// port, split on '.', take the first label when there are three or more
// labels, or when there are exactly two and the second is localhost.
// Plain localhost and IPv4 literals never carry a subdomain.
func ExtractSubdomain(host string) (string, bool) {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	} else if i := strings.LastIndexByte(host, ':'); i >= 0 && !strings.Contains(host[:i], ":") {
		host = host[:i]
	}
	if host == "" || host == loopbackHost {
		return "", false
	}
	if ip := net.ParseIP(host); ip != nil && ip.To4() != nil {
		return "", false
	}

	labels := strings.Split(host, ".")
	switch {
	case len(labels) >= 3 && labels[0] != "":
		return labels[0], true
	case len(labels) == 2 && labels[1] == loopbackHost && labels[0] != "":
		return labels[0], true
	}
	return "", false
}

// TenantContext is the company scope of one request.
type TenantContext struct {
	CompanyID string  `json:"companyId"`
	Subdomain *string `json:"subdomain"`
}

// Resolved reports whether a company was established.
func (t TenantContext) Resolved() bool { return t.CompanyID != "" }

// TenantResolver establishes the company scope of a request from its host
// (or the edge-provided slug header) and the authenticated identity.
type TenantResolver struct {
	companies CompanyStore
}

func NewTenantResolver(companies CompanyStore) *TenantResolver {
	return &TenantResolver{companies: companies}
}

// Resolve returns the tenant of a request.  headerSlug, set by an edge
// rewrite layer, takes precedence over the Host header.  A subdomain must
// name an active company.  Without a subdomain the identity's company is
// used.  When both are present they must agree.
func (r *TenantResolver) Resolve(ctx context.Context, host, headerSlug string, id *Identity) (TenantContext, error) {
	slug := strings.ToLower(strings.TrimSpace(headerSlug))
	if slug == "" {
		slug, _ = ExtractSubdomain(host)
	}

	if slug == "" {
		if id != nil {
			return TenantContext{CompanyID: id.CompanyID}, nil
		}
		return TenantContext{}, nil
	}

	c, err := r.companies.GetCompanyBySlug(ctx, slug)
	if err != nil {
		return TenantContext{}, translate(err, "company")
	}
	if !c.IsActive {
		return TenantContext{}, notFound("company")
	}
	if id != nil && id.CompanyID != c.ID && !id.IsSuperAdmin() {
		return TenantContext{}, forbidden("token does not belong to tenant %s", slug)
	}
	return TenantContext{CompanyID: c.ID, Subdomain: &slug}, nil
}

// ActiveCompany loads a company and requires it to be active.
func ActiveCompany(ctx context.Context, companies CompanyStore, id string) (model.Company, error) {
	c, err := companies.GetCompany(ctx, id)
	if err != nil {
		return c, translate(err, "company")
	}
	if !c.IsActive {
		return c, forbidden("company is inactive")
	}
	return c, nil
}
