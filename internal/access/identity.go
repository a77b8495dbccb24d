// AngelaMos | 2026
// identity.go

package access

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/carterperez-dev/saas-metrics/internal/core"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleAnalyst Role = "analyst"
	RoleViewer  Role = "viewer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAnalyst, RoleViewer:
		return true
	}
	return false
}

// IsGlobalAdminEmail reports whether an account without a tenant and with
// this email holds the cross-tenant capability. domain includes the '@'.
func IsGlobalAdminEmail(email string, tenantID *string, domain string) bool {
	if tenantID != nil || domain == "" {
		return false
	}
	return strings.HasSuffix(strings.ToLower(email), strings.ToLower(domain))
}

// Claims is what a verified credential carries.
type Claims struct {
	Subject       string
	TenantID      *string
	Role          string
	Email         string
	IsGlobalAdmin bool
	TokenID       string
	ExpiresAt     time.Time
}

// Identity is the per-request caller. Build it with NewIdentity; fields are
// read through accessors so handlers cannot mutate it.
type Identity struct {
	userID        string
	tenantID      *string
	role          Role
	email         string
	isGlobalAdmin bool
	tokenID       string
	expiresAt     time.Time
}

func NewIdentity(c Claims) (Identity, error) {
	if c.Subject == "" {
		return Identity{}, fmt.Errorf("identity: missing subject: %w", core.ErrTokenInvalid)
	}

	role := Role(c.Role)
	if !role.Valid() {
		return Identity{}, fmt.Errorf("identity: unknown role %q: %w", c.Role, core.ErrTokenInvalid)
	}

	if c.IsGlobalAdmin && c.TenantID != nil {
		return Identity{}, fmt.Errorf("identity: global admin bound to tenant: %w", core.ErrTokenInvalid)
	}

	var tenantID *string
	if c.TenantID != nil && *c.TenantID != "" {
		t := *c.TenantID
		tenantID = &t
	}

	return Identity{
		userID:        c.Subject,
		tenantID:      tenantID,
		role:          role,
		email:         c.Email,
		isGlobalAdmin: c.IsGlobalAdmin,
		tokenID:       c.TokenID,
		expiresAt:     c.ExpiresAt,
	}, nil
}

func (i Identity) UserID() string { return i.userID }

func (i Identity) Role() Role { return i.role }

func (i Identity) Email() string { return i.email }

func (i Identity) IsGlobalAdmin() bool { return i.isGlobalAdmin }

func (i Identity) TokenID() string { return i.tokenID }

func (i Identity) ExpiresAt() time.Time { return i.expiresAt }

// TenantID returns a copy of the caller's tenant reference.
func (i Identity) TenantID() *string {
	if i.tenantID == nil {
		return nil
	}
	t := *i.tenantID
	return &t
}

func (i Identity) HasTenant() bool {
	return i.tenantID != nil
}

func (i Identity) InTenant(tenantID string) bool {
	return i.tenantID != nil && *i.tenantID == tenantID
}

type contextKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}
