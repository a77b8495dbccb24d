// AngelaMos | 2026
// policy.go

package access

import (
	"context"
	"fmt"

	"github.com/carterperez-dev/saas-metrics/internal/core"
)

type Resource string

const (
	ResourceTenant Resource = "tenant"
	ResourceUser   Resource = "user"
	ResourceMetric Resource = "metric"
)

type Operation string

const (
	OpReadOne  Operation = "read-one"
	OpReadMany Operation = "read-many"
	OpCreate   Operation = "create"
	OpUpdate   Operation = "update"
	OpDelete   Operation = "delete"
)

func (o Operation) mutates() bool {
	return o == OpCreate || o == OpUpdate || o == OpDelete
}

// Path distinguishes the two ways users are addressed.
type Path string

const (
	PathManagement Path = "management"
	PathProfile    Path = "profile"
)

type Request struct {
	Resource  Resource
	Operation Operation
	Path      Path

	// TargetUserID is the addressed user for instance-level user requests.
	TargetUserID string

	// TargetTenantID is the owning tenant when the caller already knows it.
	// Nil leaves resolution to the scope filter.
	TargetTenantID *string
}

type Decision struct {
	Allowed bool
	Scope   Scope
	Reason  error
}

func Allow(scope Scope) Decision {
	return Decision{Allowed: true, Scope: scope}
}

func Deny(reason error) Decision {
	return Decision{Reason: reason}
}

func (d Decision) Err(req Request) error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%s %s: %w", req.Operation, req.Resource, d.Reason)
}

// Decide is evaluated in order: user path guards, global admin, tenant
// membership, then the per-resource rules.
func Decide(id Identity, req Request) Decision {
	if req.Resource == ResourceUser {
		if d, decided := guardUserPath(id, req); decided {
			return d
		}
	}

	if id.IsGlobalAdmin() {
		scope := Unrestricted()
		if req.Resource == ResourceUser && req.Path == PathManagement {
			scope = scope.Excluding(id.UserID())
		}
		return Allow(scope)
	}

	if req.Resource == ResourceUser && req.Path == PathProfile {
		return Allow(Unrestricted())
	}

	if !id.HasTenant() {
		return Deny(core.ErrForbidden)
	}

	own := TenantScope(*id.tenantID)

	switch req.Resource {
	case ResourceTenant:
		if req.Operation.mutates() && id.Role() != RoleAdmin {
			return Deny(core.ErrForbidden)
		}
		return withinTenant(id, req, own)

	case ResourceMetric:
		if (req.Operation == OpUpdate || req.Operation == OpDelete) &&
			id.Role() != RoleAdmin && id.Role() != RoleAnalyst {
			return Deny(core.ErrForbidden)
		}
		return withinTenant(id, req, own)

	case ResourceUser:
		if req.Operation.mutates() && id.Role() != RoleAdmin {
			return Deny(core.ErrForbidden)
		}
		return withinTenant(id, req, own.Excluding(id.UserID()))
	}

	return Deny(core.ErrForbidden)
}

func guardUserPath(id Identity, req Request) (Decision, bool) {
	switch req.Path {
	case PathProfile:
		if req.TargetUserID == "" || req.TargetUserID != id.UserID() {
			return Deny(core.ErrForbidden), true
		}
	case PathManagement:
		if (req.Operation == OpUpdate || req.Operation == OpDelete) &&
			req.TargetUserID == id.UserID() {
			return Deny(core.ErrForbidden), true
		}
	default:
		return Deny(core.ErrForbidden), true
	}
	return Decision{}, false
}

// withinTenant hides foreign tenants: a known target outside the caller's
// tenant is reported as absent.
func withinTenant(id Identity, req Request, scope Scope) Decision {
	if req.TargetTenantID != nil && !id.InTenant(*req.TargetTenantID) {
		return Deny(core.ErrNotFound)
	}
	return Allow(scope)
}

// Authorize decides for the identity carried by ctx and returns the scope
// to apply to store queries.
func Authorize(ctx context.Context, req Request) (Identity, Scope, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return Identity{}, Scope{}, fmt.Errorf("authorize: %w", core.ErrUnauthorized)
	}

	d := Decide(id, req)
	if !d.Allowed {
		recordDenial(req, d.Reason)
		return id, Scope{}, d.Err(req)
	}

	return id, d.Scope, nil
}
