// AngelaMos | 2026
// scope.go

package access

import (
	"fmt"
)

// Scope is the query constraint an Allow decision carries. Repositories
// must translate it into SQL predicates on every statement they run.
type Scope struct {
	tenantID      *string
	excludeUserID string
}

func Unrestricted() Scope {
	return Scope{}
}

func TenantScope(tenantID string) Scope {
	return Scope{tenantID: &tenantID}
}

func (s Scope) Excluding(userID string) Scope {
	s.excludeUserID = userID
	return s
}

func (s Scope) Restricted() bool {
	return s.tenantID != nil
}

func (s Scope) TenantID() (string, bool) {
	if s.tenantID == nil {
		return "", false
	}
	return *s.tenantID, true
}

func (s Scope) ExcludedUserID() string {
	return s.excludeUserID
}

// Admits reports whether a record owned by tenantID is visible.
func (s Scope) Admits(tenantID *string) bool {
	if s.tenantID == nil {
		return true
	}
	return tenantID != nil && *tenantID == *s.tenantID
}

// Where appends the scope predicates. tenantColumn is matched against the
// caller's tenant; idColumn, when non-empty, excludes the caller's own row.
// Placeholders continue from len(args).
func (s Scope) Where(
	tenantColumn, idColumn string,
	conditions []string,
	args []any,
) ([]string, []any) {
	if s.tenantID != nil {
		args = append(args, *s.tenantID)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", tenantColumn, len(args)))
	}

	if s.excludeUserID != "" && idColumn != "" {
		args = append(args, s.excludeUserID)
		conditions = append(conditions, fmt.Sprintf("%s <> $%d", idColumn, len(args)))
	}

	return conditions, args
}
