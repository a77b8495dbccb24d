// AngelaMos | 2026
// recompute.go

package promotion

import (
	"math"

	"github.com/carterperez-dev/saas-metrics/internal/access"
)

const (
	// ValuableThresholdCents is the value (in cents) at or above which a
	// metric counts towards promotion.
	ValuableThresholdCents = 5000

	// AnalystThreshold is the number of valuable tenant metrics that makes a
	// member an analyst.
	AnalystThreshold = 5
)

// Standing is the derived part of a user record.
type Standing struct {
	Role                   access.Role
	CanBeAnalyst           bool
	MetricsCreated         int
	MetricsCreatedValuable int
}

func (s Standing) RoleChanged(prev Standing) bool {
	return s.Role != prev.Role
}

func IsValuable(value float64) bool {
	return math.Round(value*100) >= ValuableThresholdCents
}

// Recompute derives a member's standing from every metric value of their
// tenant. It has no memory of earlier results, so an analyst whose tenant
// drops below the threshold goes back to viewer. Tenant admins keep their
// role and only get fresh counters.
func Recompute(current Standing, values []float64) Standing {
	valuable := 0
	for _, v := range values {
		if IsValuable(v) {
			valuable++
		}
	}

	next := Standing{
		MetricsCreated:         len(values),
		MetricsCreatedValuable: valuable,
	}

	switch {
	case current.Role == access.RoleAdmin:
		next.Role = access.RoleAdmin
		next.CanBeAnalyst = false
	case valuable >= AnalystThreshold:
		next.Role = access.RoleAnalyst
		next.CanBeAnalyst = false
	default:
		next.Role = access.RoleViewer
		next.CanBeAnalyst = true
	}

	return next
}

// ForRole returns the standing a manual role assignment implies before the
// next recalculation refreshes the counters.
func ForRole(current Standing, role access.Role) Standing {
	next := current
	next.Role = role
	next.CanBeAnalyst = role == access.RoleViewer
	return next
}
