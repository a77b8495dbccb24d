// AngelaMos | 2026
// metrics.go

package integrity

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	recalculations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_recalculations_total",
			Help: "Per-member role recalculations by outcome",
		},
		[]string{"outcome"},
	)

	roleTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "role_transitions_total",
			Help: "Role changes applied by recalculation",
		},
		[]string{"from", "to"},
	)

	cascadeDeletions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cascade_deletions_total",
			Help: "Rows removed by cascading deletes",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(recalculations, roleTransitions, cascadeDeletions)
}
