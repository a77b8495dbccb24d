// AngelaMos | 2026
// metrics.go

package access

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/carterperez-dev/saas-metrics/internal/core"
)

var denials = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "access_denials_total",
		Help: "Access decisions that denied the request",
	},
	[]string{"resource", "reason"},
)

func init() {
	prometheus.MustRegister(denials)
}

func recordDenial(req Request, reason error) {
	label := "forbidden"
	if errors.Is(reason, core.ErrNotFound) {
		label = "not_found"
	}
	denials.WithLabelValues(string(req.Resource), label).Inc()
}
