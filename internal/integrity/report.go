// AngelaMos | 2026
// report.go

package integrity

import (
	"github.com/carterperez-dev/saas-metrics/internal/access"
)

// Outcome is the result of recalculating one member.
type Outcome struct {
	UserID string
	From   access.Role
	To     access.Role
	Err    error
}

func (o Outcome) Transitioned() bool {
	return o.Err == nil && o.From != o.To
}

// Report collects a tenant fan-out. Err is set when the inputs could not
// be read and no member was recalculated.
type Report struct {
	TenantID string
	Outcomes []Outcome
	Err      error
}

func (r Report) Complete() bool {
	return r.Err == nil && r.Failed() == 0
}

func (r Report) Recalculated() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

func (r Report) Failed() int {
	return len(r.Outcomes) - r.Recalculated()
}

func (r Report) Transitions() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Transitioned() {
			out = append(out, o)
		}
	}
	return out
}
