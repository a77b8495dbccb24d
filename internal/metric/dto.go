// AngelaMos | 2026
// dto.go

package metric

import (
	"time"

	"github.com/carterperez-dev/saas-metrics/internal/integrity"
)

// CreateMetricRequest. TenantID is only honoured for global admins; every
// other caller writes into their own tenant.
type CreateMetricRequest struct {
	Name     string     `json:"name"                validate:"required,min=3,max=50"`
	Value    *float64   `json:"value"               validate:"required,gte=0,maxdecimals2"`
	Date     *time.Time `json:"date,omitempty"`
	TenantID *string    `json:"tenant_id,omitempty" validate:"omitempty,uuid"`
}

type UpdateMetricRequest struct {
	Name  *string    `json:"name,omitempty"  validate:"omitempty,min=3,max=50"`
	Value *float64   `json:"value,omitempty" validate:"omitempty,gte=0,maxdecimals2"`
	Date  *time.Time `json:"date,omitempty"`
}

type MetricResponse struct {
	ID        string    `json:"id"`
	TenantID  *string   `json:"tenant_id"`
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	Date      time.Time `json:"date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type RecalculationSummary struct {
	Recalculated int  `json:"recalculated"`
	Failed       int  `json:"failed"`
	Transitions  int  `json:"role_transitions"`
	Complete     bool `json:"complete"`
}

// MutationResponse pairs the written metric with the outcome of the
// tenant fan-out it triggered.
type MutationResponse struct {
	Metric        *MetricResponse      `json:"metric,omitempty"`
	Recalculation RecalculationSummary `json:"recalculation"`
}

type ListMetricsParams struct {
	Page     int
	PageSize int
	Search   string
	From     *time.Time
	To       *time.Time
}

func (p *ListMetricsParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListMetricsParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToMetricResponse(m *Metric) MetricResponse {
	return MetricResponse{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Name:      m.Name,
		Value:     m.Value,
		Date:      m.Date,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func ToMetricResponseList(metrics []Metric) []MetricResponse {
	responses := make([]MetricResponse, 0, len(metrics))
	for i := range metrics {
		responses = append(responses, ToMetricResponse(&metrics[i]))
	}
	return responses
}

func ToMutationResponse(m *Metric, report integrity.Report) MutationResponse {
	resp := MutationResponse{
		Recalculation: RecalculationSummary{
			Recalculated: report.Recalculated(),
			Failed:       report.Failed(),
			Transitions:  len(report.Transitions()),
			Complete:     report.Complete(),
		},
	}
	if m != nil {
		r := ToMetricResponse(m)
		resp.Metric = &r
	}
	return resp
}
