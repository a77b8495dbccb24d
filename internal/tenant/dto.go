// AngelaMos | 2026
// dto.go

package tenant

import (
	"time"
)

type CreateTenantRequest struct {
	Name string `json:"name" validate:"required,min=3,max=50"`
	Plan string `json:"plan" validate:"omitempty,oneof=free pro"`
}

type UpdateTenantRequest struct {
	Name *string `json:"name,omitempty" validate:"omitempty,min=3,max=50"`
	Plan *string `json:"plan,omitempty" validate:"omitempty,oneof=free pro"`
}

type TenantResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Plan      string    `json:"plan"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ListTenantsParams struct {
	Page     int
	PageSize int
	Search   string
}

func (p *ListTenantsParams) Normalize() {
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

func (p *ListTenantsParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToTenantResponse(t *Tenant) TenantResponse {
	return TenantResponse{
		ID:        t.ID,
		Name:      t.Name,
		Plan:      t.Plan,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func ToTenantResponseList(tenants []Tenant) []TenantResponse {
	responses := make([]TenantResponse, 0, len(tenants))
	for i := range tenants {
		responses = append(responses, ToTenantResponse(&tenants[i]))
	}
	return responses
}
