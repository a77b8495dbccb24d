// AngelaMos | 2026
// service.go

package metric

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/saas-metrics/internal/access"
	"github.com/carterperez-dev/saas-metrics/internal/core"
	"github.com/carterperez-dev/saas-metrics/internal/integrity"
	"github.com/carterperez-dev/saas-metrics/internal/tenant"
)

// Coordinator serializes a tenant's metric writes and recalculates its
// members once the write has landed.
type Coordinator interface {
	MutateTenantMetrics(
		ctx context.Context,
		tenantID *string,
		mutate func(ctx context.Context) error,
	) (integrity.Report, error)
}

type TenantLookup interface {
	GetByID(ctx context.Context, scope access.Scope, id string) (*tenant.Tenant, error)
}

type Service struct {
	repo        Repository
	tenants     TenantLookup
	coordinator Coordinator
	now         func() time.Time
}

func NewService(repo Repository, tenants TenantLookup, coordinator Coordinator) *Service {
	return &Service{
		repo:        repo,
		tenants:     tenants,
		coordinator: coordinator,
		now:         time.Now,
	}
}

func (s *Service) Create(
	ctx context.Context,
	caller access.Identity,
	req CreateMetricRequest,
) (*Metric, integrity.Report, error) {
	tenantID, err := s.targetTenant(ctx, caller, req.TenantID)
	if err != nil {
		return nil, integrity.Report{}, err
	}

	m := &Metric{
		ID:       uuid.New().String(),
		TenantID: tenantID,
		Name:     req.Name,
		Value:    *req.Value,
		Date:     s.now().UTC(),
	}
	if req.Date != nil {
		m.Date = *req.Date
	}

	report, err := s.coordinator.MutateTenantMetrics(ctx, tenantID,
		func(ctx context.Context) error {
			return s.repo.Create(ctx, m)
		})
	if err != nil {
		return nil, integrity.Report{}, err
	}

	return m, report, nil
}

// targetTenant forces tenant members onto their own tenant, which must still
// exist since the token may outlive it. Global admins may name any existing
// tenant or none at all.
func (s *Service) targetTenant(
	ctx context.Context,
	caller access.Identity,
	requested *string,
) (*string, error) {
	if !caller.IsGlobalAdmin() {
		own := caller.TenantID()
		if own == nil {
			return nil, nil
		}
		if _, err := s.tenants.GetByID(ctx, access.TenantScope(*own), *own); err != nil {
			return nil, err
		}
		return own, nil
	}

	if requested == nil {
		return nil, nil
	}

	if _, err := s.tenants.GetByID(ctx, access.Unrestricted(), *requested); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.InvalidInputError(
				"tenant does not exist",
				map[string]string{"tenant_id": "does not exist"},
			)
		}
		return nil, err
	}

	id := *requested
	return &id, nil
}

func (s *Service) Get(
	ctx context.Context,
	scope access.Scope,
	id string,
) (*Metric, error) {
	return s.repo.GetByID(ctx, scope, id)
}

func (s *Service) List(
	ctx context.Context,
	scope access.Scope,
	params ListMetricsParams,
) ([]Metric, int, error) {
	return s.repo.List(ctx, scope, params)
}

// Update re-reads the metric under the tenant lock so concurrent partial
// updates apply on top of each other.
func (s *Service) Update(
	ctx context.Context,
	scope access.Scope,
	id string,
	req UpdateMetricRequest,
) (*Metric, integrity.Report, error) {
	current, err := s.repo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, integrity.Report{}, err
	}

	var updated *Metric
	report, err := s.coordinator.MutateTenantMetrics(ctx, current.TenantID,
		func(ctx context.Context) error {
			m, err := s.repo.GetByID(ctx, scope, id)
			if err != nil {
				return err
			}

			if req.Name != nil {
				m.Name = *req.Name
			}
			if req.Value != nil {
				m.Value = *req.Value
			}
			if req.Date != nil {
				m.Date = *req.Date
			}

			if err := s.repo.Update(ctx, scope, m); err != nil {
				return err
			}

			updated = m
			return nil
		})
	if err != nil {
		return nil, integrity.Report{}, err
	}

	return updated, report, nil
}

func (s *Service) Delete(
	ctx context.Context,
	scope access.Scope,
	id string,
) (integrity.Report, error) {
	current, err := s.repo.GetByID(ctx, scope, id)
	if err != nil {
		return integrity.Report{}, err
	}

	return s.coordinator.MutateTenantMetrics(ctx, current.TenantID,
		func(ctx context.Context) error {
			return s.repo.Delete(ctx, scope, id)
		})
}

func (s *Service) Export(ctx context.Context, scope access.Scope) ([]byte, error) {
	metrics, err := s.repo.ListForExport(ctx, scope)
	if err != nil {
		return nil, err
	}

	return ExportXLSX(metrics)
}
