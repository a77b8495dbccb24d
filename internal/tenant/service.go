// AngelaMos | 2026
// service.go

package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/carterperez-dev/saas-metrics/internal/access"
	"github.com/carterperez-dev/saas-metrics/internal/core"
)

// Cascader removes a tenant together with everything that references it.
type Cascader interface {
	DeleteTenant(ctx context.Context, scope access.Scope, id string) error
}

type Service struct {
	repo     Repository
	cascader Cascader
}

func NewService(repo Repository, cascader Cascader) *Service {
	return &Service{
		repo:     repo,
		cascader: cascader,
	}
}

func (s *Service) Create(
	ctx context.Context,
	req CreateTenantRequest,
) (*Tenant, error) {
	if err := s.ensureNameFree(ctx, req.Name, ""); err != nil {
		return nil, err
	}

	plan := req.Plan
	if plan == "" {
		plan = PlanFree
	}

	t := &Tenant{
		ID:   uuid.New().String(),
		Name: req.Name,
		Plan: plan,
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, nameConflict(err)
	}

	return t, nil
}

func (s *Service) Get(
	ctx context.Context,
	scope access.Scope,
	id string,
) (*Tenant, error) {
	return s.repo.GetByID(ctx, scope, id)
}

func (s *Service) List(
	ctx context.Context,
	scope access.Scope,
	params ListTenantsParams,
) ([]Tenant, int, error) {
	return s.repo.List(ctx, scope, params)
}

func (s *Service) Update(
	ctx context.Context,
	scope access.Scope,
	id string,
	req UpdateTenantRequest,
) (*Tenant, error) {
	t, err := s.repo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil && *req.Name != t.Name {
		if err := s.ensureNameFree(ctx, *req.Name, t.ID); err != nil {
			return nil, err
		}
		t.Name = *req.Name
	}

	if req.Plan != nil {
		t.Plan = *req.Plan
	}

	if err := s.repo.Update(ctx, scope, t); err != nil {
		return nil, nameConflict(err)
	}

	return t, nil
}

func (s *Service) Delete(
	ctx context.Context,
	scope access.Scope,
	id string,
) error {
	return s.cascader.DeleteTenant(ctx, scope, id)
}

func (s *Service) ensureNameFree(ctx context.Context, name, excludeID string) error {
	exists, err := s.repo.ExistsByName(ctx, name, excludeID)
	if err != nil {
		return err
	}

	if exists {
		return core.DuplicateError("name")
	}

	return nil
}

// nameConflict reports a lost race on the unique name index the same way
// ensureNameFree does.
func nameConflict(err error) error {
	if errors.Is(err, core.ErrDuplicateKey) {
		return core.DuplicateError("name")
	}
	return err
}
