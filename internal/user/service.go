// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/saas-metrics/internal/access"
	"github.com/carterperez-dev/saas-metrics/internal/auth"
	"github.com/carterperez-dev/saas-metrics/internal/core"
	"github.com/carterperez-dev/saas-metrics/internal/promotion"
	"github.com/carterperez-dev/saas-metrics/internal/tenant"
)

// Cascader owns the deletions and recalculations that span users and
// metrics.
type Cascader interface {
	DeleteUser(ctx context.Context, scope access.Scope, id string) error
	RefreshTenant(ctx context.Context, tenantID string) error
	WithTenantLock(ctx context.Context, tenantID *string, fn func(ctx context.Context) error) error
}

// TxFunc runs fn with repositories bound to a single transaction.
type TxFunc func(
	ctx context.Context,
	fn func(users Repository, tenants tenant.Repository) error,
) error

type Service struct {
	repo     Repository
	tenants  tenant.Repository
	inTx     TxFunc
	cascader Cascader
	logger   *slog.Logger
}

func NewService(
	repo Repository,
	tenants tenant.Repository,
	inTx TxFunc,
	cascader Cascader,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:     repo,
		tenants:  tenants,
		inTx:     inTx,
		cascader: cascader,
		logger:   logger,
	}
}

func (s *Service) GetByID(
	ctx context.Context,
	id string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByID(ctx, access.Unrestricted(), id)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) GetByEmail(
	ctx context.Context,
	email string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

// Register creates a global admin on its own, or a fresh tenant together
// with its first viewer in one transaction.
func (s *Service) Register(
	ctx context.Context,
	reg auth.Registration,
) (*auth.UserInfo, error) {
	user := &User{
		ID:           uuid.New().String(),
		Name:         reg.Name,
		Email:        reg.Email,
		PasswordHash: reg.PasswordHash,
	}

	if reg.GlobalAdmin {
		user.Role = access.RoleAdmin
		if err := s.createUser(ctx, s.repo, user); err != nil {
			return nil, err
		}
		return toUserInfo(user), nil
	}

	err := s.inTx(ctx, func(users Repository, tenants tenant.Repository) error {
		taken, err := tenants.ExistsByName(ctx, reg.TenantName, "")
		if err != nil {
			return err
		}
		if taken {
			return core.DuplicateError("tenant_name")
		}

		t := &tenant.Tenant{
			ID:   uuid.New().String(),
			Name: reg.TenantName,
			Plan: tenant.PlanFree,
		}
		if err := tenants.Create(ctx, t); err != nil {
			if errors.Is(err, core.ErrDuplicateKey) {
				return core.DuplicateError("tenant_name")
			}
			return err
		}

		user.TenantID = &t.ID
		user.ApplyStanding(promotion.Recompute(
			promotion.Standing{Role: access.RoleViewer},
			nil,
		))

		return s.createUser(ctx, users, user)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tenant registered",
		"tenant_id", *user.TenantID,
		"user_id", user.ID,
	)

	return toUserInfo(user), nil
}

func (s *Service) createUser(ctx context.Context, repo Repository, user *User) error {
	taken, err := repo.ExistsByEmail(ctx, user.Email, "")
	if err != nil {
		return err
	}
	if taken {
		return core.DuplicateError("email")
	}

	if err := repo.Create(ctx, user); err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return core.DuplicateError("email")
		}
		return err
	}

	return nil
}

func (s *Service) UpdatePassword(
	ctx context.Context,
	userID, passwordHash string,
) error {
	return s.repo.UpdatePassword(ctx, userID, passwordHash)
}

func (s *Service) SetTemporaryCredential(
	ctx context.Context,
	userID, hash string,
	expiresAt time.Time,
) error {
	return s.repo.SetTemporaryCredential(ctx, userID, hash, expiresAt)
}

func (s *Service) ClearTemporaryCredential(
	ctx context.Context,
	userID, hash string,
) error {
	return s.repo.ClearTemporaryCredential(ctx, userID, hash)
}

func (s *Service) Get(
	ctx context.Context,
	scope access.Scope,
	id string,
) (*User, error) {
	return s.repo.GetByID(ctx, scope, id)
}

func (s *Service) List(
	ctx context.Context,
	scope access.Scope,
	params ListUsersParams,
) ([]User, int, error) {
	return s.repo.List(ctx, scope, params)
}

func (s *Service) UpdateProfile(
	ctx context.Context,
	scope access.Scope,
	id string,
	req UpdateProfileRequest,
) (*User, error) {
	user, err := s.repo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	if err := s.applyIdentityFields(ctx, user, req.Name, req.Email); err != nil {
		return nil, err
	}

	if err := s.save(ctx, scope, user, req.Password); err != nil {
		return nil, err
	}

	return user, nil
}

// UpdateUser is the management edit. Moving a user to another tenant is
// reserved to global admins and refreshes both tenants afterwards.
func (s *Service) UpdateUser(
	ctx context.Context,
	caller access.Identity,
	scope access.Scope,
	id string,
	req UpdateUserRequest,
) (*User, error) {
	user, err := s.repo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	previousTenant := user.TenantID
	moved := false

	if req.TenantID != nil && !user.InTenant(*req.TenantID) {
		if !caller.IsGlobalAdmin() {
			return nil, core.ForbiddenError("only global admins may change a user's tenant")
		}

		if _, err := s.tenants.GetByID(ctx, access.Unrestricted(), *req.TenantID); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return nil, core.InvalidInputError(
					"tenant does not exist",
					map[string]string{"tenant_id": "does not exist"},
				)
			}
			return nil, err
		}

		target := *req.TenantID
		user.TenantID = &target
		moved = true
	}

	if err := s.applyIdentityFields(ctx, user, req.Name, req.Email); err != nil {
		return nil, err
	}

	if err := s.save(ctx, scope, user, req.Password); err != nil {
		return nil, err
	}

	if req.Role != nil {
		if err := s.assignRole(ctx, scope, user, access.Role(*req.Role)); err != nil {
			return nil, err
		}
	}

	if moved {
		s.refresh(ctx, previousTenant)
		s.refresh(ctx, user.TenantID)

		refreshed, err := s.repo.GetByID(ctx, access.Unrestricted(), user.ID)
		if err == nil {
			user = refreshed
		}
	}

	return user, nil
}

// Delete removes the user through the cascade, which also purges the
// tenant's metrics and recalculates whoever remains.
func (s *Service) Delete(
	ctx context.Context,
	scope access.Scope,
	id string,
) error {
	return s.cascader.DeleteUser(ctx, scope, id)
}

func (s *Service) applyIdentityFields(
	ctx context.Context,
	user *User,
	name, email *string,
) error {
	if name != nil {
		user.Name = *name
	}

	if email != nil && *email != user.Email {
		taken, err := s.repo.ExistsByEmail(ctx, *email, user.ID)
		if err != nil {
			return err
		}
		if taken {
			return core.DuplicateError("email")
		}
		user.Email = *email
	}

	return nil
}

func (s *Service) save(
	ctx context.Context,
	scope access.Scope,
	user *User,
	password *string,
) error {
	if err := s.repo.Update(ctx, scope, user); err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return core.DuplicateError("email")
		}
		return err
	}

	if password == nil {
		return nil
	}

	hash, err := core.HashPassword(*password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.repo.UpdatePassword(ctx, user.ID, hash)
}

// assignRole writes only role and flag, under the tenant lock, so it is
// ordered against recalculations instead of racing them.
func (s *Service) assignRole(
	ctx context.Context,
	scope access.Scope,
	user *User,
	role access.Role,
) error {
	next := promotion.ForRole(user.Standing(), role)

	err := s.cascader.WithTenantLock(ctx, user.TenantID, func(ctx context.Context) error {
		return s.repo.AssignRole(ctx, scope, user.ID, next)
	})
	if err != nil {
		return err
	}

	user.Role = next.Role
	user.CanBeAnalyst = next.CanBeAnalyst
	return nil
}

func (s *Service) refresh(ctx context.Context, tenantID *string) {
	if tenantID == nil {
		return
	}

	if err := s.cascader.RefreshTenant(ctx, *tenantID); err != nil {
		s.logger.WarnContext(ctx, "tenant refresh after move failed",
			"tenant_id", *tenantID,
			"error", err,
		)
	}
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:                    u.ID,
		TenantID:              u.TenantID,
		Email:                 u.Email,
		Name:                  u.Name,
		PasswordHash:          u.PasswordHash,
		Role:                  string(u.Role),
		TempPasswordHash:      u.TempPasswordHash,
		TempPasswordExpiresAt: u.TempPasswordExpiresAt,
	}
}
