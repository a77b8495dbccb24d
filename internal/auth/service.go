// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/carterperez-dev/saas-metrics/internal/access"
	"github.com/carterperez-dev/saas-metrics/internal/config"
	"github.com/carterperez-dev/saas-metrics/internal/core"
)

const (
	tenantNameMin = 3
	tenantNameMax = 50
)

var (
	ErrInvalidCredentials         = errors.New("invalid credentials")
	ErrTemporaryCredentialExpired = errors.New("temporary credential expired")
)

type UserInfo struct {
	ID                    string
	TenantID              *string
	Email                 string
	Name                  string
	PasswordHash          string
	Role                  string
	TempPasswordHash      *string
	TempPasswordExpiresAt *time.Time
}

// Registration is a new account. TenantName is empty for global admins.
type Registration struct {
	Name         string
	Email        string
	PasswordHash string
	GlobalAdmin  bool
	TenantName   string
}

type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	Register(ctx context.Context, reg Registration) (*UserInfo, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	SetTemporaryCredential(
		ctx context.Context,
		userID, hash string,
		expiresAt time.Time,
	) error
	ClearTemporaryCredential(ctx context.Context, userID, hash string) error
}

type Notifier interface {
	SendTemporaryCredential(ctx context.Context, toEmail, name, secret string) error
}

// Session is a freshly issued credential.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      UserResponse
}

type Service struct {
	jwt         *JWTManager
	users       UserProvider
	revocations Revocations
	notifier    Notifier
	cfg         config.AuthConfig
	logger      *slog.Logger
	now         func() time.Time
}

func NewService(
	jwt *JWTManager,
	users UserProvider,
	revocations Revocations,
	notifier Notifier,
	cfg config.AuthConfig,
	logger *slog.Logger,
) *Service {
	return &Service{
		jwt:         jwt,
		users:       users,
		revocations: revocations,
		notifier:    notifier,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // timing attack prevention - always verify to prevent enumeration
			_, _, _ = core.VerifyPasswordTimingSafe(req.Password, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	valid, newHash, err := core.VerifyPasswordTimingSafe(
		req.Password,
		&user.PasswordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if valid {
		if newHash != "" {
			//nolint:errcheck // best-effort rehash upgrade
			_ = s.users.UpdatePassword(ctx, user.ID, newHash)
		}
		return s.issue(user)
	}

	consumed, err := s.consumeTemporaryCredential(ctx, user, req.Password)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, ErrInvalidCredentials
	}

	return s.issue(user)
}

// consumeTemporaryCredential accepts a reset secret at most once. An expired
// secret is cleared whatever was typed.
func (s *Service) consumeTemporaryCredential(
	ctx context.Context,
	user *UserInfo,
	secret string,
) (bool, error) {
	check, err := core.CheckTemporaryCredential(
		secret,
		user.TempPasswordHash,
		user.TempPasswordExpiresAt,
		s.now(),
	)
	if err != nil {
		return false, fmt.Errorf("verify temporary credential: %w", err)
	}

	switch check {
	case core.TemporaryCredentialAbsent, core.TemporaryCredentialMismatch:
		return false, nil
	case core.TemporaryCredentialExpired:
		err := s.users.ClearTemporaryCredential(ctx, user.ID, *user.TempPasswordHash)
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			return false, fmt.Errorf("clear expired credential: %w", err)
		}
		return false, ErrTemporaryCredentialExpired
	}

	err = s.users.ClearTemporaryCredential(ctx, user.ID, *user.TempPasswordHash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("consume temporary credential: %w", err)
	}

	s.logger.InfoContext(ctx, "temporary credential used", "user_id", user.ID)
	return true, nil
}

func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
) (*UserResponse, error) {
	global := access.IsGlobalAdminEmail(req.Email, nil, s.cfg.GlobalAdminDomain)

	tenantName := ""
	if !global {
		tenantName = strings.TrimSpace(req.TenantName)
		if err := checkTenantName(tenantName); err != nil {
			return nil, err
		}
	}

	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Register(ctx, Registration{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: passwordHash,
		GlobalAdmin:  global,
		TenantName:   tenantName,
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered",
		"user_id", user.ID,
		"global_admin", global,
	)

	resp := s.toUserResponse(user)
	return &resp, nil
}

// checkTenantName applies the tenant name bounds to the trimmed value the
// tenant will actually be stored with.
func checkTenantName(name string) error {
	switch n := utf8.RuneCountInString(name); {
	case n == 0:
		return core.InvalidInputError(
			"tenant_name is required for non-admin accounts",
			map[string]string{"tenant_name": "is required"},
		)
	case n < tenantNameMin || n > tenantNameMax:
		return core.InvalidInputError(
			"invalid tenant_name",
			map[string]string{"tenant_name": "must be between 3 and 50 characters"},
		)
	}
	return nil
}

func (s *Service) Logout(ctx context.Context, id access.Identity) error {
	if err := s.revocations.Revoke(ctx, id.TokenID(), id.ExpiresAt()); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (s *Service) ResetPassword(
	ctx context.Context,
	email string,
) (*ResetPasswordResponse, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	cred, err := core.NewTemporaryCredential(s.now(), s.cfg.TempCredentialTTL)
	if err != nil {
		return nil, err
	}

	err = s.users.SetTemporaryCredential(ctx, user.ID, cred.Hash, cred.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("store temporary credential: %w", err)
	}

	if access.IsGlobalAdminEmail(user.Email, user.TenantID, s.cfg.GlobalAdminDomain) {
		return &ResetPasswordResponse{
			Message:           "temporary password generated",
			TemporaryPassword: cred.Secret,
			ExpiresAt:         cred.ExpiresAt,
		}, nil
	}

	if err := s.notifier.SendTemporaryCredential(ctx, user.Email, user.Name, cred.Secret); err != nil {
		s.logger.WarnContext(ctx, "temporary credential delivery failed",
			"user_id", user.ID,
			"error", err,
		)
		if !errors.Is(err, core.ErrNotifier) {
			err = fmt.Errorf("%w: %w", core.ErrNotifier, err)
		}
		return nil, fmt.Errorf("send temporary credential: %w", err)
	}

	return &ResetPasswordResponse{
		Message:   "temporary password sent by email",
		ExpiresAt: cred.ExpiresAt,
	}, nil
}

// VerifyAccessToken checks signature and expiry, then the logout list.
func (s *Service) VerifyAccessToken(
	ctx context.Context,
	token string,
) (*access.Claims, error) {
	claims, err := s.jwt.VerifyAccessToken(ctx, token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
	}

	return claims, nil
}

func (s *Service) Me(ctx context.Context, id access.Identity) (*MeResponse, error) {
	user, err := s.users.GetByID(ctx, id.UserID())
	if err != nil {
		return nil, err
	}

	return &MeResponse{
		UserResponse: s.toUserResponse(user),
		ExpiresAt:    id.ExpiresAt(),
	}, nil
}

func (s *Service) issue(user *UserInfo) (*Session, error) {
	global := access.IsGlobalAdminEmail(user.Email, user.TenantID, s.cfg.GlobalAdminDomain)

	token, err := s.jwt.CreateAccessToken(AccessTokenClaims{
		UserID:      user.ID,
		Email:       user.Email,
		TenantID:    user.TenantID,
		Role:        user.Role,
		GlobalAdmin: global,
	})
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	return &Session{
		Token:     token,
		ExpiresAt: s.now().Add(s.jwt.AccessTokenTTL()),
		User:      s.toUserResponse(user),
	}, nil
}

func (s *Service) toUserResponse(user *UserInfo) UserResponse {
	return UserResponse{
		ID:            user.ID,
		TenantID:      user.TenantID,
		Email:         user.Email,
		Name:          user.Name,
		Role:          user.Role,
		IsGlobalAdmin: access.IsGlobalAdminEmail(user.Email, user.TenantID, s.cfg.GlobalAdminDomain),
	}
}
