// AngelaMos | 2026
// service_test.go

package auth

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/saas-metrics/internal/access"
	"github.com/carterperez-dev/saas-metrics/internal/config"
	"github.com/carterperez-dev/saas-metrics/internal/core"
)

const tenantA = "11111111-1111-1111-1111-111111111111"

type fakeUsers struct {
	byEmail    map[string]*UserInfo
	registered []Registration
	cleared    int
}

func newFakeUsers(users ...*UserInfo) *fakeUsers {
	f := &fakeUsers{byEmail: map[string]*UserInfo{}}
	for _, u := range users {
		f.byEmail[u.Email] = u
	}
	return f
}

func (f *fakeUsers) find(id string) *UserInfo {
	for _, u := range f.byEmail {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*UserInfo, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*UserInfo, error) {
	u := f.find(id)
	if u == nil {
		return nil, core.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) Register(_ context.Context, reg Registration) (*UserInfo, error) {
	f.registered = append(f.registered, reg)
	role := string(access.RoleViewer)
	var tenantID *string
	if reg.GlobalAdmin {
		role = string(access.RoleAdmin)
	} else {
		t := tenantA
		tenantID = &t
	}
	u := &UserInfo{ID: "new", Email: reg.Email, Name: reg.Name, Role: role, TenantID: tenantID}
	f.byEmail[reg.Email] = u
	return u, nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, userID, hash string) error {
	f.find(userID).PasswordHash = hash
	return nil
}

func (f *fakeUsers) SetTemporaryCredential(_ context.Context, userID, hash string, expiresAt time.Time) error {
	u := f.find(userID)
	u.TempPasswordHash = &hash
	u.TempPasswordExpiresAt = &expiresAt
	return nil
}

func (f *fakeUsers) ClearTemporaryCredential(_ context.Context, userID, hash string) error {
	u := f.find(userID)
	if u.TempPasswordHash == nil || *u.TempPasswordHash != hash {
		return core.ErrNotFound
	}
	u.TempPasswordHash = nil
	u.TempPasswordExpiresAt = nil
	f.cleared++
	return nil
}

type memRevocations struct {
	revoked map[string]bool
	err     error
}

func (m *memRevocations) Revoke(_ context.Context, jti string, _ time.Time) error {
	m.revoked[jti] = true
	return nil
}

func (m *memRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.revoked[jti], nil
}

type captureNotifier struct {
	to     string
	secret string
	err    error
}

func (c *captureNotifier) SendTemporaryCredential(_ context.Context, to, _ string, secret string) error {
	c.to = to
	c.secret = secret
	return c.err
}

func newJWTManager(t *testing.T) *JWTManager {
	t.Helper()

	dir := t.TempDir()
	priv := filepath.Join(dir, "private.pem")
	pub := filepath.Join(dir, "public.pem")
	require.NoError(t, GenerateKeyPair(priv, pub))

	m, err := NewJWTManager(config.JWTConfig{
		PrivateKeyPath:    priv,
		PublicKeyPath:     pub,
		AccessTokenExpire: time.Hour,
		Issuer:            "saas-metrics",
		Audience:          "saas-metrics-api",
	})
	require.NoError(t, err)
	return m
}

type authFixture struct {
	svc         *Service
	users       *fakeUsers
	revocations *memRevocations
	notifier    *captureNotifier
}

func newAuthFixture(t *testing.T, users ...*UserInfo) *authFixture {
	t.Helper()

	f := &authFixture{
		users:       newFakeUsers(users...),
		revocations: &memRevocations{revoked: map[string]bool{}},
		notifier:    &captureNotifier{},
	}

	f.svc = NewService(
		newJWTManager(t),
		f.users,
		f.revocations,
		f.notifier,
		config.AuthConfig{
			GlobalAdminDomain: "@saas.io",
			CookieName:        "token",
			TempCredentialTTL: 5 * time.Minute,
		},
		slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	)
	return f
}

func member(t *testing.T, password string) *UserInfo {
	t.Helper()
	hash, err := core.HashPassword(password)
	require.NoError(t, err)
	tenantID := tenantA
	return &UserInfo{
		ID:           "u1",
		TenantID:     &tenantID,
		Email:        "ada@acme.test",
		Name:         "Ada",
		PasswordHash: hash,
		Role:         string(access.RoleViewer),
	}
}

func TestLogin_IssuesVerifiableToken(t *testing.T) {
	f := newAuthFixture(t, member(t, "Corr3ct-Horse!"))

	session, err := f.svc.Login(context.Background(), LoginRequest{
		Email:    "ada@acme.test",
		Password: "Corr3ct-Horse!",
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", session.User.ID)
	assert.False(t, session.User.IsGlobalAdmin)

	claims, err := f.svc.VerifyAccessToken(context.Background(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, string(access.RoleViewer), claims.Role)
	require.NotNil(t, claims.TenantID)
	assert.Equal(t, tenantA, *claims.TenantID)
	assert.False(t, claims.IsGlobalAdmin)
	assert.NotEmpty(t, claims.TokenID)
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newAuthFixture(t, member(t, "Corr3ct-Horse!"))

	_, err := f.svc.Login(context.Background(), LoginRequest{
		Email:    "ada@acme.test",
		Password: "nope",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(context.Background(), LoginRequest{
		Email:    "ghost@acme.test",
		Password: "nope",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_TemporaryCredentialIsSingleUse(t *testing.T) {
	u := member(t, "Corr3ct-Horse!")
	f := newAuthFixture(t, u)

	_, err := f.svc.ResetPassword(context.Background(), u.Email)
	require.NoError(t, err)
	secret := f.notifier.secret
	require.NotEmpty(t, secret)

	_, err = f.svc.Login(context.Background(), LoginRequest{Email: u.Email, Password: secret})
	require.NoError(t, err)
	assert.Equal(t, 1, f.users.cleared)

	_, err = f.svc.Login(context.Background(), LoginRequest{Email: u.Email, Password: secret})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(context.Background(), LoginRequest{Email: u.Email, Password: "Corr3ct-Horse!"})
	assert.NoError(t, err)
}

func TestLogin_TemporaryCredentialExpires(t *testing.T) {
	u := member(t, "Corr3ct-Horse!")
	f := newAuthFixture(t, u)

	_, err := f.svc.ResetPassword(context.Background(), u.Email)
	require.NoError(t, err)
	secret := f.notifier.secret

	f.svc.now = func() time.Time { return time.Now().Add(6 * time.Minute) }

	_, err = f.svc.Login(context.Background(), LoginRequest{Email: u.Email, Password: secret})
	assert.ErrorIs(t, err, ErrTemporaryCredentialExpired)
	assert.Nil(t, f.users.find("u1").TempPasswordHash)
}

func TestResetPassword_GlobalAdminGetsSecret(t *testing.T) {
	hash, err := core.HashPassword("R00t-Password!")
	require.NoError(t, err)
	f := newAuthFixture(t, &UserInfo{
		ID:           "root",
		Email:        "root@saas.io",
		PasswordHash: hash,
		Role:         string(access.RoleAdmin),
	})

	resp, err := f.svc.ResetPassword(context.Background(), "root@saas.io")
	require.NoError(t, err)

	assert.Equal(t, "temporary password generated", resp.Message)
	assert.Len(t, resp.TemporaryPassword, 8)
	assert.Empty(t, f.notifier.secret)

	session, err := f.svc.Login(context.Background(), LoginRequest{
		Email:    "root@saas.io",
		Password: resp.TemporaryPassword,
	})
	require.NoError(t, err)
	assert.True(t, session.User.IsGlobalAdmin)
}

func TestResetPassword_NotifierFailure(t *testing.T) {
	u := member(t, "Corr3ct-Horse!")
	f := newAuthFixture(t, u)
	f.notifier.err = errors.New("smtp relay down")

	_, err := f.svc.ResetPassword(context.Background(), u.Email)

	assert.ErrorIs(t, err, core.ErrNotifier)
}

func TestResetPassword_UnknownEmail(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.ResetPassword(context.Background(), "ghost@acme.test")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRegister_TenantNameRules(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.Register(context.Background(), RegisterRequest{
		Name:     "Ada",
		Email:    "ada@acme.test",
		Password: "Corr3ct-Horse!",
	})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	assert.Empty(t, f.users.registered)

	for _, name := range []string{"   ", "  ab  ", strings.Repeat("x", 51)} {
		_, err = f.svc.Register(context.Background(), RegisterRequest{
			Name:       "Ada",
			Email:      "ada@acme.test",
			Password:   "Corr3ct-Horse!",
			TenantName: name,
		})
		assert.ErrorIs(t, err, core.ErrInvalidInput, "tenant name %q", name)
	}
	assert.Empty(t, f.users.registered)

	_, err = f.svc.Register(context.Background(), RegisterRequest{
		Name:       "Ada",
		Email:      "ada@acme.test",
		Password:   "Corr3ct-Horse!",
		TenantName: "  Acme  ",
	})
	require.NoError(t, err)
	require.Len(t, f.users.registered, 1)
	assert.Equal(t, "Acme", f.users.registered[0].TenantName)

	resp, err := f.svc.Register(context.Background(), RegisterRequest{
		Name:       "Root",
		Email:      "root@saas.io",
		Password:   "Corr3ct-Horse!",
		TenantName: "ignored",
	})
	require.NoError(t, err)
	assert.True(t, resp.IsGlobalAdmin)
	require.Len(t, f.users.registered, 2)
	assert.True(t, f.users.registered[1].GlobalAdmin)
	assert.Empty(t, f.users.registered[1].TenantName)
	assert.NotEqual(t, "Corr3ct-Horse!", f.users.registered[1].PasswordHash)
}

func TestLogout_RevokesToken(t *testing.T) {
	f := newAuthFixture(t, member(t, "Corr3ct-Horse!"))

	session, err := f.svc.Login(context.Background(), LoginRequest{
		Email:    "ada@acme.test",
		Password: "Corr3ct-Horse!",
	})
	require.NoError(t, err)

	claims, err := f.svc.VerifyAccessToken(context.Background(), session.Token)
	require.NoError(t, err)
	id, err := access.NewIdentity(*claims)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(context.Background(), id))

	_, err = f.svc.VerifyAccessToken(context.Background(), session.Token)
	assert.ErrorIs(t, err, core.ErrTokenRevoked)
}

func TestVerifyAccessToken_RevocationStoreDown(t *testing.T) {
	f := newAuthFixture(t, member(t, "Corr3ct-Horse!"))

	session, err := f.svc.Login(context.Background(), LoginRequest{
		Email:    "ada@acme.test",
		Password: "Corr3ct-Horse!",
	})
	require.NoError(t, err)

	f.revocations.err = core.StoreError(errors.New("redis down"))

	_, err = f.svc.VerifyAccessToken(context.Background(), session.Token)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
}

func TestVerifyAccessToken_Garbage(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.VerifyAccessToken(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}
