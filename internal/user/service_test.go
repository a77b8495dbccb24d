// AngelaMos | 2026
// service_test.go

package user

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/saas-metrics/internal/access"
	"github.com/carterperez-dev/saas-metrics/internal/auth"
	"github.com/carterperez-dev/saas-metrics/internal/core"
	"github.com/carterperez-dev/saas-metrics/internal/promotion"
	"github.com/carterperez-dev/saas-metrics/internal/tenant"
)

const (
	tenantA = "11111111-1111-1111-1111-111111111111"
	tenantB = "22222222-2222-2222-2222-222222222222"
)

type fakeUsers struct {
	Repository
	byID      map[string]*User
	passwords map[string]string
	afterRead func(id string)
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[string]*User{}, passwords: map[string]string{}}
}

func (f *fakeUsers) Create(_ context.Context, u *User) error {
	cp := *u
	f.byID[u.ID] = &cp
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, scope access.Scope, id string) (*User, error) {
	u, ok := f.byID[id]
	if !ok || !scope.Admits(u.TenantID) || id == scope.ExcludedUserID() {
		return nil, core.ErrNotFound
	}
	cp := *u
	if f.afterRead != nil {
		f.afterRead(id)
	}
	return &cp, nil
}

// Update mirrors the SQL: identity fields and tenant are written, the rest
// of the row is read back.
func (f *fakeUsers) Update(_ context.Context, scope access.Scope, u *User) error {
	stored, ok := f.byID[u.ID]
	if !ok || !scope.Admits(stored.TenantID) {
		return core.ErrNotFound
	}
	stored.Name = u.Name
	stored.Email = u.Email
	stored.TenantID = u.TenantID
	*u = *stored
	return nil
}

func (f *fakeUsers) AssignRole(_ context.Context, scope access.Scope, id string, s promotion.Standing) error {
	stored, ok := f.byID[id]
	if !ok || !scope.Admits(stored.TenantID) {
		return core.ErrNotFound
	}
	stored.Role = s.Role
	stored.CanBeAnalyst = s.CanBeAnalyst
	return nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id, hash string) error {
	f.passwords[id] = hash
	return nil
}

func (f *fakeUsers) ExistsByEmail(_ context.Context, email, excludeID string) (bool, error) {
	for _, u := range f.byID {
		if u.Email == email && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

type fakeTenants struct {
	tenant.Repository
	byName map[string]*tenant.Tenant
}

func newFakeTenants(names ...string) *fakeTenants {
	f := &fakeTenants{byName: map[string]*tenant.Tenant{}}
	for _, n := range names {
		f.byName[n] = &tenant.Tenant{ID: n, Name: n}
	}
	return f
}

func (f *fakeTenants) ExistsByName(_ context.Context, name, _ string) (bool, error) {
	_, ok := f.byName[name]
	return ok, nil
}

func (f *fakeTenants) Create(_ context.Context, t *tenant.Tenant) error {
	f.byName[t.Name] = t
	return nil
}

func (f *fakeTenants) GetByID(_ context.Context, _ access.Scope, id string) (*tenant.Tenant, error) {
	for _, t := range f.byName {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, core.ErrNotFound
}

type fakeCascader struct {
	deleted   []string
	refreshed []string
	locked    []string
}

func (c *fakeCascader) DeleteUser(_ context.Context, _ access.Scope, id string) error {
	c.deleted = append(c.deleted, id)
	return nil
}

func (c *fakeCascader) RefreshTenant(_ context.Context, tenantID string) error {
	c.refreshed = append(c.refreshed, tenantID)
	return nil
}

func (c *fakeCascader) WithTenantLock(ctx context.Context, tenantID *string, fn func(context.Context) error) error {
	if tenantID != nil {
		c.locked = append(c.locked, *tenantID)
	}
	return fn(ctx)
}

type harness struct {
	users    *fakeUsers
	tenants  *fakeTenants
	cascader *fakeCascader
	svc      *Service
	txCalls  int
}

func newHarness(tenantNames ...string) *harness {
	h := &harness{
		users:    newFakeUsers(),
		tenants:  newFakeTenants(tenantNames...),
		cascader: &fakeCascader{},
	}

	inTx := func(ctx context.Context, fn func(Repository, tenant.Repository) error) error {
		h.txCalls++
		return fn(h.users, h.tenants)
	}

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h.svc = NewService(h.users, h.tenants, inTx, h.cascader, logger)
	return h
}

func caller(t *testing.T, tenantID *string, globalAdmin bool) access.Identity {
	t.Helper()
	id, err := access.NewIdentity(access.Claims{
		Subject:       "caller",
		TenantID:      tenantID,
		Role:          string(access.RoleAdmin),
		IsGlobalAdmin: globalAdmin,
	})
	require.NoError(t, err)
	return id
}

func ref(s string) *string {
	return &s
}

func TestRegister_TenantAndFirstViewer(t *testing.T) {
	h := newHarness()

	info, err := h.svc.Register(context.Background(), auth.Registration{
		Name:         "Ada",
		Email:        "ada@acme.test",
		PasswordHash: "hash",
		TenantName:   "Acme",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, h.txCalls)
	require.NotNil(t, info.TenantID)
	assert.Equal(t, string(access.RoleViewer), info.Role)

	created := h.users.byID[info.ID]
	require.NotNil(t, created)
	assert.True(t, created.CanBeAnalyst)
	assert.Equal(t, *info.TenantID, h.tenants.byName["Acme"].ID)
	assert.Equal(t, tenant.PlanFree, h.tenants.byName["Acme"].Plan)
}

func TestRegister_DuplicateTenantName(t *testing.T) {
	h := newHarness("Acme")

	_, err := h.svc.Register(context.Background(), auth.Registration{
		Name:       "Ada",
		Email:      "ada@acme.test",
		TenantName: "Acme",
	})

	var appErr *core.AppError
	require.ErrorAs(t, err, &appErr)
	assert.ErrorIs(t, err, core.ErrDuplicateKey)
	assert.Empty(t, h.users.byID)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	h := newHarness()
	h.users.byID["u1"] = &User{ID: "u1", Email: "ada@acme.test"}

	_, err := h.svc.Register(context.Background(), auth.Registration{
		Name:       "Ada",
		Email:      "ada@acme.test",
		TenantName: "Other",
	})

	assert.ErrorIs(t, err, core.ErrDuplicateKey)
}

func TestRegister_GlobalAdminHasNoTenant(t *testing.T) {
	h := newHarness()

	info, err := h.svc.Register(context.Background(), auth.Registration{
		Name:        "Root",
		Email:       "root@saas.io",
		GlobalAdmin: true,
	})
	require.NoError(t, err)

	assert.Nil(t, info.TenantID)
	assert.Equal(t, string(access.RoleAdmin), info.Role)
	assert.Equal(t, 0, h.txCalls)
	assert.Empty(t, h.tenants.byName)
}

func TestUpdateUser_TenantMoveRequiresGlobalAdmin(t *testing.T) {
	h := newHarness(tenantA, tenantB)
	h.users.byID["u1"] = &User{ID: "u1", TenantID: ref(tenantA), Role: access.RoleViewer}

	_, err := h.svc.UpdateUser(context.Background(), caller(t, ref(tenantA), false),
		access.TenantScope(tenantA), "u1", UpdateUserRequest{TenantID: ref(tenantB)})

	assert.ErrorIs(t, err, core.ErrForbidden)
	assert.Equal(t, tenantA, *h.users.byID["u1"].TenantID)
}

func TestUpdateUser_TenantMoveRefreshesBoth(t *testing.T) {
	h := newHarness(tenantA, tenantB)
	h.users.byID["u1"] = &User{ID: "u1", TenantID: ref(tenantA), Role: access.RoleAnalyst}

	u, err := h.svc.UpdateUser(context.Background(), caller(t, nil, true),
		access.Unrestricted(), "u1", UpdateUserRequest{TenantID: ref(tenantB)})
	require.NoError(t, err)

	assert.Equal(t, tenantB, *u.TenantID)
	assert.Equal(t, []string{tenantA, tenantB}, h.cascader.refreshed)
}

func TestUpdateUser_UnknownTargetTenant(t *testing.T) {
	h := newHarness(tenantA)
	h.users.byID["u1"] = &User{ID: "u1", TenantID: ref(tenantA), Role: access.RoleViewer}

	_, err := h.svc.UpdateUser(context.Background(), caller(t, nil, true),
		access.Unrestricted(), "u1", UpdateUserRequest{TenantID: ref(tenantB)})

	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestUpdateUser_RoleAssignment(t *testing.T) {
	h := newHarness(tenantA)
	h.users.byID["u1"] = &User{ID: "u1", TenantID: ref(tenantA), Role: access.RoleViewer, CanBeAnalyst: true}

	u, err := h.svc.UpdateUser(context.Background(), caller(t, ref(tenantA), false),
		access.TenantScope(tenantA), "u1", UpdateUserRequest{Role: ref("admin")})
	require.NoError(t, err)

	assert.Equal(t, access.RoleAdmin, u.Role)
	assert.False(t, u.CanBeAnalyst)
	assert.Equal(t, access.RoleAdmin, h.users.byID["u1"].Role)
	assert.Equal(t, []string{tenantA}, h.cascader.locked)
	assert.Empty(t, h.cascader.refreshed)
}

func TestUpdateProfile_KeepsConcurrentPromotion(t *testing.T) {
	h := newHarness(tenantA)
	h.users.byID["u1"] = &User{
		ID:           "u1",
		TenantID:     ref(tenantA),
		Name:         "Ada",
		Email:        "ada@acme.test",
		Role:         access.RoleViewer,
		CanBeAnalyst: true,
	}

	// a metric write promotes u1 after the profile edit has read the row
	h.users.afterRead = func(id string) {
		h.users.afterRead = nil
		h.users.byID[id].ApplyStanding(promotion.Standing{
			Role:                   access.RoleAnalyst,
			MetricsCreated:         5,
			MetricsCreatedValuable: 5,
		})
	}

	u, err := h.svc.UpdateProfile(context.Background(), access.Unrestricted(), "u1",
		UpdateProfileRequest{Name: ref("Ada L")})
	require.NoError(t, err)

	stored := h.users.byID["u1"]
	assert.Equal(t, "Ada L", stored.Name)
	assert.Equal(t, access.RoleAnalyst, stored.Role)
	assert.False(t, stored.CanBeAnalyst)
	assert.Equal(t, 5, stored.MetricsCreatedValuable)

	assert.Equal(t, access.RoleAnalyst, u.Role)
	assert.Empty(t, h.cascader.locked)
}

func TestUpdateProfile_EmailTaken(t *testing.T) {
	h := newHarness()
	h.users.byID["u1"] = &User{ID: "u1", Email: "one@acme.test"}
	h.users.byID["u2"] = &User{ID: "u2", Email: "two@acme.test"}

	_, err := h.svc.UpdateProfile(context.Background(), access.Unrestricted(), "u1",
		UpdateProfileRequest{Email: ref("two@acme.test")})

	assert.ErrorIs(t, err, core.ErrDuplicateKey)
}

func TestUpdateProfile_Password(t *testing.T) {
	h := newHarness()
	h.users.byID["u1"] = &User{ID: "u1", Email: "one@acme.test"}

	u, err := h.svc.UpdateProfile(context.Background(), access.Unrestricted(), "u1",
		UpdateProfileRequest{Name: ref("Renamed"), Password: ref("N3w-Secret!")})
	require.NoError(t, err)

	assert.Equal(t, "Renamed", u.Name)
	hash := h.users.passwords["u1"]
	require.NotEmpty(t, hash)

	ok, _, err := core.VerifyPasswordWithRehash("N3w-Secret!", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDelete_GoesThroughCascade(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.svc.Delete(context.Background(), access.Unrestricted(), "u1"))
	assert.Equal(t, []string{"u1"}, h.cascader.deleted)
}

func TestGetByID_NotFound(t *testing.T) {
	h := newHarness()

	_, err := h.svc.GetByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, core.ErrNotFound))
}
