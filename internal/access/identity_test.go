// AngelaMos | 2026
// identity_test.go

package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/saas-metrics/internal/core"
)

func TestNewIdentity(t *testing.T) {
	tests := []struct {
		name    string
		claims  Claims
		wantErr bool
	}{
		{"member", Claims{Subject: "u1", TenantID: ptr("t1"), Role: "viewer"}, false},
		{"global admin", Claims{Subject: "u1", Role: "admin", IsGlobalAdmin: true}, false},
		{"missing subject", Claims{Role: "viewer"}, true},
		{"unknown role", Claims{Subject: "u1", Role: "owner"}, true},
		{"global admin with tenant", Claims{Subject: "u1", TenantID: ptr("t1"), Role: "admin", IsGlobalAdmin: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewIdentity(tt.claims)
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrTokenInvalid)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestIdentityIsImmutable(t *testing.T) {
	tenant := "t1"
	id, err := NewIdentity(Claims{Subject: "u1", TenantID: &tenant, Role: "viewer"})
	require.NoError(t, err)

	tenant = "t2"
	got := id.TenantID()
	*got = "t3"

	assert.True(t, id.InTenant("t1"))
}

func TestEmptyTenantClaimMeansNoTenant(t *testing.T) {
	id, err := NewIdentity(Claims{Subject: "u1", TenantID: ptr(""), Role: "viewer"})
	require.NoError(t, err)
	assert.False(t, id.HasTenant())
}

func TestIsGlobalAdminEmail(t *testing.T) {
	assert.True(t, IsGlobalAdminEmail("Ops@SaaS.io", nil, "@saas.io"))
	assert.False(t, IsGlobalAdminEmail("ops@saas.io", ptr("t1"), "@saas.io"))
	assert.False(t, IsGlobalAdminEmail("ops@saas.io.evil.com", nil, "@saas.io"))
	assert.False(t, IsGlobalAdminEmail("ops@example.com", nil, "@saas.io"))
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	id, err := NewIdentity(Claims{Subject: "u1", Role: "viewer"})
	require.NoError(t, err)

	got, ok := FromContext(WithIdentity(context.Background(), id))
	require.True(t, ok)
	assert.Equal(t, "u1", got.UserID())
}
