// AngelaMos | 2026
// auth_test.go

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/saas-metrics/internal/access"
	"github.com/carterperez-dev/saas-metrics/internal/core"
)

type stubVerifier struct {
	tokens map[string]*access.Claims
	err    error
	seen   string
}

func (s *stubVerifier) VerifyAccessToken(_ context.Context, token string) (*access.Claims, error) {
	s.seen = token
	if s.err != nil {
		return nil, s.err
	}
	c, ok := s.tokens[token]
	if !ok {
		return nil, core.ErrTokenInvalid
	}
	return c, nil
}

func newVerifier() *stubVerifier {
	tenantID := "11111111-1111-1111-1111-111111111111"
	return &stubVerifier{tokens: map[string]*access.Claims{
		"member": {Subject: "u1", TenantID: &tenantID, Role: "viewer"},
		"root":   {Subject: "u0", Role: "admin", IsGlobalAdmin: true},
		"broken": {Subject: "u2", Role: "superuser"},
	}}
}

func protected(v TokenVerifier, extra ...func(http.Handler) http.Handler) http.Handler {
	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := access.FromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.Header().Set("X-User", id.UserID())
		w.WriteHeader(http.StatusOK)
	})
	for i := len(extra) - 1; i >= 0; i-- {
		h = extra[i](h)
	}
	return Authenticator(v, "token")(h)
}

func TestAuthenticator_Bearer(t *testing.T) {
	v := newVerifier()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer member")

	rec := httptest.NewRecorder()
	protected(v).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", rec.Header().Get("X-User"))
}

func TestAuthenticator_CookieWins(t *testing.T) {
	v := newVerifier()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: "root"})
	req.Header.Set("Authorization", "Bearer member")

	rec := httptest.NewRecorder()
	protected(v).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "root", v.seen)
	assert.Equal(t, "u0", rec.Header().Get("X-User"))
}

func TestAuthenticator_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
		err    error
		want   int
	}{
		{name: "missing", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic member", want: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "unknown role", header: "Bearer broken", want: http.StatusUnauthorized},
		{name: "revoked", header: "Bearer member", err: core.ErrTokenRevoked, want: http.StatusUnauthorized},
		{name: "store down", header: "Bearer member", err: core.StoreError(assert.AnError), want: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newVerifier()
			v.err = tt.err

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			protected(v).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireGlobalAdmin(t *testing.T) {
	v := newVerifier()
	h := protected(v, RequireGlobalAdmin)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer member")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer root")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireGlobalAdmin_WithoutIdentity(t *testing.T) {
	h := RequireGlobalAdmin(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
