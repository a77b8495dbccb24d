// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/carterperez-dev/saas-metrics/internal/access"
	"github.com/carterperez-dev/saas-metrics/internal/core"
)

type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (*access.Claims, error)
}

// Authenticator verifies the session credential, builds the caller's
// Identity and stores it on the request context. The cookie wins over an
// Authorization header when both are present.
func Authenticator(
	verifier TokenVerifier,
	cookieName string,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r, cookieName)

			if token == "" {
				core.JSONError(
					w,
					core.UnauthorizedError("missing authorization token"),
				)
				return
			}

			claims, err := verifier.VerifyAccessToken(r.Context(), token)
			if err != nil {
				core.HandleError(w, err, "session")
				return
			}

			id, err := access.NewIdentity(*claims)
			if err != nil {
				core.HandleError(w, err, "session")
				return
			}

			ctx := access.WithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireGlobalAdmin must run after Authenticator.
func RequireGlobalAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := access.FromContext(r.Context())
		if !ok {
			core.JSONError(w, core.UnauthorizedError("authentication required"))
			return
		}

		if !id.IsGlobalAdmin() {
			core.JSONError(w, core.ForbiddenError("global admin only"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func ExtractToken(r *http.Request, cookieName string) string {
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value
		}
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
