// AngelaMos | 2026
// handler.go

package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/saas-metrics/internal/access"
	"github.com/carterperez-dev/saas-metrics/internal/config"
	"github.com/carterperez-dev/saas-metrics/internal/core"
)

type Handler struct {
	service      *Service
	validator    *validator.Validate
	cookieName   string
	cookieSecure bool
}

func NewHandler(service *Service, cfg config.AuthConfig, production bool) *Handler {
	return &Handler{
		service:      service,
		validator:    core.NewValidator(),
		cookieName:   cfg.CookieName,
		cookieSecure: cfg.CookieSecure || production,
	}
}

// RegisterRoutes mounts the session endpoints. They live under /users next
// to the account management routes.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/reset-password", h.ResetPassword)

	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Post("/logout", h.Logout)
		r.Get("/me", h.GetMe)
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.JSONError(w, core.ValidationError(err))
		return
	}

	session, err := h.service.Login(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			core.JSONError(w, core.NewAppError(
				core.ErrTokenInvalid,
				"invalid email or password",
				http.StatusUnauthorized,
				"INVALID_CREDENTIALS",
			))
		case errors.Is(err, ErrTemporaryCredentialExpired):
			core.JSONError(w, core.NewAppError(
				core.ErrTokenExpired,
				"temporary password has expired, request a new one",
				http.StatusUnauthorized,
				"TEMP_CREDENTIAL_EXPIRED",
			))
		default:
			core.HandleError(w, err, "user")
		}
		return
	}

	h.setCookie(w, session.Token, session.ExpiresAt)

	core.OK(w, LoginResponse{
		User:      session.User,
		ExpiresAt: session.ExpiresAt,
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.JSONError(w, core.ValidationError(err))
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		core.HandleError(w, err, "user")
		return
	}

	core.Created(w, resp)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := access.FromContext(r.Context())
	if !ok {
		core.Unauthorized(w, "")
		return
	}

	if err := h.service.Logout(r.Context(), id); err != nil {
		core.HandleError(w, err, "session")
		return
	}

	h.clearCookie(w)
	core.NoContent(w)
}

// CloseSession revokes the caller's token and clears the cookie. Account
// deletion uses it after the cascade has run.
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) error {
	id, ok := access.FromContext(r.Context())
	if !ok {
		return core.ErrUnauthorized
	}

	h.clearCookie(w)
	return h.service.Logout(r.Context(), id)
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.JSONError(w, core.ValidationError(err))
		return
	}

	resp, err := h.service.ResetPassword(r.Context(), req.Email)
	if err != nil {
		core.HandleError(w, err, "user")
		return
	}

	core.OK(w, resp)
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	id, ok := access.FromContext(r.Context())
	if !ok {
		core.Unauthorized(w, "")
		return
	}

	resp, err := h.service.Me(r.Context(), id)
	if err != nil {
		core.HandleError(w, err, "user")
		return
	}

	core.OK(w, resp)
}

func (h *Handler) setCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
