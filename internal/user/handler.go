// AngelaMos | 2026
// handler.go

package user

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/saas-metrics/internal/access"
	"github.com/carterperez-dev/saas-metrics/internal/core"
)

const resourceName = "user"

// SessionCloser ends the caller's session once their account is gone.
type SessionCloser interface {
	CloseSession(w http.ResponseWriter, r *http.Request) error
}

type Handler struct {
	service   *Service
	sessions  SessionCloser
	validator *validator.Validate
}

func NewHandler(service *Service, sessions SessionCloser) *Handler {
	return &Handler{
		service:   service,
		sessions:  sessions,
		validator: core.NewValidator(),
	}
}

// RegisterRoutes expects to be mounted inside the /users route.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/list", h.ListUsers)
		r.Get("/list/{userID}", h.GetUser)
		r.Put("/update/{userID}", h.UpdateUser)
		r.Delete("/delete/{userID}", h.DeleteUser)

		r.Get("/profile/{userID}", h.GetProfile)
		r.Put("/profile/{userID}", h.UpdateProfile)
		r.Delete("/profile/{userID}", h.DeleteProfile)
	})
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	_, scope, err := access.Authorize(r.Context(), access.Request{
		Resource:  access.ResourceUser,
		Operation: access.OpReadMany,
		Path:      access.PathManagement,
	})
	if err != nil {
		core.HandleError(w, err, resourceName)
		return
	}

	params := ListUsersParams{
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", 20),
		Search:   r.URL.Query().Get("search"),
		Role:     r.URL.Query().Get("role"),
	}
	params.Normalize()

	if params.Role != "" && !access.Role(params.Role).Valid() {
		core.JSONError(w, core.InvalidInputError(
			"role must be one of admin, analyst, viewer",
			map[string]string{"role": "must be one of admin, analyst, viewer"},
		))
		return
	}

	users, total, err := h.service.List(r.Context(), scope, params)
	if err != nil {
		core.HandleError(w, err, resourceName)
		return
	}

	core.Paginated(w, ToUserResponseList(users), params.Page, params.PageSize, total)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	_, id, scope, ok := h.authorize(w, r, access.OpReadOne, access.PathManagement)
	if !ok {
		return
	}

	user, err := h.service.Get(r.Context(), scope, id)
	if err != nil {
		core.HandleError(w, err, resourceName)
		return
	}

	core.OK(w, ToUserResponse(user))
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	caller, id, scope, ok := h.authorize(w, r, access.OpUpdate, access.PathManagement)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.JSONError(w, core.ValidationError(err))
		return
	}

	user, err := h.service.UpdateUser(r.Context(), caller, scope, id, req)
	if err != nil {
		core.HandleError(w, err, resourceName)
		return
	}

	core.OK(w, ToUserResponse(user))
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	_, id, scope, ok := h.authorize(w, r, access.OpDelete, access.PathManagement)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), scope, id); err != nil {
		core.HandleError(w, err, resourceName)
		return
	}

	core.NoContent(w)
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	_, id, scope, ok := h.authorize(w, r, access.OpReadOne, access.PathProfile)
	if !ok {
		return
	}

	user, err := h.service.Get(r.Context(), scope, id)
	if err != nil {
		core.HandleError(w, err, resourceName)
		return
	}

	core.OK(w, ToUserResponse(user))
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	_, id, scope, ok := h.authorize(w, r, access.OpUpdate, access.PathProfile)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.JSONError(w, core.ValidationError(err))
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), scope, id, req)
	if err != nil {
		core.HandleError(w, err, resourceName)
		return
	}

	core.OK(w, ToUserResponse(user))
}

func (h *Handler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	_, id, scope, ok := h.authorize(w, r, access.OpDelete, access.PathProfile)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), scope, id); err != nil {
		core.HandleError(w, err, resourceName)
		return
	}

	// The account is already gone, so a revocation failure only leaves a
	// token that can no longer resolve to a user.
	if h.sessions != nil {
		if err := h.sessions.CloseSession(w, r); err != nil {
			h.service.logger.WarnContext(r.Context(),
				"session revocation failed after account deletion",
				"user_id", id,
				"error", err,
			)
		}
	}

	core.NoContent(w)
}

// authorize runs the policy before the id is validated, so an identity
// mismatch on the profile path is Forbidden even for a malformed id.
func (h *Handler) authorize(
	w http.ResponseWriter,
	r *http.Request,
	op access.Operation,
	path access.Path,
) (access.Identity, string, access.Scope, bool) {
	id := chi.URLParam(r, "userID")

	caller, scope, err := access.Authorize(r.Context(), access.Request{
		Resource:     access.ResourceUser,
		Operation:    op,
		Path:         path,
		TargetUserID: id,
	})
	if err != nil {
		core.HandleError(w, err, resourceName)
		return access.Identity{}, "", access.Scope{}, false
	}

	if err := core.ValidateID(id); err != nil {
		core.HandleError(w, err, resourceName)
		return access.Identity{}, "", access.Scope{}, false
	}

	return caller, id, scope, true
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}
