// AngelaMos | 2026
// handler.go

package tenant

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/saas-metrics/internal/access"
	"github.com/carterperez-dev/saas-metrics/internal/core"
)

const resourceName = "tenant"

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: core.NewValidator(),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/tenants", func(r chi.Router) {
		r.Use(authenticator)

		r.Post("/", h.CreateTenant)
		r.Get("/", h.ListTenants)
		r.Get("/{tenantID}", h.GetTenant)
		r.Put("/{tenantID}", h.UpdateTenant)
		r.Delete("/{tenantID}", h.DeleteTenant)
	})
}

func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	if _, _, err := access.Authorize(r.Context(), access.Request{
		Resource:  access.ResourceTenant,
		Operation: access.OpCreate,
	}); err != nil {
		core.HandleError(w, err, resourceName)
		return
	}

	var req CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.JSONError(w, core.ValidationError(err))
		return
	}

	t, err := h.service.Create(r.Context(), req)
	if err != nil {
		core.HandleError(w, err, resourceName)
		return
	}

	core.Created(w, ToTenantResponse(t))
}

func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	_, scope, err := access.Authorize(r.Context(), access.Request{
		Resource:  access.ResourceTenant,
		Operation: access.OpReadMany,
	})
	if err != nil {
		core.HandleError(w, err, resourceName)
		return
	}

	params := ListTenantsParams{
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", 20),
		Search:   r.URL.Query().Get("search"),
	}
	params.Normalize()

	tenants, total, err := h.service.List(r.Context(), scope, params)
	if err != nil {
		core.HandleError(w, err, resourceName)
		return
	}

	core.Paginated(w, ToTenantResponseList(tenants), params.Page, params.PageSize, total)
}

func (h *Handler) GetTenant(w http.ResponseWriter, r *http.Request) {
	id, scope, ok := h.authorizeInstance(w, r, access.OpReadOne)
	if !ok {
		return
	}

	t, err := h.service.Get(r.Context(), scope, id)
	if err != nil {
		core.HandleError(w, err, resourceName)
		return
	}

	core.OK(w, ToTenantResponse(t))
}

func (h *Handler) UpdateTenant(w http.ResponseWriter, r *http.Request) {
	id, scope, ok := h.authorizeInstance(w, r, access.OpUpdate)
	if !ok {
		return
	}

	var req UpdateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.JSONError(w, core.ValidationError(err))
		return
	}

	t, err := h.service.Update(r.Context(), scope, id, req)
	if err != nil {
		core.HandleError(w, err, resourceName)
		return
	}

	core.OK(w, ToTenantResponse(t))
}

func (h *Handler) DeleteTenant(w http.ResponseWriter, r *http.Request) {
	id, scope, ok := h.authorizeInstance(w, r, access.OpDelete)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), scope, id); err != nil {
		core.HandleError(w, err, resourceName)
		return
	}

	core.NoContent(w)
}

// authorizeInstance checks the role first, then hides tenants other than
// the caller's own behind NotFound.
func (h *Handler) authorizeInstance(
	w http.ResponseWriter,
	r *http.Request,
	op access.Operation,
) (string, access.Scope, bool) {
	id := chi.URLParam(r, "tenantID")

	_, scope, err := access.Authorize(r.Context(), access.Request{
		Resource:       access.ResourceTenant,
		Operation:      op,
		TargetTenantID: &id,
	})
	if err != nil {
		core.HandleError(w, err, resourceName)
		return "", access.Scope{}, false
	}

	if err := core.ValidateID(id); err != nil {
		core.HandleError(w, err, resourceName)
		return "", access.Scope{}, false
	}

	return id, scope, true
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
