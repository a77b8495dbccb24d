// AngelaMos | 2026
// handler.go

package metric

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/saas-metrics/internal/access"
	"github.com/carterperez-dev/saas-metrics/internal/core"
)

const (
	resourceName = "metric"
	xlsxMIME     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

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
	r.Route("/metrics", func(r chi.Router) {
		r.Use(authenticator)

		r.Post("/", h.CreateMetric)
		r.Get("/", h.ListMetrics)
		r.Get("/export", h.ExportMetrics)
		r.Get("/{metricID}", h.GetMetric)
		r.Put("/{metricID}", h.UpdateMetric)
		r.Delete("/{metricID}", h.DeleteMetric)
	})
}

func (h *Handler) CreateMetric(w http.ResponseWriter, r *http.Request) {
	caller, _, err := access.Authorize(r.Context(), access.Request{
		Resource:  access.ResourceMetric,
		Operation: access.OpCreate,
	})
	if err != nil {
		core.HandleError(w, err, resourceName)
		return
	}

	var req CreateMetricRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.JSONError(w, core.ValidationError(err))
		return
	}

	m, report, err := h.service.Create(r.Context(), caller, req)
	if err != nil {
		core.HandleError(w, err, resourceName)
		return
	}

	core.Created(w, ToMutationResponse(m, report))
}

func (h *Handler) ListMetrics(w http.ResponseWriter, r *http.Request) {
	_, scope, err := access.Authorize(r.Context(), access.Request{
		Resource:  access.ResourceMetric,
		Operation: access.OpReadMany,
	})
	if err != nil {
		core.HandleError(w, err, resourceName)
		return
	}

	params := ListMetricsParams{
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", 20),
		Search:   r.URL.Query().Get("search"),
	}
	params.Normalize()

	fields := map[string]string{}
	params.From = parseTimeQuery(r, "from", fields)
	params.To = parseTimeQuery(r, "to", fields)
	if len(fields) > 0 {
		core.JSONError(w, core.InvalidInputError("invalid date filter", fields))
		return
	}

	metrics, total, err := h.service.List(r.Context(), scope, params)
	if err != nil {
		core.HandleError(w, err, resourceName)
		return
	}

	core.Paginated(w, ToMetricResponseList(metrics), params.Page, params.PageSize, total)
}

func (h *Handler) ExportMetrics(w http.ResponseWriter, r *http.Request) {
	_, scope, err := access.Authorize(r.Context(), access.Request{
		Resource:  access.ResourceMetric,
		Operation: access.OpReadMany,
	})
	if err != nil {
		core.HandleError(w, err, resourceName)
		return
	}

	data, err := h.service.Export(r.Context(), scope)
	if err != nil {
		core.HandleError(w, err, resourceName)
		return
	}

	filename := fmt.Sprintf("metrics_%s.xlsx", time.Now().UTC().Format("20060102_150405"))

	w.Header().Set("Content-Type", xlsxMIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // client may have gone away
	_, _ = w.Write(data)
}

func (h *Handler) GetMetric(w http.ResponseWriter, r *http.Request) {
	id, scope, ok := h.authorizeInstance(w, r, access.OpReadOne)
	if !ok {
		return
	}

	m, err := h.service.Get(r.Context(), scope, id)
	if err != nil {
		core.HandleError(w, err, resourceName)
		return
	}

	core.OK(w, ToMetricResponse(m))
}

func (h *Handler) UpdateMetric(w http.ResponseWriter, r *http.Request) {
	id, scope, ok := h.authorizeInstance(w, r, access.OpUpdate)
	if !ok {
		return
	}

	var req UpdateMetricRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.JSONError(w, core.ValidationError(err))
		return
	}

	m, report, err := h.service.Update(r.Context(), scope, id, req)
	if err != nil {
		core.HandleError(w, err, resourceName)
		return
	}

	core.OK(w, ToMutationResponse(m, report))
}

func (h *Handler) DeleteMetric(w http.ResponseWriter, r *http.Request) {
	id, scope, ok := h.authorizeInstance(w, r, access.OpDelete)
	if !ok {
		return
	}

	report, err := h.service.Delete(r.Context(), scope, id)
	if err != nil {
		core.HandleError(w, err, resourceName)
		return
	}

	core.OK(w, ToMutationResponse(nil, report))
}

func (h *Handler) authorizeInstance(
	w http.ResponseWriter,
	r *http.Request,
	op access.Operation,
) (string, access.Scope, bool) {
	_, scope, err := access.Authorize(r.Context(), access.Request{
		Resource:  access.ResourceMetric,
		Operation: op,
	})
	if err != nil {
		core.HandleError(w, err, resourceName)
		return "", access.Scope{}, false
	}

	id := chi.URLParam(r, "metricID")
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

func parseTimeQuery(r *http.Request, key string, fields map[string]string) *time.Time {
	val := r.URL.Query().Get(key)
	if val == "" {
		return nil
	}

	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		fields[key] = "must be an RFC3339 timestamp"
		return nil
	}

	return &t
}
