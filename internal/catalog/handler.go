// AngelaMos | 2026
// handler.go

package catalog

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/homeser/internal/core"
	"github.com/carterperez-dev/homeser/internal/middleware"
)

type Handler struct {
	catalog   *Catalog
	validator *validator.Validate
}

func NewHandler(catalog *Catalog) *Handler {
	return &Handler{
		catalog:   catalog,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRoutes mounts /services. Reads are public; writes need an admin,
// which the catalog itself enforces.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/services", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{serviceID}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Post("/", h.Create)
			r.Put("/{serviceID}", h.Replace)
			r.Patch("/{serviceID}", h.Update)
			r.Delete("/{serviceID}", h.Delete)
		})
	})
}

// RegisterAdminRoutes mounts the rating refresh trigger.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/ratings/refresh", h.RefreshRatings)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	params := ListParams{
		Search: r.URL.Query().Get("search"),
		Sort:   r.URL.Query().Get("sort"),
	}

	services, err := h.catalog.List(r.Context(), middleware.ActorFrom(r.Context()), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.WritePage(w, r, ToServiceResponseList(services))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	svc, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		core.HandleError(w, err, "service")
		return
	}

	core.OK(w, ToServiceResponse(svc))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateServiceRequest
	if !h.decode(w, r, &req) {
		return
	}

	svc, err := h.catalog.Create(r.Context(), middleware.ActorFrom(r.Context()), req)
	if err != nil {
		core.HandleError(w, err, "service")
		return
	}

	core.Created(w, ToServiceResponse(svc))
}

func (h *Handler) Replace(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req ReplaceServiceRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.update(w, r, id, UpdateServiceRequest{
		Name:        &req.Name,
		Description: &req.Description,
		Price:       req.Price,
	})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req UpdateServiceRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.update(w, r, id, req)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, id int64, req UpdateServiceRequest) {
	svc, err := h.catalog.Update(r.Context(), middleware.ActorFrom(r.Context()), id, req)
	if err != nil {
		core.HandleError(w, err, "service")
		return
	}

	core.OK(w, ToServiceResponse(svc))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.catalog.Delete(r.Context(), middleware.ActorFrom(r.Context()), id); err != nil {
		core.HandleError(w, err, "service")
		return
	}

	core.NoContent(w)
}

func (h *Handler) RefreshRatings(w http.ResponseWriter, r *http.Request) {
	n, err := h.catalog.RefreshRatings(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, RefreshRatingsResponse{Status: "ratings refreshed", Updated: n})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}

	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "serviceID"), 10, 64)
	if err != nil || id < 1 {
		core.NotFound(w, "service")
		return 0, false
	}
	return id, true
}
