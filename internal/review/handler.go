// AngelaMos | 2026
// handler.go

package review

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
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/reviews", func(r chi.Router) {
		r.Use(authenticator)
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{reviewID}", h.Get)
		r.Put("/{reviewID}", h.Replace)
		r.Patch("/{reviewID}", h.Update)
		r.Delete("/{reviewID}", h.Delete)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.service.List(r.Context(), middleware.ActorFrom(r.Context()))
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.WritePage(w, r, ToReviewResponseList(reviews))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	rv, err := h.service.Get(r.Context(), middleware.ActorFrom(r.Context()), id)
	if err != nil {
		core.HandleError(w, err, "review")
		return
	}

	core.OK(w, ToReviewResponse(rv))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateReviewRequest
	if !h.decode(w, r, &req) {
		return
	}

	rv, err := h.service.Create(r.Context(), middleware.ActorFrom(r.Context()), req)
	if err != nil {
		core.HandleError(w, err, "review")
		return
	}

	core.Created(w, ToReviewResponse(rv))
}

func (h *Handler) Replace(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req ReplaceReviewRequest
	if !h.decode(w, r, &req) {
		return
	}

	rv, err := h.service.Replace(r.Context(), middleware.ActorFrom(r.Context()), id, req)
	if err != nil {
		core.HandleError(w, err, "review")
		return
	}

	core.OK(w, ToReviewResponse(rv))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req UpdateReviewRequest
	if !h.decode(w, r, &req) {
		return
	}

	rv, err := h.service.Update(r.Context(), middleware.ActorFrom(r.Context()), id, req)
	if err != nil {
		core.HandleError(w, err, "review")
		return
	}

	core.OK(w, ToReviewResponse(rv))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), middleware.ActorFrom(r.Context()), id); err != nil {
		core.HandleError(w, err, "review")
		return
	}

	core.NoContent(w)
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
	id, err := strconv.ParseInt(chi.URLParam(r, "reviewID"), 10, 64)
	if err != nil || id < 1 {
		core.NotFound(w, "review")
		return 0, false
	}
	return id, true
}
