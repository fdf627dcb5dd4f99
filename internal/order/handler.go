// AngelaMos | 2026
// handler.go

package order

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
	r.Route("/orders", func(r chi.Router) {
		r.Use(authenticator)
		r.Get("/", h.List)
		r.Get("/{orderID}", h.Get)
		r.Patch("/{orderID}/status", h.UpdateStatus)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.List(r.Context(), middleware.ActorFrom(r.Context()))
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.WritePage(w, r, ToOrderResponseList(orders))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	o, err := h.service.Get(r.Context(), middleware.ActorFrom(r.Context()), id)
	if err != nil {
		core.HandleError(w, err, "order")
		return
	}

	core.OK(w, ToOrderResponse(o))
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	o, err := h.service.UpdateStatus(r.Context(), middleware.ActorFrom(r.Context()), id, req.Status)
	if err != nil {
		core.HandleError(w, err, "order")
		return
	}

	core.OK(w, ToOrderResponse(o))
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil || id < 1 {
		core.NotFound(w, "order")
		return 0, false
	}
	return id, true
}
