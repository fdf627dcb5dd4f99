// AngelaMos | 2026
// handler.go

package cart

import (
	"encoding/json"
	"errors"
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
	r.Route("/cart", func(r chi.Router) {
		r.Use(authenticator)
		r.Get("/", h.List)
		r.Post("/add_service", h.AddService)
		r.Post("/remove_service", h.RemoveService)
		r.Post("/checkout", h.Checkout)
		r.Get("/{cartID}", h.Get)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	carts, err := h.service.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.WritePage(w, r, ToCartResponseList(carts))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "cartID"), 10, 64)
	if err != nil || id < 1 {
		core.NotFound(w, "cart")
		return
	}

	c, err := h.service.Get(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		core.HandleError(w, err, "cart")
		return
	}

	core.OK(w, ToCartResponse(c))
}

func (h *Handler) AddService(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	if err := h.service.Add(r.Context(), middleware.GetUserID(r.Context()), req.ServiceID); err != nil {
		core.HandleError(w, err, "service")
		return
	}

	core.OK(w, core.StatusMessage{Status: "service added to cart"})
}

func (h *Handler) RemoveService(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	err := h.service.Remove(r.Context(), middleware.GetUserID(r.Context()), req.ServiceID)
	if errors.Is(err, ErrNotInCart) {
		core.BadRequest(w, ErrNotInCart.Error())
		return
	}
	if err != nil {
		core.HandleError(w, err, "service")
		return
	}

	core.OK(w, core.StatusMessage{Status: "service removed from cart"})
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	orderID, err := h.service.Checkout(r.Context(), middleware.GetUserID(r.Context()))
	if errors.Is(err, ErrEmptyCart) {
		core.BadRequest(w, ErrEmptyCart.Error())
		return
	}
	if err != nil {
		core.HandleError(w, err, "cart")
		return
	}

	core.OK(w, CheckoutResponse{Status: "order created", OrderID: orderID})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (ServiceRequest, bool) {
	var req ServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return req, false
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return req, false
	}

	return req, true
}
