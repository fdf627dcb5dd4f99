// AngelaMos | 2026
// handler.go

package user

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
	r.Route("/users", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{userID}", h.Get)
		r.Put("/{userID}", h.Replace)
		r.Patch("/{userID}", h.Update)
		r.Delete("/{userID}", h.Delete)
		r.Post("/{userID}/promote", h.Promote)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context(), middleware.ActorFrom(r.Context()))
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.WritePage(w, r, ToUserResponseList(users))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	user, err := h.service.Get(r.Context(), middleware.ActorFrom(r.Context()), id)
	if err != nil {
		core.HandleError(w, err, "user")
		return
	}

	core.OK(w, ToUserResponse(user))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	user, err := h.service.Create(r.Context(), middleware.ActorFrom(r.Context()), req)
	if err != nil {
		core.HandleError(w, err, "user")
		return
	}

	core.Created(w, ToUserResponse(user))
}

func (h *Handler) Replace(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req ReplaceUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	h.update(w, r, id, req.asUpdate())
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	h.update(w, r, id, req)
}

func (h *Handler) update(
	w http.ResponseWriter,
	r *http.Request,
	id int64,
	req UpdateUserRequest,
) {
	user, err := h.service.Update(r.Context(), middleware.ActorFrom(r.Context()), id, req)
	if err != nil {
		core.HandleError(w, err, "user")
		return
	}

	core.OK(w, ToUserResponse(user))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), middleware.ActorFrom(r.Context()), id); err != nil {
		core.HandleError(w, err, "user")
		return
	}

	core.NoContent(w)
}

func (h *Handler) Promote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if _, err := h.service.Promote(r.Context(), middleware.ActorFrom(r.Context()), id); err != nil {
		core.HandleError(w, err, "user")
		return
	}

	core.OK(w, core.StatusMessage{Status: "user promoted"})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id < 1 {
		core.NotFound(w, "user")
		return 0, false
	}
	return id, true
}
