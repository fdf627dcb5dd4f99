// AngelaMos | 2026
// handler.go

package profile

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/homeser/internal/core"
	"github.com/carterperez-dev/homeser/internal/middleware"
)

// PictureField is the multipart form field holding the upload.
const PictureField = "profile_picture"

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
	r.Route("/profiles", func(r chi.Router) {
		r.Use(authenticator)
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{profileID}", h.Get)
		r.Put("/{profileID}", h.Replace)
		r.Patch("/{profileID}", h.Update)
		r.Delete("/{profileID}", h.Delete)
		r.Post("/{profileID}/picture", h.UploadPicture)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.service.List(r.Context(), middleware.ActorFrom(r.Context()))
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.WritePage(w, r, ToProfileResponseList(profiles, h.service))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	p, err := h.service.Get(r.Context(), middleware.ActorFrom(r.Context()), id)
	if err != nil {
		core.HandleError(w, err, "profile")
		return
	}

	core.OK(w, ToProfileResponse(p, h.service))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.service.Create(r.Context(), middleware.ActorFrom(r.Context()), req)
	if err != nil {
		core.HandleError(w, err, "profile")
		return
	}

	core.Created(w, ToProfileResponse(p, h.service))
}

func (h *Handler) Replace(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req ReplaceProfileRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.service.Replace(r.Context(), middleware.ActorFrom(r.Context()), id, req)
	if err != nil {
		core.HandleError(w, err, "profile")
		return
	}

	core.OK(w, ToProfileResponse(p, h.service))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.service.Update(r.Context(), middleware.ActorFrom(r.Context()), id, req)
	if err != nil {
		core.HandleError(w, err, "profile")
		return
	}

	core.OK(w, ToProfileResponse(p, h.service))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), middleware.ActorFrom(r.Context()), id); err != nil {
		core.HandleError(w, err, "profile")
		return
	}

	core.NoContent(w)
}

func (h *Handler) UploadPicture(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxPictureBytes+1<<20)
	if err := r.ParseMultipartForm(MaxPictureBytes); err != nil {
		core.BadRequest(w, "upload too large or not multipart")
		return
	}

	file, header, err := r.FormFile(PictureField)
	if err != nil {
		core.BadRequest(w, PictureField+" is required")
		return
	}
	defer file.Close() //nolint:errcheck // read-only multipart part

	if header.Size > MaxPictureBytes {
		core.BadRequest(w, "profile picture must be at most 5 MB")
		return
	}

	p, err := h.service.SetPicture(r.Context(), middleware.ActorFrom(r.Context()), id, file)
	if err != nil {
		core.HandleError(w, err, "profile")
		return
	}

	core.OK(w, ToProfileResponse(p, h.service))
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
	id, err := strconv.ParseInt(chi.URLParam(r, "profileID"), 10, 64)
	if err != nil || id < 1 {
		core.NotFound(w, "profile")
		return 0, false
	}
	return id, true
}
