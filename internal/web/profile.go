// AngelaMos | 2026
// profile.go

package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/carterperez-dev/homeser/internal/core"
	"github.com/carterperez-dev/homeser/internal/middleware"
	"github.com/carterperez-dev/homeser/internal/profile"
	"github.com/carterperez-dev/homeser/internal/session"
)

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.ForUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.render(w, r, "profile", http.StatusOK, page{Title: p.Username, Data: p})
}

func (h *Handler) EditProfileForm(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.ForUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	form := url.Values{}
	form.Set("bio", p.Bio)
	if len(p.SocialLinks) > 0 {
		raw, _ := json.Marshal(p.SocialLinks)
		form.Set("social_links", string(raw))
	}

	h.render(w, r, "edit_profile", http.StatusOK, page{Title: "Edit profile", Form: form})
}

func (h *Handler) EditProfile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, profile.MaxPictureBytes+1<<20)
	err := r.ParseMultipartForm(profile.MaxPictureBytes)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.editFailed(w, r, url.Values{}, "The upload is too large or malformed.")
		return
	}

	form := r.PostForm
	bio := form.Get("bio")
	req := profile.UpdateProfileRequest{Bio: &bio, SocialLinks: profile.SocialLinks{}}

	if raw := strings.TrimSpace(form.Get("social_links")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.SocialLinks); err != nil {
			h.editFailed(w, r, form, "Social links must be a JSON object of names to URLs.")
			return
		}
	}

	if err := h.validator.Struct(req); err != nil {
		h.editFailed(w, r, form, core.FormatValidationError(err))
		return
	}

	var picture io.Reader
	if r.MultipartForm != nil {
		file, _, err := r.FormFile("profile_picture")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			h.editFailed(w, r, form, "The profile picture could not be read.")
			return
		default:
			defer file.Close()
			picture = file
		}
	}

	_, err = h.profiles.UpdateForUser(r.Context(), middleware.GetUserID(r.Context()), req, picture)
	if appErr, ok := core.AsAppError(err); ok && appErr.StatusCode == http.StatusBadRequest {
		h.editFailed(w, r, form, appErr.Message)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.flash(w, r, session.LevelSuccess, "Your profile has been updated.")
	http.Redirect(w, r, "/profile/", http.StatusFound)
}

func (h *Handler) editFailed(w http.ResponseWriter, r *http.Request, form url.Values, msg string) {
	h.render(w, r, "edit_profile", http.StatusOK, page{
		Title:  "Edit profile",
		Form:   form,
		Errors: []string{msg},
	})
}
