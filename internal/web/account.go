// AngelaMos | 2026
// account.go

package web

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/homeser/internal/auth"
	"github.com/carterperez-dev/homeser/internal/core"
	"github.com/carterperez-dev/homeser/internal/middleware"
	"github.com/carterperez-dev/homeser/internal/session"
)

type registerForm struct {
	Username  string `validate:"required,max=150"`
	Email     string `validate:"required,email,max=254"`
	Password1 string `validate:"required,min=8,max=128"`
	Password2 string `validate:"required,eqfield=Password1"`
}

func (h *Handler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "register", http.StatusOK, page{Title: "Register"})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, "register", http.StatusBadRequest, page{Title: "Register"})
		return
	}

	form := registerForm{
		Username:  strings.TrimSpace(r.PostForm.Get("username")),
		Email:     strings.TrimSpace(r.PostForm.Get("email")),
		Password1: r.PostForm.Get("password1"),
		Password2: r.PostForm.Get("password2"),
	}

	redisplay := func(msg string) {
		h.render(w, r, "register", http.StatusOK, page{
			Title:  "Register",
			Form:   r.PostForm,
			Errors: []string{msg},
		})
	}

	if err := h.validator.Struct(form); err != nil {
		redisplay(registerMessage(err))
		return
	}

	_, err := h.accounts.Register(r.Context(), auth.RegisterRequest{
		Username: form.Username,
		Email:    form.Email,
		Password: form.Password1,
	})
	if errors.Is(err, auth.ErrUserExists) {
		redisplay("A user with that username or email already exists.")
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.flash(w, r, session.LevelSuccess,
		"Registration successful! Please check your email to activate your account.")
	http.Redirect(w, r, "/", http.StatusFound)
}

func registerMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() == "eqfield" {
				return "The two password fields didn't match."
			}
		}
	}
	return core.FormatValidationError(err)
}

func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if !middleware.ActorFrom(r.Context()).IsAnonymous() {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	form := url.Values{}
	if next := r.URL.Query().Get("next"); next != "" {
		form.Set("next", next)
	}
	h.render(w, r, "login", http.StatusOK, page{Title: "Log in", Form: form})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, "login", http.StatusBadRequest, page{Title: "Log in"})
		return
	}

	ctx := r.Context()
	user, err := h.accounts.Authenticate(ctx,
		strings.TrimSpace(r.PostForm.Get("username")),
		r.PostForm.Get("password"),
	)
	if err != nil {
		msg := "Please enter a correct username and password."
		switch {
		case errors.Is(err, core.ErrAccountInactive):
			msg = "This account is inactive."
		case !errors.Is(err, auth.ErrInvalidCredentials):
			h.fail(w, r, err)
			return
		}
		h.render(w, r, "login", http.StatusOK, page{
			Title:  "Log in",
			Form:   r.PostForm,
			Errors: []string{msg},
		})
		return
	}

	if !h.signIn(w, r, user, "Welcome back, "+user.Username+"!") {
		return
	}
	http.Redirect(w, r, safeNext(r.PostForm.Get("next")), http.StatusFound)
}

// Activate handles the emailed link. A valid link activates the account
// and logs the user in.
func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.Activate(r.Context(), chi.URLParam(r, "uidb64"), chi.URLParam(r, "token"))
	if err != nil {
		if !errors.Is(err, core.ErrTokenInvalid) && !errors.Is(err, core.ErrTokenExpired) {
			slog.WarnContext(r.Context(), "activation failed", "error", err)
		}
		h.flash(w, r, session.LevelError, "Activation link is invalid!")
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	if !h.signIn(w, r, user, "Your account has been activated successfully!") {
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// signIn rotates the session to user, queues message and sets JWT cookies.
func (h *Handler) signIn(w http.ResponseWriter, r *http.Request, user *auth.UserInfo, message string) bool {
	ctx := r.Context()

	s, err := h.sessions.Load(ctx, r)
	if err != nil {
		h.fail(w, r, err)
		return false
	}
	s.AddFlash(session.LevelSuccess, message)

	if _, err := h.sessions.Login(ctx, w, s, user.ID); err != nil {
		h.fail(w, r, err)
		return false
	}

	resp, err := h.accounts.IssueTokens(ctx, user, r.UserAgent(), middleware.ClientIP(r))
	if err != nil {
		h.fail(w, r, err)
		return false
	}
	auth.SetAuthCookies(w, resp.Tokens, h.secureCookies)
	return true
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if userID := middleware.GetUserID(ctx); userID != 0 {
		if err := h.accounts.Logout(ctx, userID, middleware.ClaimsFrom(ctx)); err != nil {
			slog.ErrorContext(ctx, "logout failed", "error", err)
		}
	}

	if s, err := h.sessions.Load(ctx, r); err == nil {
		if err := h.sessions.Destroy(ctx, w, s); err != nil {
			slog.WarnContext(ctx, "destroy session", "error", err)
		}
	}
	auth.ClearAuthCookies(w, h.secureCookies)

	h.flash(w, r, session.LevelSuccess, "You have been logged out successfully!")
	http.Redirect(w, r, "/", http.StatusFound)
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") ||
		strings.Contains(next, "\\") {
		return "/"
	}
	return next
}
