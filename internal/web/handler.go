// AngelaMos | 2026
// handler.go

// Package web serves the server-rendered storefront: catalog pages, the
// cart and checkout, order history, the profile page and the account
// flows. Pages are html/template files embedded in the binary; one-shot
// messages travel between requests as session flashes.
package web

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/homeser/internal/auth"
	"github.com/carterperez-dev/homeser/internal/cart"
	"github.com/carterperez-dev/homeser/internal/catalog"
	"github.com/carterperez-dev/homeser/internal/core"
	"github.com/carterperez-dev/homeser/internal/middleware"
	"github.com/carterperez-dev/homeser/internal/order"
	"github.com/carterperez-dev/homeser/internal/profile"
	"github.com/carterperez-dev/homeser/internal/review"
	"github.com/carterperez-dev/homeser/internal/session"
)

type Accounts interface {
	Authenticate(ctx context.Context, username, password string) (*auth.UserInfo, error)
	IssueTokens(ctx context.Context, user *auth.UserInfo, userAgent, ipAddress string) (*auth.AuthResponse, error)
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.UserInfo, error)
	Activate(ctx context.Context, uidb64, token string) (*auth.UserInfo, error)
	Logout(ctx context.Context, userID int64, presented *middleware.AccessTokenClaims) error
}

type Catalog interface {
	ListForWeb(ctx context.Context, params catalog.ListParams) ([]catalog.Service, error)
	Get(ctx context.Context, id int64) (*catalog.Service, error)
}

type Reviews interface {
	ForService(ctx context.Context, serviceID int64) ([]review.Review, error)
}

type Carts interface {
	ForWeb(ctx context.Context, userID int64) (*cart.Cart, error)
	Add(ctx context.Context, userID, serviceID int64) error
	Remove(ctx context.Context, userID, serviceID int64) error
	Checkout(ctx context.Context, userID int64) (int64, error)
}

type Orders interface {
	ListForWeb(ctx context.Context, userID int64) ([]order.Order, error)
}

type Profiles interface {
	ForUser(ctx context.Context, userID int64) (*profile.Profile, error)
	UpdateForUser(
		ctx context.Context,
		userID int64,
		req profile.UpdateProfileRequest,
		picture io.Reader,
	) (*profile.Profile, error)
	URL(key string) string
}

type HandlerConfig struct {
	Accounts      Accounts
	Sessions      *session.Manager
	Catalog       Catalog
	Reviews       Reviews
	Carts         Carts
	Orders        Orders
	Profiles      Profiles
	LoginURL      string
	SecureCookies bool
	// MediaDir is served under /media/ when pictures live on local disk.
	MediaDir string
}

type Handler struct {
	accounts  Accounts
	sessions  *session.Manager
	catalog   Catalog
	reviews   Reviews
	carts     Carts
	orders    Orders
	profiles  Profiles
	pages     *pages
	validator *validator.Validate

	loginURL      string
	secureCookies bool
	mediaDir      string
}

func NewHandler(cfg HandlerConfig) (*Handler, error) {
	p, err := loadPages(cfg.Profiles)
	if err != nil {
		return nil, err
	}

	return &Handler{
		accounts:      cfg.Accounts,
		sessions:      cfg.Sessions,
		catalog:       cfg.Catalog,
		reviews:       cfg.Reviews,
		carts:         cfg.Carts,
		orders:        cfg.Orders,
		profiles:      cfg.Profiles,
		pages:         p,
		validator:     validator.New(validator.WithRequiredStructEnabled()),
		loginURL:      cfg.LoginURL,
		secureCookies: cfg.SecureCookies,
		mediaDir:      cfg.MediaDir,
	}, nil
}

// RegisterRoutes mounts the storefront. identify must run first so pages
// know who is browsing.
func (h *Handler) RegisterRoutes(r chi.Router, identify func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(identify)

		r.Get("/", h.Home)
		r.Get("/services/", h.Services)
		r.Get("/services/{serviceID}/", h.ServiceDetail)
		r.Get("/accounts/register/", h.RegisterForm)
		r.Post("/accounts/register/", h.Register)
		r.Get("/accounts/login/", h.LoginForm)
		r.Post("/accounts/login/", h.Login)
		r.Get("/activate/{uidb64}/{token}/", h.Activate)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireLogin(h.loginURL))

			r.Get("/cart/", h.Cart)
			r.Post("/cart/add/", h.AddToCart)
			r.Post("/cart/remove/", h.RemoveFromCart)
			r.Post("/cart/checkout/", h.Checkout)
			r.Get("/orders/", h.Orders)
			r.Get("/profile/", h.Profile)
			r.Get("/profile/edit/", h.EditProfileForm)
			r.Post("/profile/edit/", h.EditProfile)
			r.Get("/accounts/logout/", h.Logout)
			r.Post("/accounts/logout/", h.Logout)
		})
	})

	if h.mediaDir != "" {
		r.Handle("/media/*", http.StripPrefix("/media/", noListing(http.FileServer(http.Dir(h.mediaDir)))))
	}
}

func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "home", http.StatusOK, page{Title: "Home"})
}

type servicesView struct {
	Search   string
	Sort     string
	Services []catalog.Service
}

func (h *Handler) Services(w http.ResponseWriter, r *http.Request) {
	params := catalog.ListParams{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Sort:   r.URL.Query().Get("sort"),
	}
	params.Normalize()

	services, err := h.catalog.ListForWeb(r.Context(), params)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.render(w, r, "services", http.StatusOK, page{
		Title: "Services",
		Data:  servicesView{Search: params.Search, Sort: params.Sort, Services: services},
	})
}

type serviceDetailView struct {
	Service *catalog.Service
	Reviews []review.Review
}

func (h *Handler) ServiceDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "serviceID"), 10, 64)
	if err != nil || id < 1 {
		h.notFound(w, r)
		return
	}

	svc, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	reviews, err := h.reviews.ForService(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.render(w, r, "service_detail", http.StatusOK, page{
		Title: svc.Name,
		Data:  serviceDetailView{Service: svc, Reviews: reviews},
	})
}

func (h *Handler) Cart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.ForWeb(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.render(w, r, "cart", http.StatusOK, page{Title: "Cart", Data: c})
}

func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	serviceID, ok := formID(r, "service_id")
	if !ok {
		h.notFound(w, r)
		return
	}

	if err := h.carts.Add(r.Context(), middleware.GetUserID(r.Context()), serviceID); err != nil {
		h.fail(w, r, err)
		return
	}

	h.flash(w, r, session.LevelSuccess, "Service added to cart!")
	http.Redirect(w, r, "/services/"+strconv.FormatInt(serviceID, 10)+"/", http.StatusFound)
}

func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	serviceID, ok := formID(r, "service_id")
	if !ok {
		h.notFound(w, r)
		return
	}

	err := h.carts.Remove(r.Context(), middleware.GetUserID(r.Context()), serviceID)
	switch {
	case errors.Is(err, cart.ErrNotInCart):
		h.flash(w, r, session.LevelError, "Service not in cart.")
	case err != nil:
		h.fail(w, r, err)
		return
	default:
		h.flash(w, r, session.LevelSuccess, "Service removed from cart!")
	}

	http.Redirect(w, r, "/cart/", http.StatusFound)
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	_, err := h.carts.Checkout(r.Context(), middleware.GetUserID(r.Context()))
	switch {
	case errors.Is(err, cart.ErrEmptyCart), errors.Is(err, core.ErrNotFound):
		h.flash(w, r, session.LevelError, "Your cart is empty.")
		http.Redirect(w, r, "/cart/", http.StatusFound)
	case err != nil:
		h.fail(w, r, err)
	default:
		h.flash(w, r, session.LevelSuccess, "Order created successfully!")
		http.Redirect(w, r, "/orders/", http.StatusFound)
	}
}

func (h *Handler) Orders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListForWeb(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.render(w, r, "orders", http.StatusOK, page{Title: "Orders", Data: orders})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, core.ErrNotFound) {
		h.notFound(w, r)
		return
	}
	if appErr, ok := core.AsAppError(err); ok && appErr.StatusCode < http.StatusInternalServerError {
		h.render(w, r, "error", appErr.StatusCode, page{
			Title: http.StatusText(appErr.StatusCode),
			Data:  appErr.Message,
		})
		return
	}

	slog.ErrorContext(r.Context(), "page failed",
		"path", r.URL.Path,
		"error", err,
	)
	h.render(w, r, "error", http.StatusInternalServerError, page{
		Title: "Server error",
		Data:  "Something went wrong. Please try again later.",
	})
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "error", http.StatusNotFound, page{
		Title: "Not found",
		Data:  "The page you requested does not exist.",
	})
}

func formID(r *http.Request, field string) (int64, bool) {
	id, err := strconv.ParseInt(r.PostFormValue(field), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

// noListing hides directory indexes of the media root.
func noListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
