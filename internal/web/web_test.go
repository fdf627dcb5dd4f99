// AngelaMos | 2026
// web_test.go

package web

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/homeser/internal/auth"
	"github.com/carterperez-dev/homeser/internal/cache"
	"github.com/carterperez-dev/homeser/internal/cart"
	"github.com/carterperez-dev/homeser/internal/catalog"
	"github.com/carterperez-dev/homeser/internal/config"
	"github.com/carterperez-dev/homeser/internal/core"
	"github.com/carterperez-dev/homeser/internal/middleware"
	"github.com/carterperez-dev/homeser/internal/order"
	"github.com/carterperez-dev/homeser/internal/policy"
	"github.com/carterperez-dev/homeser/internal/profile"
	"github.com/carterperez-dev/homeser/internal/review"
	"github.com/carterperez-dev/homeser/internal/session"
)

const sessionCookie = "sessionid"

type fakeAccounts struct {
	users      map[string]*auth.UserInfo
	activated  *auth.UserInfo
	loggedOut  int64
	logouts    int
	registered []auth.RegisterRequest
}

func (f *fakeAccounts) Authenticate(_ context.Context, username, password string) (*auth.UserInfo, error) {
	u, ok := f.users[username]
	if !ok || password != "correct-horse" {
		return nil, auth.ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, core.ErrAccountInactive
	}
	return u, nil
}

func (f *fakeAccounts) IssueTokens(_ context.Context, u *auth.UserInfo, _, _ string) (*auth.AuthResponse, error) {
	exp := time.Now().Add(15 * time.Minute)
	return &auth.AuthResponse{
		User: auth.UserResponse{ID: u.ID, Username: u.Username},
		Tokens: auth.TokenResponse{
			AccessToken:      "access-" + u.Username,
			RefreshToken:     "refresh-" + u.Username,
			ExpiresAt:        exp,
			RefreshExpiresAt: exp.Add(time.Hour),
		},
	}, nil
}

func (f *fakeAccounts) Register(_ context.Context, req auth.RegisterRequest) (*auth.UserInfo, error) {
	if _, ok := f.users[req.Username]; ok {
		return nil, auth.ErrUserExists
	}
	f.registered = append(f.registered, req)
	return &auth.UserInfo{ID: 99, Username: req.Username}, nil
}

func (f *fakeAccounts) Activate(_ context.Context, uidb64, token string) (*auth.UserInfo, error) {
	if f.activated == nil || token != "good" {
		return nil, core.ErrTokenInvalid
	}
	return f.activated, nil
}

func (f *fakeAccounts) Logout(_ context.Context, userID int64, _ *middleware.AccessTokenClaims) error {
	f.loggedOut = userID
	f.logouts++
	return nil
}

type fakeCatalog struct {
	services map[int64]*catalog.Service
	lastList catalog.ListParams
}

func (f *fakeCatalog) ListForWeb(_ context.Context, p catalog.ListParams) ([]catalog.Service, error) {
	f.lastList = p
	out := []catalog.Service{}
	for _, s := range f.services {
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeCatalog) Get(_ context.Context, id int64) (*catalog.Service, error) {
	s, ok := f.services[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return s, nil
}

type fakeReviews struct{}

func (fakeReviews) ForService(_ context.Context, serviceID int64) ([]review.Review, error) {
	return []review.Review{{
		ID: 1, Username: "alice", ServiceID: serviceID, Rating: 5,
		Text: "Spotless work", CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}}, nil
}

type fakeCarts struct {
	added       []int64
	removeErr   error
	checkoutErr error
}

func (f *fakeCarts) ForWeb(_ context.Context, userID int64) (*cart.Cart, error) {
	return &cart.Cart{ID: 1, UserID: userID, Items: []cart.Item{{
		ServiceID: 3, ServiceName: "Plumbing", ServicePrice: decimal.RequireFromString("80.00"), Quantity: 2,
	}}, TotalPrice: decimal.RequireFromString("160.00"), ItemCount: 2}, nil
}

func (f *fakeCarts) Add(_ context.Context, _, serviceID int64) error {
	if serviceID == 404 {
		return core.NotFoundError("service")
	}
	f.added = append(f.added, serviceID)
	return nil
}

func (f *fakeCarts) Remove(context.Context, int64, int64) error { return f.removeErr }

func (f *fakeCarts) Checkout(context.Context, int64) (int64, error) {
	if f.checkoutErr != nil {
		return 0, f.checkoutErr
	}
	return 7, nil
}

type fakeOrders struct{}

func (fakeOrders) ListForWeb(_ context.Context, userID int64) ([]order.Order, error) {
	return []order.Order{{ID: 7, UserID: userID, Status: order.StatusPendingPayment}}, nil
}

type fakeProfiles struct {
	profile *profile.Profile
	gotReq  profile.UpdateProfileRequest
	gotPic  bool
}

func (f *fakeProfiles) ForUser(_ context.Context, userID int64) (*profile.Profile, error) {
	f.profile.UserID = userID
	return f.profile, nil
}

func (f *fakeProfiles) UpdateForUser(
	_ context.Context,
	_ int64,
	req profile.UpdateProfileRequest,
	picture io.Reader,
) (*profile.Profile, error) {
	f.gotReq = req
	f.gotPic = picture != nil
	return f.profile, nil
}

func (f *fakeProfiles) URL(key string) string { return "/media/" + key }

type fixture struct {
	router   chi.Router
	handler  *Handler
	accounts *fakeAccounts
	carts    *fakeCarts
	profiles *fakeProfiles
	catalog  *fakeCatalog
}

// identifyFromHeader stands in for the real Identify middleware.
func identifyFromHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64); err == nil {
			r = r.WithContext(middleware.WithActor(r.Context(), policy.Actor{UserID: id, Role: policy.RoleClient}))
		}
		next.ServeHTTP(w, r)
	})
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := cache.NewMemory(64)
	require.NoError(t, err)
	sessions := session.NewManager(store, config.SessionConfig{CookieName: sessionCookie, TTL: time.Hour}, false)

	f := &fixture{
		accounts: &fakeAccounts{users: map[string]*auth.UserInfo{
			"alice": {ID: 1, Username: "alice", IsActive: true},
			"bob":   {ID: 2, Username: "bob"},
		}},
		carts:    &fakeCarts{},
		profiles: &fakeProfiles{profile: &profile.Profile{ID: 1, Username: "alice", Bio: "hi"}},
		catalog: &fakeCatalog{services: map[int64]*catalog.Service{
			3: {ID: 3, Name: "Plumbing", Price: decimal.RequireFromString("80.00"), AverageRating: 4.5},
		}},
	}

	h, err := NewHandler(HandlerConfig{
		Accounts: f.accounts,
		Sessions: sessions,
		Catalog:  f.catalog,
		Reviews:  fakeReviews{},
		Carts:    f.carts,
		Orders:   fakeOrders{},
		Profiles: f.profiles,
		LoginURL: "/accounts/login/",
	})
	require.NoError(t, err)

	f.handler = h
	f.router = chi.NewRouter()
	h.RegisterRoutes(f.router, identifyFromHeader)
	return f
}

type request struct {
	method  string
	path    string
	form    url.Values
	userID  int64
	cookies []*http.Cookie
}

func (f *fixture) do(req request) *httptest.ResponseRecorder {
	var body io.Reader
	if req.form != nil {
		body = strings.NewReader(req.form.Encode())
	}
	r := httptest.NewRequest(req.method, req.path, body)
	if req.form != nil {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if req.userID != 0 {
		r.Header.Set("X-User-ID", strconv.FormatInt(req.userID, 10))
	}
	for _, c := range req.cookies {
		r.AddCookie(c)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

// liveCookies keeps the last value set for each cookie name, dropping
// deletions.
func liveCookies(w *httptest.ResponseRecorder) []*http.Cookie {
	last := map[string]*http.Cookie{}
	for _, c := range w.Result().Cookies() {
		last[c.Name] = c
	}
	out := []*http.Cookie{}
	for _, c := range last {
		if c.MaxAge >= 0 && c.Value != "" {
			out = append(out, c)
		}
	}
	return out
}

func cookieNamed(w *httptest.ResponseRecorder, name string) *http.Cookie {
	var found *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			found = c
		}
	}
	return found
}

func TestPublicPages(t *testing.T) {
	f := newFixture(t)

	w := f.do(request{method: http.MethodGet, path: "/"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "HomeSer")
	assert.Contains(t, w.Body.String(), "/accounts/login/")

	w = f.do(request{method: http.MethodGet, path: "/services/?search=+pipe+&sort=price"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "$80.00")
	assert.Equal(t, catalog.ListParams{Search: "pipe", Sort: catalog.SortDefault}, f.catalog.lastList)

	w = f.do(request{method: http.MethodGet, path: "/services/3/"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Spotless work")
	assert.Contains(t, w.Body.String(), "Mar 1, 2026")
}

func TestServiceDetailNotFound(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/services/12/", "/services/abc/"} {
		w := f.do(request{method: http.MethodGet, path: path})
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestLoginRequiredRedirects(t *testing.T) {
	f := newFixture(t)

	w := f.do(request{method: http.MethodGet, path: "/cart/"})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/accounts/login/?next=%2Fcart%2F", w.Header().Get("Location"))
}

func TestAddToCartFlashesOnNextPage(t *testing.T) {
	f := newFixture(t)

	w := f.do(request{
		method: http.MethodPost,
		path:   "/cart/add/",
		form:   url.Values{"service_id": {"3"}},
		userID: 1,
	})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/services/3/", w.Header().Get("Location"))
	assert.Equal(t, []int64{3}, f.carts.added)

	cookies := liveCookies(w)
	next := f.do(request{method: http.MethodGet, path: "/services/3/", userID: 1, cookies: cookies})
	assert.Contains(t, next.Body.String(), "Service added to cart!")

	again := f.do(request{method: http.MethodGet, path: "/services/3/", userID: 1, cookies: cookies})
	assert.NotContains(t, again.Body.String(), "Service added to cart!")
}

func TestAddUnknownServiceIs404(t *testing.T) {
	f := newFixture(t)

	w := f.do(request{method: http.MethodPost, path: "/cart/add/", form: url.Values{"service_id": {"404"}}, userID: 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(request{method: http.MethodPost, path: "/cart/add/", form: url.Values{}, userID: 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRemoveNotInCart(t *testing.T) {
	f := newFixture(t)
	f.carts.removeErr = cart.ErrNotInCart

	w := f.do(request{method: http.MethodPost, path: "/cart/remove/", form: url.Values{"service_id": {"3"}}, userID: 1})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/cart/", w.Header().Get("Location"))

	page := f.do(request{method: http.MethodGet, path: "/cart/", userID: 1, cookies: liveCookies(w)})
	assert.Contains(t, page.Body.String(), "Service not in cart.")
	assert.Contains(t, page.Body.String(), "$160.00")
}

func TestCheckout(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		location string
		message  string
	}{
		{"created", nil, "/orders/", "Order created successfully!"},
		{"empty cart", cart.ErrEmptyCart, "/cart/", "Your cart is empty."},
		{"no cart", core.NotFoundError("cart"), "/cart/", "Your cart is empty."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.carts.checkoutErr = tt.err

			w := f.do(request{method: http.MethodPost, path: "/cart/checkout/", userID: 1})
			require.Equal(t, http.StatusFound, w.Code)
			assert.Equal(t, tt.location, w.Header().Get("Location"))

			page := f.do(request{method: http.MethodGet, path: tt.location, userID: 1, cookies: liveCookies(w)})
			assert.Contains(t, page.Body.String(), tt.message)
		})
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(t)

	w := f.do(request{
		method: http.MethodPost,
		path:   "/accounts/login/",
		form:   url.Values{"username": {"alice"}, "password": {"correct-horse"}, "next": {"/orders/"}},
	})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/orders/", w.Header().Get("Location"))

	access := cookieNamed(w, middleware.AccessCookie)
	require.NotNil(t, access)
	assert.Equal(t, "access-alice", access.Value)
	assert.True(t, access.HttpOnly)
	require.NotNil(t, cookieNamed(w, sessionCookie))

	home := f.do(request{method: http.MethodGet, path: "/", cookies: liveCookies(w)})
	assert.Contains(t, home.Body.String(), "Welcome back, alice!")
}

func TestLoginFailures(t *testing.T) {
	f := newFixture(t)

	w := f.do(request{method: http.MethodPost, path: "/accounts/login/",
		form: url.Values{"username": {"alice"}, "password": {"wrong"}}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Please enter a correct username and password.")
	assert.Nil(t, cookieNamed(w, middleware.AccessCookie))

	w = f.do(request{method: http.MethodPost, path: "/accounts/login/",
		form: url.Values{"username": {"bob"}, "password": {"correct-horse"}}})
	assert.Contains(t, w.Body.String(), "This account is inactive.")
}

func TestRegister(t *testing.T) {
	f := newFixture(t)

	w := f.do(request{method: http.MethodPost, path: "/accounts/register/", form: url.Values{
		"username": {"carol"}, "email": {"carol@example.com"},
		"password1": {"s3cret-pass"}, "password2": {"different"},
	}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "The two password fields didn&#39;t match.")
	assert.Empty(t, f.accounts.registered)

	w = f.do(request{method: http.MethodPost, path: "/accounts/register/", form: url.Values{
		"username": {"alice"}, "email": {"a@example.com"},
		"password1": {"s3cret-pass"}, "password2": {"s3cret-pass"},
	}})
	assert.Contains(t, w.Body.String(), "already exists")

	w = f.do(request{method: http.MethodPost, path: "/accounts/register/", form: url.Values{
		"username": {"carol"}, "email": {"carol@example.com"},
		"password1": {"s3cret-pass"}, "password2": {"s3cret-pass"},
	}})
	require.Equal(t, http.StatusFound, w.Code)
	require.Len(t, f.accounts.registered, 1)
	assert.Equal(t, "s3cret-pass", f.accounts.registered[0].Password)

	home := f.do(request{method: http.MethodGet, path: "/", cookies: liveCookies(w)})
	assert.Contains(t, home.Body.String(), "Please check your email to activate your account.")
}

func TestActivate(t *testing.T) {
	f := newFixture(t)
	f.accounts.activated = &auth.UserInfo{ID: 2, Username: "bob", IsActive: true}

	w := f.do(request{method: http.MethodGet, path: "/activate/Mg/bad/"})
	require.Equal(t, http.StatusFound, w.Code)
	home := f.do(request{method: http.MethodGet, path: "/", cookies: liveCookies(w)})
	assert.Contains(t, home.Body.String(), "Activation link is invalid!")

	w = f.do(request{method: http.MethodGet, path: "/activate/Mg/good/"})
	require.Equal(t, http.StatusFound, w.Code)
	assert.NotNil(t, cookieNamed(w, middleware.AccessCookie))
	home = f.do(request{method: http.MethodGet, path: "/", cookies: liveCookies(w)})
	assert.Contains(t, home.Body.String(), "Your account has been activated successfully!")
}

func TestLogout(t *testing.T) {
	f := newFixture(t)

	w := f.do(request{method: http.MethodPost, path: "/accounts/logout/", userID: 1})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, int64(1), f.accounts.loggedOut)

	access := cookieNamed(w, middleware.AccessCookie)
	require.NotNil(t, access)
	assert.Negative(t, access.MaxAge)

	home := f.do(request{method: http.MethodGet, path: "/", cookies: liveCookies(w)})
	assert.Contains(t, home.Body.String(), "You have been logged out successfully!")
}

func TestLogoutWithoutUserSkipsRevocation(t *testing.T) {
	f := newFixture(t)

	w := httptest.NewRecorder()
	f.handler.Logout(w, httptest.NewRequest(http.MethodPost, "/accounts/logout/", nil))

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.Zero(t, f.accounts.logouts)
	require.NotNil(t, cookieNamed(w, middleware.AccessCookie))
}

func TestEditProfile(t *testing.T) {
	f := newFixture(t)

	w := f.do(request{method: http.MethodPost, path: "/profile/edit/", userID: 1, form: url.Values{
		"bio": {"Handy with pipes"}, "social_links": {`{"github":"https://github.com/alice"}`},
	}})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/profile/", w.Header().Get("Location"))
	require.NotNil(t, f.profiles.gotReq.Bio)
	assert.Equal(t, "Handy with pipes", *f.profiles.gotReq.Bio)
	assert.Equal(t, "https://github.com/alice", f.profiles.gotReq.SocialLinks["github"])
	assert.False(t, f.profiles.gotPic)

	w = f.do(request{method: http.MethodPost, path: "/profile/edit/", userID: 1, form: url.Values{
		"bio": {"x"}, "social_links": {`["not", "an", "object"]`},
	}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Social links must be a JSON object")
}

func TestSafeNext(t *testing.T) {
	tests := map[string]string{
		"":                     "/",
		"/orders/":             "/orders/",
		"//evil.example":       "/",
		"https://evil.example": "/",
		"/\\evil.example":      "/",
	}
	for in, want := range tests {
		assert.Equal(t, want, safeNext(in), in)
	}
}
