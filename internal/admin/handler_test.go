// AngelaMos | 2026
// handler_test.go

package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/homeser/internal/cache"
	"github.com/carterperez-dev/homeser/internal/middleware"
	"github.com/carterperez-dev/homeser/internal/policy"
	"github.com/carterperez-dev/homeser/internal/tasks"
)

func actorFromHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("X-Role") {
		case policy.RoleAdmin:
			r = r.WithContext(middleware.WithActor(r.Context(), policy.Actor{UserID: 1, Role: policy.RoleAdmin}))
		case policy.RoleClient:
			r = r.WithContext(middleware.WithActor(r.Context(), policy.Actor{UserID: 2, Role: policy.RoleClient}))
		}
		next.ServeHTTP(w, r)
	})
}

type fakeTasks struct {
	results map[string]string
	pending int64
}

func (f fakeTasks) Result(_ context.Context, id string) (string, error) {
	res, ok := f.results[id]
	if !ok {
		return "", tasks.ErrNoResult
	}
	return res, nil
}

func (f fakeTasks) Pending(context.Context) (int64, error) {
	return f.pending, nil
}

type fakeRepo struct{ overview Overview }

func (f fakeRepo) Overview(context.Context) (*Overview, error) {
	return &f.overview, nil
}

func newRouter(t *testing.T, c Clearer, mounts ...func(chi.Router)) chi.Router {
	t.Helper()
	h := NewHandler(HandlerConfig{
		Repo:      fakeRepo{overview: Overview{Users: 4, Orders: 2, OrderValue: decimal.RequireFromString("150.50")}},
		DBStats:   func() sql.DBStats { return sql.DBStats{MaxOpenConnections: 25, OpenConnections: 3} },
		DBPing:    func(context.Context) error { return nil },
		RedisPing: func(context.Context) error { return errors.New("connection refused") },
		Tasks:     fakeTasks{results: map[string]string{"abc": "Email sent successfully"}, pending: 7},
		Cache:     c,
	})
	r := chi.NewRouter()
	h.RegisterRoutes(r, actorFromHeader, middleware.RequireAdmin, mounts...)
	return r
}

func call(r chi.Router, method, path, role string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if role != "" {
		req.Header.Set("X-Role", role)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdminOnly(t *testing.T) {
	r := newRouter(t, nil)

	assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodGet, "/admin/stats", "").Code)
	assert.Equal(t, http.StatusForbidden, call(r, http.MethodGet, "/admin/stats", policy.RoleClient).Code)
	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/admin/stats", policy.RoleAdmin).Code)
}

func TestSystemStats(t *testing.T) {
	r := newRouter(t, nil)

	w := call(r, http.MethodGet, "/admin/stats", policy.RoleAdmin)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data SystemStats `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.True(t, body.Data.Database.Healthy)
	require.NotNil(t, body.Data.Database.Pool)
	assert.Equal(t, 25, body.Data.Database.Pool.MaxOpen)
	assert.False(t, body.Data.Redis.Healthy)
	assert.Nil(t, body.Data.Redis.Pool)
	require.NotNil(t, body.Data.Tasks)
	assert.Equal(t, int64(7), body.Data.Tasks.Pending)
	assert.NotEmpty(t, body.Data.Runtime.GoVersion)
}

func TestOverview(t *testing.T) {
	r := newRouter(t, nil)

	w := call(r, http.MethodGet, "/admin/overview", policy.RoleAdmin)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data Overview `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, int64(4), body.Data.Users)
	assert.Equal(t, int64(2), body.Data.Orders)
	assert.Equal(t, "150.5", body.Data.OrderValue.String())
}

func TestTaskResult(t *testing.T) {
	r := newRouter(t, nil)

	w := call(r, http.MethodGet, "/admin/tasks/abc", policy.RoleAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Email sent successfully")

	assert.Equal(t, http.StatusNotFound, call(r, http.MethodGet, "/admin/tasks/missing", policy.RoleAdmin).Code)
}

func TestClearCache(t *testing.T) {
	c, err := cache.NewMemory(16)
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), cache.ServiceDetailKey(1), []byte(`{}`), time.Minute))

	r := newRouter(t, c)
	assert.Equal(t, http.StatusForbidden, call(r, http.MethodPost, "/admin/cache/clear", policy.RoleClient).Code)
	assert.Equal(t, 1, c.Len())

	w := call(r, http.MethodPost, "/admin/cache/clear", policy.RoleAdmin)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cache cleared")
	assert.Equal(t, 0, c.Len())
}

func TestMountsShareTheGuard(t *testing.T) {
	r := newRouter(t, nil, func(r chi.Router) {
		r.Post("/ratings/refresh", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		})
	})

	assert.Equal(t, http.StatusForbidden, call(r, http.MethodPost, "/admin/ratings/refresh", policy.RoleClient).Code)
	assert.Equal(t, http.StatusAccepted, call(r, http.MethodPost, "/admin/ratings/refresh", policy.RoleAdmin).Code)
}
