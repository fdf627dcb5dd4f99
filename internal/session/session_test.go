// AngelaMos | 2026
// session_test.go

package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/homeser/internal/cache"
	"github.com/carterperez-dev/homeser/internal/config"
)

func setup(t *testing.T) (*Manager, *cache.Memory) {
	t.Helper()
	store, err := cache.NewMemory(32)
	require.NoError(t, err)
	m := NewManager(store, config.SessionConfig{CookieName: "sessionid", TTL: time.Hour}, true)
	return m, store
}

func requestWith(cookies []*http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func TestLoginRotatesAndPersists(t *testing.T) {
	ctx := context.Background()
	m, store := setup(t)

	anon, err := m.Load(ctx, requestWith(nil))
	require.NoError(t, err)
	anon.AddFlash(LevelInfo, "welcome")
	rec := httptest.NewRecorder()
	require.NoError(t, m.Save(ctx, rec, anon))

	rec = httptest.NewRecorder()
	logged, err := m.Login(ctx, rec, anon, 42)
	require.NoError(t, err)
	assert.NotEqual(t, anon.ID, logged.ID)

	_, err = store.Get(ctx, anon.ID)
	assert.ErrorIs(t, err, cache.ErrMiss)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	uid, ok := m.UserID(ctx, requestWith(cookies))
	require.True(t, ok)
	assert.Equal(t, int64(42), uid)

	loaded, err := m.Load(ctx, requestWith(cookies))
	require.NoError(t, err)
	assert.Equal(t, []Flash{{Level: LevelInfo, Message: "welcome"}}, loaded.PopFlashes())
	assert.Empty(t, loaded.Data.Flashes)
}

func TestDestroy(t *testing.T) {
	ctx := context.Background()
	m, _ := setup(t)

	s, err := m.Load(ctx, requestWith(nil))
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	s, err = m.Login(ctx, rec, s, 5)
	require.NoError(t, err)
	cookies := rec.Result().Cookies()

	rec = httptest.NewRecorder()
	require.NoError(t, m.Destroy(ctx, rec, s))
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)

	_, ok := m.UserID(ctx, requestWith(cookies))
	assert.False(t, ok)
}

func TestUnknownCookieIsFreshSession(t *testing.T) {
	m, _ := setup(t)
	s, err := m.Load(context.Background(), requestWith([]*http.Cookie{{Name: "sessionid", Value: "forged"}}))
	require.NoError(t, err)
	assert.NotEqual(t, "forged", s.ID)
	assert.Zero(t, s.Data.UserID)
}
