// AngelaMos | 2026
// service_test.go

package auth

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/homeser/internal/cache"
	"github.com/carterperez-dev/homeser/internal/config"
	"github.com/carterperez-dev/homeser/internal/core"
	"github.com/carterperez-dev/homeser/internal/mail"
	"github.com/carterperez-dev/homeser/internal/session"
)

type fakeTokens struct {
	mu     sync.Mutex
	tokens map[string]*OutstandingToken
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{tokens: map[string]*OutstandingToken{}}
}

func (f *fakeTokens) Create(_ context.Context, t *OutstandingToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.CreatedAt = time.Now()
	cp := *t
	f.tokens[t.ID] = &cp
	return nil
}

func (f *fakeTokens) FindByID(_ context.Context, id string) (*OutstandingToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTokens) Rotate(_ context.Context, id, replacedBy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	t, ok := f.tokens[id]
	if !ok || t.IsUsed {
		return fmt.Errorf("rotate token: %w", core.ErrNotFound)
	}
	t.IsUsed, t.UsedAt, t.ReplacedByID = true, &now, &replacedBy
	return nil
}

// racingTokens lets another refresh win the rotation of each token right
// after it has been read.
type racingTokens struct {
	*fakeTokens
}

func (r racingTokens) FindByID(ctx context.Context, id string) (*OutstandingToken, error) {
	t, err := r.fakeTokens.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.fakeTokens.Rotate(ctx, id, "concurrent"); err != nil {
		return nil, err
	}
	return t, nil
}

func revoke(t *OutstandingToken) {
	now := time.Now()
	t.RevokedAt = &now
}

func (f *fakeTokens) RevokeByID(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	revoke(f.tokens[id])
	return nil
}

func (f *fakeTokens) RevokeByFamilyID(_ context.Context, family string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.FamilyID == family && t.RevokedAt == nil {
			revoke(t)
		}
	}
	return nil
}

func (f *fakeTokens) RevokeAllForUser(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			revoke(t)
		}
	}
	return nil
}

func (f *fakeTokens) ListActive(_ context.Context, userID int64) ([]OutstandingToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []OutstandingToken
	for _, t := range f.tokens {
		if t.UserID == userID && t.State(time.Now()) == TokenActive {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTokens) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, t := range f.tokens {
		if t.ExpiresAt.Before(before) {
			delete(f.tokens, id)
			n++
		}
	}
	return n, nil
}

type fakeUsers struct {
	mu     sync.Mutex
	users  map[int64]*UserInfo
	nextID int64
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByUsername(_ context.Context, name string) (*UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == name {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
}

func (f *fakeUsers) Register(_ context.Context, username, email, hash string) (*UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username || u.Email == email {
			return nil, fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
	}
	f.nextID++
	u := &UserInfo{ID: f.nextID, Username: username, Email: email, PasswordHash: hash, Role: "client"}
	f.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) Activate(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id].IsActive = true
	return nil
}

func (f *fakeUsers) IncrementTokenVersion(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id].TokenVersion++
	return nil
}

type memBlacklist struct {
	mu   sync.Mutex
	jtis map[string]bool
}

func (b *memBlacklist) Add(_ context.Context, jti string, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jtis[jti] = true
	return nil
}

func (b *memBlacklist) Contains(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.jtis[jti], nil
}

type fixture struct {
	svc    *Service
	tokens *fakeTokens
	users  *fakeUsers
	cache  *cache.Memory
	outbox *mail.Outbox
	jwt    *JWTManager
}

const testPassword = "correct-horse-battery"

func newFixture(t *testing.T) *fixture {
	t.Helper()

	jwtMgr, err := NewJWTManager(testJWTConfig())
	require.NoError(t, err)

	hash, err := core.HashPassword(testPassword)
	require.NoError(t, err)

	users := &fakeUsers{
		users: map[int64]*UserInfo{
			1: {ID: 1, Username: "alice", Email: "alice@example.com", PasswordHash: hash, Role: "client", IsActive: true},
			2: {ID: 2, Username: "sleepy", Email: "sleepy@example.com", PasswordHash: hash, Role: "client"},
		},
		nextID: 2,
	}

	c, err := cache.NewMemory(64)
	require.NoError(t, err)
	sessStore, err := cache.NewMemory(64)
	require.NoError(t, err)

	f := &fixture{
		tokens: newFakeTokens(),
		users:  users,
		cache:  c,
		outbox: &mail.Outbox{},
		jwt:    jwtMgr,
	}
	f.svc = NewService(Deps{
		Repo:      f.tokens,
		JWT:       jwtMgr,
		Users:     users,
		Blacklist: &memBlacklist{jtis: map[string]bool{}},
		Sessions:  session.NewManager(sessStore, config.SessionConfig{CookieName: "sessionid", TTL: time.Hour}, false),
		Cache:     c,
		Mailer:    f.outbox,
	}, config.AuthConfig{ActivationTimeout: 72 * time.Hour}, "http://localhost:8080/")

	return f
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:             strings.Repeat("s", 40),
		AccessTokenExpire:  time.Hour,
		RefreshTokenExpire: 24 * time.Hour,
		Issuer:             "homeser",
		Audience:           "homeser-api",
	}
}

func TestLoginAndVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Login(ctx, LoginRequest{Username: "alice", Password: testPassword}, "ua", "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.Tokens.TokenType)
	assert.Equal(t, int64(1), resp.User.ID)

	claims, err := f.svc.VerifyAccessToken(ctx, resp.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(1), claims.UserID)
	assert.Equal(t, "client", claims.Role)
	assert.NotEmpty(t, claims.JTI)
}

func TestLoginFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, LoginRequest{Username: "alice", Password: "wrong-password"}, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, LoginRequest{Username: "nobody", Password: testPassword}, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, LoginRequest{Username: "sleepy", Password: testPassword}, "", "")
	assert.ErrorIs(t, err, core.ErrAccountInactive)
}

func TestLogoutRevokesEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Login(ctx, LoginRequest{Username: "alice", Password: testPassword}, "", "")
	require.NoError(t, err)
	second, err := f.svc.Login(ctx, LoginRequest{Username: "alice", Password: testPassword}, "", "")
	require.NoError(t, err)

	require.NoError(t, f.cache.Set(ctx, cache.CartKey(1), []byte(`{}`), time.Minute))
	require.NoError(t, f.cache.Set(ctx, cache.WebOrderListKey(1), []byte(`[]`), time.Minute))

	presented, err := f.svc.VerifyAccessToken(ctx, first.Tokens.AccessToken)
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(ctx, 1, presented))

	_, err = f.svc.VerifyAccessToken(ctx, first.Tokens.AccessToken)
	assert.ErrorIs(t, err, core.ErrTokenRevoked)
	_, err = f.svc.VerifyAccessToken(ctx, second.Tokens.AccessToken)
	assert.ErrorIs(t, err, core.ErrTokenRevoked)

	_, err = f.svc.Refresh(ctx, second.Tokens.RefreshToken, "", "")
	assert.ErrorIs(t, err, core.ErrTokenRevoked)

	_, err = f.cache.Get(ctx, cache.CartKey(1))
	assert.ErrorIs(t, err, cache.ErrMiss)
	_, err = f.cache.Get(ctx, cache.WebOrderListKey(1))
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestRefreshRotationAndReuse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	login, err := f.svc.Login(ctx, LoginRequest{Username: "alice", Password: testPassword}, "", "")
	require.NoError(t, err)

	rotated, err := f.svc.Refresh(ctx, login.Tokens.RefreshToken, "", "")
	require.NoError(t, err)
	assert.NotEqual(t, login.Tokens.RefreshToken, rotated.Tokens.RefreshToken)

	_, err = f.svc.Refresh(ctx, login.Tokens.RefreshToken, "", "")
	assert.ErrorIs(t, err, ErrTokenReuse)

	_, err = f.svc.Refresh(ctx, rotated.Tokens.RefreshToken, "", "")
	assert.ErrorIs(t, err, core.ErrTokenRevoked)
}

func TestConcurrentRefreshCountsAsReuse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	login, err := f.svc.Login(ctx, LoginRequest{Username: "alice", Password: testPassword}, "", "")
	require.NoError(t, err)

	f.svc.repo = racingTokens{f.tokens}
	f.svc.tx = func(ctx context.Context, fn func(Repository) error) error {
		return fn(f.svc.repo)
	}

	resp, err := f.svc.Refresh(ctx, login.Tokens.RefreshToken, "", "")
	assert.ErrorIs(t, err, ErrTokenReuse)
	assert.Nil(t, resp)

	active, err := f.tokens.ListActive(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	f := newFixture(t)
	login, err := f.svc.Login(context.Background(), LoginRequest{Username: "alice", Password: testPassword}, "", "")
	require.NoError(t, err)

	_, err = f.svc.Refresh(context.Background(), login.Tokens.AccessToken, "", "")
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func activationParts(t *testing.T, link string) (string, string) {
	t.Helper()
	_, rest, ok := strings.Cut(link, "/activate/")
	require.True(t, ok, link)
	parts := strings.Split(strings.TrimSuffix(rest, "/"), "/")
	require.Len(t, parts, 2)
	return parts[0], parts[1]
}

func TestRegisterAndActivate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, RegisterRequest{Username: "bob", Email: "bob@example.com", Password: testPassword})
	require.NoError(t, err)
	assert.False(t, user.IsActive)

	msg, ok := f.outbox.Last()
	require.True(t, ok)
	assert.Equal(t, []string{"bob@example.com"}, msg.To)

	var link string
	for _, line := range strings.Split(msg.Body, "\n") {
		if strings.Contains(line, "/activate/") {
			link = strings.TrimSpace(line)
		}
	}
	require.True(t, strings.HasPrefix(link, "http://localhost:8080/activate/"), link)

	uid, token := activationParts(t, link)
	activated, err := f.svc.Activate(ctx, uid, token)
	require.NoError(t, err)
	assert.True(t, activated.IsActive)

	_, err = f.svc.Activate(ctx, uid, token)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestActivationRejectsChangedEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	link, err := f.svc.ActivationLink(f.users.users[2], time.Now())
	require.NoError(t, err)
	uid, token := activationParts(t, link)

	f.users.users[2].Email = "new@example.com"

	_, err = f.svc.Activate(ctx, uid, token)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestActivationExpires(t *testing.T) {
	f := newFixture(t)

	link, err := f.svc.ActivationLink(f.users.users[2], time.Now().Add(-73*time.Hour))
	require.NoError(t, err)
	uid, token := activationParts(t, link)

	_, err = f.svc.Activate(context.Background(), uid, token)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestActivationUIDMismatch(t *testing.T) {
	f := newFixture(t)

	link, err := f.svc.ActivationLink(f.users.users[2], time.Now())
	require.NoError(t, err)
	_, token := activationParts(t, link)

	_, err = f.svc.Activate(context.Background(), EncodeUID(1), token)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestRegisterDuplicate(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Register(context.Background(), RegisterRequest{Username: "alice", Email: "x@example.com", Password: testPassword})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestResolveSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.svc.sessions.Load(ctx, httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	_, err = f.svc.sessions.Login(ctx, rec, s, 1)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}

	actor, ok := f.svc.ResolveSession(ctx, req)
	require.True(t, ok)
	assert.Equal(t, int64(1), actor.UserID)

	_, ok = f.svc.ResolveSession(ctx, httptest.NewRequest("GET", "/", nil))
	assert.False(t, ok)
}

func TestTokenState(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)

	tests := []struct {
		name  string
		token OutstandingToken
		want  TokenState
	}{
		{"active", OutstandingToken{ExpiresAt: now.Add(time.Hour)}, TokenActive},
		{"expired", OutstandingToken{ExpiresAt: past}, TokenExpired},
		{"revoked", OutstandingToken{ExpiresAt: now.Add(time.Hour), RevokedAt: &past}, TokenRevoked},
		{"rotated beats revoked", OutstandingToken{ExpiresAt: past, IsUsed: true, RevokedAt: &past}, TokenRotated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.token.State(now))
		})
	}
}

func TestFlushExpiredTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.tokens.tokens["old"] = &OutstandingToken{ID: "old", UserID: 1, ExpiresAt: time.Now().Add(-48 * time.Hour)}
	f.tokens.tokens["recent"] = &OutstandingToken{ID: "recent", UserID: 1, ExpiresAt: time.Now().Add(-time.Hour)}
	f.tokens.tokens["live"] = &OutstandingToken{ID: "live", UserID: 1, ExpiresAt: time.Now().Add(time.Hour)}

	n, err := f.svc.FlushExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NotContains(t, f.tokens.tokens, "old")
	assert.Contains(t, f.tokens.tokens, "recent")
	assert.Contains(t, f.tokens.tokens, "live")
}
