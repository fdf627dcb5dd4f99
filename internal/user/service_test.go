// AngelaMos | 2026
// service_test.go

package user

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/homeser/internal/cache"
	"github.com/carterperez-dev/homeser/internal/core"
	"github.com/carterperez-dev/homeser/internal/policy"
)

type memRepo struct {
	users  map[int64]*User
	nextID int64
}

func newMemRepo(users ...User) *memRepo {
	r := &memRepo{users: map[int64]*User{}}
	for i := range users {
		u := users[i]
		r.users[u.ID] = &u
		r.nextID = max(r.nextID, u.ID)
	}
	return r
}

func (r *memRepo) Create(_ context.Context, u *User) error {
	for _, existing := range r.users {
		if existing.Username == u.Username {
			return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
	}
	r.nextID++
	u.ID = r.nextID
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.Get(ctx, id, policy.All())
}

func (r *memRepo) GetByUsername(_ context.Context, name string) (*User, error) {
	for _, u := range r.users {
		if u.Username == name {
			cp := *u
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (r *memRepo) Get(_ context.Context, id int64, scope policy.Filter) (*User, error) {
	u, ok := r.users[id]
	if !ok || !scope.Allows(id) {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (r *memRepo) List(_ context.Context, scope policy.Filter) ([]User, error) {
	var out []User
	for id := int64(1); id <= r.nextID; id++ {
		if u, ok := r.users[id]; ok && scope.Allows(id) {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *memRepo) Update(_ context.Context, u *User) error {
	if _, ok := r.users[u.ID]; !ok {
		return core.ErrNotFound
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memRepo) UpdatePassword(_ context.Context, id int64, hash string) error {
	r.users[id].PasswordHash = hash
	return nil
}

func (r *memRepo) SetActive(_ context.Context, id int64, active bool) error {
	r.users[id].IsActive = active
	return nil
}

func (r *memRepo) IncrementTokenVersion(_ context.Context, id int64) error {
	r.users[id].TokenVersion++
	return nil
}

func (r *memRepo) Delete(_ context.Context, id int64) error {
	delete(r.users, id)
	return nil
}

var (
	admin  = User{ID: 1, Username: "root", Role: RoleAdmin, IsActive: true}
	admin2 = User{ID: 2, Username: "ops", Role: RoleAdmin, IsActive: true}
	alice  = User{ID: 3, Username: "alice", Role: RoleClient, IsActive: true}
	bob    = User{ID: 4, Username: "bob", Role: RoleClient, IsActive: true}
)

func newTestService(t *testing.T) (*Service, *memRepo, *cache.Memory) {
	t.Helper()
	store, err := cache.NewMemory(64)
	require.NoError(t, err)
	repo := newMemRepo(admin, admin2, alice, bob)
	return NewService(repo, store, time.Minute), repo, store
}

func TestCreateUserFlags(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, "carol", "Carol@Example.com", "password123")
	require.NoError(t, err)
	assert.True(t, u.IsActive)
	assert.False(t, u.IsStaff)
	assert.False(t, u.IsSuperuser)
	assert.Equal(t, RoleClient, u.Role)
	assert.Equal(t, "carol@example.com", u.Email)
	assert.NotEqual(t, "password123", u.PasswordHash)

	su, err := svc.CreateSuperuser(ctx, "dave", "dave@example.com", "password123")
	require.NoError(t, err)
	assert.True(t, su.IsActive)
	assert.True(t, su.IsStaff)
	assert.True(t, su.IsSuperuser)
	assert.Equal(t, RoleAdmin, su.Role)
}

func TestRegisterIsInactive(t *testing.T) {
	svc, repo, _ := newTestService(t)

	info, err := svc.Register(context.Background(), "erin", "erin@example.com", "hash")
	require.NoError(t, err)
	assert.False(t, info.IsActive)

	require.NoError(t, svc.Activate(context.Background(), info.ID))
	assert.True(t, repo.users[info.ID].IsActive)
}

func TestPromote(t *testing.T) {
	tests := []struct {
		name     string
		actor    User
		target   int64
		wantCode int
		wantMsg  string
	}{
		{"client forbidden", alice, bob.ID, 403, ""},
		{"self promotion", admin, admin.ID, 400, "You cannot promote yourself."},
		{"already admin", admin, admin2.ID, 400, "User is already an admin."},
		{"unknown user", admin, 99, 404, ""},
		{"promotes client", admin, alice.ID, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := newTestService(t)

			_, err := svc.Promote(context.Background(), tt.actor.Actor(), tt.target)

			switch tt.wantCode {
			case 0:
				require.NoError(t, err)
				assert.Equal(t, RoleAdmin, repo.users[tt.target].Role)
			case 404:
				assert.ErrorIs(t, err, core.ErrNotFound)
			default:
				appErr, ok := core.AsAppError(err)
				require.True(t, ok)
				assert.Equal(t, tt.wantCode, appErr.StatusCode)
				if tt.wantMsg != "" {
					assert.Equal(t, tt.wantMsg, appErr.Message)
				}
			}
		})
	}
}

func TestPromoteInvalidatesAdminList(t *testing.T) {
	svc, _, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.List(ctx, admin.Actor())
	require.NoError(t, err)
	_, err = store.Get(ctx, cache.UserListKey(admin.ID))
	require.NoError(t, err)

	_, err = svc.Promote(ctx, admin.Actor(), alice.ID)
	require.NoError(t, err)

	_, err = store.Get(ctx, cache.UserListKey(admin.ID))
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestPromoteDropsTargetScopedLists(t *testing.T) {
	svc, _, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.List(ctx, alice.Actor())
	require.NoError(t, err)
	_, err = store.Get(ctx, cache.UserListKey(alice.ID))
	require.NoError(t, err)

	_, err = svc.Promote(ctx, admin.Actor(), alice.ID)
	require.NoError(t, err)

	_, err = store.Get(ctx, cache.UserListKey(alice.ID))
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestListIsScoped(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	all, err := svc.List(ctx, admin.Actor())
	require.NoError(t, err)
	assert.Len(t, all, 4)

	own, err := svc.List(ctx, alice.Actor())
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, alice.ID, own[0].ID)

	_, err = svc.Get(ctx, alice.Actor(), bob.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestClientCannotChangeOwnRole(t *testing.T) {
	svc, _, _ := newTestService(t)
	role := RoleAdmin

	_, err := svc.Update(context.Background(), alice.Actor(), alice.ID, UpdateUserRequest{Role: &role})
	assert.ErrorIs(t, err, core.ErrForbidden)

	name := "alice2"
	u, err := svc.Update(context.Background(), alice.Actor(), alice.ID, UpdateUserRequest{Username: &name})
	require.NoError(t, err)
	assert.Equal(t, "alice2", u.Username)
}

func TestDemotionDropsRoleScopedLists(t *testing.T) {
	svc, repo, store := newTestService(t)
	ctx := context.Background()

	all, err := svc.List(ctx, admin2.Actor())
	require.NoError(t, err)
	require.Len(t, all, 4)
	for _, key := range cache.ScopedListKeys(admin2.ID) {
		require.NoError(t, store.Set(ctx, key, []byte(`[]`), time.Minute))
	}

	role := RoleClient
	_, err = svc.Update(ctx, admin.Actor(), admin2.ID, UpdateUserRequest{Role: &role})
	require.NoError(t, err)

	for _, key := range cache.ScopedListKeys(admin2.ID) {
		_, err := store.Get(ctx, key)
		assert.ErrorIs(t, err, cache.ErrMiss, key)
	}

	own, err := svc.List(ctx, repo.users[admin2.ID].Actor())
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, admin2.ID, own[0].ID)
}

func TestRenameKeepsScopedLists(t *testing.T) {
	svc, _, store := newTestService(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, cache.OrderListKey(alice.ID), []byte(`[]`), time.Minute))

	name := "alice2"
	_, err := svc.Update(ctx, alice.Actor(), alice.ID, UpdateUserRequest{Username: &name})
	require.NoError(t, err)

	_, err = store.Get(ctx, cache.OrderListKey(alice.ID))
	assert.NoError(t, err)
}

func TestDeleteRequiresAdmin(t *testing.T) {
	svc, repo, _ := newTestService(t)

	err := svc.Delete(context.Background(), alice.Actor(), bob.ID)
	assert.ErrorIs(t, err, core.ErrForbidden)

	require.NoError(t, svc.Delete(context.Background(), admin.Actor(), bob.ID))
	assert.NotContains(t, repo.users, bob.ID)
}
