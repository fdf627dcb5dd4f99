// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/carterperez-dev/homeser/internal/auth"
	"github.com/carterperez-dev/homeser/internal/cache"
	"github.com/carterperez-dev/homeser/internal/core"
	"github.com/carterperez-dev/homeser/internal/policy"
)

type Service struct {
	repo  Repository
	cache cache.Cache
	ttl   time.Duration
}

func NewService(repo Repository, c cache.Cache, ttl time.Duration) *Service {
	return &Service{repo: repo, cache: c, ttl: ttl}
}

// CreateUser creates an active client account.
func (s *Service) CreateUser(
	ctx context.Context,
	username, email, password string,
) (*User, error) {
	return s.create(ctx, username, email, password, RoleClient, true)
}

// CreateSuperuser creates an active admin with staff and superuser flags.
func (s *Service) CreateSuperuser(
	ctx context.Context,
	username, email, password string,
) (*User, error) {
	return s.create(ctx, username, email, password, RoleAdmin, true)
}

func (s *Service) create(
	ctx context.Context,
	username, email, password, role string,
	active bool,
) (*User, error) {
	hash, err := core.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	elevated := role == RoleAdmin
	user := &User{
		Username:     username,
		Email:        strings.ToLower(email),
		PasswordHash: hash,
		Role:         role,
		IsActive:     active,
		IsStaff:      elevated,
		IsSuperuser:  elevated,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Service) List(ctx context.Context, actor policy.Actor) ([]User, error) {
	return cache.Fetch(ctx, s.cache, cache.EntityUsers,
		cache.UserListKey(actor.UserID), s.ttl,
		func(ctx context.Context) ([]User, error) {
			return s.repo.List(ctx, policy.Scope(actor, policy.Users))
		},
	)
}

func (s *Service) Get(
	ctx context.Context,
	actor policy.Actor,
	id int64,
) (*User, error) {
	return s.repo.Get(ctx, id, policy.Scope(actor, policy.Users))
}

// Create is the admin API path. Accounts created here are active.
func (s *Service) Create(
	ctx context.Context,
	actor policy.Actor,
	req CreateUserRequest,
) (*User, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("create user: %w", core.ErrForbidden)
	}

	role := req.Role
	if role == "" {
		role = RoleClient
	}

	user, err := s.create(ctx, req.Username, req.Email, req.Password, role, true)
	if err != nil {
		return nil, err
	}

	cache.Invalidate(ctx, s.cache, cache.UserListKey(actor.UserID))
	return user, nil
}

func (s *Service) Update(
	ctx context.Context,
	actor policy.Actor,
	id int64,
	req UpdateUserRequest,
) (*User, error) {
	user, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if req.Role != nil && *req.Role != user.Role && !actor.IsAdmin() {
		return nil, fmt.Errorf("change role: %w", core.ErrForbidden)
	}

	if req.Username != nil {
		user.Username = *req.Username
	}
	if req.Email != nil {
		user.Email = strings.ToLower(*req.Email)
	}
	roleChanged := req.Role != nil && *req.Role != user.Role
	if req.Role != nil {
		user.Role = *req.Role
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	if req.Password != nil {
		hash, err := core.HashPassword(*req.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		if err := s.repo.UpdatePassword(ctx, user.ID, hash); err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	cache.Invalidate(ctx, s.cache,
		cache.UserListKey(actor.UserID),
		cache.UserListKey(user.ID),
	)
	if roleChanged {
		cache.Invalidate(ctx, s.cache, cache.ScopedListKeys(user.ID)...)
	}
	return user, nil
}

func (s *Service) Delete(ctx context.Context, actor policy.Actor, id int64) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("delete user: %w", core.ErrForbidden)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	cache.Invalidate(ctx, s.cache,
		cache.UserListKey(actor.UserID),
		cache.UserListKey(id),
	)
	return nil
}

// Promote makes the target user an admin.
func (s *Service) Promote(
	ctx context.Context,
	actor policy.Actor,
	id int64,
) (*User, error) {
	if !actor.IsAdmin() {
		return nil, core.ForbiddenError("")
	}

	target, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if target.ID == actor.UserID {
		return nil, core.BadRequestError("You cannot promote yourself.")
	}
	if target.IsAdmin() {
		return nil, core.BadRequestError("User is already an admin.")
	}

	target.Role = RoleAdmin
	if err := s.repo.Update(ctx, target); err != nil {
		return nil, err
	}

	cache.Invalidate(ctx, s.cache, cache.UserListKey(actor.UserID))
	cache.Invalidate(ctx, s.cache, cache.ScopedListKeys(target.ID)...)
	return target, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*auth.UserInfo, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) GetByUsername(
	ctx context.Context,
	username string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

// Register creates an inactive client account awaiting email activation.
func (s *Service) Register(
	ctx context.Context,
	username, email, passwordHash string,
) (*auth.UserInfo, error) {
	user := &User{
		Username:     username,
		Email:        strings.ToLower(email),
		PasswordHash: passwordHash,
		Role:         RoleClient,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) Activate(ctx context.Context, id int64) error {
	return s.repo.SetActive(ctx, id, true)
}

func (s *Service) IncrementTokenVersion(ctx context.Context, id int64) error {
	return s.repo.IncrementTokenVersion(ctx, id)
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		IsActive:     u.IsActive,
		TokenVersion: u.TokenVersion,
	}
}

var _ auth.UserProvider = (*Service)(nil)
