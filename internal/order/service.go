// AngelaMos | 2026
// service.go

package order

import (
	"context"
	"fmt"
	"strings"
	"time"

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

func (s *Service) List(ctx context.Context, actor policy.Actor) ([]Order, error) {
	return cache.Fetch(ctx, s.cache, cache.EntityOrders, cache.OrderListKey(actor.UserID), s.ttl,
		func(ctx context.Context) ([]Order, error) {
			return s.repo.List(ctx, policy.Scope(actor, policy.Orders))
		},
	)
}

// ListForWeb returns the actor's own orders regardless of role; the orders
// page never shows other users' history.
func (s *Service) ListForWeb(ctx context.Context, userID int64) ([]Order, error) {
	return cache.Fetch(ctx, s.cache, cache.EntityOrders, cache.WebOrderListKey(userID), s.ttl,
		func(ctx context.Context) ([]Order, error) {
			return s.repo.List(ctx, policy.Owned(userID))
		},
	)
}

func (s *Service) Get(ctx context.Context, actor policy.Actor, id int64) (*Order, error) {
	return s.repo.Get(ctx, id, policy.Scope(actor, policy.Orders))
}

func (s *Service) UpdateStatus(
	ctx context.Context,
	actor policy.Actor,
	id int64,
	status string,
) (*Order, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("update order status: %w", core.ErrForbidden)
	}

	status = strings.ToUpper(strings.TrimSpace(status))
	if status == "" {
		return nil, core.BadRequestError("status is required")
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}

	o, err := s.repo.Get(ctx, id, policy.All())
	if err != nil {
		return nil, err
	}

	cache.Invalidate(ctx, s.cache,
		cache.OrderListKey(o.UserID),
		cache.WebOrderListKey(o.UserID),
		cache.OrderListKey(actor.UserID),
	)
	return o, nil
}

// HasCompletedOrder gates review creation.
func (s *Service) HasCompletedOrder(ctx context.Context, userID, serviceID int64) (bool, error) {
	return s.repo.HasCompletedOrder(ctx, userID, serviceID)
}
