// AngelaMos | 2026
// service.go

package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/homeser/internal/cache"
	"github.com/carterperez-dev/homeser/internal/core"
	"github.com/carterperez-dev/homeser/internal/metrics"
	"github.com/carterperez-dev/homeser/internal/order"
	"github.com/carterperez-dev/homeser/internal/policy"
)

var (
	ErrEmptyCart  = errors.New("cart is empty")
	ErrNotInCart  = errors.New("service not in cart")
	errNoSuchCart = core.NotFoundError("cart")
)

// Store is a database handle that can also open transactions.
type Store interface {
	core.DBTX
	core.TxBeginner
}

// ServiceLookup is the slice of the catalog the cart needs.
type ServiceLookup interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// Notifier is told about orders after checkout commits.
type Notifier interface {
	OrderPlaced(ctx context.Context, userID, orderID int64) error
}

type Service struct {
	db       Store
	repo     Repository
	services ServiceLookup
	notifier Notifier
	cache    cache.Cache
	ttl      time.Duration
}

func NewService(
	db Store,
	services ServiceLookup,
	notifier Notifier,
	c cache.Cache,
	ttl time.Duration,
) *Service {
	return &Service{
		db:       db,
		repo:     NewRepository(db),
		services: services,
		notifier: notifier,
		cache:    c,
		ttl:      ttl,
	}
}

// List returns the caller's carts. Carts are personal, so admins get their
// own too.
func (s *Service) List(ctx context.Context, userID int64) ([]Cart, error) {
	return cache.Fetch(ctx, s.cache, cache.EntityCart, cache.CartKey(userID), s.ttl,
		func(ctx context.Context) ([]Cart, error) {
			return s.repo.List(ctx, policy.Owned(userID))
		},
	)
}

func (s *Service) Get(ctx context.Context, userID, id int64) (*Cart, error) {
	return s.repo.Get(ctx, id, policy.Owned(userID))
}

// ForWeb returns the user's cart for the cart page, creating it on first
// visit.
func (s *Service) ForWeb(ctx context.Context, userID int64) (*Cart, error) {
	return cache.Fetch(ctx, s.cache, cache.EntityCart, cache.WebCartKey(userID), s.ttl,
		func(ctx context.Context) (*Cart, error) {
			id, err := s.repo.GetOrCreate(ctx, userID)
			if err != nil {
				return nil, err
			}
			return s.repo.Get(ctx, id, policy.Owned(userID))
		},
	)
}

// Add puts one unit of a service in the user's cart. The get-or-create and
// the increment share a transaction.
func (s *Service) Add(ctx context.Context, userID, serviceID int64) error {
	if err := s.requireService(ctx, serviceID); err != nil {
		return err
	}

	err := core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repo := NewRepository(tx)
		cartID, err := repo.GetOrCreate(ctx, userID)
		if err != nil {
			return err
		}
		return repo.AddItem(ctx, cartID, serviceID)
	})
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.NotFoundError("service")
		}
		return err
	}

	s.invalidateCart(ctx, userID)
	return nil
}

func (s *Service) Remove(ctx context.Context, userID, serviceID int64) error {
	cartID, err := s.repo.IDForUser(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return errNoSuchCart
	}
	if err != nil {
		return err
	}

	if err := s.requireService(ctx, serviceID); err != nil {
		return err
	}

	removed, err := s.repo.RemoveItem(ctx, cartID, serviceID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("remove service %d: %w", serviceID, ErrNotInCart)
	}

	s.invalidateCart(ctx, userID)
	return nil
}

// Checkout moves every cart item into a new order and empties the cart in
// one transaction. The confirmation email is queued after commit.
func (s *Service) Checkout(ctx context.Context, userID int64) (int64, error) {
	ctx, span := core.StartSpan(ctx, "cart.checkout", attribute.Int64("user.id", userID))
	defer span.End()

	cartID, err := s.repo.IDForUser(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		metrics.CheckoutsTotal.WithLabelValues("no_cart").Inc()
		return 0, errNoSuchCart
	}
	if err != nil {
		return 0, err
	}

	var orderID int64
	err = core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		carts := NewRepository(tx)
		orders := order.NewRepository(tx)

		items, err := carts.Items(ctx, cartID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrEmptyCart
		}

		o, err := orders.Create(ctx, userID)
		if err != nil {
			return err
		}

		lines := make([]order.LineItem, 0, len(items))
		for _, it := range items {
			lines = append(lines, order.LineItem{ServiceID: it.ServiceID, Quantity: it.Quantity})
		}
		if err := orders.AddItems(ctx, o.ID, lines); err != nil {
			return err
		}

		if _, err := carts.ClearItems(ctx, cartID); err != nil {
			return err
		}

		orderID = o.ID
		return nil
	})
	switch {
	case errors.Is(err, ErrEmptyCart):
		metrics.CheckoutsTotal.WithLabelValues("empty").Inc()
		return 0, err
	case err != nil:
		metrics.CheckoutsTotal.WithLabelValues("failed").Inc()
		core.SetSpanError(ctx, err)
		return 0, err
	}

	metrics.CheckoutsTotal.WithLabelValues("created").Inc()
	span.SetAttributes(attribute.Int64("order.id", orderID))

	cache.Invalidate(ctx, s.cache, cache.SessionUserKeys(userID)...)

	if s.notifier != nil {
		if err := s.notifier.OrderPlaced(ctx, userID, orderID); err != nil {
			slog.WarnContext(ctx, "order confirmation not queued",
				"order_id", orderID,
				"error", err,
			)
		}
	}

	slog.InfoContext(ctx, "order created", "order_id", orderID, "user_id", userID)
	return orderID, nil
}

func (s *Service) requireService(ctx context.Context, serviceID int64) error {
	ok, err := s.services.Exists(ctx, serviceID)
	if err != nil {
		return err
	}
	if !ok {
		return core.NotFoundError("service")
	}
	return nil
}

func (s *Service) invalidateCart(ctx context.Context, userID int64) {
	cache.Invalidate(ctx, s.cache, cache.CartKey(userID), cache.WebCartKey(userID))
}
