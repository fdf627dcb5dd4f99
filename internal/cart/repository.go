// AngelaMos | 2026
// repository.go

package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/carterperez-dev/homeser/internal/core"
	"github.com/carterperez-dev/homeser/internal/policy"
)

type Repository interface {
	List(ctx context.Context, scope policy.Filter) ([]Cart, error)
	Get(ctx context.Context, id int64, scope policy.Filter) (*Cart, error)
	IDForUser(ctx context.Context, userID int64) (int64, error)
	GetOrCreate(ctx context.Context, userID int64) (int64, error)
	AddItem(ctx context.Context, cartID, serviceID int64) error
	RemoveItem(ctx context.Context, cartID, serviceID int64) (bool, error)
	Items(ctx context.Context, cartID int64) ([]Item, error)
	ClearItems(ctx context.Context, cartID int64) (int64, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const cartSummary = `
	SELECT c.id, c.user_id,
	       COALESCE(SUM(s.price * ci.quantity), 0) AS total_price,
	       COALESCE(SUM(ci.quantity), 0) AS item_count
	FROM carts c
	LEFT JOIN cart_items ci ON ci.cart_id = c.id
	LEFT JOIN services s ON s.id = ci.service_id`

const itemSelect = `
	SELECT ci.id, ci.cart_id, ci.service_id, ci.quantity,
	       s.name AS service_name, s.price AS service_price
	FROM cart_items ci
	JOIN services s ON s.id = ci.service_id`

func (r *repository) List(ctx context.Context, scope policy.Filter) ([]Cart, error) {
	query := cartSummary

	clause, args := scope.Clause("c", 1)
	if clause != "" {
		query += " WHERE " + clause
	}
	query += " GROUP BY c.id ORDER BY c.id"

	carts := []Cart{}
	if err := r.db.SelectContext(ctx, &carts, query, args...); err != nil {
		return nil, fmt.Errorf("list carts: %w", err)
	}

	for i := range carts {
		items, err := r.Items(ctx, carts[i].ID)
		if err != nil {
			return nil, err
		}
		carts[i].Items = items
	}

	return carts, nil
}

func (r *repository) Get(ctx context.Context, id int64, scope policy.Filter) (*Cart, error) {
	conditions := []string{"c.id = $1"}
	args := []any{id}

	if clause, scopeArgs := scope.Clause("c", 2); clause != "" {
		conditions = append(conditions, clause)
		args = append(args, scopeArgs...)
	}

	query := cartSummary + " WHERE " + strings.Join(conditions, " AND ") + " GROUP BY c.id"

	var c Cart
	err := r.db.GetContext(ctx, &c, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get cart: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	if c.Items, err = r.Items(ctx, c.ID); err != nil {
		return nil, err
	}

	return &c, nil
}

func (r *repository) IDForUser(ctx context.Context, userID int64) (int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, `SELECT id FROM carts WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("get cart id: %w", core.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("get cart id: %w", err)
	}
	return id, nil
}

// GetOrCreate relies on the unique user_id to stay race-free; the no-op
// update makes RETURNING yield the existing row.
func (r *repository) GetOrCreate(ctx context.Context, userID int64) (int64, error) {
	query := `
		INSERT INTO carts (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id`

	var id int64
	if err := r.db.GetContext(ctx, &id, query, userID); err != nil {
		return 0, fmt.Errorf("get or create cart: %w", err)
	}
	return id, nil
}

func (r *repository) AddItem(ctx context.Context, cartID, serviceID int64) error {
	query := `
		INSERT INTO cart_items (cart_id, service_id, quantity)
		VALUES ($1, $2, 1)
		ON CONFLICT (cart_id, service_id)
		DO UPDATE SET quantity = cart_items.quantity + 1`

	if _, err := r.db.ExecContext(ctx, query, cartID, serviceID); err != nil {
		if core.IsForeignKeyError(err) {
			return fmt.Errorf("add cart item: %w", core.ErrNotFound)
		}
		return fmt.Errorf("add cart item: %w", err)
	}
	return nil
}

func (r *repository) RemoveItem(ctx context.Context, cartID, serviceID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1 AND service_id = $2`, cartID, serviceID)
	if err != nil {
		return false, fmt.Errorf("remove cart item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove cart item: %w", err)
	}
	return rows > 0, nil
}

func (r *repository) Items(ctx context.Context, cartID int64) ([]Item, error) {
	items := []Item{}
	query := itemSelect + ` WHERE ci.cart_id = $1 ORDER BY ci.id`
	if err := r.db.SelectContext(ctx, &items, query, cartID); err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	return items, nil
}

func (r *repository) ClearItems(ctx context.Context, cartID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	if err != nil {
		return 0, fmt.Errorf("clear cart: %w", err)
	}
	return result.RowsAffected()
}
