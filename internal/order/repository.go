// AngelaMos | 2026
// repository.go

package order

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
	Create(ctx context.Context, userID int64) (*Order, error)
	AddItems(ctx context.Context, orderID int64, items []LineItem) error
	List(ctx context.Context, scope policy.Filter) ([]Order, error)
	Get(ctx context.Context, id int64, scope policy.Filter) (*Order, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	HasCompletedOrder(ctx context.Context, userID, serviceID int64) (bool, error)
}

type repository struct {
	db core.DBTX
}

// NewRepository accepts a *sqlx.DB or a *sqlx.Tx; checkout passes its
// transaction.
func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, userID int64) (*Order, error) {
	query := `
		INSERT INTO orders (user_id, status)
		VALUES ($1, $2)
		RETURNING id, user_id, status, created_at`

	o := &Order{}
	row := r.db.QueryRowxContext(ctx, query, userID, StatusPendingPayment)
	if err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.CreatedAt); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	return o, nil
}

// AddItems bulk-inserts items in one statement.
func (r *repository) AddItems(ctx context.Context, orderID int64, items []LineItem) error {
	if len(items) == 0 {
		return nil
	}

	values := make([]string, 0, len(items))
	args := make([]any, 0, len(items)*3)
	for i, it := range items {
		base := i * 3
		values = append(values, fmt.Sprintf("($%d, $%d, $%d)", base+1, base+2, base+3))
		args = append(args, orderID, it.ServiceID, it.Quantity)
	}

	query := `INSERT INTO order_items (order_id, service_id, quantity) VALUES ` +
		strings.Join(values, ", ")

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("add order items: %w", err)
	}

	return nil
}

const orderSummary = `
	SELECT o.id, o.user_id, o.status, o.created_at,
	       COALESCE(SUM(s.price * oi.quantity), 0) AS total_price,
	       COALESCE(SUM(oi.quantity), 0) AS item_count
	FROM orders o
	LEFT JOIN order_items oi ON oi.order_id = o.id
	LEFT JOIN services s ON s.id = oi.service_id`

func (r *repository) List(ctx context.Context, scope policy.Filter) ([]Order, error) {
	query := orderSummary

	clause, args := scope.Clause("o", 1)
	if clause != "" {
		query += " WHERE " + clause
	}
	query += " GROUP BY o.id ORDER BY o.created_at DESC, o.id DESC"

	orders := []Order{}
	if err := r.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *repository) Get(ctx context.Context, id int64, scope policy.Filter) (*Order, error) {
	conditions := []string{"o.id = $1"}
	args := []any{id}

	if clause, scopeArgs := scope.Clause("o", 2); clause != "" {
		conditions = append(conditions, clause)
		args = append(args, scopeArgs...)
	}

	query := orderSummary + " WHERE " + strings.Join(conditions, " AND ") + " GROUP BY o.id"

	var o Order
	err := r.db.GetContext(ctx, &o, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get order: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	orders := []Order{o}
	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}

	return &orders[0], nil
}

func (r *repository) loadItems(ctx context.Context, orders []Order) error {
	if len(orders) == 0 {
		return nil
	}

	placeholders := make([]string, len(orders))
	args := make([]any, len(orders))
	index := make(map[int64]int, len(orders))
	for i := range orders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = orders[i].ID
		index[orders[i].ID] = i
		orders[i].Items = []Item{}
	}

	query := `
		SELECT oi.id, oi.order_id, oi.service_id, oi.quantity,
		       s.name AS service_name, s.price AS service_price
		FROM order_items oi
		JOIN services s ON s.id = oi.service_id
		WHERE oi.order_id IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY oi.id`

	var items []Item
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return fmt.Errorf("load order items: %w", err)
	}

	for _, it := range items {
		if i, ok := index[it.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}

	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update order status: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) HasCompletedOrder(
	ctx context.Context,
	userID, serviceID int64,
) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1
			FROM orders o
			JOIN order_items oi ON oi.order_id = o.id
			WHERE o.user_id = $1 AND oi.service_id = $2 AND o.status = $3
		)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, userID, serviceID, StatusCompleted); err != nil {
		return false, fmt.Errorf("check completed order: %w", err)
	}

	return exists, nil
}
