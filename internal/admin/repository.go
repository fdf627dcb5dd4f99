// AngelaMos | 2026
// repository.go

package admin

import (
	"context"
	"fmt"

	"github.com/carterperez-dev/homeser/internal/core"
	"github.com/carterperez-dev/homeser/internal/order"
)

type Repository interface {
	Overview(ctx context.Context) (*Overview, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

// Overview counts marketplace rows in one round trip. OrderValue prices
// every ordered line at the service's current price.
func (r *repository) Overview(ctx context.Context) (*Overview, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM users)                          AS users,
			(SELECT COUNT(*) FROM users WHERE is_active)          AS active_users,
			(SELECT COUNT(*) FROM services)                       AS services,
			(SELECT COUNT(*) FROM orders)                         AS orders,
			(SELECT COUNT(*) FROM orders WHERE status = $1)       AS pending_orders,
			(SELECT COUNT(*) FROM orders WHERE status = $2)       AS completed_orders,
			(SELECT COUNT(*) FROM reviews)                        AS reviews,
			(SELECT COALESCE(SUM(oi.quantity * s.price), 0)
			   FROM order_items oi
			   JOIN services s ON s.id = oi.service_id)           AS order_value`

	var o Overview
	err := r.db.GetContext(ctx, &o, query, order.StatusPendingPayment, order.StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("marketplace overview: %w", err)
	}

	return &o, nil
}
