// AngelaMos | 2026
// entity.go

package order

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPendingPayment = "PENDING_PAYMENT"
	StatusCompleted      = "COMPLETED"
)

// Order is created at checkout and its items never change afterwards.
// TotalPrice and ItemCount come from the list query's aggregate.
type Order struct {
	ID         int64           `db:"id"          json:"id"`
	UserID     int64           `db:"user_id"     json:"user_id"`
	Status     string          `db:"status"      json:"status"`
	CreatedAt  time.Time       `db:"created_at"  json:"created_at"`
	TotalPrice decimal.Decimal `db:"total_price" json:"total_price"`
	ItemCount  int             `db:"item_count"  json:"item_count"`
	Items      []Item          `db:"-"           json:"items"`
}

type Item struct {
	ID           int64           `db:"id"            json:"id"`
	OrderID      int64           `db:"order_id"      json:"order_id"`
	ServiceID    int64           `db:"service_id"    json:"service_id"`
	ServiceName  string          `db:"service_name"  json:"service_name"`
	ServicePrice decimal.Decimal `db:"service_price" json:"service_price"`
	Quantity     int             `db:"quantity"      json:"quantity"`
}

// LineItem is what checkout copies from a cart item.
type LineItem struct {
	ServiceID int64
	Quantity  int
}

// Totals sums price times quantity and quantity over the loaded items.
func (o *Order) Totals() (decimal.Decimal, int) {
	total := decimal.Zero
	count := 0
	for _, it := range o.Items {
		total = total.Add(it.ServicePrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
		count += it.Quantity
	}
	return total, count
}

func (o *Order) ServiceIDs() []int64 {
	ids := make([]int64, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.ServiceID)
	}
	return ids
}
