// AngelaMos | 2026
// entity.go

package cart

import (
	"github.com/shopspring/decimal"
)

// Cart is created lazily on the first add and is never deleted by users.
type Cart struct {
	ID         int64           `db:"id"          json:"id"`
	UserID     int64           `db:"user_id"     json:"user_id"`
	TotalPrice decimal.Decimal `db:"total_price" json:"total_price"`
	ItemCount  int             `db:"item_count"  json:"item_count"`
	Items      []Item          `db:"-"           json:"items"`
}

type Item struct {
	ID           int64           `db:"id"            json:"id"`
	CartID       int64           `db:"cart_id"       json:"cart_id"`
	ServiceID    int64           `db:"service_id"    json:"service_id"`
	ServiceName  string          `db:"service_name"  json:"service_name"`
	ServicePrice decimal.Decimal `db:"service_price" json:"service_price"`
	Quantity     int             `db:"quantity"      json:"quantity"`
}

func (c *Cart) Totals() (decimal.Decimal, int) {
	total := decimal.Zero
	count := 0
	for _, it := range c.Items {
		total = total.Add(it.ServicePrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
		count += it.Quantity
	}
	return total, count
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}
