// AngelaMos | 2026
// dto.go

package order

import (
	"time"
)

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,max=20"`
}

type ItemResponse struct {
	ID           int64  `json:"id"`
	ServiceID    int64  `json:"service"`
	ServiceName  string `json:"service_name"`
	ServicePrice string `json:"service_price"`
	Quantity     int    `json:"quantity"`
}

type OrderResponse struct {
	ID         int64          `json:"id"`
	UserID     int64          `json:"user"`
	Status     string         `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	Items      []ItemResponse `json:"items"`
	TotalPrice string         `json:"total_price"`
	ItemCount  int            `json:"item_count"`
}

func ToOrderResponse(o *Order) OrderResponse {
	items := make([]ItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemResponse{
			ID:           it.ID,
			ServiceID:    it.ServiceID,
			ServiceName:  it.ServiceName,
			ServicePrice: it.ServicePrice.StringFixed(2),
			Quantity:     it.Quantity,
		})
	}

	return OrderResponse{
		ID:         o.ID,
		UserID:     o.UserID,
		Status:     o.Status,
		CreatedAt:  o.CreatedAt,
		Items:      items,
		TotalPrice: o.TotalPrice.StringFixed(2),
		ItemCount:  o.ItemCount,
	}
}

func ToOrderResponseList(orders []Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, ToOrderResponse(&orders[i]))
	}
	return out
}
