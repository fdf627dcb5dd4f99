// AngelaMos | 2026
// dto.go

package cart

type ServiceRequest struct {
	ServiceID int64 `json:"service_id" validate:"required,gt=0"`
}

type CheckoutResponse struct {
	Status  string `json:"status"`
	OrderID int64  `json:"order_id"`
}

type ItemResponse struct {
	ID           int64  `json:"id"`
	ServiceID    int64  `json:"service"`
	ServiceName  string `json:"service_name"`
	ServicePrice string `json:"service_price"`
	Quantity     int    `json:"quantity"`
}

type CartResponse struct {
	ID         int64          `json:"id"`
	UserID     int64          `json:"user"`
	Services   []int64        `json:"services"`
	Items      []ItemResponse `json:"items"`
	TotalPrice string         `json:"total_price"`
	ItemCount  int            `json:"item_count"`
}

func ToCartResponse(c *Cart) CartResponse {
	services := make([]int64, 0, len(c.Items))
	items := make([]ItemResponse, 0, len(c.Items))
	for _, it := range c.Items {
		services = append(services, it.ServiceID)
		items = append(items, ItemResponse{
			ID:           it.ID,
			ServiceID:    it.ServiceID,
			ServiceName:  it.ServiceName,
			ServicePrice: it.ServicePrice.StringFixed(2),
			Quantity:     it.Quantity,
		})
	}

	return CartResponse{
		ID:         c.ID,
		UserID:     c.UserID,
		Services:   services,
		Items:      items,
		TotalPrice: c.TotalPrice.StringFixed(2),
		ItemCount:  c.ItemCount,
	}
}

func ToCartResponseList(carts []Cart) []CartResponse {
	out := make([]CartResponse, 0, len(carts))
	for i := range carts {
		out = append(out, ToCartResponse(&carts[i]))
	}
	return out
}
