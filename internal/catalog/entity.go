// AngelaMos | 2026
// entity.go

package catalog

import (
	"github.com/shopspring/decimal"
)

// Service is a bookable household service. AverageRating is only written
// by the rating refresh batch.
type Service struct {
	ID            int64           `db:"id"             json:"id"`
	Name          string          `db:"name"           json:"name"`
	Description   string          `db:"description"    json:"description"`
	Price         decimal.Decimal `db:"price"          json:"price"`
	AverageRating float64         `db:"average_rating" json:"average_rating"`
}

const (
	SortDefault = ""
	SortRating  = "rating"
)

type ListParams struct {
	Search string
	Sort   string
}

// Normalize drops sort values other than rating.
func (p *ListParams) Normalize() {
	if p.Sort != SortRating {
		p.Sort = SortDefault
	}
}
