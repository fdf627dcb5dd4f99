// AngelaMos | 2026
// entity.go

package review

import (
	"time"
)

const (
	MinRating = 1
	MaxRating = 5
)

type Review struct {
	ID          int64     `db:"id"           json:"id"`
	UserID      int64     `db:"user_id"      json:"user_id"`
	Username    string    `db:"username"     json:"username"`
	ServiceID   int64     `db:"service_id"   json:"service_id"`
	ServiceName string    `db:"service_name" json:"service_name"`
	Rating      int       `db:"rating"       json:"rating"`
	Text        string    `db:"text"         json:"text"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
}
