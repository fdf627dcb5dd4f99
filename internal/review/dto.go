// AngelaMos | 2026
// dto.go

package review

import (
	"time"
)

type CreateReviewRequest struct {
	ServiceID int64  `json:"service" validate:"required,gt=0"`
	Rating    int    `json:"rating"  validate:"required,min=1,max=5"`
	Text      string `json:"text"    validate:"required,max=10000"`
}

// ReplaceReviewRequest is the PUT body. The service must stay the same.
type ReplaceReviewRequest = CreateReviewRequest

type UpdateReviewRequest struct {
	Rating *int    `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	Text   *string `json:"text,omitempty"   validate:"omitempty,min=1,max=10000"`
}

type ReviewResponse struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user"`
	UserUsername string    `json:"user_username"`
	ServiceID    int64     `json:"service"`
	ServiceName  string    `json:"service_name"`
	Rating       int       `json:"rating"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
}

func ToReviewResponse(r *Review) ReviewResponse {
	return ReviewResponse{
		ID:           r.ID,
		UserID:       r.UserID,
		UserUsername: r.Username,
		ServiceID:    r.ServiceID,
		ServiceName:  r.ServiceName,
		Rating:       r.Rating,
		Text:         r.Text,
		CreatedAt:    r.CreatedAt,
	}
}

func ToReviewResponseList(reviews []Review) []ReviewResponse {
	out := make([]ReviewResponse, 0, len(reviews))
	for i := range reviews {
		out = append(out, ToReviewResponse(&reviews[i]))
	}
	return out
}
