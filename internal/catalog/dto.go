// AngelaMos | 2026
// dto.go

package catalog

import (
	"github.com/shopspring/decimal"
)

type CreateServiceRequest struct {
	Name        string           `json:"name"        validate:"required,min=1,max=255"`
	Description string           `json:"description" validate:"max=10000"`
	Price       *decimal.Decimal `json:"price"       validate:"required"`
}

type ReplaceServiceRequest = CreateServiceRequest

type UpdateServiceRequest struct {
	Name        *string          `json:"name,omitempty"        validate:"omitempty,min=1,max=255"`
	Description *string          `json:"description,omitempty" validate:"omitempty,max=10000"`
	Price       *decimal.Decimal `json:"price,omitempty"`
}

type ServiceResponse struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Price         string  `json:"price"`
	AverageRating float64 `json:"average_rating"`
}

func ToServiceResponse(s *Service) ServiceResponse {
	return ServiceResponse{
		ID:            s.ID,
		Name:          s.Name,
		Description:   s.Description,
		Price:         s.Price.StringFixed(2),
		AverageRating: s.AverageRating,
	}
}

func ToServiceResponseList(services []Service) []ServiceResponse {
	out := make([]ServiceResponse, 0, len(services))
	for i := range services {
		out = append(out, ToServiceResponse(&services[i]))
	}
	return out
}

type RefreshRatingsResponse struct {
	Status  string `json:"status"`
	Updated int64  `json:"updated"`
}
