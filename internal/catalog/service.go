// AngelaMos | 2026
// service.go

package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/homeser/internal/cache"
	"github.com/carterperez-dev/homeser/internal/core"
	"github.com/carterperez-dev/homeser/internal/metrics"
	"github.com/carterperez-dev/homeser/internal/policy"
)

// maxPrice is the largest value NUMERIC(10, 2) holds.
var maxPrice = decimal.RequireFromString("99999999.99")

// Catalog is the business layer over services.
type Catalog struct {
	repo  Repository
	cache cache.Cache
	ttl   time.Duration
}

func NewCatalog(repo Repository, c cache.Cache, ttl time.Duration) *Catalog {
	return &Catalog{repo: repo, cache: c, ttl: ttl}
}

func (s *Catalog) List(
	ctx context.Context,
	actor policy.Actor,
	params ListParams,
) ([]Service, error) {
	params.Normalize()
	key := cache.ServiceListKey(params.Search, params.Sort, actor.UserID)

	return cache.Fetch(ctx, s.cache, cache.EntityServices, key, s.ttl,
		func(ctx context.Context) ([]Service, error) {
			return s.repo.List(ctx, params)
		},
	)
}

// ListForWeb is the page-rendering variant; it does not depend on who asks.
func (s *Catalog) ListForWeb(ctx context.Context, params ListParams) ([]Service, error) {
	params.Normalize()
	key := cache.WebServiceListKey(params.Search, params.Sort)

	return cache.Fetch(ctx, s.cache, cache.EntityServices, key, s.ttl,
		func(ctx context.Context) ([]Service, error) {
			return s.repo.List(ctx, params)
		},
	)
}

func (s *Catalog) Get(ctx context.Context, id int64) (*Service, error) {
	return cache.Fetch(ctx, s.cache, cache.EntityServices, cache.ServiceDetailKey(id), s.ttl,
		func(ctx context.Context) (*Service, error) {
			return s.repo.GetByID(ctx, id)
		},
	)
}

// Exists reports whether a service id is known. Used by the cart before
// opening a transaction.
func (s *Catalog) Exists(ctx context.Context, id int64) (bool, error) {
	return s.repo.Exists(ctx, id)
}

func (s *Catalog) Create(
	ctx context.Context,
	actor policy.Actor,
	req CreateServiceRequest,
) (*Service, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("create service: %w", core.ErrForbidden)
	}

	if req.Price == nil {
		return nil, core.BadRequestError("price is required")
	}
	if err := validatePrice(*req.Price); err != nil {
		return nil, err
	}

	svc := &Service{Name: req.Name, Description: req.Description, Price: *req.Price}
	if err := s.repo.Create(ctx, svc); err != nil {
		return nil, err
	}

	s.invalidate(ctx, svc.ID)
	return svc, nil
}

func (s *Catalog) Update(
	ctx context.Context,
	actor policy.Actor,
	id int64,
	req UpdateServiceRequest,
) (*Service, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("update service: %w", core.ErrForbidden)
	}

	svc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		svc.Name = *req.Name
	}
	if req.Description != nil {
		svc.Description = *req.Description
	}
	if req.Price != nil {
		if err := validatePrice(*req.Price); err != nil {
			return nil, err
		}
		svc.Price = *req.Price
	}

	if err := s.repo.Update(ctx, svc); err != nil {
		return nil, err
	}

	s.invalidate(ctx, svc.ID)
	return svc, nil
}

func (s *Catalog) Delete(ctx context.Context, actor policy.Actor, id int64) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("delete service: %w", core.ErrForbidden)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx, id)
	return nil
}

// RefreshRatings recomputes every reviewed service's average rating and
// clears the whole cache so no page shows the old values.
func (s *Catalog) RefreshRatings(ctx context.Context) (int64, error) {
	ctx, span := core.StartSpan(ctx, "catalog.refresh_ratings")
	defer span.End()

	n, err := s.repo.RefreshRatings(ctx)
	if err != nil {
		core.SetSpanError(ctx, err)
		return 0, err
	}

	if err := s.cache.Clear(ctx); err != nil {
		slog.WarnContext(ctx, "cache clear after rating refresh failed", "error", err)
	}

	metrics.RatingsRefreshed.Add(float64(n))
	span.SetAttributes(attribute.Int64("ratings.updated", n))
	slog.InfoContext(ctx, "ratings refreshed", "updated", n)
	return n, nil
}

func (s *Catalog) invalidate(ctx context.Context, id int64) {
	cache.Invalidate(ctx, s.cache,
		cache.ServiceDetailKey(id),
		cache.WebServiceListKey("", SortDefault),
		cache.WebServiceListKey("", SortRating),
	)
}

func validatePrice(p decimal.Decimal) error {
	switch {
	case p.IsNegative():
		return core.BadRequestError("price must not be negative")
	case p.GreaterThan(maxPrice):
		return core.BadRequestError("price is too large")
	case !p.Equal(p.Round(2)):
		return core.BadRequestError("price must have at most 2 decimal places")
	}
	return nil
}
