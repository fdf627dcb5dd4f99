// AngelaMos | 2026
// service.go

package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/homeser/internal/cache"
	"github.com/carterperez-dev/homeser/internal/catalog"
	"github.com/carterperez-dev/homeser/internal/core"
	"github.com/carterperez-dev/homeser/internal/policy"
)

const (
	msgNoCompletedOrder = "You can only review services you have completed orders for."
	msgAlreadyReviewed  = "You have already reviewed this service."
)

// CompletionChecker reports whether a user finished an order containing a
// service.
type CompletionChecker interface {
	HasCompletedOrder(ctx context.Context, userID, serviceID int64) (bool, error)
}

// Service manages reviews. Writes never touch a service's average rating;
// the rating refresh job owns that.
type Service struct {
	repo   Repository
	orders CompletionChecker
	cache  cache.Cache
	ttl    time.Duration
}

func NewService(repo Repository, orders CompletionChecker, c cache.Cache, ttl time.Duration) *Service {
	return &Service{repo: repo, orders: orders, cache: c, ttl: ttl}
}

func (s *Service) List(ctx context.Context, actor policy.Actor) ([]Review, error) {
	return cache.Fetch(ctx, s.cache, cache.EntityReviews, cache.ReviewListKey(actor.UserID), s.ttl,
		func(ctx context.Context) ([]Review, error) {
			return s.repo.List(ctx, policy.Scope(actor, policy.Reviews))
		},
	)
}

// ForService is the public review list shown on a service page.
func (s *Service) ForService(ctx context.Context, serviceID int64) ([]Review, error) {
	return cache.Fetch(ctx, s.cache, cache.EntityReviews, cache.ServiceReviewsKey(serviceID), s.ttl,
		func(ctx context.Context) ([]Review, error) {
			return s.repo.ForService(ctx, serviceID)
		},
	)
}

func (s *Service) Get(ctx context.Context, actor policy.Actor, id int64) (*Review, error) {
	return s.repo.Get(ctx, id, policy.Scope(actor, policy.Reviews))
}

func (s *Service) Create(
	ctx context.Context,
	actor policy.Actor,
	req CreateReviewRequest,
) (*Review, error) {
	if actor.IsAnonymous() {
		return nil, fmt.Errorf("create review: %w", core.ErrUnauthorized)
	}
	if err := validateRating(req.Rating); err != nil {
		return nil, err
	}

	completed, err := s.orders.HasCompletedOrder(ctx, actor.UserID, req.ServiceID)
	if err != nil {
		return nil, err
	}
	if !completed {
		return nil, core.BadRequestError(msgNoCompletedOrder)
	}

	rv := &Review{
		UserID:    actor.UserID,
		ServiceID: req.ServiceID,
		Rating:    req.Rating,
		Text:      req.Text,
	}
	if err := s.repo.Create(ctx, rv); err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, core.BadRequestError(msgAlreadyReviewed)
		}
		return nil, err
	}

	s.invalidate(ctx, actor.UserID, rv.UserID, rv.ServiceID)
	return s.repo.Get(ctx, rv.ID, policy.All())
}

// Replace is the PUT variant; the reviewed service cannot change.
func (s *Service) Replace(
	ctx context.Context,
	actor policy.Actor,
	id int64,
	req ReplaceReviewRequest,
) (*Review, error) {
	existing, err := s.writable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if req.ServiceID != existing.ServiceID {
		return nil, core.BadRequestError("the reviewed service cannot be changed")
	}

	return s.Update(ctx, actor, id, UpdateReviewRequest{Rating: &req.Rating, Text: &req.Text})
}

func (s *Service) Update(
	ctx context.Context,
	actor policy.Actor,
	id int64,
	req UpdateReviewRequest,
) (*Review, error) {
	rv, err := s.writable(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if req.Rating != nil {
		if err := validateRating(*req.Rating); err != nil {
			return nil, err
		}
		rv.Rating = *req.Rating
	}
	if req.Text != nil {
		rv.Text = *req.Text
	}

	if err := s.repo.Update(ctx, rv); err != nil {
		return nil, err
	}

	s.invalidate(ctx, actor.UserID, rv.UserID, rv.ServiceID)
	return rv, nil
}

func (s *Service) Delete(ctx context.Context, actor policy.Actor, id int64) error {
	rv, err := s.writable(ctx, actor, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx, actor.UserID, rv.UserID, rv.ServiceID)
	return nil
}

// writable loads a review for modification. Missing reviews are 404, other
// users' reviews are 403 unless the actor is an admin.
func (s *Service) writable(ctx context.Context, actor policy.Actor, id int64) (*Review, error) {
	rv, err := s.repo.Get(ctx, id, policy.All())
	if err != nil {
		return nil, err
	}
	if !policy.CanModify(actor, rv.UserID) {
		return nil, core.ForbiddenError("You do not have permission to modify this review.")
	}
	return rv, nil
}

func (s *Service) invalidate(ctx context.Context, actorID, ownerID, serviceID int64) {
	cache.Invalidate(ctx, s.cache,
		cache.ServiceReviewsKey(serviceID),
		cache.ServiceDetailKey(serviceID),
		cache.ReviewListKey(actorID),
		cache.ReviewListKey(ownerID),
		cache.WebServiceListKey("", catalog.SortDefault),
		cache.WebServiceListKey("", catalog.SortRating),
	)
}

func validateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return core.BadRequestError(fmt.Sprintf("rating must be between %d and %d", MinRating, MaxRating))
	}
	return nil
}
