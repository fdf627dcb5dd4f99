// AngelaMos | 2026
// repository.go

package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/carterperez-dev/homeser/internal/core"
	"github.com/carterperez-dev/homeser/internal/policy"
)

type Repository interface {
	List(ctx context.Context, scope policy.Filter) ([]Review, error)
	ForService(ctx context.Context, serviceID int64) ([]Review, error)
	Get(ctx context.Context, id int64, scope policy.Filter) (*Review, error)
	Create(ctx context.Context, r *Review) error
	Update(ctx context.Context, r *Review) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const reviewSelect = `
	SELECT r.id, r.user_id, u.username, r.service_id, s.name AS service_name,
	       r.rating, r.text, r.created_at
	FROM reviews r
	JOIN users u ON u.id = r.user_id
	JOIN services s ON s.id = r.service_id`

func (r *repository) List(ctx context.Context, scope policy.Filter) ([]Review, error) {
	query := reviewSelect

	clause, args := scope.Clause("r", 1)
	if clause != "" {
		query += " WHERE " + clause
	}
	query += " ORDER BY r.created_at DESC, r.id DESC"

	reviews := []Review{}
	if err := r.db.SelectContext(ctx, &reviews, query, args...); err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

func (r *repository) ForService(ctx context.Context, serviceID int64) ([]Review, error) {
	query := reviewSelect + ` WHERE r.service_id = $1 ORDER BY r.created_at DESC, r.id DESC`

	reviews := []Review{}
	if err := r.db.SelectContext(ctx, &reviews, query, serviceID); err != nil {
		return nil, fmt.Errorf("list service reviews: %w", err)
	}
	return reviews, nil
}

func (r *repository) Get(ctx context.Context, id int64, scope policy.Filter) (*Review, error) {
	conditions := []string{"r.id = $1"}
	args := []any{id}

	if clause, scopeArgs := scope.Clause("r", 2); clause != "" {
		conditions = append(conditions, clause)
		args = append(args, scopeArgs...)
	}

	var rv Review
	err := r.db.GetContext(ctx, &rv, reviewSelect+" WHERE "+strings.Join(conditions, " AND "), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get review: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	return &rv, nil
}

func (r *repository) Create(ctx context.Context, rv *Review) error {
	query := `
		INSERT INTO reviews (user_id, service_id, rating, text)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRowxContext(ctx, query, rv.UserID, rv.ServiceID, rv.Rating, rv.Text).
		Scan(&rv.ID, &rv.CreatedAt)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("create review: %w", core.ErrDuplicateKey)
		}
		if core.IsForeignKeyError(err) {
			return fmt.Errorf("create review: %w", core.ErrNotFound)
		}
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

func (r *repository) Update(ctx context.Context, rv *Review) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE reviews SET rating = $2, text = $3 WHERE id = $1`,
		rv.ID, rv.Rating, rv.Text)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	return expectOne(result, "update review")
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	return expectOne(result, "delete review")
}

func expectOne(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return nil
}
