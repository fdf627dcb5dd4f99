// AngelaMos | 2026
// repository.go

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/carterperez-dev/homeser/internal/core"
)

type Repository interface {
	List(ctx context.Context, params ListParams) ([]Service, error)
	GetByID(ctx context.Context, id int64) (*Service, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Create(ctx context.Context, svc *Service) error
	Update(ctx context.Context, svc *Service) error
	Delete(ctx context.Context, id int64) error
	RefreshRatings(ctx context.Context) (int64, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const serviceColumns = `id, name, description, price, average_rating`

func (r *repository) List(ctx context.Context, params ListParams) ([]Service, error) {
	params.Normalize()

	var conditions []string
	var args []any
	argIdx := 1

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(name ILIKE $%d OR description ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+escapeLike(params.Search)+"%")
		argIdx++
	}

	query := `SELECT ` + serviceColumns + ` FROM services`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	if params.Sort == SortRating {
		query += " ORDER BY average_rating DESC, id"
	} else {
		query += " ORDER BY id"
	}

	services := []Service{}
	if err := r.db.SelectContext(ctx, &services, query, args...); err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}

	return services, nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE id = $1`

	var svc Service
	err := r.db.GetContext(ctx, &svc, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get service: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}

	return &svc, nil
}

func (r *repository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM services WHERE id = $1)`, id)
	if err != nil {
		return false, fmt.Errorf("check service exists: %w", err)
	}
	return exists, nil
}

func (r *repository) Create(ctx context.Context, svc *Service) error {
	query := `
		INSERT INTO services (name, description, price)
		VALUES ($1, $2, $3)
		RETURNING id, average_rating`

	row := r.db.QueryRowxContext(ctx, query, svc.Name, svc.Description, svc.Price)
	if err := row.Scan(&svc.ID, &svc.AverageRating); err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	return nil
}

func (r *repository) Update(ctx context.Context, svc *Service) error {
	query := `
		UPDATE services
		SET name = $2, description = $3, price = $4
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, svc.ID, svc.Name, svc.Description, svc.Price)
	if err != nil {
		return fmt.Errorf("update service: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update service: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update service: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete service: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete service: %w", core.ErrNotFound)
	}

	return nil
}

type ratingMean struct {
	ServiceID int64   `db:"service_id"`
	Mean      float64 `db:"mean"`
}

// RefreshRatings sets average_rating to the one-decimal mean of each
// reviewed service. Services without reviews keep their value. The run is
// not transactional; a failure part way leaves earlier services updated.
func (r *repository) RefreshRatings(ctx context.Context) (int64, error) {
	var means []ratingMean
	err := r.db.SelectContext(ctx, &means, `
		SELECT service_id, AVG(rating)::double precision AS mean
		FROM reviews
		GROUP BY service_id
		ORDER BY service_id`)
	if err != nil {
		return 0, fmt.Errorf("refresh ratings: %w", err)
	}

	var updated int64
	for _, m := range means {
		result, err := r.db.ExecContext(ctx,
			`UPDATE services SET average_rating = $1 WHERE id = $2`,
			roundRating(m.Mean), m.ServiceID,
		)
		if err != nil {
			return updated, fmt.Errorf("refresh rating of service %d: %w", m.ServiceID, err)
		}

		n, err := result.RowsAffected()
		if err != nil {
			return updated, fmt.Errorf("refresh rating of service %d: %w", m.ServiceID, err)
		}
		updated += n
	}

	return updated, nil
}

// roundRating rounds to one decimal from the exact binary value, with exact
// ties going to the even digit: 2.25 becomes 2.2 and 2.75 becomes 2.8.
func roundRating(mean float64) float64 {
	v, _ := strconv.ParseFloat(strconv.FormatFloat(mean, 'f', 1, 64), 64) //nolint:errcheck // formatted above
	return v
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
