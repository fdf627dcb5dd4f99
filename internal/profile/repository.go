// AngelaMos | 2026
// repository.go

package profile

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
	List(ctx context.Context, scope policy.Filter) ([]Profile, error)
	Get(ctx context.Context, id int64, scope policy.Filter) (*Profile, error)
	GetOrCreate(ctx context.Context, userID int64) (*Profile, error)
	Create(ctx context.Context, p *Profile) error
	Update(ctx context.Context, p *Profile) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const profileSelect = `
	SELECT p.id, p.user_id, u.username, p.bio, p.profile_picture, p.social_links
	FROM client_profiles p
	JOIN users u ON u.id = p.user_id`

func (r *repository) List(ctx context.Context, scope policy.Filter) ([]Profile, error) {
	query := profileSelect

	clause, args := scope.Clause("p", 1)
	if clause != "" {
		query += " WHERE " + clause
	}
	query += " ORDER BY p.id"

	profiles := []Profile{}
	if err := r.db.SelectContext(ctx, &profiles, query, args...); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, nil
}

func (r *repository) Get(ctx context.Context, id int64, scope policy.Filter) (*Profile, error) {
	conditions := []string{"p.id = $1"}
	args := []any{id}

	if clause, scopeArgs := scope.Clause("p", 2); clause != "" {
		conditions = append(conditions, clause)
		args = append(args, scopeArgs...)
	}

	return r.getOne(ctx, profileSelect+" WHERE "+strings.Join(conditions, " AND "), args...)
}

func (r *repository) GetOrCreate(ctx context.Context, userID int64) (*Profile, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO client_profiles (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return nil, fmt.Errorf("get or create profile: %w", err)
	}

	return r.getOne(ctx, profileSelect+" WHERE p.user_id = $1", userID)
}

func (r *repository) getOne(ctx context.Context, query string, args ...any) (*Profile, error) {
	var p Profile
	err := r.db.GetContext(ctx, &p, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get profile: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

func (r *repository) Create(ctx context.Context, p *Profile) error {
	query := `
		INSERT INTO client_profiles (user_id, bio, profile_picture, social_links)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := r.db.GetContext(ctx, &p.ID, query, p.UserID, p.Bio, p.ProfilePicture, p.SocialLinks)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("create profile: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (r *repository) Update(ctx context.Context, p *Profile) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE client_profiles
		SET bio = $2, profile_picture = $3, social_links = $4
		WHERE id = $1`,
		p.ID, p.Bio, p.ProfilePicture, p.SocialLinks)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return expectOne(result, "update profile")
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM client_profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return expectOne(result, "delete profile")
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
