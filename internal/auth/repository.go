// AngelaMos | 2026
// repository.go

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/homeser/internal/core"
)

type Repository interface {
	Create(ctx context.Context, token *OutstandingToken) error
	FindByID(ctx context.Context, id string) (*OutstandingToken, error)
	Rotate(ctx context.Context, id, replacedByID string) error
	RevokeByID(ctx context.Context, id string) error
	RevokeByFamilyID(ctx context.Context, familyID string) error
	RevokeAllForUser(ctx context.Context, userID int64) error
	ListActive(ctx context.Context, userID int64) ([]OutstandingToken, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type repository struct {
	db core.DBTX
}

// TokenTx runs fn against a Repository bound to a single transaction.
type TokenTx func(ctx context.Context, fn func(repo Repository) error) error

func NewTokenTx(db core.TxBeginner) TokenTx {
	return func(ctx context.Context, fn func(repo Repository) error) error {
		return core.InTx(ctx, db, func(tx *sqlx.Tx) error {
			return fn(NewRepository(tx))
		})
	}
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const tokenColumns = `id, user_id, family_id, expires_at, created_at,
	is_used, used_at, revoked_at, replaced_by_id,
	COALESCE(user_agent, '') AS user_agent, COALESCE(ip_address, '') AS ip_address`

func (r *repository) Create(ctx context.Context, token *OutstandingToken) error {
	query := `
		INSERT INTO outstanding_tokens (id, user_id, family_id, expires_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &token.CreatedAt, query,
		token.ID, token.UserID, token.FamilyID, token.ExpiresAt, token.UserAgent, token.IPAddress,
	)
	if err != nil {
		return fmt.Errorf("create outstanding token: %w", err)
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id string) (*OutstandingToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM outstanding_tokens WHERE id = $1`

	var token OutstandingToken
	err := r.db.GetContext(ctx, &token, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find outstanding token: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find outstanding token: %w", err)
	}
	return &token, nil
}

// Rotate marks id as spent by a refresh that issued replacedByID. Losing a
// race with a concurrent refresh yields ErrNotFound.
func (r *repository) Rotate(ctx context.Context, id, replacedByID string) error {
	query := `
		UPDATE outstanding_tokens
		SET is_used = true, used_at = NOW(), replaced_by_id = $2
		WHERE id = $1 AND is_used = false`

	return r.execOne(ctx, "rotate token", query, id, replacedByID)
}

func (r *repository) RevokeByID(ctx context.Context, id string) error {
	query := `UPDATE outstanding_tokens SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`
	return r.execOne(ctx, "revoke token", query, id)
}

func (r *repository) RevokeByFamilyID(ctx context.Context, familyID string) error {
	query := `UPDATE outstanding_tokens SET revoked_at = NOW() WHERE family_id = $1 AND revoked_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, familyID); err != nil {
		return fmt.Errorf("revoke token family: %w", err)
	}
	return nil
}

func (r *repository) RevokeAllForUser(ctx context.Context, userID int64) error {
	query := `UPDATE outstanding_tokens SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	return nil
}

// ListActive returns the user's live refresh tokens, newest first. Each one
// is a signed-in device.
func (r *repository) ListActive(ctx context.Context, userID int64) ([]OutstandingToken, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM outstanding_tokens
		WHERE user_id = $1 AND revoked_at IS NULL AND is_used = false AND expires_at > NOW()
		ORDER BY created_at DESC`

	var tokens []OutstandingToken
	if err := r.db.SelectContext(ctx, &tokens, query, userID); err != nil {
		return nil, fmt.Errorf("list active tokens: %w", err)
	}
	return tokens, nil
}

func (r *repository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM outstanding_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return n, nil
}

func (r *repository) execOne(ctx context.Context, op, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return nil
}
