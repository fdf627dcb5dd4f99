// AngelaMos | 2026
// repository_test.go

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/homeser/internal/core"
)

func newMockRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestRotateLosingRaceIsNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE outstanding_tokens\s+SET is_used = true`).
		WithArgs("old-jti", "new-jti").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Rotate(context.Background(), "old-jti", "new-jti")
	require.ErrorIs(t, err, core.ErrNotFound)
	assert.Contains(t, err.Error(), "rotate token")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeByID(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE outstanding_tokens SET revoked_at = NOW\(\) WHERE id = \$1`).
		WithArgs("jti").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RevokeByID(context.Background(), "jti"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDMissing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`FROM outstanding_tokens WHERE id = \$1`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindByID(context.Background(), "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteExpired(t *testing.T) {
	repo, mock := newMockRepo(t)
	before := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`DELETE FROM outstanding_tokens WHERE expires_at < \$1`).
		WithArgs(before).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteExpired(context.Background(), before)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenTxRollsBackLostRotation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	tx := NewTokenTx(sqlx.NewDb(db, "sqlmock"))

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO outstanding_tokens`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectExec(`UPDATE outstanding_tokens\s+SET is_used = true`).
		WithArgs("old-jti", "new-jti").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = tx(context.Background(), func(repo Repository) error {
		next := &OutstandingToken{ID: "new-jti", UserID: 1, FamilyID: "fam", ExpiresAt: time.Now().Add(time.Hour)}
		if err := repo.Create(context.Background(), next); err != nil {
			return err
		}
		return repo.Rotate(context.Background(), "old-jti", "new-jti")
	})
	assert.ErrorIs(t, err, core.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
