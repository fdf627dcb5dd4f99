// AngelaMos | 2026
// repository_test.go

package admin

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverviewQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(sqlx.NewDb(db, "sqlmock"))

	mock.ExpectQuery(`SELECT\s+\(SELECT COUNT\(\*\) FROM users\)`).
		WithArgs("PENDING_PAYMENT", "COMPLETED").
		WillReturnRows(sqlmock.NewRows([]string{
			"users", "active_users", "services", "orders",
			"pending_orders", "completed_orders", "reviews", "order_value",
		}).AddRow(10, 8, 5, 6, 2, 3, 4, "420.75"))

	o, err := repo.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), o.Users)
	assert.Equal(t, int64(8), o.ActiveUsers)
	assert.Equal(t, int64(3), o.CompletedOrders)
	assert.Equal(t, "420.75", o.OrderValue.StringFixed(2))
	require.NoError(t, mock.ExpectationsWereMet())
}
