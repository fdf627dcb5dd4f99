// AngelaMos | 2026
// cart_test.go

package cart

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/homeser/internal/cache"
	"github.com/carterperez-dev/homeser/internal/core"
	"github.com/carterperez-dev/homeser/internal/middleware"
	"github.com/carterperez-dev/homeser/internal/order"
	"github.com/carterperez-dev/homeser/internal/policy"
)

var itemCols = []string{"id", "cart_id", "service_id", "quantity", "service_name", "service_price"}

type fakeCatalog map[int64]bool

func (f fakeCatalog) Exists(_ context.Context, id int64) (bool, error) {
	return f[id], nil
}

type recordingNotifier struct {
	orders []int64
}

func (n *recordingNotifier) OrderPlaced(_ context.Context, _, orderID int64) error {
	n.orders = append(n.orders, orderID)
	return nil
}

type fixture struct {
	svc      *Service
	mock     sqlmock.Sqlmock
	cache    *cache.Memory
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	c, err := cache.NewMemory(32)
	require.NoError(t, err)

	n := &recordingNotifier{}
	svc := NewService(sqlx.NewDb(db, "sqlmock"), fakeCatalog{1: true, 2: true}, n, c, time.Minute)
	return &fixture{svc: svc, mock: mock, cache: c, notifier: n}
}

func (f *fixture) seed(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		require.NoError(t, f.cache.Set(context.Background(), k, []byte(`[]`), time.Minute))
	}
}

func TestAddUpsertsInTransaction(t *testing.T) {
	f := newFixture(t)
	f.seed(t, cache.CartKey(5), cache.WebCartKey(5))

	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`INSERT INTO carts`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	f.mock.ExpectExec(`ON CONFLICT \(cart_id, service_id\)\s+DO UPDATE SET quantity = cart_items\.quantity \+ 1`).
		WithArgs(int64(3), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	require.NoError(t, f.svc.Add(context.Background(), 5, 1))
	assert.NoError(t, f.mock.ExpectationsWereMet())
	assert.Equal(t, 0, f.cache.Len())
}

func TestAddUnknownService(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Add(context.Background(), 5, 99)
	appErr, ok := core.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, appErr.StatusCode)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRemoveAbsentServiceLeavesCart(t *testing.T) {
	f := newFixture(t)
	f.seed(t, cache.CartKey(5))

	f.mock.ExpectQuery(`SELECT id FROM carts WHERE user_id = \$1`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	f.mock.ExpectExec(`DELETE FROM cart_items WHERE cart_id = \$1 AND service_id = \$2`).
		WithArgs(int64(3), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := f.svc.Remove(context.Background(), 5, 2)
	assert.ErrorIs(t, err, ErrNotInCart)
	assert.Equal(t, 1, f.cache.Len())
}

func TestRemoveWithoutCart(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectQuery(`SELECT id FROM carts`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err := f.svc.Remove(context.Background(), 5, 1)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCheckoutMovesItemsToOrder(t *testing.T) {
	f := newFixture(t)
	f.seed(t, cache.SessionUserKeys(5)...)

	f.mock.ExpectQuery(`SELECT id FROM carts`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`FROM cart_items ci`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(itemCols).
			AddRow(1, 3, 1, 2, "Cleaning", "40.00").
			AddRow(2, 3, 2, 1, "Plumbing", "80.00"))
	f.mock.ExpectQuery(`INSERT INTO orders`).
		WithArgs(int64(5), order.StatusPendingPayment).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "status", "created_at"}).
			AddRow(11, 5, order.StatusPendingPayment, time.Now()))
	f.mock.ExpectExec(`INSERT INTO order_items`).
		WithArgs(int64(11), int64(1), 2, int64(11), int64(2), 1).
		WillReturnResult(sqlmock.NewResult(0, 2))
	f.mock.ExpectExec(`DELETE FROM cart_items WHERE cart_id = \$1`).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	f.mock.ExpectCommit()

	orderID, err := f.svc.Checkout(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(11), orderID)
	assert.Equal(t, []int64{11}, f.notifier.orders)
	assert.Equal(t, 0, f.cache.Len())
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCheckoutEmptyCartCreatesNoOrder(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectQuery(`SELECT id FROM carts`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`FROM cart_items ci`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(itemCols))
	f.mock.ExpectRollback()

	_, err := f.svc.Checkout(context.Background(), 5)
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Empty(t, f.notifier.orders)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCheckoutHandlerEmptyCart(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectQuery(`SELECT id FROM carts`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`FROM cart_items ci`).
		WillReturnRows(sqlmock.NewRows(itemCols))
	f.mock.ExpectRollback()

	req := httptest.NewRequest(http.MethodPost, "/cart/checkout", nil)
	req = req.WithContext(middleware.WithActor(req.Context(),
		policy.Actor{UserID: 5, Role: policy.RoleClient}))
	rec := httptest.NewRecorder()

	NewHandler(f.svc).Checkout(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "cart is empty")
}

func TestAddHandlerRejectsMissingServiceID(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/cart/add_service", strings.NewReader(`{}`))
	req = req.WithContext(middleware.WithActor(req.Context(),
		policy.Actor{UserID: 5, Role: policy.RoleClient}))
	rec := httptest.NewRecorder()

	NewHandler(f.svc).AddService(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartTotals(t *testing.T) {
	c := &Cart{Items: []Item{
		{ServicePrice: decimal.RequireFromString("40.00"), Quantity: 2},
		{ServicePrice: decimal.RequireFromString("80.00"), Quantity: 1},
	}}

	total, count := c.Totals()
	assert.Equal(t, "160.00", total.StringFixed(2))
	assert.Equal(t, 3, count)
	assert.Equal(t, "160.00", ToCartResponse(&Cart{TotalPrice: total}).TotalPrice)
}
