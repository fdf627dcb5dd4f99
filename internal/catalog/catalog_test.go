// AngelaMos | 2026
// catalog_test.go

package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/homeser/internal/cache"
	"github.com/carterperez-dev/homeser/internal/core"
	"github.com/carterperez-dev/homeser/internal/policy"
)

var serviceCols = []string{"id", "name", "description", "price", "average_rating"}

func newMock(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestListSearchAndSort(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`WHERE \(name ILIKE \$1 OR description ILIKE \$1\) ORDER BY average_rating DESC, id`).
		WithArgs(`%50\%off%`).
		WillReturnRows(sqlmock.NewRows(serviceCols).
			AddRow(2, "Plumbing", "50% off", "80.00", 4.5).
			AddRow(1, "Cleaning", "50% off", "40.00", 3.0))

	services, err := repo.List(context.Background(), ListParams{Search: "50%off", Sort: "rating"})
	require.NoError(t, err)
	require.Len(t, services, 2)
	assert.True(t, services[0].Price.Equal(decimal.NewFromInt(80)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUnknownSortFallsBackToID(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`FROM services ORDER BY id`).
		WillReturnRows(sqlmock.NewRows(serviceCols))

	_, err := repo.List(context.Background(), ListParams{Sort: "price"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshRatingsQuery(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`SELECT service_id, AVG\(rating\)::double precision AS mean`).
		WillReturnRows(sqlmock.NewRows([]string{"service_id", "mean"}).
			AddRow(1, 2.25).
			AddRow(4, 4.0/3.0))
	mock.ExpectExec(`UPDATE services SET average_rating = \$1 WHERE id = \$2`).
		WithArgs(2.2, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE services SET average_rating = \$1 WHERE id = \$2`).
		WithArgs(1.3, int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.RefreshRatings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshRatingsNoReviews(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`FROM reviews`).
		WillReturnRows(sqlmock.NewRows([]string{"service_id", "mean"}))

	n, err := repo.RefreshRatings(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoundRating(t *testing.T) {
	tests := []struct {
		mean float64
		want float64
	}{
		{2.25, 2.2},
		{2.75, 2.8},
		{4.0 / 3.0, 1.3},
		{11.0 / 3.0, 3.7},
		{5, 5},
		{2.15, 2.1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, roundRating(tt.mean), "mean %v", tt.mean)
	}
}

type stubRepo struct {
	Repository
	services  map[int64]*Service
	refreshed int64
}

func (s *stubRepo) GetByID(_ context.Context, id int64) (*Service, error) {
	svc, ok := s.services[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *svc
	return &cp, nil
}

func (s *stubRepo) Create(_ context.Context, svc *Service) error {
	svc.ID = int64(len(s.services) + 1)
	cp := *svc
	s.services[svc.ID] = &cp
	return nil
}

func (s *stubRepo) Update(_ context.Context, svc *Service) error {
	cp := *svc
	s.services[svc.ID] = &cp
	return nil
}

func (s *stubRepo) RefreshRatings(context.Context) (int64, error) {
	return s.refreshed, nil
}

func newCatalog(t *testing.T) (*Catalog, *stubRepo, *cache.Memory) {
	t.Helper()
	c, err := cache.NewMemory(32)
	require.NoError(t, err)
	repo := &stubRepo{
		services: map[int64]*Service{
			1: {ID: 1, Name: "Cleaning", Price: decimal.RequireFromString("40.00")},
		},
		refreshed: 2,
	}
	return NewCatalog(repo, c, time.Minute), repo, c
}

var adminActor = policy.Actor{UserID: 1, Role: policy.RoleAdmin}

func TestCreateRequiresAdmin(t *testing.T) {
	cat, _, _ := newCatalog(t)
	price := decimal.NewFromInt(10)

	_, err := cat.Create(context.Background(), policy.Actor{UserID: 2, Role: policy.RoleClient},
		CreateServiceRequest{Name: "x", Price: &price})
	assert.ErrorIs(t, err, core.ErrForbidden)

	svc, err := cat.Create(context.Background(), adminActor, CreateServiceRequest{Name: "x", Price: &price})
	require.NoError(t, err)
	assert.Equal(t, "10.00", ToServiceResponse(svc).Price)
}

func TestPriceValidation(t *testing.T) {
	tests := []struct {
		price string
		ok    bool
	}{
		{"0", true},
		{"19.99", true},
		{"99999999.99", true},
		{"-1", false},
		{"100000000.00", false},
		{"1.005", false},
	}

	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			err := validatePrice(decimal.RequireFromString(tt.price))
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, core.IsAppError(err))
			}
		})
	}
}

func TestUpdateInvalidatesDetail(t *testing.T) {
	cat, _, c := newCatalog(t)
	ctx := context.Background()

	_, err := cat.Get(ctx, 1)
	require.NoError(t, err)
	_, err = c.Get(ctx, cache.ServiceDetailKey(1))
	require.NoError(t, err)

	name := "Deep cleaning"
	_, err = cat.Update(ctx, adminActor, 1, UpdateServiceRequest{Name: &name})
	require.NoError(t, err)

	_, err = c.Get(ctx, cache.ServiceDetailKey(1))
	assert.ErrorIs(t, err, cache.ErrMiss)

	got, err := cat.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Deep cleaning", got.Name)
}

func TestRefreshRatingsClearsCache(t *testing.T) {
	cat, _, c := newCatalog(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, cache.UserListKey(5), []byte(`[]`), time.Minute))

	n, err := cat.RefreshRatings(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 0, c.Len())
}
