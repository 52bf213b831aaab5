package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	creds := &Credentials{
		Driver:            DriverSQLite,
		SQLitePath:        filepath.Join(t.TempDir(), "storefront.db"),
		MigrationsDirPath: "./migrations",
	}

	repo, err := NewRepository(creds)
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations(creds))

	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func testOrder(reference string, lines ...domain.OrderLine) *domain.Order {
	if len(lines) == 0 {
		lines = []domain.OrderLine{
			{ItemID: 1, Quantity: 2, UnitPrice: decimal.RequireFromString("10.00"), Discount: decimal.Zero},
			{ItemID: 3, Quantity: 1, UnitPrice: decimal.RequireFromString("35.00"), Discount: decimal.Zero},
		}
	}
	return &domain.Order{
		Header: domain.OrderHeader{
			CustomerID:       "C-1001",
			RecipientName:    "Demo Customer",
			Address:          "12 Demo Street",
			Phone:            "0900000000",
			PlacedAt:         time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			PaymentMethod:    domain.PaymentMethodCOD,
			ShippingMethod:   domain.DefaultShippingMethod,
			StatusCode:       domain.StatusConfirmed,
			Note:             "leave at the door",
			PaymentReference: reference,
		},
		Lines: lines,
	}
}

func countRows(t *testing.T, repo *Repository, table string) int {
	t.Helper()
	var n int
	require.NoError(t, repo.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestFindItem_Seeded(t *testing.T) {
	repo := setupTestDB(t)

	item, err := repo.FindItem(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, "Jasmine green tea", item.Name)
	assert.Equal(t, "jasmine.jpg", item.ImageRef)
	assert.True(t, decimal.RequireFromString("10.00").Equal(item.UnitPrice))
}

func TestFindItem_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	item, err := repo.FindItem(context.Background(), 404)

	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.Nil(t, item)
}

func TestListItems(t *testing.T) {
	repo := setupTestDB(t)

	items, err := repo.ListItems(context.Background())

	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, int64(1), items[0].ID)
	assert.Equal(t, int64(3), items[2].ID)
}

func TestFindCustomer(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	p, err := repo.FindCustomer(ctx, "C-1001")
	require.NoError(t, err)
	assert.Equal(t, "Demo Customer", p.Name)

	_, err = repo.FindCustomer(ctx, "nobody")
	assert.ErrorIs(t, err, ErrCustomerNotFound)
}

func TestCreateOrder_Success(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	order := testOrder("ref-1")

	created, err := repo.CreateOrder(ctx, order)

	require.NoError(t, err)
	assert.Positive(t, created.Header.ID)
	assert.Zero(t, order.Header.ID, "argument must not be modified")
	for _, line := range created.Lines {
		assert.Equal(t, created.Header.ID, line.OrderID)
	}

	stored, err := repo.GetOrder(ctx, created.Header.ID)
	require.NoError(t, err)
	assert.Equal(t, "ref-1", stored.Header.PaymentReference)
	assert.Equal(t, domain.PaymentMethodCOD, stored.Header.PaymentMethod)
	assert.Equal(t, "GRAB", stored.Header.ShippingMethod)
	assert.Equal(t, 1, stored.Header.StatusCode)
	assert.WithinDuration(t, order.Header.PlacedAt, stored.Header.PlacedAt, time.Second)
	require.Len(t, stored.Lines, 2)
	assert.True(t, decimal.RequireFromString("55.00").Equal(stored.Total()))

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeOrderPlaced, events[0].EventType)
	assert.Contains(t, string(events[0].Payload), `"payment_reference":"ref-1"`)
}

func TestCreateOrder_DuplicateReference(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	first, err := repo.CreateOrder(ctx, testOrder("ref-dup"))
	require.NoError(t, err)

	_, err = repo.CreateOrder(ctx, testOrder("ref-dup"))

	require.ErrorIs(t, err, ErrDuplicatePayment)
	var dup *DuplicatePaymentError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.Header.ID, dup.OrderID)
	assert.Equal(t, 1, countRows(t, repo, "orders"))
	assert.Equal(t, 2, countRows(t, repo, "order_lines"))
	assert.Equal(t, 1, countRows(t, repo, "outbox_events"))
}

func TestCreateOrder_LineFailureLeavesNothing(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	bad := testOrder("ref-bad",
		domain.OrderLine{ItemID: 1, Quantity: 1, UnitPrice: decimal.RequireFromString("10.00")},
		domain.OrderLine{ItemID: 2, Quantity: 0, UnitPrice: decimal.RequireFromString("14.50")},
	)

	_, err := repo.CreateOrder(ctx, bad)

	require.Error(t, err)
	assert.Equal(t, 0, countRows(t, repo, "orders"))
	assert.Equal(t, 0, countRows(t, repo, "order_lines"))
	assert.Equal(t, 0, countRows(t, repo, "outbox_events"))

	// the reference is still free after the rollback
	_, err = repo.CreateOrder(ctx, testOrder("ref-bad"))
	require.NoError(t, err)
}

func TestCreateOrder_CancelledContext(t *testing.T) {
	repo := setupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.CreateOrder(ctx, testOrder("ref-cancel"))

	require.Error(t, err)
	assert.Equal(t, 0, countRows(t, repo, "orders"))
}

func TestGetOrder_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	_, err := repo.GetOrder(context.Background(), 999)

	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestFindOrderByPaymentReference(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	created, err := repo.CreateOrder(ctx, testOrder("ref-find"))
	require.NoError(t, err)

	found, err := repo.FindOrderByPaymentReference(ctx, "ref-find")

	require.NoError(t, err)
	assert.Equal(t, created.Header.ID, found.Header.ID)
	assert.Len(t, found.Lines, 2)
}

func TestMarkEventAsProcessed(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	_, err := repo.CreateOrder(ctx, testOrder("ref-a"))
	require.NoError(t, err)
	_, err = repo.CreateOrder(ctx, testOrder("ref-b"))
	require.NoError(t, err)

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))

	events, err = repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Contains(t, string(events[0].Payload), "ref-b")
}

func TestNewRepository_UnsupportedDriver(t *testing.T) {
	_, err := NewRepository(&Credentials{Driver: "oracle"})

	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}
