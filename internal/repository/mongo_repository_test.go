package repository

import (
	"context"
	"testing"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
)

func setupMongo(t *testing.T) (*mongo.Database, func()) {
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	cleanup := func() {
		_ = db.Client().Disconnect(ctx)
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return db, cleanup
}

func newTestCart(userID string) *domain.Cart {
	shipping := decimal.RequireFromString("6.90")
	tax := decimal.RequireFromString("2.00")
	return &domain.Cart{
		UserID: userID,
		Items: []domain.CartItem{{
			ProductID:    1,
			ClientID:     "c-1",
			Name:         "Classic Cotton Tee",
			Slug:         "classic-cotton-tee",
			Category:     "T-Shirts",
			Price:        decimal.RequireFromString("10.00"),
			CountInStock: 5,
			Quantity:     2,
			Size:         "M",
		}},
		DeliveryDate:  "Next 3 Days",
		ItemsPrice:    decimal.RequireFromString("20.00"),
		ShippingPrice: &shipping,
		TaxPrice:      &tax,
		TotalPrice:    decimal.RequireFromString("28.90"),
	}
}

func TestGetCart_NotFound(t *testing.T) {
	db, cleanup := setupMongo(t)
	defer cleanup()

	repo := NewMongoCartRepository(db)
	cart, err := repo.GetCart(context.Background(), "nonexistent")

	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.Nil(t, cart)
}

func TestSaveCart_RoundTripKeepsExactMoney(t *testing.T) {
	db, cleanup := setupMongo(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewMongoCartRepository(db)
	require.NoError(t, repo.CreateIndexes(ctx))

	cart := newTestCart("user-1")
	require.NoError(t, repo.SaveCart(ctx, cart))
	assert.Equal(t, int64(1), cart.Version)

	got, err := repo.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "28.9", got.TotalPrice.String())
	assert.True(t, got.Items[0].Price.Equal(decimal.RequireFromString("10")))
	require.NotNil(t, got.ShippingPrice)
	assert.Equal(t, "6.9", got.ShippingPrice.String())
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, "M", got.Items[0].Size)
}

func TestSaveCart_ClearsNilPrices(t *testing.T) {
	db, cleanup := setupMongo(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewMongoCartRepository(db)

	cart := newTestCart("user-2")
	require.NoError(t, repo.SaveCart(ctx, cart))

	cart.ShippingPrice = nil
	cart.TaxPrice = nil
	require.NoError(t, repo.SaveCart(ctx, cart))

	got, err := repo.GetCart(ctx, "user-2")
	require.NoError(t, err)
	assert.Nil(t, got.ShippingPrice)
	assert.Nil(t, got.TaxPrice)
	assert.Equal(t, int64(2), got.Version)
}

func TestSaveCart_StaleVersionConflicts(t *testing.T) {
	db, cleanup := setupMongo(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewMongoCartRepository(db)
	require.NoError(t, repo.CreateIndexes(ctx))

	require.NoError(t, repo.SaveCart(ctx, newTestCart("user-3")))

	first, err := repo.GetCart(ctx, "user-3")
	require.NoError(t, err)
	second, err := repo.GetCart(ctx, "user-3")
	require.NoError(t, err)

	first.PaymentMethod = domain.PaymentMethodPayPal
	require.NoError(t, repo.SaveCart(ctx, first))

	second.PaymentMethod = domain.PaymentMethodStripe
	assert.ErrorIs(t, repo.SaveCart(ctx, second), ErrCartConflict)

	got, err := repo.GetCart(ctx, "user-3")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentMethodPayPal, got.PaymentMethod)
}

func TestSaveCart_ConcurrentCreateConflicts(t *testing.T) {
	db, cleanup := setupMongo(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewMongoCartRepository(db)
	require.NoError(t, repo.CreateIndexes(ctx))

	require.NoError(t, repo.SaveCart(ctx, newTestCart("user-4")))
	assert.ErrorIs(t, repo.SaveCart(ctx, newTestCart("user-4")), ErrCartConflict)
}

func TestSettings_MissingThenSaved(t *testing.T) {
	db, cleanup := setupMongo(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewMongoSettingsRepository(db)

	_, err := repo.GetSettings(ctx)
	assert.ErrorIs(t, err, ErrSettingsNotFound)

	s := &domain.Settings{
		TaxRate:       decimal.RequireFromString("0.10"),
		Currency:      "USD",
		DeliveryDates: domain.DefaultDeliveryDates(),
	}
	require.NoError(t, repo.SaveSettings(ctx, s))

	s.Currency = "EUR"
	require.NoError(t, repo.SaveSettings(ctx, s))

	got, err := repo.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "EUR", got.Currency)
	assert.True(t, got.TaxRate.Equal(decimal.RequireFromString("0.1")))
	require.Len(t, got.DeliveryDates, 3)
	assert.Equal(t, "Next 5 Days", got.DeliveryDates[2].Name)
	assert.True(t, got.DeliveryDates[2].FreeShippingMinPrice.Equal(decimal.NewFromInt(35)))
}
