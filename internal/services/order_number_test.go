package services

import (
	"context"
	"testing"
	"time"

	"marketplace/internal/models"
	"marketplace/internal/repositories"
	pkgerrors "marketplace/pkg/errors"
	"marketplace/pkg/payments"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequence(values ...int) func() int {
	i := 0
	return func() int {
		v := values[i%len(values)]
		i++
		return v
	}
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 9, 23, 30, 0, 0, time.FixedZone("UTC-2", -2*3600))
}

func TestFormatOrderNumber(t *testing.T) {
	assert.Equal(t, "ORD-20240310-0042", FormatOrderNumber(fixedClock(), 42))
	assert.Equal(t, "ORD-20240310-9999", FormatOrderNumber(fixedClock(), 9999))
}

func TestOrderNumberGenerator_RegeneratesOnCollision(t *testing.T) {
	ctx := context.Background()
	orders := repositories.NewMockOrderRepository()
	require.NoError(t, orders.Create(ctx, &models.Order{OrderNumber: "ORD-20240310-0001"}))

	gen := NewOrderNumberGenerator(5)
	gen.now = fixedClock
	gen.suffix = sequence(1, 1, 2)

	number, err := gen.Generate(ctx, orders)
	require.NoError(t, err)
	assert.Equal(t, "ORD-20240310-0002", number)
}

func TestOrderNumberGenerator_GivesUp(t *testing.T) {
	ctx := context.Background()
	orders := repositories.NewMockOrderRepository()
	require.NoError(t, orders.Create(ctx, &models.Order{OrderNumber: "ORD-20240310-0007"}))

	gen := NewOrderNumberGenerator(3)
	gen.now = fixedClock
	gen.suffix = sequence(7)

	_, err := gen.Generate(ctx, orders)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeOrderNumberExhausted))
	assert.Equal(t, 3, gen.MaxAttempts())
}

// blindOrders never reports a number as taken, so collisions surface at insert.
type blindOrders struct {
	repositories.OrderRepository
}

func (blindOrders) ExistsByNumber(context.Context, string) (bool, error) {
	return false, nil
}

type blindStore struct {
	*repositories.MockStore
}

func (s blindStore) Orders() repositories.OrderRepository {
	return blindOrders{s.MockStore.Orders()}
}

func (s blindStore) WithTx(ctx context.Context, fn func(tx repositories.Store) error) error {
	return s.MockStore.WithTx(ctx, func(repositories.Store) error { return fn(s) })
}

type stubGateway struct{}

func (stubGateway) CreateIntent(context.Context, payments.IntentRequest) (*payments.Intent, error) {
	return &payments.Intent{ID: "pi_stub", ClientSecret: "secret"}, nil
}

func (stubGateway) ParseWebhook([]byte, string) (payments.Event, error) {
	return nil, nil
}

func TestCheckout_RetriesWholeTransactionOnInsertCollision(t *testing.T) {
	ctx := context.Background()
	mem := repositories.NewMockStore()
	store := blindStore{mem}
	require.NoError(t, mem.Orders().Create(ctx, &models.Order{OrderNumber: "ORD-20240310-0001"}))
	product := &models.Product{Name: "Lamp", Price: decimal.NewFromInt(20), Stock: 3, Status: models.ProductStatusActive}
	require.NoError(t, mem.Products().Create(ctx, product))

	gen := NewOrderNumberGenerator(5)
	gen.now = fixedClock
	gen.suffix = sequence(1, 2)

	svc, err := NewCheckoutService(CheckoutParams{
		Store:        store,
		Gateway:      stubGateway{},
		Pricing:      Pricing{TaxRate: decimal.Zero, FreeShippingThreshold: decimal.Zero, FlatShippingFee: decimal.Zero},
		OrderNumbers: gen,
	})
	require.NoError(t, err)

	result, err := svc.ProcessCheckout(ctx, "user-1", CheckoutRequest{
		PaymentMethod:   models.PaymentMethodCashOnDelivery,
		ShippingAddress: &models.Address{FullName: "A B", Line1: "x", City: "y", PostalCode: "1", Country: "US"},
		Items:           []CheckoutItem{{ProductID: product.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "ORD-20240310-0002", result.Order.OrderNumber)

	stored, err := mem.Products().GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Stock)
}

func TestCheckout_InsertCollisionsExhausted(t *testing.T) {
	ctx := context.Background()
	mem := repositories.NewMockStore()
	require.NoError(t, mem.Orders().Create(ctx, &models.Order{OrderNumber: "ORD-20240310-0001"}))
	product := &models.Product{Name: "Lamp", Price: decimal.NewFromInt(20), Stock: 3, Status: models.ProductStatusActive}
	require.NoError(t, mem.Products().Create(ctx, product))

	gen := NewOrderNumberGenerator(5)
	gen.now = fixedClock
	gen.suffix = sequence(1)

	svc, err := NewCheckoutService(CheckoutParams{Store: blindStore{mem}, Gateway: stubGateway{}, OrderNumbers: gen})
	require.NoError(t, err)

	_, err = svc.ProcessCheckout(ctx, "user-1", CheckoutRequest{
		PaymentMethod:   models.PaymentMethodCashOnDelivery,
		ShippingAddress: &models.Address{FullName: "A B", Line1: "x", City: "y", PostalCode: "1", Country: "US"},
		Items:           []CheckoutItem{{ProductID: product.ID, Quantity: 1}},
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeOrderNumberExhausted))

	stored, err := mem.Products().GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Stock)
}
