package services

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"

	"marketplace/internal/models"
	"marketplace/internal/repositories"
	"marketplace/pkg/db"
	pkgerrors "marketplace/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// staleProducts reports plenty of stock on reads, as a reader that lost the
// race to a concurrent checkout would see it. Reservations hit the real rows.
type staleProducts struct {
	repositories.ProductRepository
}

func (p staleProducts) GetByID(ctx context.Context, id string) (*models.Product, error) {
	product, err := p.ProductRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	product.Stock = 1000
	return product, nil
}

type staleStore struct {
	repositories.Store
}

func (s staleStore) Products() repositories.ProductRepository {
	return staleProducts{s.Store.Products()}
}

func (s staleStore) WithTx(ctx context.Context, fn func(tx repositories.Store) error) error {
	return s.Store.WithTx(ctx, func(tx repositories.Store) error {
		return fn(staleStore{tx})
	})
}

func newGORMCheckout(t *testing.T, store repositories.Store, gen *OrderNumberGenerator) *CheckoutService {
	t.Helper()
	svc, err := NewCheckoutService(CheckoutParams{
		Store:        store,
		Gateway:      stubGateway{},
		Pricing:      Pricing{TaxRate: decimal.Zero, FreeShippingThreshold: decimal.Zero, FlatShippingFee: decimal.Zero},
		OrderNumbers: gen,
	})
	require.NoError(t, err)
	return svc
}

func createGORMProduct(t *testing.T, store repositories.Store, name string, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		SellerID: "seller-1",
		Name:     name,
		Price:    decimal.NewFromInt(5),
		Stock:    stock,
		Status:   models.ProductStatusActive,
	}
	require.NoError(t, store.Products().Create(context.Background(), product))
	return product
}

func countOrders(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&n).Error)
	return n
}

func codAddress() *models.Address {
	return &models.Address{FullName: "A B", Line1: "x", City: "y", PostalCode: "1", Country: "US"}
}

func TestCheckout_LostReservationRollsBackEarlierLines(t *testing.T) {
	ctx := context.Background()
	conn := db.OpenTestDB(t, models.All()...)
	store := repositories.NewGORMStore(conn)
	first := createGORMProduct(t, store, "Kettle", 10)
	second := createGORMProduct(t, store, "Teapot", 1)

	svc := newGORMCheckout(t, staleStore{store}, NewOrderNumberGenerator(5))
	_, err := svc.ProcessCheckout(ctx, "user-1", CheckoutRequest{
		PaymentMethod:   models.PaymentMethodCashOnDelivery,
		ShippingAddress: codAddress(),
		Items: []CheckoutItem{
			{ProductID: first.ID, Quantity: 2},
			{ProductID: second.ID, Quantity: 3},
		},
	})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientStock), "got %v", err)
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, second.ID, details["product_id"])

	stored, err := store.Products().GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, stored.Stock)
	stored, err = store.Products().GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Stock)
	assert.Zero(t, countOrders(t, conn))
}

func TestCheckout_ConcurrentOrdersGetDistinctNumbers(t *testing.T) {
	ctx := context.Background()
	conn := db.OpenTestDB(t, models.All()...)
	store := repositories.NewGORMStore(conn)
	product := createGORMProduct(t, store, "Candle", 100)

	const buyers = 20
	gen := NewOrderNumberGenerator(64)
	gen.now = fixedClock
	// A narrow suffix range forces collisions between concurrent checkouts.
	gen.suffix = func() int { return rand.IntN(2 * buyers) }
	svc := newGORMCheckout(t, store, gen)

	var wg sync.WaitGroup
	var mu sync.Mutex
	numbers := make(map[string]int, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.ProcessCheckout(ctx, "user-1", CheckoutRequest{
				PaymentMethod:   models.PaymentMethodCashOnDelivery,
				ShippingAddress: codAddress(),
				Items:           []CheckoutItem{{ProductID: product.ID, Quantity: 1}},
			})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			numbers[result.Order.OrderNumber]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, numbers, buyers)
	for number, n := range numbers {
		assert.Equal(t, 1, n, number)
	}
	assert.Equal(t, int64(buyers), countOrders(t, conn))

	stored, err := store.Products().GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 100-buyers, stored.Stock)
}
