package repositories_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace/internal/models"
	"marketplace/internal/repositories"
	"marketplace/pkg/db"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactories runs each test against both Store implementations.
func storeFactories() map[string]func(t *testing.T) repositories.Store {
	return map[string]func(t *testing.T) repositories.Store{
		"gorm": func(t *testing.T) repositories.Store {
			return repositories.NewGORMStore(db.OpenTestDB(t, models.All()...))
		},
		"mock": func(t *testing.T) repositories.Store {
			return repositories.NewMockStore()
		},
	}
}

func newProduct(t *testing.T, store repositories.Store, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		SellerID: "seller-1",
		Name:     "Widget",
		Price:    decimal.RequireFromString("50.00"),
		Stock:    stock,
		Status:   models.ProductStatusActive,
	}
	require.NoError(t, store.Products().Create(context.Background(), p))
	return p
}

func newOrder(number string) *models.Order {
	return &models.Order{
		OrderNumber:   number,
		CustomerID:    "user-1",
		Subtotal:      decimal.NewFromInt(100),
		Tax:           decimal.NewFromInt(10),
		ShippingCost:  decimal.NewFromInt(10),
		Discount:      decimal.Zero,
		Total:         decimal.NewFromInt(120),
		Currency:      "usd",
		PaymentMethod: models.PaymentMethodCreditCard,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		Items: []models.OrderLineItem{{
			ProductID:   "p-1",
			ProductName: "Widget",
			Quantity:    2,
			UnitPrice:   decimal.NewFromInt(50),
			LineTotal:   decimal.NewFromInt(100),
		}},
		StatusHistory: []models.StatusHistoryEntry{{
			Status: models.OrderStatusPending,
			Note:   "Order created",
			Actor:  "user-1",
		}},
	}
}

func TestProductStock(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			p := newProduct(t, store, 3)

			require.NoError(t, store.Products().ReserveStock(ctx, p.ID, 2))
			err := store.Products().ReserveStock(ctx, p.ID, 2)
			assert.ErrorIs(t, err, repositories.ErrInsufficientStock)

			got, err := store.Products().GetByID(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, got.Stock)
			assert.True(t, got.Price.Equal(decimal.NewFromInt(50)))

			require.NoError(t, store.Products().Delete(ctx, p.ID))
			err = store.Products().ReserveStock(ctx, p.ID, 1)
			assert.ErrorIs(t, err, repositories.ErrInsufficientStock)

			all, err := store.Products().GetAll(ctx)
			require.NoError(t, err)
			assert.Empty(t, all)

			_, err = store.Products().GetByID(ctx, "missing")
			assert.ErrorIs(t, err, repositories.ErrNotFound)
		})
	}
}

func TestProductUpdate(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			p := newProduct(t, store, 3)

			p.Name = "Widget Pro"
			p.Stock = 7
			require.NoError(t, store.Products().Update(ctx, p))

			got, err := store.Products().GetByID(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, "Widget Pro", got.Name)
			assert.Equal(t, 7, got.Stock)

			err = store.Products().Update(ctx, &models.Product{ID: "missing", Name: "x"})
			assert.ErrorIs(t, err, repositories.ErrNotFound)
		})
	}
}

func TestExpiredBoosts(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			now := time.Now().UTC()
			past := now.Add(-time.Hour)
			future := now.Add(time.Hour)

			expired := newProduct(t, store, 1)
			expired.IsFeatured = true
			expired.Boost = models.Boost{Active: true, Package: "basic", StartDate: &past, EndDate: &past}
			require.NoError(t, store.Products().Update(ctx, expired))

			running := newProduct(t, store, 1)
			running.IsFeatured = true
			running.Boost = models.Boost{Active: true, Package: "basic", StartDate: &past, EndDate: &future}
			require.NoError(t, store.Products().Update(ctx, running))

			found, err := store.Products().FindExpiredBoosts(ctx, now, "", 10)
			require.NoError(t, err)
			require.Len(t, found, 1)
			assert.Equal(t, expired.ID, found[0].ID)

			changed, err := store.Products().ExpireBoost(ctx, expired.ID, now)
			require.NoError(t, err)
			assert.True(t, changed)

			changed, err = store.Products().ExpireBoost(ctx, expired.ID, now)
			require.NoError(t, err)
			assert.False(t, changed)

			got, err := store.Products().GetByID(ctx, expired.ID)
			require.NoError(t, err)
			assert.False(t, got.Boost.Active)
			assert.False(t, got.IsFeatured)

			got, err = store.Products().GetByID(ctx, running.ID)
			require.NoError(t, err)
			assert.True(t, got.Boost.Active)
		})
	}
}

func TestUpdateBoostComparesPaymentID(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			p := newProduct(t, store, 1)
			start := time.Now().UTC().Truncate(time.Second)
			end := start.AddDate(0, 0, 7)
			boost := models.Boost{Active: true, Package: "gold", StartDate: &start, EndDate: &end, PaymentID: "pi_1"}

			require.NoError(t, store.Products().UpdateBoost(ctx, p.ID, "", boost))
			got, err := store.Products().GetByID(ctx, p.ID)
			require.NoError(t, err)
			assert.True(t, got.IsFeatured)
			assert.True(t, got.Boost.Active)
			assert.Equal(t, "pi_1", got.Boost.PaymentID)
			require.NotNil(t, got.Boost.EndDate)
			assert.True(t, got.Boost.EndDate.Equal(end))

			// A writer that read the product before pi_1 landed loses.
			boost.PaymentID = "pi_2"
			err = store.Products().UpdateBoost(ctx, p.ID, "", boost)
			assert.ErrorIs(t, err, repositories.ErrStateConflict)
			require.NoError(t, store.Products().UpdateBoost(ctx, p.ID, "pi_1", boost))

			require.NoError(t, store.Products().Delete(ctx, p.ID))
			err = store.Products().UpdateBoost(ctx, p.ID, "pi_2", boost)
			assert.ErrorIs(t, err, repositories.ErrStateConflict)
		})
	}
}

func TestOrderLifecycle(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			order := newOrder("ORD-20240101-0001")
			require.NoError(t, store.Orders().Create(ctx, order))
			require.NotEmpty(t, order.ID)

			err := store.Orders().Create(ctx, newOrder("ORD-20240101-0001"))
			assert.ErrorIs(t, err, repositories.ErrDuplicateOrderNumber)

			exists, err := store.Orders().ExistsByNumber(ctx, "ORD-20240101-0001")
			require.NoError(t, err)
			assert.True(t, exists)

			got, err := store.Orders().GetByNumber(ctx, "ORD-20240101-0001")
			require.NoError(t, err)
			require.Len(t, got.Items, 1)
			require.Len(t, got.StatusHistory, 1)
			assert.True(t, got.Total.Equal(decimal.NewFromInt(120)))

			paidAt := time.Now().UTC()
			change := repositories.StateChange{
				Status:        models.OrderStatusProcessing,
				PaymentStatus: models.PaymentStatusPaid,
				PaymentDetails: &models.PaymentDetails{
					TransactionID: "pi_1",
					PaidAt:        &paidAt,
					CardLastFour:  "4242",
				},
				History: &models.StatusHistoryEntry{Status: models.OrderStatusProcessing, Note: "Payment confirmed", Actor: "system"},
			}
			require.NoError(t, store.Orders().UpdateState(ctx, order.ID, got.State(), change))

			err = store.Orders().UpdateState(ctx, order.ID, got.State(), change)
			assert.ErrorIs(t, err, repositories.ErrStateConflict)

			err = store.Orders().UpdateState(ctx, "missing", got.State(), change)
			assert.ErrorIs(t, err, repositories.ErrNotFound)

			got, err = store.Orders().GetByID(ctx, order.ID)
			require.NoError(t, err)
			assert.Equal(t, models.OrderStatusProcessing, got.Status)
			assert.Equal(t, models.PaymentStatusPaid, got.PaymentStatus)
			assert.Equal(t, "pi_1", got.PaymentDetails.TransactionID)
			assert.Equal(t, "4242", got.PaymentDetails.CardLastFour)
			require.Len(t, got.StatusHistory, 2)
			assert.Equal(t, "Payment confirmed", got.StatusHistory[1].Note)

			orders, err := store.Orders().ListByCustomer(ctx, "user-1", repositories.OrderFilter{})
			require.NoError(t, err)
			assert.Len(t, orders, 1)

			future := time.Now().UTC().Add(time.Hour)
			orders, err = store.Orders().ListByCustomer(ctx, "user-1", repositories.OrderFilter{From: &future})
			require.NoError(t, err)
			assert.Empty(t, orders)
		})
	}
}

func TestCartOperations(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			users := store.Users()

			first, err := users.AddCartItem(ctx, "user-1", "p-1", 1)
			require.NoError(t, err)
			again, err := users.AddCartItem(ctx, "user-1", "p-1", 2)
			require.NoError(t, err)
			assert.Equal(t, first.ID, again.ID)
			assert.Equal(t, 3, again.Quantity)

			second, err := users.AddCartItem(ctx, "user-1", "p-2", 1)
			require.NoError(t, err)

			require.NoError(t, users.SetCartItemQuantity(ctx, "user-1", second.ID, 5))
			err = users.SetCartItemQuantity(ctx, "user-2", second.ID, 5)
			assert.ErrorIs(t, err, repositories.ErrNotFound)

			cart, err := users.GetCart(ctx, "user-1")
			require.NoError(t, err)
			require.Len(t, cart, 2)

			removed, err := users.RemoveCartItems(ctx, "user-1", first.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(1), removed)

			cart, err = users.GetCart(ctx, "user-1")
			require.NoError(t, err)
			require.Len(t, cart, 1)
			assert.Equal(t, 5, cart[0].Quantity)

			require.NoError(t, users.ClearCart(ctx, "user-1"))
			cart, err = users.GetCart(ctx, "user-1")
			require.NoError(t, err)
			assert.Empty(t, cart)
		})
	}
}

func TestWishlistOperations(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			users := factory(t).Users()

			a, err := users.AddWishlistItem(ctx, "user-1", "p-1")
			require.NoError(t, err)
			b, err := users.AddWishlistItem(ctx, "user-1", "p-1")
			require.NoError(t, err)
			assert.Equal(t, a.ID, b.ID)

			list, err := users.GetWishlist(ctx, "user-1")
			require.NoError(t, err)
			assert.Len(t, list, 1)

			require.NoError(t, users.RemoveWishlistItem(ctx, "user-1", "p-1"))
			assert.ErrorIs(t, users.RemoveWishlistItem(ctx, "user-1", "p-1"), repositories.ErrNotFound)
		})
	}
}

func TestUsers(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			users := factory(t).Users()

			u := &models.User{Username: "alice", Email: "alice@example.com", Password: "hash"}
			require.NoError(t, users.Create(ctx, u))
			assert.Equal(t, models.RoleCustomer, u.Role)

			err := users.Create(ctx, &models.User{Username: "alice", Email: "other@example.com", Password: "hash"})
			assert.ErrorIs(t, err, repositories.ErrDuplicate)

			got, err := users.GetByEmail(ctx, "alice@example.com")
			require.NoError(t, err)
			assert.Equal(t, u.ID, got.ID)

			_, err = users.GetByUsername(ctx, "bob")
			assert.ErrorIs(t, err, repositories.ErrNotFound)
		})
	}
}

func TestWithTxRollsBack(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			p := newProduct(t, store, 5)
			item, err := store.Users().AddCartItem(ctx, "user-1", p.ID, 1)
			require.NoError(t, err)

			boom := errors.New("boom")
			err = store.WithTx(ctx, func(tx repositories.Store) error {
				require.NoError(t, tx.Products().ReserveStock(ctx, p.ID, 2))
				require.NoError(t, tx.Orders().Create(ctx, newOrder("ORD-20240101-0009")))
				_, err := tx.Users().RemoveCartItems(ctx, "user-1", item.ID)
				require.NoError(t, err)
				return boom
			})
			assert.ErrorIs(t, err, boom)

			got, err := store.Products().GetByID(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, 5, got.Stock)

			exists, err := store.Orders().ExistsByNumber(ctx, "ORD-20240101-0009")
			require.NoError(t, err)
			assert.False(t, exists)

			cart, err := store.Users().GetCart(ctx, "user-1")
			require.NoError(t, err)
			assert.Len(t, cart, 1)

			err = store.WithTx(ctx, func(tx repositories.Store) error {
				return tx.Products().ReserveStock(ctx, p.ID, 2)
			})
			require.NoError(t, err)
			got, err = store.Products().GetByID(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, 3, got.Stock)
		})
	}
}
