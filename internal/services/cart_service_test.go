package services_test

import (
	"context"
	"fmt"
	"testing"

	"marketplace/internal/models"
	"marketplace/internal/repositories"
	"marketplace/internal/services"
	pkgerrors "marketplace/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newCartService(t *testing.T) (*services.CartService, *repositories.MockStore, *models.Product) {
	t.Helper()
	store := repositories.NewMockStore()
	product := &models.Product{Name: "Mug", Price: decimal.NewFromInt(8), Stock: 5, Status: models.ProductStatusActive}
	require.NoError(t, store.Products().Create(context.Background(), product))
	return services.NewCartService(store.Users(), store.Products()), store, product
}

func TestCartService_AddMergesAndChecksStock(t *testing.T) {
	ctx := context.Background()
	service, _, product := newCartService(t)

	item, err := service.AddToCart(ctx, buyerID, services.AddCartItemRequest{ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, item.Quantity)

	item, err = service.AddToCart(ctx, buyerID, services.AddCartItemRequest{ProductID: product.ID, Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity)

	_, err = service.AddToCart(ctx, buyerID, services.AddCartItemRequest{ProductID: product.ID, Quantity: 1})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientStock))

	cart, err := service.GetCart(ctx, buyerID)
	require.NoError(t, err)
	require.Len(t, cart, 1)
	assert.Equal(t, 5, cart[0].Quantity)

	_, err = service.AddToCart(ctx, buyerID, services.AddCartItemRequest{ProductID: "missing", Quantity: 1})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	_, err = service.AddToCart(ctx, buyerID, services.AddCartItemRequest{ProductID: product.ID, Quantity: 0})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestCartService_RejectsInactiveProducts(t *testing.T) {
	ctx := context.Background()
	service, store, _ := newCartService(t)
	hidden := &models.Product{Name: "Hidden", Price: decimal.NewFromInt(1), Stock: 5, Status: models.ProductStatusInactive}
	require.NoError(t, store.Products().Create(ctx, hidden))

	_, err := service.AddToCart(ctx, buyerID, services.AddCartItemRequest{ProductID: hidden.ID, Quantity: 1})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeProductUnavailable))
}

func TestCartService_UpdateRemoveClear(t *testing.T) {
	ctx := context.Background()
	service, _, product := newCartService(t)
	item, err := service.AddToCart(ctx, buyerID, services.AddCartItemRequest{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, service.UpdateCartItem(ctx, buyerID, item.ID, services.UpdateCartItemRequest{Quantity: 4}))
	cart, err := service.GetCart(ctx, buyerID)
	require.NoError(t, err)
	assert.Equal(t, 4, cart[0].Quantity)

	err = service.UpdateCartItem(ctx, buyerID, item.ID, services.UpdateCartItemRequest{Quantity: 6})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientStock))

	err = service.UpdateCartItem(ctx, "someone-else", item.ID, services.UpdateCartItemRequest{Quantity: 1})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	require.NoError(t, service.RemoveCartItem(ctx, buyerID, item.ID))
	err = service.RemoveCartItem(ctx, buyerID, item.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	_, err = service.AddToCart(ctx, buyerID, services.AddCartItemRequest{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, service.ClearCart(ctx, buyerID))
	cart, err = service.GetCart(ctx, buyerID)
	require.NoError(t, err)
	assert.Empty(t, cart)
}

func TestCartService_Wishlist(t *testing.T) {
	ctx := context.Background()
	service, _, product := newCartService(t)

	first, err := service.AddToWishlist(ctx, buyerID, services.AddWishlistItemRequest{ProductID: product.ID})
	require.NoError(t, err)
	second, err := service.AddToWishlist(ctx, buyerID, services.AddWishlistItemRequest{ProductID: product.ID})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	list, err := service.GetWishlist(ctx, buyerID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = service.AddToWishlist(ctx, buyerID, services.AddWishlistItemRequest{ProductID: "missing"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	require.NoError(t, service.RemoveFromWishlist(ctx, buyerID, product.ID))
	err = service.RemoveFromWishlist(ctx, buyerID, product.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestCartService_RepositoryFailure(t *testing.T) {
	ctx := context.Background()
	users := new(MockUserRepository)
	products := new(MockProductRepository)
	service := services.NewCartService(users, products)

	users.On("GetCart", ctx, buyerID).Return(nil, fmt.Errorf("connection reset")).Once()
	_, err := service.GetCart(ctx, buyerID)
	assert.Equal(t, pkgerrors.CodeInternal, pkgerrors.CodeOf(err))

	users.On("RemoveCartItems", ctx, buyerID, mock.Anything).Return(int64(0), fmt.Errorf("connection reset")).Once()
	err = service.RemoveCartItem(ctx, buyerID, "item-1")
	assert.Contains(t, err.Error(), "connection reset")
	users.AssertExpectations(t)
}
