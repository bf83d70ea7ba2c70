package services

import (
	"context"
	"errors"
	"fmt"

	"marketplace/internal/models"
	"marketplace/internal/repositories"
	pkgerrors "marketplace/pkg/errors"
)

// AddCartItemRequest is the body of POST /cart.
type AddCartItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=1000"`
}

// UpdateCartItemRequest is the body of PATCH /cart/:itemId.
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=1000"`
}

// AddWishlistItemRequest is the body of POST /wishlist.
type AddWishlistItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
}

// CartService manages the user's cart and wishlist.
type CartService struct {
	users    repositories.UserRepository
	products repositories.ProductRepository
}

// NewCartService creates a new CartService.
func NewCartService(users repositories.UserRepository, products repositories.ProductRepository) *CartService {
	return &CartService{users: users, products: products}
}

// GetCart returns the user's cart entries.
func (s *CartService) GetCart(ctx context.Context, userID string) ([]models.CartItem, error) {
	items, err := s.users.GetCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading cart: %w", err)
	}
	return items, nil
}

// AddToCart adds quantity units of a product, merging with an existing entry.
// Stock is checked against the merged quantity but not reserved.
func (s *CartService) AddToCart(ctx context.Context, userID string, req AddCartItemRequest) (*models.CartItem, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	product, err := s.activeProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	cart, err := s.users.GetCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading cart: %w", err)
	}
	wanted := req.Quantity
	for _, item := range cart {
		if item.ProductID == req.ProductID {
			wanted += item.Quantity
		}
	}
	if product.Stock < wanted {
		return nil, pkgerrors.Newf(pkgerrors.CodeInsufficientStock, "only %d units of %s available", product.Stock, product.Name).WithDetails(map[string]any{
			"product_id": product.ID,
			"requested":  wanted,
			"available":  product.Stock,
		})
	}

	item, err := s.users.AddCartItem(ctx, userID, req.ProductID, req.Quantity)
	if err != nil {
		return nil, fmt.Errorf("adding to cart: %w", err)
	}
	return item, nil
}

// UpdateCartItem overwrites the quantity of one of the user's cart entries.
func (s *CartService) UpdateCartItem(ctx context.Context, userID, itemID string, req UpdateCartItemRequest) error {
	if err := validateStruct(req); err != nil {
		return err
	}
	cart, err := s.users.GetCart(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading cart: %w", err)
	}
	var entry *models.CartItem
	for i := range cart {
		if cart[i].ID == itemID {
			entry = &cart[i]
			break
		}
	}
	if entry == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}

	product, err := s.activeProduct(ctx, entry.ProductID)
	if err != nil {
		return err
	}
	if product.Stock < req.Quantity {
		return pkgerrors.Newf(pkgerrors.CodeInsufficientStock, "only %d units of %s available", product.Stock, product.Name).WithDetails(map[string]any{
			"product_id": product.ID,
			"requested":  req.Quantity,
			"available":  product.Stock,
		})
	}

	if err := s.users.SetCartItemQuantity(ctx, userID, itemID, req.Quantity); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return fmt.Errorf("updating cart item: %w", err)
	}
	return nil
}

// RemoveCartItem deletes one cart entry.
func (s *CartService) RemoveCartItem(ctx context.Context, userID, itemID string) error {
	removed, err := s.users.RemoveCartItems(ctx, userID, itemID)
	if err != nil {
		return fmt.Errorf("removing cart item: %w", err)
	}
	if removed == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return nil
}

// ClearCart empties the user's cart.
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	if err := s.users.ClearCart(ctx, userID); err != nil {
		return fmt.Errorf("clearing cart: %w", err)
	}
	return nil
}

// GetWishlist returns the user's saved products.
func (s *CartService) GetWishlist(ctx context.Context, userID string) ([]models.WishlistItem, error) {
	items, err := s.users.GetWishlist(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading wishlist: %w", err)
	}
	return items, nil
}

// AddToWishlist saves a product; saving it twice returns the existing entry.
func (s *CartService) AddToWishlist(ctx context.Context, userID string, req AddWishlistItemRequest) (*models.WishlistItem, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	product, err := s.products.GetByID(ctx, req.ProductID)
	if err != nil || product.Status == models.ProductStatusDeleted {
		if err == nil || errors.Is(err, repositories.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, fmt.Errorf("loading product: %w", err)
	}
	item, err := s.users.AddWishlistItem(ctx, userID, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("adding to wishlist: %w", err)
	}
	return item, nil
}

// RemoveFromWishlist deletes a saved product.
func (s *CartService) RemoveFromWishlist(ctx context.Context, userID, productID string) error {
	if err := s.users.RemoveWishlistItem(ctx, userID, productID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "wishlist item not found")
		}
		return fmt.Errorf("removing wishlist item: %w", err)
	}
	return nil
}

func (s *CartService) activeProduct(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, fmt.Errorf("loading product: %w", err)
	}
	if product.Status != models.ProductStatusActive {
		return nil, pkgerrors.Newf(pkgerrors.CodeProductUnavailable, "product %s is not available", product.Name).WithDetails(map[string]any{
			"product_id": product.ID,
			"status":     product.Status,
		})
	}
	return product, nil
}
