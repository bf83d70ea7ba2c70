package repositories

import (
	"context"

	"marketplace/internal/models"
)

// UserRepository defines the interface for user data access, including the
// user-owned cart and wishlist.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)

	// GetCart returns the user's cart entries, oldest first.
	GetCart(ctx context.Context, userID string) ([]models.CartItem, error)
	// AddCartItem inserts an entry or increments the quantity of the existing
	// entry for the same product.
	AddCartItem(ctx context.Context, userID, productID string, quantity int) (*models.CartItem, error)
	SetCartItemQuantity(ctx context.Context, userID, itemID string, quantity int) error
	// RemoveCartItems deletes the given entries and reports how many were removed.
	RemoveCartItems(ctx context.Context, userID string, itemIDs ...string) (int64, error)
	ClearCart(ctx context.Context, userID string) error

	GetWishlist(ctx context.Context, userID string) ([]models.WishlistItem, error)
	// AddWishlistItem is idempotent per product.
	AddWishlistItem(ctx context.Context, userID, productID string) (*models.WishlistItem, error)
	RemoveWishlistItem(ctx context.Context, userID, productID string) error
}
