package repositories

import (
	"context"
	"time"

	"marketplace/internal/models"
)

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	// GetAll returns every product that is not soft-deleted, featured first.
	GetAll(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	// Delete marks the product deleted; rows are kept for order history.
	Delete(ctx context.Context, id string) error
	// ReserveStock decrements stock by quantity only if the product is active and
	// holds at least quantity units. It returns ErrInsufficientStock otherwise.
	ReserveStock(ctx context.Context, id string, quantity int) error
	// FindExpiredBoosts pages through active boosts whose end date is before now,
	// ordered by id and starting after afterID.
	FindExpiredBoosts(ctx context.Context, now time.Time, afterID string, limit int) ([]models.Product, error)
	// ExpireBoost clears the boost and featured flag if the boost is still active
	// and expired. It reports whether a row changed.
	ExpireBoost(ctx context.Context, id string, now time.Time) (bool, error)
	// UpdateBoost replaces the boost of an active product whose boost was paid
	// by expectedPaymentID and marks it featured while the boost is active. It
	// returns ErrStateConflict when the product moved on in between.
	UpdateBoost(ctx context.Context, id, expectedPaymentID string, boost models.Boost) error
}
