package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

// GetAll retrieves all non-deleted products from the database.
func (r *GORMProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("status <> ?", models.ProductStatusDeleted).
		Order("is_featured DESC").
		Order("created_at DESC").
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get all products: %w", err)
	}
	return products, nil
}

// GetByID retrieves a single product by its ID from the database.
func (r *GORMProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product with ID %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get product by ID %s: %w", id, err)
	}
	return &product, nil
}

// Create creates a new product in the database.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if product.Status == "" {
		product.Status = models.ProductStatusActive
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// Update writes every mutable column of an existing product.
func (r *GORMProductRepository) Update(ctx context.Context, product *models.Product) error {
	product.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(product).
		Select("*").
		Omit("id", "created_at").
		Updates(product)
	if res.Error != nil {
		return fmt.Errorf("failed to update product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product with ID %s: %w", product.ID, ErrNotFound)
	}
	return nil
}

// Delete soft-deletes a product by switching its status.
func (r *GORMProductRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND status <> ?", id, models.ProductStatusDeleted).
		Updates(map[string]any{
			"status":      models.ProductStatusDeleted,
			"is_featured": false,
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to delete product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product with ID %s: %w", id, ErrNotFound)
	}
	return nil
}

// ReserveStock performs a single conditional decrement so concurrent checkouts
// can never drive stock below zero.
func (r *GORMProductRepository) ReserveStock(ctx context.Context, id string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("reserve stock for %s: quantity must be positive", id)
	}
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND status = ? AND stock >= ?", id, models.ProductStatusActive, quantity).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock - ?", quantity),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to reserve stock for %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product %s: %w", id, ErrInsufficientStock)
	}
	return nil
}

// FindExpiredBoosts returns at most limit expired-but-active boosts after afterID.
func (r *GORMProductRepository) FindExpiredBoosts(ctx context.Context, now time.Time, afterID string, limit int) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("boost_active = ? AND boost_end_date < ? AND id > ?", true, now, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find expired boosts: %w", err)
	}
	return products, nil
}

// ExpireBoost switches off an expired boost with a conditional update.
func (r *GORMProductRepository) ExpireBoost(ctx context.Context, id string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND boost_active = ? AND boost_end_date < ?", id, true, now).
		Updates(map[string]any{
			"boost_active": false,
			"is_featured":  false,
			"updated_at":   now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to expire boost for %s: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// UpdateBoost guards the write on the payment that funded the observed boost.
func (r *GORMProductRepository) UpdateBoost(ctx context.Context, id, expectedPaymentID string, boost models.Boost) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND status = ? AND boost_payment_id = ?", id, models.ProductStatusActive, expectedPaymentID).
		Updates(map[string]any{
			"boost_active":     boost.Active,
			"boost_package":    boost.Package,
			"boost_start_date": boost.StartDate,
			"boost_end_date":   boost.EndDate,
			"boost_payment_id": boost.PaymentID,
			"is_featured":      boost.Active,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update boost for %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product %s: %w", id, ErrStateConflict)
	}
	return nil
}
