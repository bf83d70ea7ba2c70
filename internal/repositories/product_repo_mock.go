package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"marketplace/internal/models"

	"github.com/google/uuid"
)

// MockProductRepository is an in-memory implementation of ProductRepository.
type MockProductRepository struct {
	products map[string]models.Product
	mu       sync.RWMutex
}

// NewMockProductRepository creates a new instance of MockProductRepository.
func NewMockProductRepository() *MockProductRepository {
	return &MockProductRepository{
		products: make(map[string]models.Product),
	}
}

// GetAll returns all non-deleted products, featured first.
func (r *MockProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	productList := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		if p.Status == models.ProductStatusDeleted {
			continue
		}
		productList = append(productList, p)
	}
	sort.SliceStable(productList, func(i, j int) bool {
		if productList[i].IsFeatured != productList[j].IsFeatured {
			return productList[i].IsFeatured
		}
		return productList[i].CreatedAt.After(productList[j].CreatedAt)
	})
	return productList, nil
}

// GetByID returns a product by its ID.
func (r *MockProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("product with ID %s: %w", id, ErrNotFound)
	}
	return &product, nil
}

// Create adds a new product.
func (r *MockProductRepository) Create(ctx context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if product.Status == "" {
		product.Status = models.ProductStatusActive
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	r.products[product.ID] = *product
	return nil
}

// Update modifies an existing product.
func (r *MockProductRepository) Update(ctx context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.products[product.ID]
	if !ok {
		return fmt.Errorf("product with ID %s: %w", product.ID, ErrNotFound)
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	r.products[product.ID] = *product
	return nil
}

// Delete marks a product as deleted.
func (r *MockProductRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[id]
	if !ok || product.Status == models.ProductStatusDeleted {
		return fmt.Errorf("product with ID %s: %w", id, ErrNotFound)
	}
	product.Status = models.ProductStatusDeleted
	product.IsFeatured = false
	product.UpdatedAt = time.Now().UTC()
	r.products[id] = product
	return nil
}

// ReserveStock checks and decrements under the write lock.
func (r *MockProductRepository) ReserveStock(ctx context.Context, id string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("reserve stock for %s: quantity must be positive", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[id]
	if !ok || !product.Purchasable(quantity) {
		return fmt.Errorf("product %s: %w", id, ErrInsufficientStock)
	}
	product.Stock -= quantity
	product.UpdatedAt = time.Now().UTC()
	r.products[id] = product
	return nil
}

// FindExpiredBoosts returns expired active boosts ordered by id.
func (r *MockProductRepository) FindExpiredBoosts(ctx context.Context, now time.Time, afterID string, limit int) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var expired []models.Product
	for _, p := range r.products {
		if p.ID > afterID && boostExpired(p, now) {
			expired = append(expired, p)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ID < expired[j].ID })
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	return expired, nil
}

// ExpireBoost clears an expired boost.
func (r *MockProductRepository) ExpireBoost(ctx context.Context, id string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[id]
	if !ok || !boostExpired(product, now) {
		return false, nil
	}
	product.Boost.Active = false
	product.IsFeatured = false
	product.UpdatedAt = now
	r.products[id] = product
	return true, nil
}

// UpdateBoost compares and swaps the boost under the write lock.
func (r *MockProductRepository) UpdateBoost(ctx context.Context, id, expectedPaymentID string, boost models.Boost) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[id]
	if !ok || product.Status != models.ProductStatusActive || product.Boost.PaymentID != expectedPaymentID {
		return fmt.Errorf("product %s: %w", id, ErrStateConflict)
	}
	product.Boost = boost
	product.IsFeatured = boost.Active
	product.UpdatedAt = time.Now().UTC()
	r.products[id] = product
	return nil
}

func (r *MockProductRepository) snapshot() map[string]models.Product {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]models.Product, len(r.products))
	for k, v := range r.products {
		out[k] = v
	}
	return out
}

func (r *MockProductRepository) restore(products map[string]models.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products = products
}

func boostExpired(p models.Product, now time.Time) bool {
	return p.Boost.Active && p.Boost.EndDate != nil && p.Boost.EndDate.Before(now)
}
