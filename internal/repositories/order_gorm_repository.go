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

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db}
}

func (r *GORMOrderRepository) withChildren(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") })
}

// Create inserts an order together with its items and status history.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("order number %s: %w", order.OrderNumber, ErrDuplicateOrderNumber)
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// GetByID retrieves an order by its ID.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.withChildren(ctx).First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get order by ID %s: %w", id, err)
	}
	return &order, nil
}

// GetByNumber retrieves an order by its human-facing order number.
func (r *GORMOrderRepository) GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	if err := r.withChildren(ctx).First(&order, "order_number = ?", orderNumber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %s: %w", orderNumber, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get order %s: %w", orderNumber, err)
	}
	return &order, nil
}

// ExistsByNumber reports whether an order number is already taken.
func (r *GORMOrderRepository) ExistsByNumber(ctx context.Context, orderNumber string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_number = ?", orderNumber).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check order number %s: %w", orderNumber, err)
	}
	return count > 0, nil
}

// ListByCustomer returns a customer's orders within the filter window.
func (r *GORMOrderRepository) ListByCustomer(ctx context.Context, customerID string, filter OrderFilter) ([]models.Order, error) {
	query := r.withChildren(ctx).Where("customer_id = ?", customerID)
	if filter.From != nil {
		query = query.Where("created_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", filter.To.UTC())
	}

	var orders []models.Order
	if err := query.Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders for customer %s: %w", customerID, err)
	}
	return orders, nil
}

// UpdateState applies a conditional update and appends the history entry in
// the same transaction.
func (r *GORMOrderRepository) UpdateState(ctx context.Context, id string, expected models.OrderState, change StateChange) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		updates := map[string]any{
			"status":         change.Status,
			"payment_status": change.PaymentStatus,
			"updated_at":     now,
		}
		if change.PaymentDetails != nil {
			updates["payment_transaction_id"] = change.PaymentDetails.TransactionID
			updates["payment_paid_at"] = change.PaymentDetails.PaidAt
			updates["payment_card_last_four"] = change.PaymentDetails.CardLastFour
		}
		if change.CancelReason != "" {
			updates["cancel_reason"] = change.CancelReason
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ? AND payment_status = ?", id, expected.Status, expected.PaymentStatus).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update order %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Order{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check order %s: %w", id, err)
			}
			if count == 0 {
				return fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
			}
			return fmt.Errorf("order %s: %w", id, ErrStateConflict)
		}

		if change.History != nil {
			entry := *change.History
			entry.ID = 0
			entry.OrderID = id
			if entry.CreatedAt.IsZero() {
				entry.CreatedAt = now
			}
			if err := tx.Create(&entry).Error; err != nil {
				return fmt.Errorf("failed to append history for order %s: %w", id, err)
			}
		}
		return nil
	})
}
