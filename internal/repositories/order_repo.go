package repositories

import (
	"context"
	"time"

	"marketplace/internal/models"
)

// OrderFilter narrows ListByCustomer to a creation window. Nil bounds are open.
type OrderFilter struct {
	From *time.Time
	To   *time.Time
}

// StateChange is applied by UpdateState together with an optional history entry.
type StateChange struct {
	Status         models.OrderStatus
	PaymentStatus  models.PaymentStatus
	PaymentDetails *models.PaymentDetails
	CancelReason   string
	History        *models.StatusHistoryEntry
}

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	// Create inserts the order with its line items and history. A taken order
	// number yields ErrDuplicateOrderNumber.
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	ExistsByNumber(ctx context.Context, orderNumber string) (bool, error)
	// ListByCustomer returns the customer's orders, newest first.
	ListByCustomer(ctx context.Context, customerID string, filter OrderFilter) ([]models.Order, error)
	// UpdateState applies change only while the order still holds expected.
	// It returns ErrStateConflict when another writer got there first.
	UpdateState(ctx context.Context, id string, expected models.OrderState, change StateChange) error
}
