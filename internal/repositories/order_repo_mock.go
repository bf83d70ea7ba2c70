package repositories

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"marketplace/internal/models"

	"github.com/google/uuid"
)

// MockOrderRepository is an in-memory implementation of OrderRepository.
type MockOrderRepository struct {
	orders   map[string]models.Order
	byNumber map[string]string
	mu       sync.RWMutex
	nextID   uint
}

// NewMockOrderRepository creates a new instance of MockOrderRepository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders:   make(map[string]models.Order),
		byNumber: make(map[string]string),
	}
}

func cloneOrder(order models.Order) models.Order {
	order.Items = slices.Clone(order.Items)
	order.StatusHistory = slices.Clone(order.StatusHistory)
	return order
}

// Create adds a new order, enforcing order number uniqueness.
func (r *MockOrderRepository) Create(ctx context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byNumber[order.OrderNumber]; taken {
		return fmt.Errorf("order number %s: %w", order.OrderNumber, ErrDuplicateOrderNumber)
	}
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now
	for i := range order.Items {
		r.nextID++
		order.Items[i].ID = r.nextID
		order.Items[i].OrderID = order.ID
	}
	for i := range order.StatusHistory {
		r.nextID++
		order.StatusHistory[i].ID = r.nextID
		order.StatusHistory[i].OrderID = order.ID
		if order.StatusHistory[i].CreatedAt.IsZero() {
			order.StatusHistory[i].CreatedAt = now
		}
	}
	r.orders[order.ID] = cloneOrder(*order)
	r.byNumber[order.OrderNumber] = order.ID
	return nil
}

// GetByID returns an order by its ID.
func (r *MockOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	order = cloneOrder(order)
	return &order, nil
}

// GetByNumber returns an order by its order number.
func (r *MockOrderRepository) GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	r.mu.RLock()
	id, ok := r.byNumber[orderNumber]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderNumber, ErrNotFound)
	}
	return r.GetByID(ctx, id)
}

// ExistsByNumber reports whether the order number is taken.
func (r *MockOrderRepository) ExistsByNumber(ctx context.Context, orderNumber string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byNumber[orderNumber]
	return ok, nil
}

// ListByCustomer returns the customer's orders, newest first.
func (r *MockOrderRepository) ListByCustomer(ctx context.Context, customerID string, filter OrderFilter) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orderList := make([]models.Order, 0)
	for _, order := range r.orders {
		if order.CustomerID != customerID {
			continue
		}
		if filter.From != nil && order.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && order.CreatedAt.After(*filter.To) {
			continue
		}
		orderList = append(orderList, cloneOrder(order))
	}
	sort.Slice(orderList, func(i, j int) bool {
		return orderList[i].CreatedAt.After(orderList[j].CreatedAt)
	})
	return orderList, nil
}

// UpdateState applies change if the order still holds expected.
func (r *MockOrderRepository) UpdateState(ctx context.Context, id string, expected models.OrderState, change StateChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	if order.State() != expected {
		return fmt.Errorf("order %s: %w", id, ErrStateConflict)
	}

	now := time.Now().UTC()
	order = cloneOrder(order)
	order.Status = change.Status
	order.PaymentStatus = change.PaymentStatus
	if change.PaymentDetails != nil {
		order.PaymentDetails = *change.PaymentDetails
	}
	if change.CancelReason != "" {
		order.CancelReason = change.CancelReason
	}
	if change.History != nil {
		entry := *change.History
		r.nextID++
		entry.ID = r.nextID
		entry.OrderID = id
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = now
		}
		order.StatusHistory = append(order.StatusHistory, entry)
	}
	order.UpdatedAt = now
	r.orders[id] = order
	return nil
}

type orderSnapshot struct {
	orders   map[string]models.Order
	byNumber map[string]string
}

func (r *MockOrderRepository) snapshot() orderSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := orderSnapshot{
		orders:   make(map[string]models.Order, len(r.orders)),
		byNumber: make(map[string]string, len(r.byNumber)),
	}
	for k, v := range r.orders {
		snap.orders[k] = cloneOrder(v)
	}
	for k, v := range r.byNumber {
		snap.byNumber[k] = v
	}
	return snap
}

func (r *MockOrderRepository) restore(snap orderSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = snap.orders
	r.byNumber = snap.byNumber
}
