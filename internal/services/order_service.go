package services

import (
	"context"
	"errors"
	"fmt"

	"marketplace/internal/models"
	"marketplace/internal/repositories"
	pkgerrors "marketplace/pkg/errors"
	"marketplace/pkg/logger"
	"marketplace/pkg/rabbitmq"
)

// fulfilmentTransitions lists the status moves an admin may make besides a
// refund, which is allowed from any status that is not already refunded.
// Only a pending order can be canceled.
var fulfilmentTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:    {models.OrderStatusProcessing, models.OrderStatusCanceled},
	models.OrderStatusProcessing: {models.OrderStatusShipped},
	models.OrderStatusShipped:    {models.OrderStatusDelivered},
}

// UpdateStatusRequest is the admin status change body.
type UpdateStatusRequest struct {
	Status models.OrderStatus `json:"status" validate:"required,oneof=pending processing shipped delivered canceled refunded"`
	Note   string             `json:"note" validate:"max=500"`
}

// OrderService handles business logic related to orders.
type OrderService struct {
	orders    repositories.OrderRepository
	publisher EventPublisher
	logg      *logger.Logger
}

// NewOrderService creates a new OrderService.
func NewOrderService(orders repositories.OrderRepository, publisher EventPublisher, logg *logger.Logger) *OrderService {
	if logg == nil {
		logg = logger.Nop()
	}
	return &OrderService{orders: orders, publisher: publisher, logg: logg}
}

// GetOrder returns the order if the caller owns it or is an admin.
func (s *OrderService) GetOrder(ctx context.Context, userID string, role models.Role, id string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeOrderNotFound, "order not found")
		}
		return nil, fmt.Errorf("loading order: %w", err)
	}
	if role != models.RoleAdmin && order.CustomerID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeOrderNotFound, "order not found")
	}
	return order, nil
}

// ListOrders returns the caller's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, userID string, filter repositories.OrderFilter) ([]models.Order, error) {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from must not be after to")
	}
	orders, err := s.orders.ListByCustomer(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return orders, nil
}

// UpdateOrderStatus moves an order along the fulfilment flow on behalf of an admin.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, actorID, id string, req UpdateStatusRequest) (*models.Order, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeOrderNotFound, "order not found")
		}
		return nil, fmt.Errorf("loading order: %w", err)
	}
	ctx = s.logg.WithOrderNumber(ctx, order.OrderNumber)

	if !canTransition(order.Status, req.Status) {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot move order from %s to %s", order.Status, req.Status).WithDetails(map[string]any{
			"status":         order.Status,
			"requested":      req.Status,
			"payment_status": order.PaymentStatus,
		})
	}

	note := req.Note
	if note == "" {
		note = fmt.Sprintf("Status changed to %s", req.Status)
	}
	change := repositories.StateChange{
		Status:        req.Status,
		PaymentStatus: order.PaymentStatus,
		History: &models.StatusHistoryEntry{
			Status: req.Status,
			Note:   note,
			Actor:  actorID,
		},
	}
	switch req.Status {
	case models.OrderStatusCanceled:
		change.CancelReason = note
	case models.OrderStatusRefunded:
		if order.PaymentStatus == models.PaymentStatusPaid {
			change.PaymentStatus = models.PaymentStatusRefunded
		}
	}

	if err := s.orders.UpdateState(ctx, order.ID, order.State(), change); err != nil {
		if errors.Is(err, repositories.ErrStateConflict) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "order was modified concurrently")
		}
		return nil, fmt.Errorf("failed to update order status for order %s: %w", id, err)
	}
	applyChange(order, change)
	s.logg.Info(ctx, fmt.Sprintf("order status set to %s", order.Status))

	eventType := rabbitmq.EventOrderStatusChanged
	if order.Status == models.OrderStatusCanceled {
		eventType = rabbitmq.EventOrderCanceled
	}
	publishOrderEvent(ctx, s.publisher, s.logg, eventType, order)
	return order, nil
}

func canTransition(from, to models.OrderStatus) bool {
	if to == models.OrderStatusRefunded {
		return from != models.OrderStatusRefunded
	}
	for _, next := range fulfilmentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
