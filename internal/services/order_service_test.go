package services_test

import (
	"context"
	"testing"
	"time"

	"marketplace/internal/models"
	"marketplace/internal/repositories"
	"marketplace/internal/services"
	pkgerrors "marketplace/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedOrder(t *testing.T, orders repositories.OrderRepository, number, customerID string) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderNumber:   number,
		CustomerID:    customerID,
		PaymentMethod: models.PaymentMethodCreditCard,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
	}
	require.NoError(t, orders.Create(context.Background(), order))
	return order
}

func TestOrderService_GetOrderOwnership(t *testing.T) {
	ctx := context.Background()
	orders := repositories.NewMockOrderRepository()
	service := services.NewOrderService(orders, nil, nil)
	order := seedOrder(t, orders, "ORD-20240101-0001", "owner")

	got, err := service.GetOrder(ctx, "owner", models.RoleCustomer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, got.OrderNumber)

	_, err = service.GetOrder(ctx, "stranger", models.RoleCustomer, order.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeOrderNotFound))

	_, err = service.GetOrder(ctx, "admin-1", models.RoleAdmin, order.ID)
	assert.NoError(t, err)

	_, err = service.GetOrder(ctx, "owner", models.RoleCustomer, "missing")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeOrderNotFound))
}

func TestOrderService_ListOrders(t *testing.T) {
	ctx := context.Background()
	orders := repositories.NewMockOrderRepository()
	service := services.NewOrderService(orders, nil, nil)
	seedOrder(t, orders, "ORD-20240101-0001", "owner")
	seedOrder(t, orders, "ORD-20240101-0002", "owner")
	seedOrder(t, orders, "ORD-20240101-0003", "someone-else")

	list, err := service.ListOrders(ctx, "owner", repositories.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	from := time.Now().Add(time.Hour)
	to := time.Now()
	_, err = service.ListOrders(ctx, "owner", repositories.OrderFilter{From: &from, To: &to})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestOrderService_UpdateOrderStatus(t *testing.T) {
	ctx := context.Background()
	orders := repositories.NewMockOrderRepository()
	publisher := &recordingPublisher{}
	service := services.NewOrderService(orders, publisher, nil)
	order := seedOrder(t, orders, "ORD-20240101-0001", "owner")

	updated, err := service.UpdateOrderStatus(ctx, "admin-1", order.ID, services.UpdateStatusRequest{Status: models.OrderStatusProcessing})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusProcessing, updated.Status)

	_, err = service.UpdateOrderStatus(ctx, "admin-1", order.ID, services.UpdateStatusRequest{Status: models.OrderStatusDelivered})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))

	_, err = service.UpdateOrderStatus(ctx, "admin-1", order.ID, services.UpdateStatusRequest{Status: "lost"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	// A processing order is past the point of cancellation.
	_, err = service.UpdateOrderStatus(ctx, "admin-1", order.ID, services.UpdateStatusRequest{Status: models.OrderStatusCanceled})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))

	pending := seedOrder(t, orders, "ORD-20240101-0002", "owner")
	canceled, err := service.UpdateOrderStatus(ctx, "admin-1", pending.ID, services.UpdateStatusRequest{
		Status: models.OrderStatusCanceled,
		Note:   "customer request",
	})
	require.NoError(t, err)
	assert.Equal(t, "customer request", canceled.CancelReason)

	stored, err := orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.StatusHistory, 1)
	assert.Equal(t, "Status changed to processing", stored.StatusHistory[0].Note)
	assert.Equal(t, "admin-1", stored.StatusHistory[0].Actor)

	stored, err = orders.GetByID(ctx, pending.ID)
	require.NoError(t, err)
	require.Len(t, stored.StatusHistory, 1)
	assert.Equal(t, models.OrderStatusCanceled, stored.StatusHistory[0].Status)
	assert.Equal(t, []string{"order.status_changed", "order.canceled"}, publisher.types())

	_, err = service.UpdateOrderStatus(ctx, "admin-1", "missing", services.UpdateStatusRequest{Status: models.OrderStatusShipped})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeOrderNotFound))
}

func TestOrderService_RefundMarksPaymentRefunded(t *testing.T) {
	ctx := context.Background()
	orders := repositories.NewMockOrderRepository()
	service := services.NewOrderService(orders, nil, nil)
	order := seedOrder(t, orders, "ORD-20240101-0001", "owner")
	require.NoError(t, orders.UpdateState(ctx, order.ID, order.State(), repositories.StateChange{
		Status:        models.OrderStatusDelivered,
		PaymentStatus: models.PaymentStatusPaid,
	}))

	refunded, err := service.UpdateOrderStatus(ctx, "admin-1", order.ID, services.UpdateStatusRequest{Status: models.OrderStatusRefunded})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, refunded.PaymentStatus)
}

func TestOrderService_RefundFromAnyStatus(t *testing.T) {
	ctx := context.Background()

	for _, from := range []models.OrderStatus{
		models.OrderStatusPending,
		models.OrderStatusProcessing,
		models.OrderStatusShipped,
		models.OrderStatusDelivered,
		models.OrderStatusCanceled,
	} {
		t.Run(string(from), func(t *testing.T) {
			orders := repositories.NewMockOrderRepository()
			service := services.NewOrderService(orders, nil, nil)
			order := seedOrder(t, orders, "ORD-20240101-0001", "owner")
			paymentStatus := models.PaymentStatusPaid
			if from == models.OrderStatusPending || from == models.OrderStatusCanceled {
				paymentStatus = models.PaymentStatusPending
			}
			require.NoError(t, orders.UpdateState(ctx, order.ID, order.State(), repositories.StateChange{
				Status:        from,
				PaymentStatus: paymentStatus,
			}))

			refunded, err := service.UpdateOrderStatus(ctx, "admin-1", order.ID, services.UpdateStatusRequest{Status: models.OrderStatusRefunded})
			require.NoError(t, err)
			assert.Equal(t, models.OrderStatusRefunded, refunded.Status)
			if paymentStatus == models.PaymentStatusPaid {
				assert.Equal(t, models.PaymentStatusRefunded, refunded.PaymentStatus)
			} else {
				assert.Equal(t, paymentStatus, refunded.PaymentStatus)
			}

			_, err = service.UpdateOrderStatus(ctx, "admin-1", order.ID, services.UpdateStatusRequest{Status: models.OrderStatusRefunded})
			assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
		})
	}
}
