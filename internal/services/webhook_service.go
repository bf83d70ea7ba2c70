package services

import (
	"context"
	"errors"
	"fmt"

	"marketplace/internal/models"
	"marketplace/internal/repositories"
	"marketplace/pkg/logger"
	"marketplace/pkg/metrics"
	"marketplace/pkg/payments"
	"marketplace/pkg/rabbitmq"
)

// maxWebhookAttempts bounds reload-and-replan rounds after a lost race.
const maxWebhookAttempts = 3

// gatewayActor is recorded on history entries written by the reconciler.
const gatewayActor = "payment_gateway"

// WebhookOutcome describes what HandleEvent did with an event.
type WebhookOutcome string

const (
	WebhookApplied        WebhookOutcome = "applied"
	WebhookDuplicate      WebhookOutcome = "duplicate"
	WebhookNoop           WebhookOutcome = "noop"
	WebhookStale          WebhookOutcome = "stale"
	WebhookIgnored        WebhookOutcome = "ignored"
	WebhookUnknownOrder   WebhookOutcome = "unknown_order"
	WebhookUnknownProduct WebhookOutcome = "unknown_product"
)

// BoostPaymentApplier activates boosts once their payment is confirmed.
type BoostPaymentApplier interface {
	ApplyBoostPayment(ctx context.Context, event payments.BoostPaymentSucceeded) (WebhookOutcome, error)
}

// WebhookParams wires a WebhookService. Guard, Boosts, Publisher and Metrics
// are optional.
type WebhookParams struct {
	Store     repositories.Store
	Guard     *WebhookGuard
	Boosts    BoostPaymentApplier
	Publisher EventPublisher
	Logger    *logger.Logger
	Metrics   *metrics.WebhookMetrics
}

// WebhookService reconciles gateway events into order and boost state.
type WebhookService struct {
	store     repositories.Store
	guard     *WebhookGuard
	boosts    BoostPaymentApplier
	publisher EventPublisher
	logg      *logger.Logger
	metrics   *metrics.WebhookMetrics
}

// NewWebhookService creates a new WebhookService.
func NewWebhookService(params WebhookParams) (*WebhookService, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &WebhookService{
		store:     params.Store,
		guard:     params.Guard,
		boosts:    params.Boosts,
		publisher: params.Publisher,
		logg:      logg,
		metrics:   params.Metrics,
	}, nil
}

// transition is the planned write for one event against one observed order.
type transition struct {
	change    repositories.StateChange
	eventType string
}

// HandleEvent applies a verified gateway event. Unknown orders and events that
// do not move the order are acknowledged without error.
func (s *WebhookService) HandleEvent(ctx context.Context, event payments.Event) (WebhookOutcome, error) {
	meta := event.Meta()
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":   meta.ID,
		"event_type": meta.Type,
	})
	if meta.OrderNumber != "" {
		ctx = s.logg.WithOrderNumber(ctx, meta.OrderNumber)
	}

	outcome, err := s.handleEvent(ctx, event)
	if err != nil {
		s.metrics.Observe(meta.Type, "error")
		return outcome, err
	}
	s.metrics.Observe(meta.Type, string(outcome))
	return outcome, nil
}

func (s *WebhookService) handleEvent(ctx context.Context, event payments.Event) (WebhookOutcome, error) {
	meta := event.Meta()

	if ignored, ok := event.(payments.Ignored); ok {
		s.logg.Debug(ctx, "gateway event ignored: "+ignored.Reason)
		return WebhookIgnored, nil
	}
	boost, isBoost := event.(payments.BoostPaymentSucceeded)
	switch {
	case isBoost && s.boosts == nil:
		s.logg.Warn(ctx, "boost payment received but boosts are not configured")
		return WebhookIgnored, nil
	case !isBoost && meta.OrderNumber == "":
		s.logg.Warn(ctx, "gateway event carries no order number")
		return WebhookUnknownOrder, nil
	}

	guarded := s.guard != nil && meta.ID != ""
	if guarded {
		applied, err := s.guard.Applied(ctx, meta.ID)
		if err != nil {
			s.logg.Error(ctx, "webhook idempotency check failed; relying on state guard", err)
		} else if applied {
			s.logg.Info(ctx, "duplicate gateway event")
			return WebhookDuplicate, nil
		}
	}

	var (
		outcome WebhookOutcome
		err     error
	)
	if isBoost {
		outcome, err = s.boosts.ApplyBoostPayment(ctx, boost)
	} else {
		outcome, err = s.reconcile(ctx, event)
	}
	if err != nil {
		return outcome, err
	}

	if guarded {
		if markErr := s.guard.MarkApplied(ctx, meta.ID); markErr != nil {
			s.logg.Error(ctx, "failed to record webhook idempotency key", markErr)
		}
	}
	return outcome, nil
}

func (s *WebhookService) reconcile(ctx context.Context, event payments.Event) (WebhookOutcome, error) {
	meta := event.Meta()
	for attempt := 1; attempt <= maxWebhookAttempts; attempt++ {
		order, err := s.store.Orders().GetByNumber(ctx, meta.OrderNumber)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				s.logg.Warn(ctx, "gateway event for unknown order")
				return WebhookUnknownOrder, nil
			}
			return "", fmt.Errorf("loading order %s: %w", meta.OrderNumber, err)
		}

		plan, outcome := planTransition(order, event)
		if plan == nil {
			if outcome == WebhookStale {
				s.logg.Warn(ctx, fmt.Sprintf("gateway event arrived after order reached %s/%s", order.Status, order.PaymentStatus))
			}
			return outcome, nil
		}

		err = s.store.Orders().UpdateState(ctx, order.ID, order.State(), plan.change)
		if errors.Is(err, repositories.ErrStateConflict) {
			s.logg.Debug(ctx, fmt.Sprintf("order changed concurrently, replanning (attempt %d)", attempt))
			continue
		}
		if err != nil {
			return "", fmt.Errorf("updating order %s: %w", meta.OrderNumber, err)
		}

		applyChange(order, plan.change)
		s.logg.Info(ctx, fmt.Sprintf("order moved to %s/%s", order.Status, order.PaymentStatus))
		publishOrderEvent(ctx, s.publisher, s.logg, plan.eventType, order)
		return WebhookApplied, nil
	}
	return "", fmt.Errorf("order %s kept changing while applying %s", meta.OrderNumber, meta.Type)
}

// planTransition decides the write for event given the order's current state.
// paid and refunded are terminal for failure and expiry, canceled is terminal
// for every payment event, and failed may still become paid.
func planTransition(order *models.Order, event payments.Event) (*transition, WebhookOutcome) {
	switch ev := event.(type) {
	case payments.PaymentSucceeded:
		switch {
		case order.Status == models.OrderStatusCanceled:
			return nil, WebhookStale
		case order.PaymentStatus == models.PaymentStatusPaid:
			return nil, WebhookNoop
		case order.PaymentStatus == models.PaymentStatusRefunded:
			return nil, WebhookStale
		}
		status := order.Status
		if status == models.OrderStatusPending {
			status = models.OrderStatusProcessing
		}
		paidAt := ev.PaidAt
		return &transition{
			eventType: rabbitmq.EventOrderPaid,
			change: repositories.StateChange{
				Status:        status,
				PaymentStatus: models.PaymentStatusPaid,
				PaymentDetails: &models.PaymentDetails{
					TransactionID: ev.TransactionID,
					PaidAt:        &paidAt,
					CardLastFour:  ev.CardLastFour,
				},
				History: &models.StatusHistoryEntry{
					Status: status,
					Note:   "Payment confirmed",
					Actor:  gatewayActor,
				},
			},
		}, WebhookApplied

	case payments.PaymentFailed:
		switch {
		case order.Status == models.OrderStatusCanceled,
			order.PaymentStatus == models.PaymentStatusPaid,
			order.PaymentStatus == models.PaymentStatusRefunded:
			return nil, WebhookStale
		case order.Status == models.OrderStatusPending && order.PaymentStatus == models.PaymentStatusFailed:
			return nil, WebhookNoop
		}
		return &transition{
			eventType: rabbitmq.EventOrderPaymentFailed,
			change: repositories.StateChange{
				Status:        models.OrderStatusPending,
				PaymentStatus: models.PaymentStatusFailed,
				History: &models.StatusHistoryEntry{
					Status: models.OrderStatusPending,
					Note:   "Payment failed: " + ev.Reason,
					Actor:  gatewayActor,
				},
			},
		}, WebhookApplied

	case payments.SessionExpired:
		switch {
		case order.Status == models.OrderStatusCanceled:
			return nil, WebhookNoop
		case order.PaymentStatus == models.PaymentStatusPaid,
			order.PaymentStatus == models.PaymentStatusRefunded:
			return nil, WebhookStale
		}
		const note = "Checkout session expired"
		return &transition{
			eventType: rabbitmq.EventOrderCanceled,
			change: repositories.StateChange{
				Status:        models.OrderStatusCanceled,
				PaymentStatus: models.PaymentStatusFailed,
				CancelReason:  note,
				History: &models.StatusHistoryEntry{
					Status: models.OrderStatusCanceled,
					Note:   note,
					Actor:  gatewayActor,
				},
			},
		}, WebhookApplied
	}
	return nil, WebhookIgnored
}

// applyChange mirrors a committed StateChange onto the in-memory order.
func applyChange(order *models.Order, change repositories.StateChange) {
	order.Status = change.Status
	order.PaymentStatus = change.PaymentStatus
	if change.PaymentDetails != nil {
		order.PaymentDetails = *change.PaymentDetails
	}
	if change.CancelReason != "" {
		order.CancelReason = change.CancelReason
	}
	if change.History != nil {
		order.StatusHistory = append(order.StatusHistory, *change.History)
	}
}
