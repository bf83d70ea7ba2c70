package payments

import "time"

// Gateway event type names handled by the reconciler.
const (
	EventPaymentIntentSucceeded    = "payment_intent.succeeded"
	EventPaymentIntentFailed       = "payment_intent.payment_failed"
	EventCheckoutSessionCompleted  = "checkout.session.completed"
	EventCheckoutAsyncSucceeded    = "checkout.session.async_payment_succeeded"
	EventCheckoutAsyncFailed       = "checkout.session.async_payment_failed"
	EventCheckoutSessionExpired    = "checkout.session.expired"
	sessionPaymentStatusPaid       = "paid"
	defaultPaymentFailureReasonMsg = "Unknown error"
)

// Intent metadata keys. Boost intents carry PurposeBoost under MetadataPurpose
// and no order number.
const (
	MetadataOrderNumber  = "orderNumber"
	MetadataPurpose      = "purpose"
	MetadataProductID    = "productId"
	MetadataSellerID     = "sellerId"
	MetadataBoostDays    = "boostDays"
	MetadataBoostPackage = "boostPackage"

	PurposeBoost = "boost"
)

// Event is one of PaymentSucceeded, PaymentFailed, SessionExpired,
// BoostPaymentSucceeded or Ignored.
type Event interface {
	Meta() EventMeta
	isEvent()
}

// EventMeta is common to every gateway event.
type EventMeta struct {
	ID          string
	Type        string
	OrderNumber string
	ObjectID    string
	Created     time.Time
}

func (m EventMeta) Meta() EventMeta { return m }

func (EventMeta) isEvent() {}

// PaymentSucceeded confirms funds were captured for an order.
type PaymentSucceeded struct {
	EventMeta
	TransactionID string
	CardLastFour  string
	PaidAt        time.Time
}

// PaymentFailed reports a declined or errored payment attempt.
type PaymentFailed struct {
	EventMeta
	Reason string
}

// SessionExpired reports a hosted checkout session that timed out unpaid.
type SessionExpired struct {
	EventMeta
}

// BoostPaymentSucceeded confirms a seller paid to boost a product.
type BoostPaymentSucceeded struct {
	EventMeta
	ProductID     string
	SellerID      string
	Days          int
	Package       string
	TransactionID string
	PaidAt        time.Time
}

// Ignored is an event the reconciler acknowledges without acting on.
type Ignored struct {
	EventMeta
	Reason string
}
