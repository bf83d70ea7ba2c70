package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"marketplace/pkg/config"
	pkgerrors "marketplace/pkg/errors"
	"marketplace/pkg/logger"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/webhook"
)

const defaultGatewayTimeout = 5 * time.Second

type intentCreator func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)

// StripeGateway implements Gateway on top of stripe-go.
type StripeGateway struct {
	apiKey        string
	webhookSecret string
	currency      string
	timeout       time.Duration
	newIntent     intentCreator
	logg          *logger.Logger
}

// NewStripeGateway configures the global stripe key and returns the adapter.
// A missing secret key is tolerated so non-card checkouts keep working; card
// checkouts then fail with a gateway error.
func NewStripeGateway(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) *StripeGateway {
	if logg == nil {
		logg = logger.Nop()
	}
	apiKey := strings.TrimSpace(cfg.SecretKey)
	if apiKey != "" {
		stripe.Key = apiKey
		logg.Info(ctx, "stripe gateway initialized")
	} else {
		logg.Warn(ctx, "stripe secret key not configured; card payments disabled")
	}
	if cfg.WebhookSecret == "" {
		logg.Warn(ctx, "stripe webhook secret not configured; webhook signatures will not be verified")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}

	return &StripeGateway{
		apiKey:        apiKey,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		currency:      currency,
		timeout:       timeout,
		newIntent:     paymentintent.New,
		logg:          logg,
	}
}

// CreateIntent registers a payment intent for req.Amount. Calls are never retried.
func (g *StripeGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if g.apiKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodePaymentGateway, "payment gateway is not configured")
	}
	if req.Amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be non-negative")
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = g.currency
	}

	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(MinorUnits(req.Amount)),
		Currency:    stripe.String(currency),
		Description: stripe.String(req.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}
	if req.CustomerID != "" {
		params.AddMetadata("customerId", req.CustomerID)
	}

	pi, err := g.newIntent(params)
	if err != nil {
		return nil, gatewayError(err)
	}
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func gatewayError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		msg := stripeErr.Msg
		if msg == "" {
			msg = "payment gateway rejected the request"
		}
		return pkgerrors.Wrap(pkgerrors.CodePaymentGateway, err, msg).WithDetails(map[string]any{
			"providerCode": string(stripeErr.Code),
			"providerType": string(stripeErr.Type),
		})
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodePaymentGateway, err, "payment gateway timed out")
	}
	return pkgerrors.Wrap(pkgerrors.CodePaymentGateway, err, "payment gateway request failed")
}

// ParseWebhook verifies the Stripe-Signature header over the raw payload and
// maps the event to one of the typed variants.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (Event, error) {
	var (
		event stripe.Event
		err   error
	)
	if g.webhookSecret == "" {
		err = json.Unmarshal(payload, &event)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook payload")
		}
	} else {
		if strings.TrimSpace(signature) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeWebhookSignature, "stripe signature missing")
		}
		event, err = webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeWebhookSignature, err, "verify signature")
		}
	}
	return decodeEvent(event)
}

// eventObject is the subset of payment intent and checkout session fields
// the reconciler reads.
type eventObject struct {
	ID               string            `json:"id"`
	PaymentStatus    string            `json:"payment_status"`
	Metadata         map[string]string `json:"metadata"`
	PaymentIntent    json.RawMessage   `json:"payment_intent"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
	PaymentMethodDetails *struct {
		Card *struct {
			Last4 string `json:"last4"`
		} `json:"card"`
	} `json:"payment_method_details"`
}

func decodeEvent(event stripe.Event) (Event, error) {
	meta := EventMeta{
		ID:   event.ID,
		Type: string(event.Type),
	}
	if event.Created > 0 {
		meta.Created = time.Unix(event.Created, 0).UTC()
	}

	var obj eventObject
	if event.Data != nil && len(event.Data.Raw) > 0 {
		if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook object")
		}
	}
	meta.ObjectID = obj.ID
	meta.OrderNumber = strings.TrimSpace(obj.Metadata[MetadataOrderNumber])

	paidAt := meta.Created
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}
	if obj.Metadata[MetadataPurpose] == PurposeBoost {
		return decodeBoostEvent(meta, obj, paidAt), nil
	}

	switch meta.Type {
	case EventPaymentIntentSucceeded:
		return PaymentSucceeded{
			EventMeta:     meta,
			TransactionID: obj.ID,
			CardLastFour:  obj.cardLastFour(),
			PaidAt:        paidAt,
		}, nil
	case EventPaymentIntentFailed:
		return PaymentFailed{EventMeta: meta, Reason: obj.failureReason()}, nil
	case EventCheckoutSessionCompleted:
		if obj.PaymentStatus != sessionPaymentStatusPaid {
			return Ignored{EventMeta: meta, Reason: fmt.Sprintf("awaiting asynchronous payment (payment_status=%s)", obj.PaymentStatus)}, nil
		}
		return PaymentSucceeded{EventMeta: meta, TransactionID: obj.transactionID(), PaidAt: paidAt}, nil
	case EventCheckoutAsyncSucceeded:
		return PaymentSucceeded{EventMeta: meta, TransactionID: obj.transactionID(), PaidAt: paidAt}, nil
	case EventCheckoutAsyncFailed:
		return PaymentFailed{EventMeta: meta, Reason: obj.failureReason()}, nil
	case EventCheckoutSessionExpired:
		return SessionExpired{EventMeta: meta}, nil
	default:
		return Ignored{EventMeta: meta, Reason: "unhandled event type"}, nil
	}
}

// decodeBoostEvent maps boost intents. Only a succeeded intent matters: a
// failed boost payment leaves the product untouched.
func decodeBoostEvent(meta EventMeta, obj eventObject, paidAt time.Time) Event {
	if meta.Type != EventPaymentIntentSucceeded {
		return Ignored{EventMeta: meta, Reason: "boost payment event " + meta.Type}
	}
	productID := strings.TrimSpace(obj.Metadata[MetadataProductID])
	days, err := strconv.Atoi(obj.Metadata[MetadataBoostDays])
	if productID == "" || err != nil || days < 1 {
		return Ignored{EventMeta: meta, Reason: "boost payment without usable metadata"}
	}
	return BoostPaymentSucceeded{
		EventMeta:     meta,
		ProductID:     productID,
		SellerID:      obj.Metadata[MetadataSellerID],
		Days:          days,
		Package:       obj.Metadata[MetadataBoostPackage],
		TransactionID: obj.ID,
		PaidAt:        paidAt,
	}
}

func (o eventObject) cardLastFour() string {
	if o.PaymentMethodDetails == nil || o.PaymentMethodDetails.Card == nil {
		return ""
	}
	return o.PaymentMethodDetails.Card.Last4
}

func (o eventObject) failureReason() string {
	if o.LastPaymentError != nil && o.LastPaymentError.Message != "" {
		return o.LastPaymentError.Message
	}
	return defaultPaymentFailureReasonMsg
}

// transactionID prefers the session's payment intent id, which may arrive as
// a bare string or an expanded object.
func (o eventObject) transactionID() string {
	if len(o.PaymentIntent) > 0 {
		var id string
		if err := json.Unmarshal(o.PaymentIntent, &id); err == nil && id != "" {
			return id
		}
		var expanded struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(o.PaymentIntent, &expanded); err == nil && expanded.ID != "" {
			return expanded.ID
		}
	}
	return o.ID
}
