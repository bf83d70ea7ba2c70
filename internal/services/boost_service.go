package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"marketplace/internal/models"
	"marketplace/internal/repositories"
	pkgerrors "marketplace/pkg/errors"
	"marketplace/pkg/logger"
	"marketplace/pkg/payments"

	"github.com/shopspring/decimal"
)

// maxBoostAttempts bounds reload rounds when a boost changes under a payment.
const maxBoostAttempts = 3

// BoostPayment is the payment intent opened for a boost purchase.
type BoostPayment struct {
	ProductID       string          `json:"product_id"`
	Days            int             `json:"days"`
	Package         string          `json:"package"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	ClientSecret    string          `json:"client_secret"`
	PaymentIntentID string          `json:"payment_intent_id"`
}

// BoostParams wires a BoostService.
type BoostParams struct {
	Products   repositories.ProductRepository
	Gateway    payments.Gateway
	DailyPrice decimal.Decimal
	Currency   string
	Logger     *logger.Logger
}

// BoostService sells boosts and starts them once the gateway confirms the
// payment.
type BoostService struct {
	products   repositories.ProductRepository
	gateway    payments.Gateway
	dailyPrice decimal.Decimal
	currency   string
	logg       *logger.Logger
	now        func() time.Time
}

// NewBoostService creates a new BoostService.
func NewBoostService(params BoostParams) (*BoostService, error) {
	if params.Products == nil {
		return nil, errors.New("product repository required")
	}
	if params.Gateway == nil {
		return nil, errors.New("payment gateway required")
	}
	if !params.DailyPrice.IsPositive() {
		return nil, errors.New("boost daily price must be positive")
	}
	currency := params.Currency
	if currency == "" {
		currency = "usd"
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &BoostService{
		products:   params.Products,
		gateway:    params.Gateway,
		dailyPrice: params.DailyPrice,
		currency:   currency,
		logg:       logg,
		now:        time.Now,
	}, nil
}

// Price is the charge for a boost lasting days days.
func (s *BoostService) Price(days int) decimal.Decimal {
	return s.dailyPrice.Mul(decimal.NewFromInt(int64(days))).Round(2)
}

// CreateBoostPayment opens a payment intent for boosting a product the caller
// manages. Nothing changes on the product until the payment succeeds.
func (s *BoostService) CreateBoostPayment(ctx context.Context, userID string, role models.Role, productID string, req BoostRequest) (*BoostPayment, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	product, err := ownedProduct(ctx, s.products, userID, role, productID)
	if err != nil {
		return nil, err
	}
	if product.Status != models.ProductStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only active products can be boosted")
	}

	ctx = s.logg.WithFields(s.logg.WithUserID(ctx, userID), map[string]any{"product_id": product.ID})
	amount := s.Price(req.Days)
	intent, err := s.gateway.CreateIntent(ctx, payments.IntentRequest{
		Amount:      amount,
		Currency:    s.currency,
		CustomerID:  userID,
		Description: fmt.Sprintf("Boost subscription for %d days", req.Days),
		Metadata: map[string]string{
			payments.MetadataPurpose:      payments.PurposeBoost,
			payments.MetadataProductID:    product.ID,
			payments.MetadataSellerID:     product.SellerID,
			payments.MetadataBoostDays:    strconv.Itoa(req.Days),
			payments.MetadataBoostPackage: req.Package,
		},
	})
	if err != nil {
		s.logg.Error(ctx, "boost payment intent failed", err)
		return nil, err
	}
	s.logg.Info(ctx, fmt.Sprintf("boost payment %s opened for %d days", intent.ID, req.Days))

	return &BoostPayment{
		ProductID:       product.ID,
		Days:            req.Days,
		Package:         req.Package,
		Amount:          amount,
		Currency:        s.currency,
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
	}, nil
}

// ApplyBoostPayment starts or extends the boost paid for by event. A boost
// that is still running is extended from its end date. A redelivered payment
// is recognised by the payment id stored on the boost.
func (s *BoostService) ApplyBoostPayment(ctx context.Context, event payments.BoostPaymentSucceeded) (WebhookOutcome, error) {
	ctx = s.logg.WithField(ctx, "product_id", event.ProductID)
	for attempt := 1; attempt <= maxBoostAttempts; attempt++ {
		product, err := s.products.GetByID(ctx, event.ProductID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				s.logg.Warn(ctx, "boost payment for unknown product")
				return WebhookUnknownProduct, nil
			}
			return "", fmt.Errorf("loading product %s: %w", event.ProductID, err)
		}
		if product.Boost.PaymentID == event.TransactionID {
			return WebhookNoop, nil
		}
		if product.Status != models.ProductStatusActive || (event.SellerID != "" && product.SellerID != event.SellerID) {
			s.logg.Warn(ctx, fmt.Sprintf("boost paid by %s cannot be applied to a %s product; refund required", event.TransactionID, product.Status))
			return WebhookStale, nil
		}

		boost := extendBoost(product.Boost, s.now().UTC(), event)
		err = s.products.UpdateBoost(ctx, product.ID, product.Boost.PaymentID, boost)
		if errors.Is(err, repositories.ErrStateConflict) {
			s.logg.Debug(ctx, fmt.Sprintf("boost changed concurrently, reloading (attempt %d)", attempt))
			continue
		}
		if err != nil {
			return "", fmt.Errorf("updating boost for %s: %w", event.ProductID, err)
		}
		s.logg.Info(ctx, fmt.Sprintf("boost active until %s", boost.EndDate.Format(time.RFC3339)))
		return WebhookApplied, nil
	}
	return "", fmt.Errorf("product %s kept changing while applying boost payment %s", event.ProductID, event.TransactionID)
}

// extendBoost adds the paid days after a running boost, or from now when the
// current boost is over.
func extendBoost(current models.Boost, now time.Time, event payments.BoostPaymentSucceeded) models.Boost {
	start, from := now, now
	if current.Active && current.EndDate != nil && current.EndDate.After(now) {
		from = *current.EndDate
		if current.StartDate != nil {
			start = *current.StartDate
		}
	}
	end := from.AddDate(0, 0, event.Days)
	pkg := event.Package
	if pkg == "" {
		pkg = current.Package
	}
	return models.Boost{
		Active:    true,
		Package:   pkg,
		StartDate: &start,
		EndDate:   &end,
		PaymentID: event.TransactionID,
	}
}
