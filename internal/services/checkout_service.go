package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"marketplace/internal/models"
	"marketplace/internal/repositories"
	pkgerrors "marketplace/pkg/errors"
	"marketplace/pkg/logger"
	"marketplace/pkg/metrics"
	"marketplace/pkg/payments"
	"marketplace/pkg/rabbitmq"

	"github.com/shopspring/decimal"
)

// maxCheckoutTxAttempts bounds whole-transaction retries after an order number
// collision at insert time.
const maxCheckoutTxAttempts = 3

// CheckoutItem is an explicit line in a checkout request.
type CheckoutItem struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

// CheckoutRequest is the input of ProcessCheckout. Items take precedence over
// SelectedCartItems, which take precedence over the whole stored cart.
type CheckoutRequest struct {
	PaymentMethod     models.PaymentMethod `json:"payment_method" validate:"required,oneof=credit_card paypal bank_transfer cash_on_delivery"`
	ShippingAddress   *models.Address      `json:"shipping_address" validate:"required"`
	BillingAddress    *models.Address      `json:"billing_address" validate:"omitempty"`
	Notes             string               `json:"notes" validate:"max=500"`
	Items             []CheckoutItem       `json:"items" validate:"omitempty,dive"`
	SelectedCartItems []string             `json:"selected_cart_items" validate:"omitempty,dive,required"`
}

// CheckoutResult carries the persisted order and, for card payments, the
// client secret. ClientSecret is never stored.
type CheckoutResult struct {
	Order           *models.Order
	ClientSecret    string
	PaymentIntentID string
}

// resolvedLine is one purchase line after precedence rules are applied.
type resolvedLine struct {
	ProductID  string
	Quantity   int
	CartItemID string
}

// CheckoutParams wires a CheckoutService. OrderNumbers, Publisher, Logger and
// Metrics are optional; Currency defaults to usd.
type CheckoutParams struct {
	Store        repositories.Store
	Gateway      payments.Gateway
	Pricing      Pricing
	OrderNumbers *OrderNumberGenerator
	Publisher    EventPublisher
	Logger       *logger.Logger
	Metrics      *metrics.CheckoutMetrics
	Currency     string
}

// CheckoutService turns carts into orders and opens payment intents.
type CheckoutService struct {
	store        repositories.Store
	gateway      payments.Gateway
	pricing      Pricing
	orderNumbers *OrderNumberGenerator
	publisher    EventPublisher
	logg         *logger.Logger
	metrics      *metrics.CheckoutMetrics
	currency     string
}

// NewCheckoutService creates a new CheckoutService. Store and Gateway are
// required.
func NewCheckoutService(params CheckoutParams) (*CheckoutService, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	numbers := params.OrderNumbers
	if numbers == nil {
		numbers = NewOrderNumberGenerator(defaultOrderNumberAttempts)
	}
	currency := strings.ToLower(params.Currency)
	if currency == "" {
		currency = "usd"
	}
	return &CheckoutService{
		store:        params.Store,
		gateway:      params.Gateway,
		pricing:      params.Pricing,
		orderNumbers: numbers,
		publisher:    params.Publisher,
		logg:         logg,
		metrics:      params.Metrics,
		currency:     currency,
	}, nil
}

// ProcessCheckout validates the request, reserves stock, persists a pending
// order and clears consumed cart entries in one transaction. For card payments
// it then opens a payment intent. When the gateway fails the committed order is
// still returned together with a PAYMENT_GATEWAY_ERROR.
func (s *CheckoutService) ProcessCheckout(ctx context.Context, userID string, req CheckoutRequest) (*CheckoutResult, error) {
	ctx = s.logg.WithUserID(ctx, userID)
	result, err := s.processCheckout(ctx, userID, req)
	if err != nil {
		s.metrics.Observe(string(pkgerrors.CodeOf(err)))
	} else {
		s.metrics.Observe("ok")
	}
	return result, err
}

func (s *CheckoutService) processCheckout(ctx context.Context, userID string, req CheckoutRequest) (*CheckoutResult, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.BillingAddress == nil || req.BillingAddress.IsZero() {
		billing := *req.ShippingAddress
		req.BillingAddress = &billing
	}

	var order *models.Order
	var err error
	for attempt := 1; attempt <= maxCheckoutTxAttempts; attempt++ {
		order, err = s.placeOrder(ctx, userID, req)
		if !errors.Is(err, repositories.ErrDuplicateOrderNumber) {
			break
		}
		s.logg.Warn(ctx, fmt.Sprintf("order number collided at insert, retrying (attempt %d)", attempt))
	}
	if errors.Is(err, repositories.ErrDuplicateOrderNumber) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeOrderNumberExhausted, err, "could not allocate an order number")
	}
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderNumber(ctx, order.OrderNumber)
	s.logg.Info(ctx, "order created")
	publishOrderEvent(ctx, s.publisher, s.logg, rabbitmq.EventOrderCreated, order)

	result := &CheckoutResult{Order: order}
	if order.PaymentMethod != models.PaymentMethodCreditCard {
		return result, nil
	}

	intent, err := s.createIntent(ctx, order)
	if err != nil {
		s.logg.Error(ctx, "payment intent creation failed; order left pending", err)
		return result, err
	}
	result.ClientSecret = intent.ClientSecret
	result.PaymentIntentID = intent.ID
	return result, nil
}

// placeOrder runs the transactional part of checkout.
func (s *CheckoutService) placeOrder(ctx context.Context, userID string, req CheckoutRequest) (*models.Order, error) {
	var created *models.Order
	err := s.store.WithTx(ctx, func(tx repositories.Store) error {
		lines, err := s.resolveLines(ctx, tx, userID, req)
		if err != nil {
			return err
		}

		items := make([]models.OrderLineItem, 0, len(lines))
		subtotal := decimal.Zero
		for _, line := range lines {
			product, err := tx.Products().GetByID(ctx, line.ProductID)
			if err != nil && !errors.Is(err, repositories.ErrNotFound) {
				return fmt.Errorf("loading product %s: %w", line.ProductID, err)
			}
			if product == nil || !product.Purchasable(line.Quantity) {
				return unavailableError(line, product)
			}
			lineTotal := LineTotal(product.Price, line.Quantity)
			subtotal = subtotal.Add(lineTotal)
			items = append(items, models.OrderLineItem{
				ProductID:   product.ID,
				ProductName: product.Name,
				SellerID:    product.SellerID,
				Quantity:    line.Quantity,
				UnitPrice:   product.Price,
				LineTotal:   lineTotal,
			})
		}
		totals := s.pricing.Quote(subtotal)

		for _, line := range lines {
			if err := tx.Products().ReserveStock(ctx, line.ProductID, line.Quantity); err != nil {
				if errors.Is(err, repositories.ErrInsufficientStock) {
					return pkgerrors.Wrap(pkgerrors.CodeInsufficientStock, err, "insufficient stock").WithDetails(map[string]any{
						"product_id": line.ProductID,
						"requested":  line.Quantity,
					})
				}
				return fmt.Errorf("reserving stock: %w", err)
			}
		}

		number, err := s.orderNumbers.Generate(ctx, tx.Orders())
		if err != nil {
			return err
		}

		order := &models.Order{
			OrderNumber:     number,
			CustomerID:      userID,
			Items:           items,
			Subtotal:        totals.Subtotal,
			Tax:             totals.Tax,
			ShippingCost:    totals.ShippingCost,
			Discount:        totals.Discount,
			Total:           totals.Total,
			Currency:        s.currency,
			PaymentMethod:   req.PaymentMethod,
			Status:          models.OrderStatusPending,
			PaymentStatus:   models.PaymentStatusPending,
			ShippingAddress: *req.ShippingAddress,
			BillingAddress:  *req.BillingAddress,
			Notes:           req.Notes,
			StatusHistory: []models.StatusHistoryEntry{{
				Status: models.OrderStatusPending,
				Note:   "Order created",
				Actor:  userID,
			}},
		}
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}

		consumed := make([]string, 0, len(lines))
		for _, line := range lines {
			if line.CartItemID != "" {
				consumed = append(consumed, line.CartItemID)
			}
		}
		if len(consumed) > 0 {
			if _, err := tx.Users().RemoveCartItems(ctx, userID, consumed...); err != nil {
				return fmt.Errorf("clearing cart: %w", err)
			}
		}

		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// resolveLines applies the item precedence rules and normalizes the result.
func (s *CheckoutService) resolveLines(ctx context.Context, tx repositories.Store, userID string, req CheckoutRequest) ([]resolvedLine, error) {
	if len(req.Items) > 0 {
		lines := make([]resolvedLine, 0, len(req.Items))
		index := make(map[string]int, len(req.Items))
		for _, item := range req.Items {
			if i, ok := index[item.ProductID]; ok {
				lines[i].Quantity += item.Quantity
				continue
			}
			index[item.ProductID] = len(lines)
			lines = append(lines, resolvedLine{ProductID: item.ProductID, Quantity: item.Quantity})
		}
		return lines, nil
	}

	cart, err := tx.Users().GetCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading cart: %w", err)
	}

	if len(req.SelectedCartItems) > 0 {
		byID := make(map[string]models.CartItem, len(cart))
		for _, item := range cart {
			byID[item.ID] = item
		}
		lines := make([]resolvedLine, 0, len(req.SelectedCartItems))
		seen := make(map[string]bool, len(req.SelectedCartItems))
		var unknown []string
		for _, id := range req.SelectedCartItems {
			if seen[id] {
				continue
			}
			seen[id] = true
			item, ok := byID[id]
			if !ok {
				unknown = append(unknown, id)
				continue
			}
			lines = append(lines, resolvedLine{ProductID: item.ProductID, Quantity: item.Quantity, CartItemID: item.ID})
		}
		if len(unknown) > 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "selected cart items not found").WithDetails(map[string]any{
				"selected_cart_items": unknown,
			})
		}
		return lines, nil
	}

	if len(cart) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
	}
	lines := make([]resolvedLine, 0, len(cart))
	for _, item := range cart {
		lines = append(lines, resolvedLine{ProductID: item.ProductID, Quantity: item.Quantity, CartItemID: item.ID})
	}
	return lines, nil
}

func unavailableError(line resolvedLine, product *models.Product) error {
	details := map[string]any{
		"product_id": line.ProductID,
		"requested":  line.Quantity,
	}
	if product == nil {
		return pkgerrors.New(pkgerrors.CodeProductUnavailable, "product not found").WithDetails(details)
	}
	details["available"] = product.Stock
	details["status"] = product.Status
	if product.Status != models.ProductStatusActive {
		return pkgerrors.Newf(pkgerrors.CodeProductUnavailable, "product %s is not available", product.Name).WithDetails(details)
	}
	return pkgerrors.Newf(pkgerrors.CodeProductUnavailable, "only %d units of %s available", product.Stock, product.Name).WithDetails(details)
}

func (s *CheckoutService) createIntent(ctx context.Context, order *models.Order) (*payments.Intent, error) {
	return s.gateway.CreateIntent(ctx, payments.IntentRequest{
		Amount:      order.Total,
		Currency:    order.Currency,
		CustomerID:  order.CustomerID,
		Description: fmt.Sprintf("Payment for order #%s", order.OrderNumber),
		Metadata: map[string]string{
			payments.MetadataOrderNumber: order.OrderNumber,
		},
	})
}

// RetryPaymentIntent opens a fresh payment intent for a pending card order of
// the caller whose previous attempt is pending or failed. Stock and cart are
// not touched.
func (s *CheckoutService) RetryPaymentIntent(ctx context.Context, userID, orderNumber string) (*CheckoutResult, error) {
	ctx = s.logg.WithOrderNumber(s.logg.WithUserID(ctx, userID), orderNumber)

	order, err := s.store.Orders().GetByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeOrderNotFound, "order not found")
		}
		return nil, fmt.Errorf("loading order: %w", err)
	}
	if order.CustomerID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeOrderNotFound, "order not found")
	}
	if order.PaymentMethod != models.PaymentMethodCreditCard ||
		order.Status != models.OrderStatusPending ||
		(order.PaymentStatus != models.PaymentStatusPending && order.PaymentStatus != models.PaymentStatusFailed) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting card payment").WithDetails(map[string]any{
			"status":         order.Status,
			"payment_status": order.PaymentStatus,
			"payment_method": order.PaymentMethod,
		})
	}

	intent, err := s.createIntent(ctx, order)
	if err != nil {
		s.logg.Error(ctx, "payment intent retry failed", err)
		return nil, err
	}
	s.logg.Info(ctx, "payment intent reissued")
	return &CheckoutResult{Order: order, ClientSecret: intent.ClientSecret, PaymentIntentID: intent.ID}, nil
}
