package handlers

import (
	"marketplace/internal/middleware"
	"marketplace/internal/services"
	"marketplace/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// CheckoutHandler turns carts into orders.
type CheckoutHandler struct {
	service *services.CheckoutService
	logg    *logger.Logger
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(service *services.CheckoutService, logg *logger.Logger) *CheckoutHandler {
	return &CheckoutHandler{service: service, logg: logg}
}

// RegisterRoutes registers the checkout routes behind auth.
func (h *CheckoutHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	checkout := router.Group("/checkout", auth)
	checkout.Post("/", h.HandleCheckout)
	checkout.Post("/orders/:orderNumber/payment-intent", h.HandleRetryPaymentIntent)
}

// HandleCheckout creates the order. A gateway failure after the order was
// committed answers 502 and still carries the order.
func (h *CheckoutHandler) HandleCheckout(c *fiber.Ctx) error {
	var req services.CheckoutRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, h.logg, err)
	}

	result, err := h.service.ProcessCheckout(c.UserContext(), middleware.UserID(c), req)
	if err != nil {
		if result == nil || result.Order == nil {
			return writeError(c, h.logg, err)
		}
		status, body := errorBody(err)
		body["order"] = result.Order
		return c.Status(status).JSON(body)
	}

	body := fiber.Map{"order": result.Order}
	if result.ClientSecret != "" {
		body["client_secret"] = result.ClientSecret
	}
	return c.Status(fiber.StatusCreated).JSON(body)
}

// HandleRetryPaymentIntent issues a fresh client secret for a pending card order.
func (h *CheckoutHandler) HandleRetryPaymentIntent(c *fiber.Ctx) error {
	result, err := h.service.RetryPaymentIntent(c.UserContext(), middleware.UserID(c), c.Params("orderNumber"))
	if err != nil {
		return writeError(c, h.logg, err)
	}
	return c.JSON(fiber.Map{
		"order_number":  result.Order.OrderNumber,
		"client_secret": result.ClientSecret,
	})
}
