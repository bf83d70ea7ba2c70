package handlers

import (
	"bytes"

	"marketplace/internal/services"
	"marketplace/pkg/logger"
	"marketplace/pkg/payments"

	"github.com/gofiber/fiber/v2"
)

const stripeSignatureHeader = "Stripe-Signature"

// WebhookHandler receives payment gateway callbacks.
type WebhookHandler struct {
	gateway  payments.Gateway
	webhooks *services.WebhookService
	logg     *logger.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(gateway payments.Gateway, webhooks *services.WebhookService, logg *logger.Logger) *WebhookHandler {
	return &WebhookHandler{gateway: gateway, webhooks: webhooks, logg: logg}
}

// RegisterRoutes registers the unauthenticated webhook endpoint.
func (h *WebhookHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/payments/webhook", h.HandleWebhook)
}

// HandleWebhook verifies the signature over the raw body and applies the event.
// Once verified the gateway always gets 200 so it stops redelivering; failures
// are logged.
func (h *WebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	payload := bytes.Clone(c.Body())
	event, err := h.gateway.ParseWebhook(payload, c.Get(stripeSignatureHeader))
	if err != nil {
		h.logg.Warn(c.UserContext(), "rejected webhook: "+err.Error())
		return writeError(c, h.logg, err)
	}

	ctx := c.UserContext()
	outcome, err := h.webhooks.HandleEvent(ctx, event)
	if err != nil {
		h.logg.Error(ctx, "webhook event could not be applied", err)
	} else {
		h.logg.Debug(ctx, "webhook event "+string(outcome))
	}
	return c.JSON(fiber.Map{"received": true})
}
