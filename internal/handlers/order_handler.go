package handlers

import (
	"time"

	"marketplace/internal/middleware"
	"marketplace/internal/models"
	"marketplace/internal/repositories"
	"marketplace/internal/services"
	"marketplace/pkg/errors"
	"marketplace/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service *services.OrderService
	logg    *logger.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, logg *logger.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		logg:    logg,
	}
}

// RegisterRoutes registers the order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	orderRoutes := router.Group("/orders", auth)
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Patch("/:id/status", middleware.RequireRole(models.RoleAdmin), h.HandleUpdateOrderStatus)
}

// HandleGetOrders lists the caller's orders, optionally within from/to (RFC3339).
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	filter, err := orderFilter(c)
	if err != nil {
		return writeError(c, h.logg, err)
	}
	orders, err := h.service.ListOrders(c.UserContext(), middleware.UserID(c), filter)
	if err != nil {
		return writeError(c, h.logg, err)
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves a single order by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	order, err := h.service.GetOrder(c.UserContext(), middleware.UserID(c), middleware.Role(c), c.Params("id"))
	if err != nil {
		return writeError(c, h.logg, err)
	}
	return c.JSON(order)
}

// HandleUpdateOrderStatus updates the status of an existing order.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	var req services.UpdateStatusRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, h.logg, err)
	}
	order, err := h.service.UpdateOrderStatus(c.UserContext(), middleware.UserID(c), c.Params("id"), req)
	if err != nil {
		return writeError(c, h.logg, err)
	}
	return c.JSON(order)
}

func orderFilter(c *fiber.Ctx) (repositories.OrderFilter, error) {
	var filter repositories.OrderFilter
	bounds := []struct {
		name string
		dst  **time.Time
	}{{"from", &filter.From}, {"to", &filter.To}}
	for _, bound := range bounds {
		name, raw := bound.name, c.Query(bound.name)
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.Newf(errors.CodeValidation, "%s must be an RFC3339 timestamp", name).WithDetails(map[string]string{
				name: raw,
			})
		}
		*bound.dst = &parsed
	}
	return filter, nil
}
