package handlers

import (
	"marketplace/internal/middleware"
	"marketplace/internal/services"
	"marketplace/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// CartHandler handles HTTP requests for the cart and wishlist.
type CartHandler struct {
	service *services.CartService
	logg    *logger.Logger
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(service *services.CartService, logg *logger.Logger) *CartHandler {
	return &CartHandler{service: service, logg: logg}
}

// RegisterRoutes registers the cart and wishlist routes behind auth.
func (h *CartHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	cart := router.Group("/cart", auth)
	cart.Get("/", h.HandleGetCart)
	cart.Post("/", h.HandleAddToCart)
	cart.Patch("/:itemId", h.HandleUpdateCartItem)
	cart.Delete("/:itemId", h.HandleRemoveCartItem)
	cart.Delete("/", h.HandleClearCart)

	wishlist := router.Group("/wishlist", auth)
	wishlist.Get("/", h.HandleGetWishlist)
	wishlist.Post("/", h.HandleAddToWishlist)
	wishlist.Delete("/:productId", h.HandleRemoveFromWishlist)
}

func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	items, err := h.service.GetCart(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return writeError(c, h.logg, err)
	}
	return c.JSON(fiber.Map{"items": items})
}

func (h *CartHandler) HandleAddToCart(c *fiber.Ctx) error {
	var req services.AddCartItemRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, h.logg, err)
	}
	item, err := h.service.AddToCart(c.UserContext(), middleware.UserID(c), req)
	if err != nil {
		return writeError(c, h.logg, err)
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

func (h *CartHandler) HandleUpdateCartItem(c *fiber.Ctx) error {
	var req services.UpdateCartItemRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, h.logg, err)
	}
	if err := h.service.UpdateCartItem(c.UserContext(), middleware.UserID(c), c.Params("itemId"), req); err != nil {
		return writeError(c, h.logg, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *CartHandler) HandleRemoveCartItem(c *fiber.Ctx) error {
	if err := h.service.RemoveCartItem(c.UserContext(), middleware.UserID(c), c.Params("itemId")); err != nil {
		return writeError(c, h.logg, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *CartHandler) HandleClearCart(c *fiber.Ctx) error {
	if err := h.service.ClearCart(c.UserContext(), middleware.UserID(c)); err != nil {
		return writeError(c, h.logg, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *CartHandler) HandleGetWishlist(c *fiber.Ctx) error {
	items, err := h.service.GetWishlist(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return writeError(c, h.logg, err)
	}
	return c.JSON(fiber.Map{"items": items})
}

func (h *CartHandler) HandleAddToWishlist(c *fiber.Ctx) error {
	var req services.AddWishlistItemRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, h.logg, err)
	}
	item, err := h.service.AddToWishlist(c.UserContext(), middleware.UserID(c), req)
	if err != nil {
		return writeError(c, h.logg, err)
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

func (h *CartHandler) HandleRemoveFromWishlist(c *fiber.Ctx) error {
	if err := h.service.RemoveFromWishlist(c.UserContext(), middleware.UserID(c), c.Params("productId")); err != nil {
		return writeError(c, h.logg, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
