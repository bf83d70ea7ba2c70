package handlers

import (
	"marketplace/internal/middleware"
	"marketplace/internal/models"
	"marketplace/internal/services"
	"marketplace/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// ProductHandler handles HTTP requests for the catalog.
type ProductHandler struct {
	service *services.ProductService
	boosts  *services.BoostService
	logg    *logger.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService, boosts *services.BoostService, logg *logger.Logger) *ProductHandler {
	return &ProductHandler{service: service, boosts: boosts, logg: logg}
}

// RegisterRoutes registers the product routes. Reads are public, writes need auth.
func (h *ProductHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleGetProducts)
	productRoutes.Get("/:id", h.HandleGetProductByID)

	sellers := middleware.RequireRole(models.RoleSeller, models.RoleAdmin)
	productRoutes.Post("/", auth, sellers, h.HandleCreateProduct)
	productRoutes.Put("/:id", auth, sellers, h.HandleUpdateProduct)
	productRoutes.Delete("/:id", auth, sellers, h.HandleDeleteProduct)
	productRoutes.Post("/:id/boost", auth, sellers, h.HandleCreateBoostPayment)
	productRoutes.Post("/:id/boost/grant", auth, middleware.RequireRole(models.RoleAdmin), h.HandleActivateBoost)
}

// HandleGetProducts lists the catalog, featured products first.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	products, err := h.service.GetAllProducts(c.UserContext())
	if err != nil {
		return writeError(c, h.logg, err)
	}
	return c.JSON(products)
}

// HandleGetProductByID retrieves a single product by its ID.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	product, err := h.service.GetProductByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.logg, err)
	}
	return c.JSON(product)
}

// HandleCreateProduct lists a product for the calling seller.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var req services.ProductRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, h.logg, err)
	}
	product, err := h.service.CreateProduct(c.UserContext(), middleware.UserID(c), req)
	if err != nil {
		return writeError(c, h.logg, err)
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleUpdateProduct replaces the editable fields of the caller's product.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	var req services.ProductRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, h.logg, err)
	}
	product, err := h.service.UpdateProduct(c.UserContext(), middleware.UserID(c), middleware.Role(c), c.Params("id"), req)
	if err != nil {
		return writeError(c, h.logg, err)
	}
	return c.JSON(product)
}

// HandleDeleteProduct hides the product from the catalog.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	if err := h.service.DeleteProduct(c.UserContext(), middleware.UserID(c), middleware.Role(c), c.Params("id")); err != nil {
		return writeError(c, h.logg, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleCreateBoostPayment opens the payment that starts a boost once it
// succeeds. The client confirms it with the returned client secret.
func (h *ProductHandler) HandleCreateBoostPayment(c *fiber.Ctx) error {
	var req services.BoostRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, h.logg, err)
	}
	payment, err := h.boosts.CreateBoostPayment(c.UserContext(), middleware.UserID(c), middleware.Role(c), c.Params("id"), req)
	if err != nil {
		return writeError(c, h.logg, err)
	}
	return c.Status(fiber.StatusCreated).JSON(payment)
}

// HandleActivateBoost features a product without payment. Admin only.
func (h *ProductHandler) HandleActivateBoost(c *fiber.Ctx) error {
	var req services.BoostRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, h.logg, err)
	}
	product, err := h.service.ActivateBoost(c.UserContext(), c.Params("id"), middleware.Role(c), req)
	if err != nil {
		return writeError(c, h.logg, err)
	}
	return c.JSON(product)
}
