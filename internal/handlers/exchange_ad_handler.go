package handlers

import (
	"marketplace/internal/middleware"
	"marketplace/internal/models"
	"marketplace/internal/services"
	"marketplace/pkg/errors"
	"marketplace/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// ExchangeAdHandler handles HTTP requests for second-hand listings.
type ExchangeAdHandler struct {
	service *services.ExchangeAdService
	logg    *logger.Logger
}

// NewExchangeAdHandler creates a new ExchangeAdHandler.
func NewExchangeAdHandler(service *services.ExchangeAdService, logg *logger.Logger) *ExchangeAdHandler {
	return &ExchangeAdHandler{service: service, logg: logg}
}

// RegisterRoutes registers the exchange listing routes. Browsing is public.
func (h *ExchangeAdHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	adRoutes := router.Group("/exchange-ads")
	adRoutes.Get("/", h.HandleBrowse)
	adRoutes.Get("/user/me", auth, h.HandleListMine)
	adRoutes.Get("/user/:userId", h.HandleListByUser)
	adRoutes.Get("/:id", h.HandleGet)

	adRoutes.Post("/", auth, h.HandleCreate)
	adRoutes.Patch("/:id", auth, h.HandleUpdate)
	adRoutes.Delete("/:id", auth, h.HandleDelete)
	adRoutes.Patch("/:id/favorite", auth, h.HandleFavorite)
}

// HandleBrowse lists active listings, filtered by the query string.
func (h *ExchangeAdHandler) HandleBrowse(c *fiber.Ctx) error {
	q, err := exchangeAdQuery(c)
	if err != nil {
		return writeError(c, h.logg, err)
	}
	page, err := h.service.BrowseExchangeAds(c.UserContext(), q)
	if err != nil {
		return writeError(c, h.logg, err)
	}
	return c.JSON(page)
}

// HandleListMine lists every listing of the caller, whatever its status.
func (h *ExchangeAdHandler) HandleListMine(c *fiber.Ctx) error {
	return h.listFor(c, middleware.UserID(c))
}

func (h *ExchangeAdHandler) HandleListByUser(c *fiber.Ctx) error {
	return h.listFor(c, c.Params("userId"))
}

func (h *ExchangeAdHandler) listFor(c *fiber.Ctx, userID string) error {
	q, err := exchangeAdQuery(c)
	if err != nil {
		return writeError(c, h.logg, err)
	}
	page, err := h.service.ListUserExchangeAds(c.UserContext(), middleware.UserID(c), userID, q)
	if err != nil {
		return writeError(c, h.logg, err)
	}
	return c.JSON(page)
}

func (h *ExchangeAdHandler) HandleGet(c *fiber.Ctx) error {
	ad, err := h.service.GetExchangeAd(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.logg, err)
	}
	return c.JSON(ad)
}

// HandleCreate lists an item for the caller.
func (h *ExchangeAdHandler) HandleCreate(c *fiber.Ctx) error {
	var req services.ExchangeAdRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, h.logg, err)
	}
	ad, err := h.service.CreateExchangeAd(c.UserContext(), middleware.UserID(c), req)
	if err != nil {
		return writeError(c, h.logg, err)
	}
	return c.Status(fiber.StatusCreated).JSON(ad)
}

func (h *ExchangeAdHandler) HandleUpdate(c *fiber.Ctx) error {
	var req services.ExchangeAdUpdate
	if err := parseBody(c, &req); err != nil {
		return writeError(c, h.logg, err)
	}
	ad, err := h.service.UpdateExchangeAd(c.UserContext(), middleware.UserID(c), middleware.Role(c), c.Params("id"), req)
	if err != nil {
		return writeError(c, h.logg, err)
	}
	return c.JSON(ad)
}

func (h *ExchangeAdHandler) HandleDelete(c *fiber.Ctx) error {
	if err := h.service.DeleteExchangeAd(c.UserContext(), middleware.UserID(c), middleware.Role(c), c.Params("id")); err != nil {
		return writeError(c, h.logg, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleFavorite bumps the favorite counter of a listing.
func (h *ExchangeAdHandler) HandleFavorite(c *fiber.Ctx) error {
	ad, err := h.service.FavoriteExchangeAd(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.logg, err)
	}
	return c.JSON(ad)
}

func exchangeAdQuery(c *fiber.Ctx) (services.ExchangeAdQuery, error) {
	q := services.ExchangeAdQuery{
		Keyword:      c.Query("keyword"),
		Category:     c.Query("category"),
		Condition:    models.ExchangeCondition(c.Query("condition")),
		ExchangeType: models.ExchangeType(c.Query("exchange_type")),
		Status:       models.ExchangeAdStatus(c.Query("status")),
		Page:         c.QueryInt("page", 1),
		Limit:        c.QueryInt("limit", 0),
	}
	bounds := []struct {
		name string
		dst  **decimal.Decimal
	}{{"min_price", &q.MinPrice}, {"max_price", &q.MaxPrice}}
	for _, bound := range bounds {
		name, raw := bound.name, c.Query(bound.name)
		if raw == "" {
			continue
		}
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			return q, errors.Newf(errors.CodeValidation, "%s must be a number", name).WithDetails(map[string]string{
				name: raw,
			})
		}
		*bound.dst = &parsed
	}
	return q, nil
}
