package repositories

import (
	"context"

	"marketplace/internal/models"

	"github.com/shopspring/decimal"
)

// ExchangeAdFilter narrows List. Zero fields do not filter.
type ExchangeAdFilter struct {
	UserID       string
	Status       models.ExchangeAdStatus
	Condition    models.ExchangeCondition
	ExchangeType models.ExchangeType
	Category     string
	MinPrice     *decimal.Decimal
	MaxPrice     *decimal.Decimal
	// Keyword matches name, brand, description or category, ignoring case.
	Keyword string
	Limit   int
	Offset  int
}

// ExchangeAdRepository defines the interface for exchange listing data access.
type ExchangeAdRepository interface {
	Create(ctx context.Context, ad *models.ExchangeAd) error
	GetByID(ctx context.Context, id string) (*models.ExchangeAd, error)
	// List returns one page of matching ads, newest first, and the total
	// number of matches.
	List(ctx context.Context, filter ExchangeAdFilter) ([]models.ExchangeAd, int64, error)
	Update(ctx context.Context, ad *models.ExchangeAd) error
	Delete(ctx context.Context, id string) error
	// AddFavorite increments the favorite counter in place.
	AddFavorite(ctx context.Context, id string) error
}
