package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"marketplace/internal/models"
	"marketplace/internal/repositories"
	pkgerrors "marketplace/pkg/errors"

	"github.com/shopspring/decimal"
)

const (
	defaultExchangePageSize = 10
	maxExchangePageSize     = 100
)

// ExchangeAdRequest is the body for listing an item for sale or swap.
type ExchangeAdRequest struct {
	Name         string                   `json:"name" validate:"required,min=3,max=100"`
	Brand        string                   `json:"brand" validate:"required,max=100"`
	Description  string                   `json:"description" validate:"required,max=2000"`
	Condition    models.ExchangeCondition `json:"condition" validate:"omitempty,oneof=new like-new good fair poor used"`
	Price        decimal.Decimal          `json:"price"`
	Location     string                   `json:"location" validate:"omitempty,max=200"`
	Category     string                   `json:"category" validate:"omitempty,max=100"`
	ExchangeType models.ExchangeType      `json:"exchange_type" validate:"omitempty,oneof=outright swap both"`
	DesiredItems []string                 `json:"desired_items" validate:"omitempty,max=20,dive,min=1,max=100"`
	Negotiable   bool                     `json:"negotiable"`
}

// ExchangeAdUpdate patches a listing. Absent fields keep their value.
type ExchangeAdUpdate struct {
	Name         *string                   `json:"name" validate:"omitempty,min=3,max=100"`
	Brand        *string                   `json:"brand" validate:"omitempty,max=100"`
	Description  *string                   `json:"description" validate:"omitempty,max=2000"`
	Condition    *models.ExchangeCondition `json:"condition" validate:"omitempty,oneof=new like-new good fair poor used"`
	Price        *decimal.Decimal          `json:"price"`
	Location     *string                   `json:"location" validate:"omitempty,max=200"`
	Category     *string                   `json:"category" validate:"omitempty,max=100"`
	ExchangeType *models.ExchangeType      `json:"exchange_type" validate:"omitempty,oneof=outright swap both"`
	DesiredItems []string                  `json:"desired_items" validate:"omitempty,max=20,dive,min=1,max=100"`
	Negotiable   *bool                     `json:"negotiable"`
	Status       *models.ExchangeAdStatus  `json:"status" validate:"omitempty,oneof=active sold inactive"`
}

// ExchangeAdQuery selects a page of listings. Page counts from 1.
type ExchangeAdQuery struct {
	Keyword      string
	Category     string
	Condition    models.ExchangeCondition
	ExchangeType models.ExchangeType
	Status       models.ExchangeAdStatus
	MinPrice     *decimal.Decimal
	MaxPrice     *decimal.Decimal
	Page         int
	Limit        int
}

// ExchangeAdPage is one page of listings.
type ExchangeAdPage struct {
	Results      []models.ExchangeAd `json:"results"`
	Page         int                 `json:"page"`
	Limit        int                 `json:"limit"`
	TotalPages   int                 `json:"total_pages"`
	TotalResults int64               `json:"total_results"`
}

// ExchangeAdService manages second-hand listings users post for sale or swap.
type ExchangeAdService struct {
	repo repositories.ExchangeAdRepository
}

// NewExchangeAdService creates a new ExchangeAdService.
func NewExchangeAdService(repo repositories.ExchangeAdRepository) *ExchangeAdService {
	return &ExchangeAdService{repo: repo}
}

// CreateExchangeAd lists an item for the caller.
func (s *ExchangeAdService) CreateExchangeAd(ctx context.Context, userID string, req ExchangeAdRequest) (*models.ExchangeAd, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := nonNegativePrice("ExchangeAdRequest.Price", req.Price); err != nil {
		return nil, err
	}
	condition := req.Condition
	if condition == "" {
		condition = models.ConditionUsed
	}
	exchangeType := req.ExchangeType
	if exchangeType == "" {
		exchangeType = models.ExchangeOutright
	}
	ad := &models.ExchangeAd{
		UserID:       userID,
		Name:         req.Name,
		Brand:        req.Brand,
		Description:  req.Description,
		Condition:    condition,
		Price:        req.Price.Round(2),
		Location:     req.Location,
		Category:     req.Category,
		ExchangeType: exchangeType,
		DesiredItems: req.DesiredItems,
		Negotiable:   req.Negotiable,
		Status:       models.ExchangeAdActive,
	}
	if err := s.repo.Create(ctx, ad); err != nil {
		return nil, fmt.Errorf("creating exchange ad: %w", err)
	}
	return ad, nil
}

// GetExchangeAd returns a single listing.
func (s *ExchangeAdService) GetExchangeAd(ctx context.Context, id string) (*models.ExchangeAd, error) {
	ad, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapExchangeAdErr(err, "loading exchange ad")
	}
	return ad, nil
}

// BrowseExchangeAds pages through listings. Only active listings are shown
// unless q asks for another status.
func (s *ExchangeAdService) BrowseExchangeAds(ctx context.Context, q ExchangeAdQuery) (*ExchangeAdPage, error) {
	if q.Status == "" {
		q.Status = models.ExchangeAdActive
	}
	return s.list(ctx, "", q)
}

// ListUserExchangeAds pages through the listings of userID. Other viewers see
// only active listings; the owner sees every status.
func (s *ExchangeAdService) ListUserExchangeAds(ctx context.Context, viewerID, userID string, q ExchangeAdQuery) (*ExchangeAdPage, error) {
	if viewerID != userID {
		q.Status = models.ExchangeAdActive
	}
	return s.list(ctx, userID, q)
}

func (s *ExchangeAdService) list(ctx context.Context, userID string, q ExchangeAdQuery) (*ExchangeAdPage, error) {
	if q.MinPrice != nil && q.MaxPrice != nil && q.MinPrice.GreaterThan(*q.MaxPrice) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "min_price must not exceed max_price")
	}
	page := max(q.Page, 1)
	limit := q.Limit
	switch {
	case limit <= 0:
		limit = defaultExchangePageSize
	case limit > maxExchangePageSize:
		limit = maxExchangePageSize
	}

	ads, total, err := s.repo.List(ctx, repositories.ExchangeAdFilter{
		UserID:       userID,
		Status:       q.Status,
		Condition:    q.Condition,
		ExchangeType: q.ExchangeType,
		Category:     q.Category,
		MinPrice:     q.MinPrice,
		MaxPrice:     q.MaxPrice,
		Keyword:      strings.TrimSpace(q.Keyword),
		Limit:        limit,
		Offset:       (page - 1) * limit,
	})
	if err != nil {
		return nil, fmt.Errorf("listing exchange ads: %w", err)
	}
	if ads == nil {
		ads = []models.ExchangeAd{}
	}
	return &ExchangeAdPage{
		Results:      ads,
		Page:         page,
		Limit:        limit,
		TotalPages:   int((total + int64(limit) - 1) / int64(limit)),
		TotalResults: total,
	}, nil
}

// UpdateExchangeAd applies a patch to a listing owned by the caller.
func (s *ExchangeAdService) UpdateExchangeAd(ctx context.Context, userID string, role models.Role, id string, req ExchangeAdUpdate) (*models.ExchangeAd, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.Price != nil {
		if err := nonNegativePrice("ExchangeAdUpdate.Price", *req.Price); err != nil {
			return nil, err
		}
	}
	ad, err := s.ownedAd(ctx, userID, role, id)
	if err != nil {
		return nil, err
	}

	setIf(&ad.Name, req.Name)
	setIf(&ad.Brand, req.Brand)
	setIf(&ad.Description, req.Description)
	setIf(&ad.Condition, req.Condition)
	setIf(&ad.Location, req.Location)
	setIf(&ad.Category, req.Category)
	setIf(&ad.ExchangeType, req.ExchangeType)
	setIf(&ad.Negotiable, req.Negotiable)
	setIf(&ad.Status, req.Status)
	if req.Price != nil {
		ad.Price = req.Price.Round(2)
	}
	if req.DesiredItems != nil {
		ad.DesiredItems = req.DesiredItems
	}

	if err := s.repo.Update(ctx, ad); err != nil {
		return nil, mapExchangeAdErr(err, "updating exchange ad")
	}
	return ad, nil
}

// DeleteExchangeAd removes a listing owned by the caller.
func (s *ExchangeAdService) DeleteExchangeAd(ctx context.Context, userID string, role models.Role, id string) error {
	if _, err := s.ownedAd(ctx, userID, role, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapExchangeAdErr(err, "deleting exchange ad")
	}
	return nil
}

// FavoriteExchangeAd counts one more favorite on an active listing.
func (s *ExchangeAdService) FavoriteExchangeAd(ctx context.Context, id string) (*models.ExchangeAd, error) {
	ad, err := s.GetExchangeAd(ctx, id)
	if err != nil {
		return nil, err
	}
	if ad.Status != models.ExchangeAdActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only active listings can be favorited")
	}
	if err := s.repo.AddFavorite(ctx, id); err != nil {
		return nil, mapExchangeAdErr(err, "favoriting exchange ad")
	}
	return s.GetExchangeAd(ctx, id)
}

func (s *ExchangeAdService) ownedAd(ctx context.Context, userID string, role models.Role, id string) (*models.ExchangeAd, error) {
	ad, err := s.GetExchangeAd(ctx, id)
	if err != nil {
		return nil, err
	}
	if role != models.RoleAdmin && ad.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "exchange ad belongs to another user")
	}
	return ad, nil
}

func mapExchangeAdErr(err error, action string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "exchange ad not found")
	}
	return fmt.Errorf("%s: %w", action, err)
}

func nonNegativePrice(field string, price decimal.Decimal) error {
	if price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{
			field: "failed on the 'gte' tag",
		})
	}
	return nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
