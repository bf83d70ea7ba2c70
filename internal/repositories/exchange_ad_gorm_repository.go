package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// GORMExchangeAdRepository is a GORM implementation of ExchangeAdRepository.
type GORMExchangeAdRepository struct {
	db *gorm.DB
}

// NewGORMExchangeAdRepository creates a new GORMExchangeAdRepository.
func NewGORMExchangeAdRepository(db *gorm.DB) *GORMExchangeAdRepository {
	return &GORMExchangeAdRepository{db: db}
}

func (r *GORMExchangeAdRepository) Create(ctx context.Context, ad *models.ExchangeAd) error {
	if ad.ID == "" {
		ad.ID = uuid.New().String()
	}
	if ad.Status == "" {
		ad.Status = models.ExchangeAdActive
	}
	if err := r.db.WithContext(ctx).Create(ad).Error; err != nil {
		return fmt.Errorf("failed to create exchange ad: %w", err)
	}
	return nil
}

func (r *GORMExchangeAdRepository) GetByID(ctx context.Context, id string) (*models.ExchangeAd, error) {
	var ad models.ExchangeAd
	if err := r.db.WithContext(ctx).First(&ad, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("exchange ad %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get exchange ad %s: %w", id, err)
	}
	return &ad, nil
}

// filtered builds a fresh query each call; a *gorm.DB reused after Count
// keeps the count select.
func (r *GORMExchangeAdRepository) filtered(ctx context.Context, f ExchangeAdFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.ExchangeAd{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Condition != "" {
		q = q.Where("condition = ?", f.Condition)
	}
	if f.ExchangeType != "" {
		q = q.Where("exchange_type = ?", f.ExchangeType)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.MinPrice != nil {
		q = q.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("price <= ?", *f.MaxPrice)
	}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(kw)) + "%"
		q = q.Where(`(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(brand) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\' OR LOWER(category) LIKE ? ESCAPE '\')`,
			pattern, pattern, pattern, pattern)
	}
	return q
}

func (r *GORMExchangeAdRepository) List(ctx context.Context, f ExchangeAdFilter) ([]models.ExchangeAd, int64, error) {
	var total int64
	if err := r.filtered(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count exchange ads: %w", err)
	}
	q := r.filtered(ctx, f).Order("created_at DESC").Order("id DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	var ads []models.ExchangeAd
	if err := q.Find(&ads).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list exchange ads: %w", err)
	}
	return ads, total, nil
}

func (r *GORMExchangeAdRepository) Update(ctx context.Context, ad *models.ExchangeAd) error {
	ad.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(ad).
		Select("*").
		Omit("id", "user_id", "views", "favorites", "created_at").
		Updates(ad)
	if res.Error != nil {
		return fmt.Errorf("failed to update exchange ad: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("exchange ad %s: %w", ad.ID, ErrNotFound)
	}
	return nil
}

// Delete removes the row. Exchange ads are not referenced by orders.
func (r *GORMExchangeAdRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.ExchangeAd{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete exchange ad: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("exchange ad %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *GORMExchangeAdRepository) AddFavorite(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).
		Model(&models.ExchangeAd{}).
		Where("id = ?", id).
		UpdateColumn("favorites", gorm.Expr("favorites + 1"))
	if res.Error != nil {
		return fmt.Errorf("failed to favorite exchange ad %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("exchange ad %s: %w", id, ErrNotFound)
	}
	return nil
}
