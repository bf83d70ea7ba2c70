package repositories

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"marketplace/internal/models"

	"github.com/google/uuid"
)

// MockExchangeAdRepository is an in-memory implementation of ExchangeAdRepository.
type MockExchangeAdRepository struct {
	mu  sync.RWMutex
	ads map[string]models.ExchangeAd
}

// NewMockExchangeAdRepository creates a new MockExchangeAdRepository.
func NewMockExchangeAdRepository() *MockExchangeAdRepository {
	return &MockExchangeAdRepository{ads: make(map[string]models.ExchangeAd)}
}

func (r *MockExchangeAdRepository) Create(ctx context.Context, ad *models.ExchangeAd) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ad.ID == "" {
		ad.ID = uuid.New().String()
	}
	if ad.Status == "" {
		ad.Status = models.ExchangeAdActive
	}
	now := time.Now().UTC()
	if ad.CreatedAt.IsZero() {
		ad.CreatedAt = now
	}
	ad.UpdatedAt = now
	r.ads[ad.ID] = cloneAd(*ad)
	return nil
}

func (r *MockExchangeAdRepository) GetByID(ctx context.Context, id string) (*models.ExchangeAd, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ad, ok := r.ads[id]
	if !ok {
		return nil, fmt.Errorf("exchange ad %s: %w", id, ErrNotFound)
	}
	ad = cloneAd(ad)
	return &ad, nil
}

func (r *MockExchangeAdRepository) List(ctx context.Context, f ExchangeAdFilter) ([]models.ExchangeAd, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []models.ExchangeAd
	for _, ad := range r.ads {
		if adMatches(ad, f) {
			matched = append(matched, cloneAd(ad))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	total := int64(len(matched))
	if f.Offset > 0 {
		matched = matched[min(f.Offset, len(matched)):]
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func (r *MockExchangeAdRepository) Update(ctx context.Context, ad *models.ExchangeAd) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.ads[ad.ID]
	if !ok {
		return fmt.Errorf("exchange ad %s: %w", ad.ID, ErrNotFound)
	}
	ad.UserID = existing.UserID
	ad.Views = existing.Views
	ad.Favorites = existing.Favorites
	ad.CreatedAt = existing.CreatedAt
	ad.UpdatedAt = time.Now().UTC()
	r.ads[ad.ID] = cloneAd(*ad)
	return nil
}

func (r *MockExchangeAdRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ads[id]; !ok {
		return fmt.Errorf("exchange ad %s: %w", id, ErrNotFound)
	}
	delete(r.ads, id)
	return nil
}

func (r *MockExchangeAdRepository) AddFavorite(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ad, ok := r.ads[id]
	if !ok {
		return fmt.Errorf("exchange ad %s: %w", id, ErrNotFound)
	}
	ad.Favorites++
	r.ads[id] = ad
	return nil
}

func adMatches(ad models.ExchangeAd, f ExchangeAdFilter) bool {
	switch {
	case f.UserID != "" && ad.UserID != f.UserID,
		f.Status != "" && ad.Status != f.Status,
		f.Condition != "" && ad.Condition != f.Condition,
		f.ExchangeType != "" && ad.ExchangeType != f.ExchangeType,
		f.Category != "" && ad.Category != f.Category,
		f.MinPrice != nil && ad.Price.LessThan(*f.MinPrice),
		f.MaxPrice != nil && ad.Price.GreaterThan(*f.MaxPrice):
		return false
	}
	kw := strings.ToLower(strings.TrimSpace(f.Keyword))
	if kw == "" {
		return true
	}
	for _, field := range []string{ad.Name, ad.Brand, ad.Description, ad.Category} {
		if strings.Contains(strings.ToLower(field), kw) {
			return true
		}
	}
	return false
}

func cloneAd(ad models.ExchangeAd) models.ExchangeAd {
	ad.DesiredItems = slices.Clone(ad.DesiredItems)
	return ad
}
