package cron

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"marketplace/internal/models"
	"marketplace/internal/repositories"
	"marketplace/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sweepNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func boostedProduct(id string, end time.Time) *models.Product {
	start := end.Add(-7 * 24 * time.Hour)
	return &models.Product{
		ID:         id,
		SellerID:   "seller-1",
		Name:       "Product " + id,
		Price:      decimal.NewFromInt(10),
		Stock:      5,
		IsFeatured: true,
		Boost: models.Boost{
			Active:    true,
			Package:   "basic",
			StartDate: &start,
			EndDate:   &end,
		},
	}
}

func newSweepJob(t *testing.T, products boostExpirer, batch int) *BoostExpiryJob {
	t.Helper()
	job, err := NewBoostExpiryJob(BoostExpiryJobParams{
		Logger:    logger.Nop(),
		Products:  products,
		BatchSize: batch,
	})
	require.NoError(t, err)
	job.now = func() time.Time { return sweepNow }
	return job
}

func TestBoostExpiryJobPagesThroughExpiredBoosts(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMockProductRepository()
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, boostedProduct(fmt.Sprintf("p-%d", i), sweepNow.Add(-time.Hour))))
	}
	require.NoError(t, repo.Create(ctx, boostedProduct("live", sweepNow.Add(time.Hour))))

	job := newSweepJob(t, repo, 2)
	require.NoError(t, job.Run(ctx))

	for i := 0; i < 5; i++ {
		p, err := repo.GetByID(ctx, fmt.Sprintf("p-%d", i))
		require.NoError(t, err)
		assert.False(t, p.Boost.Active)
		assert.False(t, p.IsFeatured)
	}
	live, err := repo.GetByID(ctx, "live")
	require.NoError(t, err)
	assert.True(t, live.Boost.Active)
	assert.True(t, live.IsFeatured)

	// A second pass finds nothing left to do.
	remaining, err := repo.FindExpiredBoosts(ctx, sweepNow, "", 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

type flakyExpirer struct {
	products []models.Product
	failID   string
	listErr  error
	expired  []string
}

func (f *flakyExpirer) FindExpiredBoosts(_ context.Context, _ time.Time, afterID string, limit int) ([]models.Product, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var page []models.Product
	for _, p := range f.products {
		if p.ID > afterID && len(page) < limit {
			page = append(page, p)
		}
	}
	return page, nil
}

func (f *flakyExpirer) ExpireBoost(_ context.Context, id string, _ time.Time) (bool, error) {
	if id == f.failID {
		return false, errors.New("write failed")
	}
	f.expired = append(f.expired, id)
	return true, nil
}

func TestBoostExpiryJobContinuesPastFailures(t *testing.T) {
	repo := &flakyExpirer{
		products: []models.Product{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		failID:   "b",
	}
	job := newSweepJob(t, repo, 10)

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write failed")
	assert.Equal(t, []string{"a", "c"}, repo.expired)
}

func TestBoostExpiryJobReportsListErrors(t *testing.T) {
	job := newSweepJob(t, &flakyExpirer{listErr: errors.New("db down")}, 10)
	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestNewBoostExpiryJobDefaults(t *testing.T) {
	job := newSweepJob(t, &flakyExpirer{}, 0)
	assert.Equal(t, defaultBoostBatchSize, job.batchSize)
	assert.Equal(t, "boost-expiry", job.Name())

	_, err := NewBoostExpiryJob(BoostExpiryJobParams{Logger: logger.Nop()})
	assert.Error(t, err)
}
