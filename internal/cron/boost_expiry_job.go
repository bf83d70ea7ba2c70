package cron

import (
	"context"
	"fmt"
	"time"

	"marketplace/internal/models"
	"marketplace/pkg/logger"

	"go.uber.org/multierr"
)

const defaultBoostBatchSize = 100

type boostExpirer interface {
	FindExpiredBoosts(ctx context.Context, now time.Time, afterID string, limit int) ([]models.Product, error)
	ExpireBoost(ctx context.Context, id string, now time.Time) (bool, error)
}

// BoostExpiryJobParams configure the boost expiry job.
type BoostExpiryJobParams struct {
	Logger    *logger.Logger
	Products  boostExpirer
	BatchSize int
}

// BoostExpiryJob switches off promotions whose end date has passed.
type BoostExpiryJob struct {
	logg      *logger.Logger
	products  boostExpirer
	batchSize int
	now       func() time.Time
}

// NewBoostExpiryJob creates a new BoostExpiryJob.
func NewBoostExpiryJob(params BoostExpiryJobParams) (*BoostExpiryJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBoostBatchSize
	}
	return &BoostExpiryJob{
		logg:      params.Logger,
		products:  params.Products,
		batchSize: batch,
		now:       time.Now,
	}, nil
}

func (j *BoostExpiryJob) Name() string { return "boost-expiry" }

// Run pages through expired boosts by id. A failure on one product does not
// stop the sweep; all failures are returned together.
func (j *BoostExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	var (
		errs     error
		afterID  string
		expired  int
		skipped  int
		examined int
	)
	for {
		page, err := j.products.FindExpiredBoosts(ctx, now, afterID, j.batchSize)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("list expired boosts: %w", err))
			break
		}
		for _, product := range page {
			examined++
			ok, err := j.products.ExpireBoost(ctx, product.ID, now)
			switch {
			case err != nil:
				errs = multierr.Append(errs, err)
			case ok:
				expired++
			default:
				skipped++
			}
		}
		if len(page) < j.batchSize {
			break
		}
		afterID = page[len(page)-1].ID
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"examined": examined,
		"expired":  expired,
		"skipped":  skipped,
	}), "boost expiry pass finished")
	return errs
}
