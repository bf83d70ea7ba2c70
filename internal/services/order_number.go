package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"marketplace/internal/repositories"
	pkgerrors "marketplace/pkg/errors"
)

const defaultOrderNumberAttempts = 10

// OrderNumberGenerator issues ORD-YYYYMMDD-NNNN numbers that are not taken yet.
type OrderNumberGenerator struct {
	maxAttempts int
	now         func() time.Time
	suffix      func() int
}

// NewOrderNumberGenerator creates a generator that tries up to maxAttempts
// candidates per order. Values below 1 select the default.
func NewOrderNumberGenerator(maxAttempts int) *OrderNumberGenerator {
	if maxAttempts < 1 {
		maxAttempts = defaultOrderNumberAttempts
	}
	return &OrderNumberGenerator{
		maxAttempts: maxAttempts,
		now:         time.Now,
		suffix:      func() int { return rand.IntN(10000) },
	}
}

// MaxAttempts is the number of candidates tried before giving up.
func (g *OrderNumberGenerator) MaxAttempts() int {
	return g.maxAttempts
}

// FormatOrderNumber renders the order number for a UTC date and 4-digit suffix.
func FormatOrderNumber(at time.Time, suffix int) string {
	return fmt.Sprintf("ORD-%s-%04d", at.UTC().Format("20060102"), suffix%10000)
}

// Generate draws candidates until one is free or the attempts are exhausted.
func (g *OrderNumberGenerator) Generate(ctx context.Context, orders repositories.OrderRepository) (string, error) {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		candidate := FormatOrderNumber(g.now(), g.suffix())
		taken, err := orders.ExistsByNumber(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("checking order number: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", pkgerrors.Newf(pkgerrors.CodeOrderNumberExhausted, "no free order number after %d attempts", g.maxAttempts)
}
