package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace/pkg/redis"
)

const webhookGuardScope = "stripe_webhook"

// WebhookGuard remembers gateway event ids whose effects are committed. An id
// is written only after the event was applied, so a crash in between leaves
// the redelivery to the order state guard.
type WebhookGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewWebhookGuard creates a new WebhookGuard that keeps event ids for ttl.
// A zero ttl keeps them forever.
func NewWebhookGuard(store redis.IdempotencyStore, ttl time.Duration) (*WebhookGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &WebhookGuard{store: store, ttl: ttl}, nil
}

// Applied reports whether eventID was already applied.
func (g *WebhookGuard) Applied(ctx context.Context, eventID string) (bool, error) {
	_, err := g.store.Get(ctx, g.key(eventID))
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("read idempotency key: %w", err)
	}
	return true, nil
}

// MarkApplied records eventID. Marking an id twice is not an error.
func (g *WebhookGuard) MarkApplied(ctx context.Context, eventID string) error {
	appliedAt := time.Now().UTC().Format(time.RFC3339)
	if _, err := g.store.SetNX(ctx, g.key(eventID), appliedAt, g.ttl); err != nil {
		return fmt.Errorf("write idempotency key: %w", err)
	}
	return nil
}

func (g *WebhookGuard) key(eventID string) string {
	return g.store.IdempotencyKey(webhookGuardScope, eventID)
}
