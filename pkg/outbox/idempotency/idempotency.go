package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/cafepos-backend/pkg/redis"
)

// defaultTTL outlives the Pub/Sub redelivery window of a subscription.
const defaultTTL = 7 * 24 * time.Hour

// Manager remembers which order events a consumer already handled. Keys look
// like cafepos:idem:event:<consumer>:<event_id> and hold the time of the claim.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	now   func() time.Time
}

// NewManager builds a Manager. A zero ttl means defaultTTL.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case ttl < 0:
		return nil, errors.New("ttl must be non-negative")
	case ttl == 0:
		ttl = defaultTTL
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}, nil
}

// CheckAndMarkProcessed returns true when eventID was already seen by consumer
// and otherwise claims it.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	claimed, err := m.store.SetNX(ctx, key, m.now().UTC().Format(time.RFC3339), m.ttl)
	if err != nil {
		return false, err
	}
	return !claimed, nil
}

// Release forgets a claim so a failed handler can be retried on redelivery.
func (m *Manager) Release(ctx context.Context, consumer, eventID string) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(consumer, eventID string) (string, error) {
	consumer, eventID = strings.TrimSpace(consumer), strings.TrimSpace(eventID)
	switch {
	case consumer == "":
		return "", errors.New("consumer name is required")
	case eventID == "":
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("event:"+consumer, eventID), nil
}
