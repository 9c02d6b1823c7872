package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/reviewrank/pkg/kafka"
)

const eventKeyPrefix = "review:event:"

// IdempotencyStore records processed Kafka event IDs in Redis. Keys expire
// after the configured TTL, which bounds how late a redelivery is detected.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ kafka.IdempotencyStore = (*IdempotencyStore)(nil)

// NewIdempotencyStore creates a new Redis-backed idempotency store.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		client: client,
		ttl:    ttl,
	}
}

// Contains reports whether the event was already processed.
func (s *IdempotencyStore) Contains(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, eventKeyPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists event: %w", err)
	}
	return n > 0, nil
}

// Add marks the event as processed. Recording an ID twice is not an error.
func (s *IdempotencyStore) Add(ctx context.Context, eventID string) error {
	if err := s.client.SetNX(ctx, eventKeyPrefix+eventID, 1, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis setnx event: %w", err)
	}
	return nil
}
