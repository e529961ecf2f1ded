package redis

import (
	"context"
	"errors"
	"fmt"

	"concurso-study-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SlotStore keeps performance slots as plain Redis strings without expiry.
// Slots are stored as: SET slot:{key} {json}
type SlotStore struct {
	client *redis.Client
}

func NewSlotStore(client *redis.Client) *SlotStore {
	return &SlotStore{client: client}
}

func (s *SlotStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get slot %s: %w", key, err)
	}
	return value, nil
}

func (s *SlotStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis put slot %s: %w", key, err)
	}
	return nil
}

func (s *SlotStore) key(key string) string {
	return "slot:" + key
}
