package postgres

import (
	"context"
	"errors"
	"fmt"

	"concurso-study-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// SlotStore keeps performance slots as JSONB rows in performance_slots.
type SlotStore struct {
	pool *pgxpool.Pool
}

func NewSlotStore(pool *pgxpool.Pool) *SlotStore {
	return &SlotStore{pool: pool}
}

func (s *SlotStore) Get(ctx context.Context, key string) ([]byte, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM performance_slots WHERE key=$1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load slot: %w", err)
	}
	return raw, nil
}

// Put upserts the slot. The value must be valid JSON.
func (s *SlotStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO performance_slots (key, data, updated_at) VALUES ($1, $2::jsonb, now())
ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`, key, string(value))
	if err != nil {
		return fmt.Errorf("store slot: %w", err)
	}
	return nil
}
