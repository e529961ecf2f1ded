package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"concurso-study-service/internal/domain"
)

// DefaultPerformanceKey is the slot the aggregate is stored under.
const DefaultPerformanceKey = "user_performance"

const (
	xpPerCorrect   = 25
	xpPerIncorrect = 5
	xpPerLevel     = 1000
)

// SlotStore is a named key-value slot holding opaque bytes (memory, Redis, Postgres, SQLite).
type SlotStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// PerformanceTracker owns the durable performance aggregate. It is loaded once
// and the whole snapshot is written back after every mutation.
type PerformanceTracker struct {
	store  SlotStore
	key    string
	logger *slog.Logger

	mu       sync.RWMutex
	snapshot domain.Performance
}

// LoadPerformance reads the slot once. A missing, unreadable or malformed value
// yields the zero snapshot instead of an error.
func LoadPerformance(ctx context.Context, store SlotStore, key string, logger *slog.Logger) *PerformanceTracker {
	if key == "" {
		key = DefaultPerformanceKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	t := &PerformanceTracker{store: store, key: key, logger: logger, snapshot: ZeroPerformance()}

	raw, err := store.Get(ctx, key)
	switch {
	case errors.Is(err, domain.ErrSlotNotFound):
		return t
	case err != nil:
		logger.Warn("performance slot unreadable, starting from zero", "key", key, "error", err)
		return t
	}
	snapshot, err := DecodePerformance(raw)
	if err != nil {
		logger.Warn("performance slot malformed, starting from zero", "key", key, "error", err)
		return t
	}
	t.snapshot = snapshot
	return t
}

// ZeroPerformance is the default snapshot.
func ZeroPerformance() domain.Performance {
	return domain.Performance{SubjectStats: map[string]domain.SubjectStat{}, Level: 1}
}

// DecodePerformance parses a stored snapshot, filling defaults for absent fields.
func DecodePerformance(raw []byte) (domain.Performance, error) {
	var p domain.Performance
	if err := json.Unmarshal(raw, &p); err != nil {
		return ZeroPerformance(), err
	}
	if p.SubjectStats == nil {
		p.SubjectStats = map[string]domain.SubjectStat{}
	}
	if p.Level < 1 {
		p.Level = levelFor(p.XP)
	}
	return p, nil
}

// QuestionAnswered folds one answer into the aggregate and persists it.
// Persistence failures are logged; the in-memory aggregate stays authoritative.
func (t *PerformanceTracker) QuestionAnswered(ctx context.Context, correct bool, subject string) {
	t.mu.Lock()
	p := &t.snapshot
	p.TotalAnswered++
	stat := p.SubjectStats[subject]
	stat.Total++
	if correct {
		p.CorrectAnswers++
		stat.Correct++
		p.XP += xpPerCorrect
	} else {
		p.XP += xpPerIncorrect
	}
	p.SubjectStats[subject] = stat
	p.Level = levelFor(p.XP)

	raw, err := json.Marshal(t.snapshot)
	if err == nil {
		// Saving under the lock keeps writes ordered: the slot never goes backwards.
		err = t.store.Put(ctx, t.key, raw)
	}
	t.mu.Unlock()

	if err != nil {
		t.logger.Error("persist performance failed", "key", t.key, "error", err)
	}
}

// Snapshot returns a deep copy of the aggregate.
func (t *PerformanceTracker) Snapshot() domain.Performance {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot.Clone()
}

func levelFor(xp int) int {
	return xp/xpPerLevel + 1
}
