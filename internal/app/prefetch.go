package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"concurso-study-service/internal/domain"
)

// prefetchBuffer holds at most one speculatively generated question.
// Each fill is tagged with the buffer generation; invalidate bumps the
// generation so late results are dropped instead of leaking into a new run.
type prefetchBuffer struct {
	fetch   fetchFunc
	logger  *slog.Logger
	timeout time.Duration

	mu         sync.Mutex
	generation uint64
	inFlight   bool
	cancel     context.CancelFunc
	next       *domain.Question
	wg         sync.WaitGroup
}

// fetchFunc produces one validated question.
type fetchFunc func(ctx context.Context, filter domain.Filter) (domain.Question, error)

func newPrefetchBuffer(fetch fetchFunc, logger *slog.Logger, timeout time.Duration) *prefetchBuffer {
	return &prefetchBuffer{fetch: fetch, logger: logger, timeout: timeout}
}

// fill starts a background fetch unless one is running or a question is already buffered.
// onReady runs after a successful, still-current fill.
func (b *prefetchBuffer) fill(filter domain.Filter, onReady func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inFlight || b.next != nil {
		return
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if b.timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), b.timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	b.inFlight = true
	b.cancel = cancel
	gen := b.generation

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer cancel()

		q, err := b.fetch(ctx, filter)

		b.mu.Lock()
		if gen != b.generation {
			b.mu.Unlock()
			return
		}
		b.inFlight = false
		b.cancel = nil
		if err != nil {
			b.mu.Unlock()
			if !errors.Is(err, context.Canceled) {
				b.logger.Warn("prefetch failed", "error", fmt.Errorf("%w: %v", domain.ErrPrefetchFailed, err), "materia", filter.Materia)
			}
			return
		}
		b.next = &q
		b.mu.Unlock()

		if onReady != nil {
			onReady()
		}
	}()
}

// take returns and clears the buffered question.
func (b *prefetchBuffer) take() (domain.Question, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.next == nil {
		return domain.Question{}, false
	}
	q := *b.next
	b.next = nil
	return q, true
}

func (b *prefetchBuffer) ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.next != nil
}

// invalidate drops the buffered question and orphans any fill in flight.
func (b *prefetchBuffer) invalidate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.generation++
	b.next = nil
	b.inFlight = false
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
}

// wait blocks until every started fill goroutine has returned.
func (b *prefetchBuffer) wait() {
	b.wg.Wait()
}
