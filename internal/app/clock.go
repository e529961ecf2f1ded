package app

import (
	"context"
	"time"
)

// sessionClock drives one session run with a repeating tick.
// stop cancels the ticker goroutine; it never waits for it, so it is safe to
// call from inside the tick callback.
type sessionClock struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// startClock calls onTick every interval until stopped. A non-positive
// interval yields a clock that never fires (ticks are driven externally).
func startClock(interval time.Duration, onTick func()) *sessionClock {
	ctx, cancel := context.WithCancel(context.Background())
	c := &sessionClock{cancel: cancel, done: make(chan struct{})}
	if interval <= 0 {
		close(c.done)
		return c
	}

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if ctx.Err() != nil {
					return
				}
				onTick()
			}
		}
	}()
	return c
}

func (c *sessionClock) stop() {
	if c == nil {
		return
	}
	c.cancel()
}

// stopped is closed once the ticker goroutine has exited.
func (c *sessionClock) stopped() <-chan struct{} {
	return c.done
}
