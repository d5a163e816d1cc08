package email

import (
	"context"
	"sync"
	"time"
)

// throttledDispatcher enforces a minimum interval between sends. Bulk callers
// fan out through the worker pool, so the gate lives here rather than in each
// caller's loop.
type throttledDispatcher struct {
	next     Dispatcher
	interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func NewThrottledDispatcher(next Dispatcher, interval time.Duration) Dispatcher {
	if interval <= 0 {
		return next
	}
	return &throttledDispatcher{next: next, interval: interval}
}

func (d *throttledDispatcher) Configured() bool {
	return d.next.Configured()
}

func (d *throttledDispatcher) Send(ctx context.Context, msg Message) Result {
	d.mu.Lock()
	if wait := d.interval - time.Since(d.last); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			d.mu.Unlock()
			return Result{Success: false, Error: ctx.Err().Error()}
		}
	}
	d.last = time.Now()
	d.mu.Unlock()

	return d.next.Send(ctx, msg)
}
