package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWorkerPoolRunsSubmittedTasks(t *testing.T) {
	pool := NewWorkerPool(4, zerolog.Nop())
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var ran int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()
			atomic.AddInt64(&ran, 1)
		})
	}
	wg.Wait()

	if got := atomic.LoadInt64(&ran); got != 50 {
		t.Errorf("ran %d tasks, want 50", got)
	}

	if err := pool.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestWorkerPoolRecoversFromPanic(t *testing.T) {
	pool := NewWorkerPool(1, zerolog.Nop())
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	done := make(chan struct{})
	pool.Submit(func() { panic("task blew up") })
	pool.Submit(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not survive a panicking task")
	}

	if err := pool.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestWorkerPoolStopDrainsQueue(t *testing.T) {
	pool := NewWorkerPool(2, zerolog.Nop())
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var ran int64
	for i := 0; i < 20; i++ {
		pool.Submit(func() {
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&ran, 1)
		})
	}

	// Stop waits for everything already queued.
	if err := pool.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := atomic.LoadInt64(&ran); got != 20 {
		t.Errorf("ran %d tasks after Stop, want 20", got)
	}
	if pool.GetQueueLength() != 0 {
		t.Errorf("queue length = %d after Stop, want 0", pool.GetQueueLength())
	}
}

func TestWorkerPoolCoercesWorkerCount(t *testing.T) {
	pool := NewWorkerPool(0, zerolog.Nop())

	stats := pool.GetStats()
	if stats["max_workers"] != 1 {
		t.Errorf("max_workers = %v, want 1", stats["max_workers"])
	}
}
