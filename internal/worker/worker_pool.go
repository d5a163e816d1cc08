package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// WorkerPool runs submitted tasks on a fixed set of goroutines. Panics inside
// a task are recovered so one bad notification cannot take a worker down.
type WorkerPool struct {
	tasks      chan func()
	wg         sync.WaitGroup
	busy       int
	maxWorkers int
	logger     zerolog.Logger
	mu         sync.RWMutex
}

func NewWorkerPool(maxWorkers int, logger zerolog.Logger) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &WorkerPool{
		tasks:      make(chan func(), maxWorkers*10),
		maxWorkers: maxWorkers,
		logger:     logger,
	}
}

func (wp *WorkerPool) Start(ctx context.Context) error {
	wp.logger.Info().Int("max_workers", wp.maxWorkers).Msg("Starting worker pool")

	for i := 0; i < wp.maxWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}

	return nil
}

// Stop closes the task queue and waits for in-flight tasks to drain.
func (wp *WorkerPool) Stop() error {
	wp.logger.Info().Msg("Stopping worker pool")

	close(wp.tasks)
	wp.wg.Wait()

	wp.logger.Info().Msg("Worker pool stopped")
	return nil
}

func (wp *WorkerPool) Submit(task func()) {
	select {
	case wp.tasks <- task:
	default:
		wp.logger.Warn().Msg("Worker pool task queue is full")
		select {
		case wp.tasks <- task:
		case <-time.After(1 * time.Second):
			wp.logger.Error().Msg("Failed to submit task to worker pool (timeout)")
		}
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	wp.logger.Debug().Int("worker_id", id).Msg("Worker started")

	for task := range wp.tasks {
		wp.mu.Lock()
		wp.busy++
		wp.mu.Unlock()

		func() {
			defer func() {
				if r := recover(); r != nil {
					wp.logger.Error().
						Int("worker_id", id).
						Interface("panic", r).
						Msg("Worker recovered from panic")
				}

				wp.mu.Lock()
				wp.busy--
				wp.mu.Unlock()
			}()

			task()
		}()
	}

	wp.logger.Debug().Int("worker_id", id).Msg("Worker stopped")
}

func (wp *WorkerPool) GetActiveWorkers() int {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	return wp.busy
}

func (wp *WorkerPool) GetQueueLength() int {
	return len(wp.tasks)
}

func (wp *WorkerPool) GetStats() map[string]interface{} {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	return map[string]interface{}{
		"active_workers": wp.busy,
		"max_workers":    wp.maxWorkers,
		"queue_length":   len(wp.tasks),
		"queue_capacity": cap(wp.tasks),
	}
}
