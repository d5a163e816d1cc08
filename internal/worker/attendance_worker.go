package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/acadence/notification-service/internal/models"
	"github.com/acadence/notification-service/internal/service"
	"github.com/acadence/notification-service/internal/worker/queue"
)

// AttendanceWorker consumes attendance.marked events and reruns the risk
// notification pipeline for the affected student.
type AttendanceWorker interface {
	Start(ctx context.Context) error
	Stop() error
	ProcessEvent(ctx context.Context, studentID string) error
	GetStats() WorkerStats
}

type WorkerStats struct {
	ActiveWorkers  int `json:"active_workers"`
	TotalProcessed int `json:"total_processed"`
	FailedJobs     int `json:"failed_jobs"`
	QueueLength    int `json:"queue_length"`
}

type attendanceWorker struct {
	workerPool      *WorkerPool
	queueConsumer   queue.Consumer
	notificationSvc service.NotificationService
	logger          zerolog.Logger
	stats           WorkerStats
	statsMutex      sync.RWMutex
	startTime       time.Time
}

func NewAttendanceWorker(
	workerPool *WorkerPool,
	queueConsumer queue.Consumer,
	notificationSvc service.NotificationService,
	logger zerolog.Logger,
) AttendanceWorker {
	return &attendanceWorker{
		workerPool:      workerPool,
		queueConsumer:   queueConsumer,
		notificationSvc: notificationSvc,
		logger:          logger,
		startTime:       time.Now(),
	}
}

func (w *attendanceWorker) Start(ctx context.Context) error {
	w.logger.Info().Msg("Starting attendance worker...")

	if err := w.workerPool.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	msgs, err := w.queueConsumer.Consume(ctx)
	if err != nil {
		return fmt.Errorf("failed to start consuming messages: %w", err)
	}

	go w.processMessages(ctx, msgs)

	w.logger.Info().Msg("Attendance worker started successfully")
	return nil
}

func (w *attendanceWorker) Stop() error {
	w.logger.Info().Msg("Stopping attendance worker...")

	if err := w.workerPool.Stop(); err != nil {
		w.logger.Error().Err(err).Msg("Failed to stop worker pool")
	}

	if err := w.queueConsumer.Close(); err != nil {
		w.logger.Error().Err(err).Msg("Failed to close queue consumer")
	}

	w.logger.Info().
		Int("total_processed", w.stats.TotalProcessed).
		Int("failed_jobs", w.stats.FailedJobs).
		Dur("uptime", time.Since(w.startTime)).
		Msg("Attendance worker stopped")

	return nil
}

func (w *attendanceWorker) processMessages(ctx context.Context, msgs <-chan queue.Message) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Stopping message processing")
			return
		case msg, ok := <-msgs:
			if !ok {
				w.logger.Warn().Msg("Message channel closed")
				return
			}

			w.workerPool.Submit(func() {
				if err := w.processMessage(ctx, msg); err != nil {
					w.logger.Error().Err(err).Msg("Failed to process message")

					w.statsMutex.Lock()
					w.stats.FailedJobs++
					w.statsMutex.Unlock()

					// Malformed or unprocessable events are acked so they
					// do not loop through the queue forever.
					if isPermanentError(err) {
						if ackErr := msg.Ack(false); ackErr != nil {
							w.logger.Error().Err(ackErr).Msg("Failed to ack message")
						}
						return
					}

					if nackErr := msg.Nack(false, true); nackErr != nil {
						w.logger.Error().Err(nackErr).Msg("Failed to nack message")
					}
				} else {
					if err := msg.Ack(false); err != nil {
						w.logger.Error().Err(err).Msg("Failed to ack message")
					}

					w.statsMutex.Lock()
					w.stats.TotalProcessed++
					w.statsMutex.Unlock()
				}
			})
		}
	}
}

func (w *attendanceWorker) processMessage(ctx context.Context, msg queue.Message) error {
	var event models.AttendanceMarkedEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		return permanent(fmt.Errorf("failed to unmarshal event: %w", err))
	}

	if strings.TrimSpace(event.StudentID) == "" {
		return permanent(errors.New("empty student_id"))
	}

	w.logger.Info().
		Str("student_id", event.StudentID).
		Str("class_id", event.ClassID).
		Str("status", string(event.Status)).
		Msg("Processing attendance event")

	return w.ProcessEvent(ctx, event.StudentID)
}

// ProcessEvent reruns risk classification for one student. Only escalated
// levels produce notifications here; routine levels wait for the weekly
// digest.
func (w *attendanceWorker) ProcessEvent(ctx context.Context, studentID string) error {
	startTime := time.Now()

	notifications, _, err := w.notificationSvc.GenerateForStudent(ctx, studentID, true)
	if err != nil {
		if errors.Is(err, service.ErrStudentNotFound) {
			return permanent(fmt.Errorf("unknown student %s: %w", studentID, err))
		}
		return fmt.Errorf("failed to generate notifications: %w", err)
	}

	w.logger.Info().
		Str("student_id", studentID).
		Int("notifications_created", len(notifications)).
		Dur("took", time.Since(startTime)).
		Msg("Attendance event processed")

	return nil
}

func (w *attendanceWorker) GetStats() WorkerStats {
	w.statsMutex.RLock()
	defer w.statsMutex.RUnlock()

	stats := w.stats

	queueLength, err := w.queueConsumer.GetQueueLength()
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to get queue length")
	} else {
		stats.QueueLength = queueLength
	}

	stats.ActiveWorkers = w.workerPool.GetActiveWorkers()

	return stats
}

type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return permanentError{err: err}
}

func isPermanentError(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}
