package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/acadence/notification-service/internal/models"
	"github.com/acadence/notification-service/internal/repository"
	"github.com/acadence/notification-service/internal/service/advisor"
	"github.com/acadence/notification-service/internal/service/email"
)

// suppressionWindow is how long a (student, subject, tier) notification
// suppresses an identical one.
const suppressionWindow = 24 * time.Hour

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// TaskSubmitter runs a task off the caller's path. Satisfied by the worker
// pool; email dispatch from single-student generation goes through it so the
// caller never waits on the network.
type TaskSubmitter interface {
	Submit(task func())
}

type NotificationService interface {
	GenerateForStudent(ctx context.Context, studentID string, onlyEscalated bool) ([]models.Notification, []models.AttendanceStat, error)
	List(ctx context.Context, studentID string, limit int) ([]models.Notification, int, error)
	UnreadCount(ctx context.Context, studentID string) (int, error)
	MarkRead(ctx context.Context, id, studentID string) (*models.Notification, error)
	MarkAllRead(ctx context.Context, studentID string) (int, error)
	Delete(ctx context.Context, id, studentID string) error
}

type notificationService struct {
	studentRepo      repository.StudentRepository
	notificationRepo repository.NotificationRepository
	attendanceSvc    AttendanceService
	composer         advisor.Composer
	dispatcher       email.Dispatcher
	submitter        TaskSubmitter
	logger           zerolog.Logger
}

func NewNotificationService(
	studentRepo repository.StudentRepository,
	notificationRepo repository.NotificationRepository,
	attendanceSvc AttendanceService,
	composer advisor.Composer,
	dispatcher email.Dispatcher,
	submitter TaskSubmitter,
	logger zerolog.Logger,
) NotificationService {
	return &notificationService{
		studentRepo:      studentRepo,
		notificationRepo: notificationRepo,
		attendanceSvc:    attendanceSvc,
		composer:         composer,
		dispatcher:       dispatcher,
		submitter:        submitter,
		logger:           logger,
	}
}

// GenerateForStudent runs the full pipeline for one student:
// aggregate -> classify -> dedupe -> compose -> persist -> dispatch.
// Only the student lookup is fatal; every per-subject failure is logged and
// the remaining subjects still get processed.
func (s *notificationService) GenerateForStudent(ctx context.Context, studentID string, onlyEscalated bool) ([]models.Notification, []models.AttendanceStat, error) {
	student, err := s.studentRepo.GetByID(ctx, studentID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load student: %w", err)
	}
	if student == nil {
		return nil, nil, ErrStudentNotFound
	}

	stats, err := s.attendanceSvc.AggregateByStudent(ctx, studentID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to aggregate attendance: %w", err)
	}

	created := make([]models.Notification, 0, len(stats))

	for _, stat := range stats {
		risk := advisor.Classify(stat.Percentage)

		if onlyEscalated && !risk.Level.Escalated() {
			continue
		}

		exists, err := s.notificationRepo.ExistsRecent(ctx, studentID, stat.SubjectCode, risk.Level, suppressionWindow)
		if err != nil {
			s.logger.Error().Err(err).
				Str("student_id", studentID).
				Str("subject_code", stat.SubjectCode).
				Msg("Failed to check recent notifications, skipping subject")
			continue
		}
		if exists {
			s.logger.Info().
				Str("student_id", studentID).
				Str("subject_code", stat.SubjectCode).
				Str("type", risk.Level.String()).
				Msg("Recent notification exists, suppressed")
			continue
		}

		message := s.composer.ComposeSubjectAdvice(advisor.SubjectInput{
			StudentName: student.Name,
			SubjectCode: stat.SubjectCode,
			SubjectName: stat.SubjectName,
			Percentage:  stat.Percentage,
			Level:       risk.Level,
			AbsentDays:  stat.AbsentDays,
			TotalDays:   stat.TotalDays,
		})

		notification := models.Notification{
			ID:                   uuid.New().String(),
			StudentID:            studentID,
			SubjectCode:          stat.SubjectCode,
			SubjectName:          stat.SubjectName,
			Message:              message,
			Type:                 risk.Level,
			AttendancePercentage: stat.Percentage,
			CreatedAt:            time.Now(),
		}

		if err := s.notificationRepo.Create(ctx, &notification); err != nil {
			s.logger.Error().Err(err).
				Str("student_id", studentID).
				Str("subject_code", stat.SubjectCode).
				Msg("Failed to persist notification, continuing with next subject")
			continue
		}

		created = append(created, notification)

		if risk.Level.Escalated() {
			s.dispatchAsync(*student, notification)
		}
	}

	s.logger.Info().
		Str("student_id", studentID).
		Int("created", len(created)).
		Int("subjects", len(stats)).
		Bool("only_escalated", onlyEscalated).
		Msg("Notification generation finished")

	return created, stats, nil
}

// dispatchAsync hands the email off to the worker pool. Failures are logged;
// they never reach the caller of GenerateForStudent.
func (s *notificationService) dispatchAsync(student models.Student, notification models.Notification) {
	s.submitter.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		priority := email.PriorityNormal
		subject := fmt.Sprintf("Reminder: %s attendance at %.0f%%", notification.SubjectCode, notification.AttendancePercentage)
		if notification.Type == models.RiskCritical {
			priority = email.PriorityHigh
			subject = fmt.Sprintf("URGENT: %s attendance at %.0f%%", notification.SubjectCode, notification.AttendancePercentage)
		}

		result := s.dispatcher.Send(ctx, email.Message{
			To:       student.Email,
			ToName:   student.Name,
			Subject:  subject,
			Text:     notification.Message,
			HTML:     fmt.Sprintf("<p>%s</p>", notification.Message),
			Priority: priority,
		})

		if !result.Success {
			s.logger.Warn().
				Str("student_id", student.ID).
				Str("subject_code", notification.SubjectCode).
				Str("error", result.Error).
				Msg("Notification email not delivered")
			return
		}

		s.logger.Info().
			Str("student_id", student.ID).
			Str("subject_code", notification.SubjectCode).
			Str("message_id", result.MessageID).
			Msg("Notification email sent")
	})
}

func (s *notificationService) List(ctx context.Context, studentID string, limit int) ([]models.Notification, int, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}

	notifications, err := s.notificationRepo.GetByStudent(ctx, studentID, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}

	unread, err := s.notificationRepo.UnreadCount(ctx, studentID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	return notifications, unread, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, studentID string) (int, error) {
	return s.notificationRepo.UnreadCount(ctx, studentID)
}

func (s *notificationService) MarkRead(ctx context.Context, id, studentID string) (*models.Notification, error) {
	notification, err := s.notificationRepo.MarkRead(ctx, id, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	if notification == nil {
		return nil, ErrNotificationNotFound
	}
	return notification, nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, studentID string) (int, error) {
	return s.notificationRepo.MarkAllRead(ctx, studentID)
}

func (s *notificationService) Delete(ctx context.Context, id, studentID string) error {
	deleted, err := s.notificationRepo.Delete(ctx, id, studentID)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if !deleted {
		return ErrNotificationNotFound
	}
	return nil
}
