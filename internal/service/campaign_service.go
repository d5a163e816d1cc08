package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/acadence/notification-service/internal/models"
	"github.com/acadence/notification-service/internal/repository"
	"github.com/acadence/notification-service/internal/service/advisor"
	"github.com/acadence/notification-service/internal/service/email"
)

// CampaignOptions configure a weekly run. Both dry-run knobs default off so
// production behavior is the default.
type CampaignOptions struct {
	// TestRecipients, when non-empty, restricts sends to students whose
	// email is on the list. Everyone else is counted as skipped.
	TestRecipients []string

	// ForceSend emails students even when no subject is under the safety
	// buffer, using a sample of their subjects.
	ForceSend bool

	// StudentDelay is the pause between students, respecting upstream
	// email rate limits.
	StudentDelay time.Duration
}

type CampaignService interface {
	Run(ctx context.Context) (*models.CampaignSummary, error)
	Running() bool
}

type campaignService struct {
	studentRepo   repository.StudentRepository
	attendanceSvc AttendanceService
	composer      advisor.Composer
	dispatcher    email.Dispatcher
	opts          CampaignOptions
	running       atomic.Bool
	logger        zerolog.Logger
}

func NewCampaignService(
	studentRepo repository.StudentRepository,
	attendanceSvc AttendanceService,
	composer advisor.Composer,
	dispatcher email.Dispatcher,
	opts CampaignOptions,
	logger zerolog.Logger,
) CampaignService {
	if opts.StudentDelay <= 0 {
		opts.StudentDelay = 500 * time.Millisecond
	}
	return &campaignService{
		studentRepo:   studentRepo,
		attendanceSvc: attendanceSvc,
		composer:      composer,
		dispatcher:    dispatcher,
		opts:          opts,
		logger:        logger,
	}
}

func (s *campaignService) Running() bool {
	return s.running.Load()
}

// Run executes one weekly campaign pass over all active students. Only one
// run may be active at a time; a second trigger gets ErrCampaignRunning.
// Cancellation is cooperative and checked between students; an in-flight
// student completes.
func (s *campaignService) Run(ctx context.Context) (*models.CampaignSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrCampaignRunning
	}
	defer s.running.Store(false)

	startedAt := time.Now()
	summary := &models.CampaignSummary{StartedAt: startedAt}

	students, err := s.studentRepo.GetAllActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load students: %w", err)
	}

	s.logger.Info().Int("students", len(students)).Msg("Weekly campaign run started")

	currentWeek := weekLabel(startedAt)

	for i, student := range students {
		if ctx.Err() != nil {
			s.logger.Warn().Int("remaining", len(students)-i).Msg("Campaign run cancelled")
			break
		}

		if i > 0 {
			time.Sleep(s.opts.StudentDelay)
		}

		sent, err := s.processStudent(ctx, student, currentWeek)
		if err != nil {
			s.logger.Error().Err(err).
				Str("student_id", student.ID).
				Msg("Campaign failed for student, continuing")
			summary.Failed++
			continue
		}
		if sent {
			summary.Sent++
		} else {
			summary.Skipped++
		}
	}

	summary.Duration = time.Since(startedAt).Round(time.Millisecond).String()

	s.logger.Info().
		Int("sent", summary.Sent).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Str("duration", summary.Duration).
		Msg("Weekly campaign run finished")

	return summary, nil
}

func (s *campaignService) processStudent(ctx context.Context, student models.Student, currentWeek string) (bool, error) {
	if len(s.opts.TestRecipients) > 0 && !contains(s.opts.TestRecipients, student.Email) {
		return false, nil
	}

	stats, err := s.attendanceSvc.AggregateWithUpcoming(ctx, student.ID, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to aggregate attendance: %w", err)
	}

	subjects := make([]advisor.WeeklySubject, 0, len(stats))
	for _, stat := range stats {
		if stat.Percentage >= advisor.SafetyBuffer {
			continue
		}
		subjects = append(subjects, toWeeklySubject(stat))
	}

	if len(subjects) == 0 {
		if !s.opts.ForceSend {
			return false, nil
		}
		// Dry-run override: send a sample so the pipeline can be exercised
		// against healthy accounts.
		for _, stat := range stats {
			subjects = append(subjects, toWeeklySubject(stat))
			if len(subjects) == 3 {
				break
			}
		}
		if len(subjects) == 0 {
			return false, nil
		}
	}

	message := s.composer.ComposeWeeklyDigest(student.Name, subjects, currentWeek)
	subjectLine := s.composer.ComposeSubjectLine(subjects)

	result := s.dispatcher.Send(ctx, email.Message{
		To:       student.Email,
		ToName:   student.Name,
		Subject:  subjectLine,
		Text:     message,
		Priority: email.PriorityNormal,
	})

	if !result.Success {
		return false, fmt.Errorf("email not delivered: %s", result.Error)
	}

	return true, nil
}

func toWeeklySubject(stat models.AttendanceStat) advisor.WeeklySubject {
	risk := advisor.Classify(stat.Percentage)
	return advisor.WeeklySubject{
		SubjectCode:      stat.SubjectCode,
		SubjectName:      stat.SubjectName,
		Percentage:       stat.Percentage,
		Level:            risk.Level,
		SessionsNeeded:   advisor.SessionsToRecover(stat.PresentDays, stat.TotalDays),
		UpcomingSessions: stat.UpcomingSessions,
	}
}

// weekLabel renders the current week as "the week of Jan 2" anchored on Monday.
func weekLabel(now time.Time) string {
	offset := (int(now.Weekday()) + 6) % 7
	monday := now.AddDate(0, 0, -offset)
	return "the week of " + monday.Format("Jan 2")
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
