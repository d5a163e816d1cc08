package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/acadence/notification-service/internal/models"
	"github.com/acadence/notification-service/internal/repository"
)

// AttendanceService aggregates raw attendance rows into per-subject stats.
type AttendanceService interface {
	AggregateByStudent(ctx context.Context, studentID string) ([]models.AttendanceStat, error)
	AggregateWithUpcoming(ctx context.Context, studentID string, now time.Time) ([]models.AttendanceStat, error)
}

type attendanceService struct {
	attendanceRepo repository.AttendanceRepository
	logger         zerolog.Logger
}

func NewAttendanceService(attendanceRepo repository.AttendanceRepository, logger zerolog.Logger) AttendanceService {
	return &attendanceService{
		attendanceRepo: attendanceRepo,
		logger:         logger,
	}
}

func (s *attendanceService) AggregateByStudent(ctx context.Context, studentID string) ([]models.AttendanceStat, error) {
	return s.aggregate(ctx, studentID, nil)
}

// AggregateWithUpcoming additionally attaches each subject's sessions still
// ahead of now in the local week, for the weekly digest.
func (s *attendanceService) AggregateWithUpcoming(ctx context.Context, studentID string, now time.Time) ([]models.AttendanceStat, error) {
	today := int(now.Weekday())
	return s.aggregate(ctx, studentID, func(session models.ClassSession) bool {
		return session.DayOfWeek >= today
	})
}

func (s *attendanceService) aggregate(ctx context.Context, studentID string, upcoming func(models.ClassSession) bool) ([]models.AttendanceStat, error) {
	sessions, err := s.attendanceRepo.GetEnrolledSessions(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load enrollments: %w", err)
	}

	records, err := s.attendanceRepo.GetRecordsByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance records: %w", err)
	}

	// A subject may span several session rows (lecture, lab); fold all of a
	// group's class ids into one aggregate.
	type group struct {
		key      models.SubjectGroup
		name     string
		classIDs map[string]bool
		sessions []models.ClassSession
	}

	groups := make(map[models.SubjectGroup]*group)
	var order []models.SubjectGroup

	for _, session := range sessions {
		key := session.SubjectKey()
		g, ok := groups[key]
		if !ok {
			g = &group{key: key, name: session.DisplaySubjectName(), classIDs: make(map[string]bool)}
			groups[key] = g
			order = append(order, key)
		}
		g.classIDs[session.ID] = true
		if upcoming != nil && upcoming(session) {
			g.sessions = append(g.sessions, session)
		}
	}

	var stats []models.AttendanceStat
	for _, key := range order {
		g := groups[key]

		days := make(map[string]bool)
		presentDays := 0
		for _, record := range records {
			if !g.classIDs[record.ClassID] {
				continue
			}
			days[record.Date.Format("2006-01-02")] = true
			if record.Status == models.AttendanceStatusPresent {
				presentDays++
			}
		}

		totalDays := len(days)
		if totalDays == 0 {
			continue
		}

		// Double-marked present rows on the same day can push the raw count
		// past the unique-day total; clamp so the percentage stays honest.
		if presentDays > totalDays {
			s.logger.Debug().
				Str("student_id", studentID).
				Str("subject_code", key.SubjectCode).
				Int("present_rows", presentDays).
				Int("unique_days", totalDays).
				Msg("Present rows exceed unique days, clamping")
			presentDays = totalDays
		}

		percentage := math.Round(float64(presentDays) / float64(totalDays) * 100)

		stat := models.AttendanceStat{
			SubjectCode:      key.SubjectCode,
			SubjectName:      g.name,
			GroupName:        key.GroupName,
			TotalDays:        totalDays,
			PresentDays:      presentDays,
			AbsentDays:       totalDays - presentDays,
			Percentage:       percentage,
			UpcomingSessions: g.sessions,
		}
		stats = append(stats, stat)
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].SubjectCode < stats[j].SubjectCode
	})

	return stats, nil
}
