package repository

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/acadence/notification-service/internal/models"
)

// AttendanceRepository reads attendance and enrollment rows owned by the
// attendance-marking application. Everything here is read-only.
type AttendanceRepository interface {
	GetRecordsByStudent(ctx context.Context, studentID string) ([]models.AttendanceRecord, error)
	GetEnrolledSessions(ctx context.Context, studentID string) ([]models.ClassSession, error)
}

type attendanceRepository struct {
	*PostgresRepository
}

func NewAttendanceRepository(db *sql.DB, logger zerolog.Logger) AttendanceRepository {
	return &attendanceRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func (r *attendanceRepository) GetRecordsByStudent(ctx context.Context, studentID string) ([]models.AttendanceRecord, error) {
	query := `
		SELECT id, student_id, class_id, date, status
		FROM attendance_records
		WHERE student_id = $1
		ORDER BY date
	`

	rows, err := r.db.QueryContext(ctx, query, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.AttendanceRecord
	for rows.Next() {
		var record models.AttendanceRecord
		if err := rows.Scan(
			&record.ID,
			&record.StudentID,
			&record.ClassID,
			&record.Date,
			&record.Status,
		); err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

func (r *attendanceRepository) GetEnrolledSessions(ctx context.Context, studentID string) ([]models.ClassSession, error) {
	query := `
		SELECT c.id, c.name,
		       COALESCE(c.subject_code, ''), COALESCE(c.subject_name, ''),
		       COALESCE(c.group_name, ''), COALESCE(c.day_of_week, 0),
		       COALESCE(c.start_time, ''), COALESCE(c.end_time, '')
		FROM classes c
		JOIN enrollments e ON e.class_id = c.id
		WHERE e.student_id = $1
		ORDER BY c.name
	`

	rows, err := r.db.QueryContext(ctx, query, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.ClassSession
	for rows.Next() {
		var session models.ClassSession
		if err := rows.Scan(
			&session.ID,
			&session.Name,
			&session.SubjectCode,
			&session.SubjectName,
			&session.GroupName,
			&session.DayOfWeek,
			&session.StartTime,
			&session.EndTime,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}
