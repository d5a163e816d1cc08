package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/acadence/notification-service/internal/models"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ExistsRecent(ctx context.Context, studentID, subjectCode string, level models.RiskLevel, within time.Duration) (bool, error)
	GetByStudent(ctx context.Context, studentID string, limit int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, studentID string) (int, error)
	MarkRead(ctx context.Context, id, studentID string) (*models.Notification, error)
	MarkAllRead(ctx context.Context, studentID string) (int, error)
	Delete(ctx context.Context, id, studentID string) (bool, error)
	Ping(ctx context.Context) error
}

type notificationRepository struct {
	*PostgresRepository
}

func NewNotificationRepository(db *sql.DB, logger zerolog.Logger) NotificationRepository {
	return &notificationRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func (r *notificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	query := `
		INSERT INTO notifications (
			id, student_id, subject_code, subject_name, message, type,
			attendance_percentage, is_read, read_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		notification.ID,
		notification.StudentID,
		notification.SubjectCode,
		notification.SubjectName,
		notification.Message,
		notification.Type,
		notification.AttendancePercentage,
		notification.IsRead,
		notification.ReadAt,
		notification.CreatedAt,
	)

	return err
}

// ExistsRecent reports whether a notification for the same (student, subject,
// tier) exists inside the suppression window. The check-then-insert pair is
// not atomic; the unique daily index on the table closes the remaining race.
func (r *notificationRepository) ExistsRecent(ctx context.Context, studentID, subjectCode string, level models.RiskLevel, within time.Duration) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE student_id = $1 AND subject_code = $2 AND type = $3
			  AND created_at > $4
		)
	`

	var exists bool
	err := r.db.QueryRowContext(ctx, query,
		studentID, subjectCode, level, time.Now().Add(-within),
	).Scan(&exists)

	return exists, err
}

func (r *notificationRepository) GetByStudent(ctx context.Context, studentID string, limit int) ([]models.Notification, error) {
	query := `
		SELECT id, student_id, subject_code, subject_name, message, type,
		       attendance_percentage, is_read, read_at, created_at
		FROM notifications
		WHERE student_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, studentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(
			&n.ID,
			&n.StudentID,
			&n.SubjectCode,
			&n.SubjectName,
			&n.Message,
			&n.Type,
			&n.AttendancePercentage,
			&n.IsRead,
			&n.ReadAt,
			&n.CreatedAt,
		); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

func (r *notificationRepository) UnreadCount(ctx context.Context, studentID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM notifications
		WHERE student_id = $1 AND is_read = FALSE
	`

	var count int
	err := r.db.QueryRowContext(ctx, query, studentID).Scan(&count)
	return count, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, studentID string) (*models.Notification, error) {
	query := `
		UPDATE notifications
		SET is_read = TRUE, read_at = NOW()
		WHERE id = $1 AND student_id = $2
		RETURNING id, student_id, subject_code, subject_name, message, type,
		          attendance_percentage, is_read, read_at, created_at
	`

	n := &models.Notification{}
	err := r.db.QueryRowContext(ctx, query, id, studentID).Scan(
		&n.ID,
		&n.StudentID,
		&n.SubjectCode,
		&n.SubjectName,
		&n.Message,
		&n.Type,
		&n.AttendancePercentage,
		&n.IsRead,
		&n.ReadAt,
		&n.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return n, err
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, studentID string) (int, error) {
	query := `
		UPDATE notifications
		SET is_read = TRUE, read_at = NOW()
		WHERE student_id = $1 AND is_read = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, studentID)
	if err != nil {
		return 0, err
	}

	affected, err := result.RowsAffected()
	return int(affected), err
}

func (r *notificationRepository) Delete(ctx context.Context, id, studentID string) (bool, error) {
	query := `
		DELETE FROM notifications
		WHERE id = $1 AND student_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, id, studentID)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	return affected > 0, err
}
