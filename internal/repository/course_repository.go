package repository

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/acadence/notification-service/internal/models"
)

// CourseRepository stores synced external courses and assignments. All writes
// are idempotent upserts keyed by (user_id, source, external_id).
type CourseRepository interface {
	UpsertCourse(ctx context.Context, course *models.ExternalCourse) error
	UpsertAssignment(ctx context.Context, assignment *models.ExternalAssignment) error
	GetCourses(ctx context.Context, userID, source string) ([]models.ExternalCourse, error)
	GetAssignments(ctx context.Context, userID, source string) ([]models.ExternalAssignment, error)
}

type courseRepository struct {
	*PostgresRepository
}

func NewCourseRepository(db *sql.DB, logger zerolog.Logger) CourseRepository {
	return &courseRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func (r *courseRepository) UpsertCourse(ctx context.Context, course *models.ExternalCourse) error {
	query := `
		INSERT INTO external_courses (
			id, user_id, source, external_id, name, section, description, link,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		ON CONFLICT (user_id, source, external_id) DO UPDATE SET
			name = EXCLUDED.name,
			section = EXCLUDED.section,
			description = EXCLUDED.description,
			link = EXCLUDED.link,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		course.ID,
		course.UserID,
		course.Source,
		course.ExternalID,
		course.Name,
		course.Section,
		course.Description,
		course.Link,
		course.CreatedAt,
		course.UpdatedAt,
	)

	return err
}

func (r *courseRepository) UpsertAssignment(ctx context.Context, assignment *models.ExternalAssignment) error {
	query := `
		INSERT INTO external_assignments (
			id, user_id, source, external_id, course_id, title, description,
			due_date, max_points, link, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		ON CONFLICT (user_id, source, external_id) DO UPDATE SET
			course_id = EXCLUDED.course_id,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			due_date = EXCLUDED.due_date,
			max_points = EXCLUDED.max_points,
			link = EXCLUDED.link,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		assignment.ID,
		assignment.UserID,
		assignment.Source,
		assignment.ExternalID,
		assignment.CourseID,
		assignment.Title,
		assignment.Description,
		assignment.DueDate,
		assignment.MaxPoints,
		assignment.Link,
		assignment.CreatedAt,
		assignment.UpdatedAt,
	)

	return err
}

func (r *courseRepository) GetCourses(ctx context.Context, userID, source string) ([]models.ExternalCourse, error) {
	query := `
		SELECT id, user_id, source, external_id, name, section, description, link,
		       created_at, updated_at
		FROM external_courses
		WHERE user_id = $1 AND source = $2
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query, userID, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []models.ExternalCourse
	for rows.Next() {
		var course models.ExternalCourse
		if err := rows.Scan(
			&course.ID,
			&course.UserID,
			&course.Source,
			&course.ExternalID,
			&course.Name,
			&course.Section,
			&course.Description,
			&course.Link,
			&course.CreatedAt,
			&course.UpdatedAt,
		); err != nil {
			return nil, err
		}
		courses = append(courses, course)
	}

	return courses, rows.Err()
}

func (r *courseRepository) GetAssignments(ctx context.Context, userID, source string) ([]models.ExternalAssignment, error) {
	query := `
		SELECT id, user_id, source, external_id, course_id, title, description,
		       due_date, max_points, link, created_at, updated_at
		FROM external_assignments
		WHERE user_id = $1 AND source = $2
		ORDER BY due_date ASC NULLS LAST, title
	`

	rows, err := r.db.QueryContext(ctx, query, userID, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []models.ExternalAssignment
	for rows.Next() {
		var assignment models.ExternalAssignment
		if err := rows.Scan(
			&assignment.ID,
			&assignment.UserID,
			&assignment.Source,
			&assignment.ExternalID,
			&assignment.CourseID,
			&assignment.Title,
			&assignment.Description,
			&assignment.DueDate,
			&assignment.MaxPoints,
			&assignment.Link,
			&assignment.CreatedAt,
			&assignment.UpdatedAt,
		); err != nil {
			return nil, err
		}
		assignments = append(assignments, assignment)
	}

	return assignments, rows.Err()
}
