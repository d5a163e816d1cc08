package repository

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/acadence/notification-service/internal/models"
)

// StudentRepository reads student rows owned by the main application.
type StudentRepository interface {
	GetByID(ctx context.Context, id string) (*models.Student, error)
	GetAllActive(ctx context.Context) ([]models.Student, error)
}

type studentRepository struct {
	*PostgresRepository
}

func NewStudentRepository(db *sql.DB, logger zerolog.Logger) StudentRepository {
	return &studentRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func (r *studentRepository) GetByID(ctx context.Context, id string) (*models.Student, error) {
	query := `
		SELECT id, name, email, is_active
		FROM students
		WHERE id = $1
	`

	student := &models.Student{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&student.ID,
		&student.Name,
		&student.Email,
		&student.IsActive,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return student, err
}

func (r *studentRepository) GetAllActive(ctx context.Context) ([]models.Student, error) {
	query := `
		SELECT id, name, email, is_active
		FROM students
		WHERE is_active = TRUE
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []models.Student
	for rows.Next() {
		var student models.Student
		if err := rows.Scan(
			&student.ID,
			&student.Name,
			&student.Email,
			&student.IsActive,
		); err != nil {
			return nil, err
		}
		students = append(students, student)
	}

	return students, rows.Err()
}
