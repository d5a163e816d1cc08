package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/acadence/notification-service/internal/models"
)

type IntegrationRepository interface {
	Upsert(ctx context.Context, integration *models.Integration) error
	GetByUserAndPlatform(ctx context.Context, userID, platform string) (*models.Integration, error)
	GetAllActive(ctx context.Context, platform string) ([]models.Integration, error)
	UpdateToken(ctx context.Context, id, accessToken string, expiry time.Time) error
	UpdateLastSynced(ctx context.Context, id string, at time.Time) error
	Deactivate(ctx context.Context, id string) error
}

type integrationRepository struct {
	*PostgresRepository
}

func NewIntegrationRepository(db *sql.DB, logger zerolog.Logger) IntegrationRepository {
	return &integrationRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

// Upsert creates the integration or, when the user reconnects, replaces the
// stored token pair and reactivates the row.
func (r *integrationRepository) Upsert(ctx context.Context, integration *models.Integration) error {
	query := `
		INSERT INTO integrations (
			id, user_id, platform, access_token, refresh_token, token_expiry,
			is_active, last_synced, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		ON CONFLICT (user_id, platform) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = CASE
				WHEN EXCLUDED.refresh_token <> '' THEN EXCLUDED.refresh_token
				ELSE integrations.refresh_token
			END,
			token_expiry = EXCLUDED.token_expiry,
			is_active = TRUE,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	return r.db.QueryRowContext(ctx, query,
		integration.ID,
		integration.UserID,
		integration.Platform,
		integration.AccessToken,
		integration.RefreshToken,
		integration.TokenExpiry,
		integration.IsActive,
		integration.LastSynced,
		integration.CreatedAt,
		integration.UpdatedAt,
	).Scan(&integration.ID, &integration.CreatedAt)
}

func (r *integrationRepository) GetByUserAndPlatform(ctx context.Context, userID, platform string) (*models.Integration, error) {
	query := `
		SELECT id, user_id, platform, access_token, refresh_token, token_expiry,
		       is_active, last_synced, created_at, updated_at
		FROM integrations
		WHERE user_id = $1 AND platform = $2
	`

	integration := &models.Integration{}
	err := r.db.QueryRowContext(ctx, query, userID, platform).Scan(
		&integration.ID,
		&integration.UserID,
		&integration.Platform,
		&integration.AccessToken,
		&integration.RefreshToken,
		&integration.TokenExpiry,
		&integration.IsActive,
		&integration.LastSynced,
		&integration.CreatedAt,
		&integration.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return integration, err
}

func (r *integrationRepository) GetAllActive(ctx context.Context, platform string) ([]models.Integration, error) {
	query := `
		SELECT id, user_id, platform, access_token, refresh_token, token_expiry,
		       is_active, last_synced, created_at, updated_at
		FROM integrations
		WHERE platform = $1 AND is_active = TRUE
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, platform)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var integrations []models.Integration
	for rows.Next() {
		var integration models.Integration
		if err := rows.Scan(
			&integration.ID,
			&integration.UserID,
			&integration.Platform,
			&integration.AccessToken,
			&integration.RefreshToken,
			&integration.TokenExpiry,
			&integration.IsActive,
			&integration.LastSynced,
			&integration.CreatedAt,
			&integration.UpdatedAt,
		); err != nil {
			return nil, err
		}
		integrations = append(integrations, integration)
	}

	return integrations, rows.Err()
}

func (r *integrationRepository) UpdateToken(ctx context.Context, id, accessToken string, expiry time.Time) error {
	query := `
		UPDATE integrations
		SET access_token = $2, token_expiry = $3, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, accessToken, expiry)
	return err
}

func (r *integrationRepository) UpdateLastSynced(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE integrations
		SET last_synced = $2, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, at)
	return err
}

func (r *integrationRepository) Deactivate(ctx context.Context, id string) error {
	query := `
		UPDATE integrations
		SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id)
	return err
}
