package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/acadence/notification-service/internal/models"
)

type SyncLogRepository interface {
	Create(ctx context.Context, log *models.SyncLog) error
	Complete(ctx context.Context, id string, status models.SyncStatus, itemsSynced int, errorMessage *string) error
	MarkStaleAsFailed(ctx context.Context, olderThan time.Duration) (int, error)
	GetRecent(ctx context.Context, userID string, limit int) ([]models.SyncLog, error)
}

type syncLogRepository struct {
	*PostgresRepository
}

func NewSyncLogRepository(db *sql.DB, logger zerolog.Logger) SyncLogRepository {
	return &syncLogRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func (r *syncLogRepository) Create(ctx context.Context, log *models.SyncLog) error {
	query := `
		INSERT INTO sync_logs (
			id, integration_id, user_id, platform, sync_status,
			items_synced, error_message, sync_started, sync_completed
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		log.ID,
		log.IntegrationID,
		log.UserID,
		log.Platform,
		log.SyncStatus,
		log.ItemsSynced,
		log.ErrorMessage,
		log.SyncStarted,
		log.SyncCompleted,
	)

	return err
}

func (r *syncLogRepository) Complete(ctx context.Context, id string, status models.SyncStatus, itemsSynced int, errorMessage *string) error {
	query := `
		UPDATE sync_logs
		SET sync_status = $2, items_synced = $3, error_message = $4, sync_completed = NOW()
		WHERE id = $1 AND sync_status = 'started'
	`

	_, err := r.db.ExecContext(ctx, query, id, status, itemsSynced, errorMessage)
	return err
}

// MarkStaleAsFailed reconciles logs stuck in "started" after a crash mid-sync.
func (r *syncLogRepository) MarkStaleAsFailed(ctx context.Context, olderThan time.Duration) (int, error) {
	query := `
		UPDATE sync_logs
		SET sync_status = 'failed',
		    error_message = 'sync did not complete (timed out)',
		    sync_completed = NOW()
		WHERE sync_status = 'started' AND sync_started < $1
	`

	result, err := r.db.ExecContext(ctx, query, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}

	affected, err := result.RowsAffected()
	return int(affected), err
}

func (r *syncLogRepository) GetRecent(ctx context.Context, userID string, limit int) ([]models.SyncLog, error) {
	query := `
		SELECT id, integration_id, user_id, platform, sync_status,
		       items_synced, error_message, sync_started, sync_completed
		FROM sync_logs
		WHERE user_id = $1
		ORDER BY sync_started DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.SyncLog
	for rows.Next() {
		var log models.SyncLog
		if err := rows.Scan(
			&log.ID,
			&log.IntegrationID,
			&log.UserID,
			&log.Platform,
			&log.SyncStatus,
			&log.ItemsSynced,
			&log.ErrorMessage,
			&log.SyncStarted,
			&log.SyncCompleted,
		); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}

	return logs, rows.Err()
}
