package repository

import (
	"context"
	"database/sql"
	"fmt"

	"printsync/internal/domain"
)

// SyncLogRepository appends and queries the sync audit trail
type SyncLogRepository interface {
	Create(ctx context.Context, entry *domain.SyncLog) error
	// List returns the newest entries first; an empty entityID lists every entity.
	List(ctx context.Context, entityID string, limit int) ([]*domain.SyncLog, error)
}

type syncLogRepository struct {
	db *sql.DB
}

// NewSyncLogRepository creates a new instance of SyncLogRepository
func NewSyncLogRepository(db *sql.DB) SyncLogRepository {
	return &syncLogRepository{db: db}
}

func (r *syncLogRepository) Create(ctx context.Context, entry *domain.SyncLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_logs (id, entity_type, entity_id, action, status, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ID, entry.EntityType, entry.EntityID, entry.Action, entry.Status, entry.Message, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create sync log: %w", err)
	}
	return nil
}

func (r *syncLogRepository) List(ctx context.Context, entityID string, limit int) ([]*domain.SyncLog, error) {
	if limit < 1 || limit > 500 {
		limit = 50
	}

	query := `
		SELECT id, entity_type, entity_id, action, status, message, created_at
		FROM sync_logs
		WHERE ($1 = '' OR entity_id = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync logs: %w", err)
	}
	defer rows.Close()

	entries := []*domain.SyncLog{}
	for rows.Next() {
		entry := &domain.SyncLog{}
		var message sql.NullString
		err := rows.Scan(
			&entry.ID,
			&entry.EntityType,
			&entry.EntityID,
			&entry.Action,
			&entry.Status,
			&message,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync log: %w", err)
		}
		entry.Message = message.String
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync logs: %w", err)
	}

	return entries, nil
}
