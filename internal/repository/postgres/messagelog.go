package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/masjidconnect/reminder-service/internal/domain"
)

// MessageLogRepository implements domain.MessageLogRepository using PostgreSQL
type MessageLogRepository struct {
	db *DB
}

func NewMessageLogRepository(db *DB) *MessageLogRepository {
	return &MessageLogRepository{db: db}
}

// Create appends a log row including metadata.
func (r *MessageLogRepository) Create(ctx context.Context, e *domain.MessageLog) error {
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		metadata = []byte("{}")
	}

	query := `
		INSERT INTO message_logs (
			id, mosque_id, type, subtype, content,
			recipient_count, success_count, fail_count, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.Pool.Exec(ctx, query,
		e.ID, e.MosqueID, e.Type, e.Subtype, e.Content,
		e.RecipientCount, e.SuccessCount, e.FailCount, metadata, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create message log: %w", err)
	}
	return nil
}

// CreateWithoutMetadata appends a log row naming only the core columns, for
// databases that predate the metadata column.
func (r *MessageLogRepository) CreateWithoutMetadata(ctx context.Context, e *domain.MessageLog) error {
	query := `
		INSERT INTO message_logs (
			id, mosque_id, type, subtype, content,
			recipient_count, success_count, fail_count, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		e.ID, e.MosqueID, e.Type, e.Subtype, e.Content,
		e.RecipientCount, e.SuccessCount, e.FailCount, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create message log: %w", err)
	}
	return nil
}

// ExistsSince reports whether a matching log row was written at or after since.
func (r *MessageLogRepository) ExistsSince(ctx context.Context, mosqueID uuid.UUID, category domain.Category, subtype string, since time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM message_logs
			WHERE mosque_id = $1 AND type = $2 AND subtype = $3 AND created_at >= $4
		)
	`
	var exists bool
	if err := r.db.Pool.QueryRow(ctx, query, mosqueID, category, subtype, since).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check message log: %w", err)
	}
	return exists, nil
}
