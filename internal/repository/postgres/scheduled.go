package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/masjidconnect/reminder-service/internal/domain"
)

const claimDueQuery = `
	UPDATE scheduled_messages
	SET status = 'processing',
		updated_at = NOW(),
		retry_count = retry_count + CASE WHEN status = 'processing' THEN 1 ELSE 0 END,
		last_error = CASE WHEN status = 'processing' THEN 'processing lease expired' ELSE last_error END
	WHERE id IN (
		SELECT id FROM scheduled_messages
		WHERE (status = 'pending' AND scheduled_at <= $1)
			OR (status = 'processing' AND updated_at < $2)
		ORDER BY scheduled_at
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	)
	RETURNING id, mosque_id, content, scheduled_at, status, retry_count,
		last_error, sent_at, created_at, updated_at`

// ScheduledMessageRepository implements domain.ScheduledMessageRepository using PostgreSQL
type ScheduledMessageRepository struct {
	db *DB
}

func NewScheduledMessageRepository(db *DB) *ScheduledMessageRepository {
	return &ScheduledMessageRepository{db: db}
}

// ClaimDue atomically moves a batch of due messages to processing. Concurrent
// callers skip rows another transaction already locked. A row still in
// processing since before staleBefore belonged to a run that never finished;
// it is taken back and its lost attempt counted as a failure.
func (r *ScheduledMessageRepository) ClaimDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]*domain.ScheduledMessage, error) {
	rows, err := r.db.Pool.Query(ctx, claimDueQuery, now, staleBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim scheduled messages: %w", err)
	}
	defer rows.Close()

	claimed := make([]*domain.ScheduledMessage, 0)
	for rows.Next() {
		m := &domain.ScheduledMessage{}
		if err := rows.Scan(
			&m.ID, &m.MosqueID, &m.Content, &m.ScheduledAt, &m.Status, &m.RetryCount,
			&m.LastError, &m.SentAt, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan scheduled message: %w", err)
		}
		claimed = append(claimed, m)
	}
	return claimed, rows.Err()
}

// Update persists status, retry and delivery fields.
func (r *ScheduledMessageRepository) Update(ctx context.Context, m *domain.ScheduledMessage) error {
	query := `
		UPDATE scheduled_messages SET
			status = $2, retry_count = $3, last_error = $4, sent_at = $5, updated_at = $6
		WHERE id = $1
	`
	result, err := r.db.Pool.Exec(ctx, query, m.ID, m.Status, m.RetryCount, m.LastError, m.SentAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update scheduled message: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
