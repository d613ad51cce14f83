package postgres

import (
	"context"
	"fmt"

	"github.com/masjidconnect/reminder-service/internal/domain"
)

// ReminderLockRepository implements domain.ReminderLockRepository on the
// reminder_locks table. The unique constraint is the source of exclusivity.
type ReminderLockRepository struct {
	db *DB
}

func NewReminderLockRepository(db *DB) *ReminderLockRepository {
	return &ReminderLockRepository{db: db}
}

// TryClaim inserts the lock row. A unique violation means another invocation
// already owns the key and yields (false, nil).
func (r *ReminderLockRepository) TryClaim(ctx context.Context, lock *domain.ReminderLock) (bool, error) {
	day, err := parseDate(lock.ReminderDate)
	if err != nil {
		return false, err
	}

	query := `
		INSERT INTO reminder_locks (id, mosque_id, reminder_key, reminder_date, offset_minutes, claimed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.db.Pool.Exec(ctx, query,
		lock.ID, lock.MosqueID, lock.ReminderKey, day, lock.Offset, lock.ClaimedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to claim reminder lock: %w", err)
	}
	return true, nil
}

// DeleteBefore purges locks for dates strictly before date.
func (r *ReminderLockRepository) DeleteBefore(ctx context.Context, date string) (int64, error) {
	day, err := parseDate(date)
	if err != nil {
		return 0, err
	}
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM reminder_locks WHERE reminder_date < $1`, day)
	if err != nil {
		return 0, fmt.Errorf("failed to purge reminder locks: %w", err)
	}
	return result.RowsAffected(), nil
}
