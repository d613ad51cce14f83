package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/masjidconnect/reminder-service/internal/domain"
)

const lockKeyPrefix = "reminderlock:"

// ReminderLockStore implements domain.ReminderLockRepository with SET NX.
// Keys expire after the retention period so no purge pass is needed.
type ReminderLockStore struct {
	client *Client
	ttl    time.Duration
}

func NewReminderLockStore(client *Client, retention time.Duration) *ReminderLockStore {
	return &ReminderLockStore{client: client, ttl: retention}
}

func lockKey(l *domain.ReminderLock) string {
	return fmt.Sprintf("%s%s:%s:%s:%d", lockKeyPrefix, l.MosqueID, l.ReminderKey, l.ReminderDate, l.Offset)
}

// TryClaim sets the lock key only if it is absent.
func (s *ReminderLockStore) TryClaim(ctx context.Context, lock *domain.ReminderLock) (bool, error) {
	ok, err := s.client.client.SetNX(ctx, lockKey(lock), lock.ClaimedAt.Unix(), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim reminder lock: %w", err)
	}
	return ok, nil
}

// DeleteBefore is a no-op; expiry removes old keys.
func (s *ReminderLockStore) DeleteBefore(ctx context.Context, date string) (int64, error) {
	return 0, nil
}
