package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/masjidconnect/reminder-service/internal/domain"
)

// preferenceColumns maps a category onto the boolean column that opts a
// subscriber into it. Keys are fixed so the column name is never user input.
var preferenceColumns = map[domain.Category]string{
	domain.CategoryPrayer:        "pref_daily_prayers",
	domain.CategoryJumuah:        "pref_jumuah",
	domain.CategoryRamadan:       "pref_ramadan",
	domain.CategoryNafl:          "pref_nafl",
	domain.CategoryHadith:        "pref_hadith",
	domain.CategoryAnnouncements: "pref_announcements",
}

// SubscriberRepository implements domain.SubscriberRepository using PostgreSQL
type SubscriberRepository struct {
	db *DB
}

func NewSubscriberRepository(db *DB) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

// ListEligible returns the active subscribers of a mosque opted into category.
func (r *SubscriberRepository) ListEligible(ctx context.Context, mosqueID uuid.UUID, category domain.Category) ([]*domain.Subscriber, error) {
	column, ok := preferenceColumns[category]
	if !ok {
		return nil, domain.ErrUnknownCategory
	}

	query := fmt.Sprintf(`
		SELECT id, mosque_id, channel, phone, push_endpoint, push_p256dh, push_auth,
			pref_daily_prayers, pref_jumuah, pref_ramadan, pref_nafl, pref_hadith, pref_announcements,
			status, paused_until, reminder_offset, last_message_at, created_at, updated_at
		FROM subscribers
		WHERE mosque_id = $1 AND status = 'active' AND %s = TRUE
		ORDER BY created_at ASC
	`, column)

	rows, err := r.db.Pool.Query(ctx, query, mosqueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscribers: %w", err)
	}
	defer rows.Close()

	subscribers := make([]*domain.Subscriber, 0)
	for rows.Next() {
		s := &domain.Subscriber{}
		p := &s.Preferences
		err := rows.Scan(
			&s.ID, &s.MosqueID, &s.Channel, &s.Phone, &s.PushEndpoint, &s.PushP256dh, &s.PushAuth,
			&p.DailyPrayers, &p.Jumuah, &p.Ramadan, &p.Nafl, &p.Hadith, &p.Announcements,
			&s.Status, &s.PausedUntil, &s.ReminderOffset, &s.LastMessageAt, &s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		subscribers = append(subscribers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscribers: %w", err)
	}

	return subscribers, nil
}

// TouchLastMessage stamps last_message_at for every id in one statement.
func (r *SubscriberRepository) TouchLastMessage(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE subscribers SET last_message_at = $2, updated_at = NOW() WHERE id = ANY($1)`
	if _, err := r.db.Pool.Exec(ctx, query, ids, at); err != nil {
		return fmt.Errorf("failed to touch subscribers: %w", err)
	}
	return nil
}

// Deactivate marks subscribers whose endpoint is permanently gone.
func (r *SubscriberRepository) Deactivate(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE subscribers SET status = 'inactive', updated_at = NOW() WHERE id = ANY($1)`
	if _, err := r.db.Pool.Exec(ctx, query, ids); err != nil {
		return fmt.Errorf("failed to deactivate subscribers: %w", err)
	}
	return nil
}

// ResumeExpiredPauses reactivates paused subscribers whose pause has lapsed.
func (r *SubscriberRepository) ResumeExpiredPauses(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE subscribers
		SET status = 'active', paused_until = NULL, updated_at = NOW()
		WHERE status = 'paused' AND paused_until IS NOT NULL AND paused_until <= $1
	`
	result, err := r.db.Pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to resume subscribers: %w", err)
	}
	return result.RowsAffected(), nil
}
