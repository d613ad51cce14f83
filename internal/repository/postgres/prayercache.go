package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/masjidconnect/reminder-service/internal/domain"
)

// PrayerTimeCache implements domain.PrayerTimeCache on prayer_time_cache.
type PrayerTimeCache struct {
	db *DB
}

func NewPrayerTimeCache(db *DB) *PrayerTimeCache {
	return &PrayerTimeCache{db: db}
}

// Get returns domain.ErrNotFound on a miss.
func (c *PrayerTimeCache) Get(ctx context.Context, mosqueID uuid.UUID, date string) (*domain.EventTimeSet, error) {
	day, err := parseDate(date)
	if err != nil {
		return nil, err
	}

	var payload []byte
	query := `SELECT payload FROM prayer_time_cache WHERE mosque_id = $1 AND cache_date = $2`
	if err := c.db.Pool.QueryRow(ctx, query, mosqueID, day).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read prayer time cache: %w", err)
	}

	var set domain.EventTimeSet
	if err := json.Unmarshal(payload, &set); err != nil {
		return nil, fmt.Errorf("failed to decode cached prayer times: %w", err)
	}
	return &set, nil
}

// Set upserts the set for its mosque and date.
func (c *PrayerTimeCache) Set(ctx context.Context, set *domain.EventTimeSet) error {
	day, err := parseDate(set.Date)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to encode prayer times: %w", err)
	}

	query := `
		INSERT INTO prayer_time_cache (mosque_id, cache_date, payload, fetched_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (mosque_id, cache_date)
		DO UPDATE SET payload = EXCLUDED.payload, fetched_at = EXCLUDED.fetched_at
	`
	if _, err := c.db.Pool.Exec(ctx, query, set.MosqueID, day, payload, set.FetchedAt); err != nil {
		return fmt.Errorf("failed to write prayer time cache: %w", err)
	}
	return nil
}

func (c *PrayerTimeCache) DeleteBefore(ctx context.Context, date string) (int64, error) {
	day, err := parseDate(date)
	if err != nil {
		return 0, err
	}
	result, err := c.db.Pool.Exec(ctx, `DELETE FROM prayer_time_cache WHERE cache_date < $1`, day)
	if err != nil {
		return 0, fmt.Errorf("failed to purge prayer time cache: %w", err)
	}
	return result.RowsAffected(), nil
}
