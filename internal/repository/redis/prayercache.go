package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/masjidconnect/reminder-service/internal/domain"
)

const prayerCacheKeyPrefix = "prayertimes:"

// PrayerTimeCache implements domain.PrayerTimeCache with one JSON string per
// mosque and local date.
type PrayerTimeCache struct {
	client *Client
	ttl    time.Duration
}

func NewPrayerTimeCache(client *Client, ttl time.Duration) *PrayerTimeCache {
	return &PrayerTimeCache{client: client, ttl: ttl}
}

func prayerCacheKey(mosqueID uuid.UUID, date string) string {
	return prayerCacheKeyPrefix + mosqueID.String() + ":" + date
}

// Get returns domain.ErrNotFound on a miss.
func (c *PrayerTimeCache) Get(ctx context.Context, mosqueID uuid.UUID, date string) (*domain.EventTimeSet, error) {
	data, err := c.client.client.Get(ctx, prayerCacheKey(mosqueID, date)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read prayer time cache: %w", err)
	}

	var set domain.EventTimeSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to decode cached prayer times: %w", err)
	}
	return &set, nil
}

func (c *PrayerTimeCache) Set(ctx context.Context, set *domain.EventTimeSet) error {
	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to encode prayer times: %w", err)
	}
	if err := c.client.client.Set(ctx, prayerCacheKey(set.MosqueID, set.Date), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write prayer time cache: %w", err)
	}
	return nil
}

// DeleteBefore is a no-op; entries expire on their TTL.
func (c *PrayerTimeCache) DeleteBefore(ctx context.Context, date string) (int64, error) {
	return 0, nil
}
