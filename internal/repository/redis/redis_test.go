package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masjidconnect/reminder-service/internal/domain"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestEvictsLocks(t *testing.T) {
	tests := []struct {
		policy string
		want   bool
	}{
		{policy: "noeviction", want: false},
		{policy: "", want: false},
		{policy: "allkeys-lru", want: true},
		{policy: "volatile-ttl", want: true},
		{policy: "volatile-lfu", want: true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, evictsLocks(tt.policy), tt.policy)
	}
}

func TestReminderLockStore_ConcurrentClaims(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewReminderLockStore(client, 7*24*time.Hour)
	mosqueID := uuid.New()

	const callers = 20
	var acquired atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.TryClaim(context.Background(), domain.NewReminderLock(mosqueID, "prayer:fajr", "2024-06-14", 15))
			assert.NoError(t, err)
			if ok {
				acquired.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), acquired.Load())
}

func TestReminderLockStore_KeyComponents(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewReminderLockStore(client, 48*time.Hour)
	ctx := context.Background()
	mosqueID := uuid.New()

	ok, err := store.TryClaim(ctx, domain.NewReminderLock(mosqueID, "prayer:fajr", "2024-06-14", 15))
	require.NoError(t, err)
	require.True(t, ok)

	// Each differing component is a distinct lock.
	for _, l := range []*domain.ReminderLock{
		domain.NewReminderLock(mosqueID, "prayer:fajr", "2024-06-14", 10),
		domain.NewReminderLock(mosqueID, "prayer:fajr", "2024-06-15", 15),
		domain.NewReminderLock(mosqueID, "prayer:dhuhr", "2024-06-14", 15),
		domain.NewReminderLock(uuid.New(), "prayer:fajr", "2024-06-14", 15),
	} {
		ok, err := store.TryClaim(ctx, l)
		require.NoError(t, err)
		assert.True(t, ok, lockKey(l))
	}

	key := lockKey(domain.NewReminderLock(mosqueID, "prayer:fajr", "2024-06-14", 15))
	assert.Equal(t, 48*time.Hour, mr.TTL(key))

	mr.FastForward(49 * time.Hour)
	ok, err = store.TryClaim(ctx, domain.NewReminderLock(mosqueID, "prayer:fajr", "2024-06-14", 15))
	require.NoError(t, err)
	assert.True(t, ok, "expired lock can be claimed again")
}

func TestReminderLockStore_Unavailable(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewReminderLockStore(client, time.Hour)
	mr.Close()

	ok, err := store.TryClaim(context.Background(), domain.NewReminderLock(uuid.New(), "k", "2024-06-14", 0))
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestPrayerTimeCache_RoundTrip(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := NewPrayerTimeCache(client, 48*time.Hour)
	ctx := context.Background()
	mosqueID := uuid.New()

	set := &domain.EventTimeSet{
		MosqueID: mosqueID,
		Date:     "2024-06-14",
		Timezone: "Africa/Johannesburg",
		Source:   domain.SourceComputed,
		Adhan:    domain.AdhanTimes{Fajr: "05:30", Maghrib: "17:26"},
		Jamaat:   domain.JamaatTimes{Fajr: "05:45"},
	}
	require.NoError(t, cache.Set(ctx, set))

	got, err := cache.Get(ctx, mosqueID, "2024-06-14")
	require.NoError(t, err)
	assert.Equal(t, set.Adhan, got.Adhan)
	assert.Equal(t, set.Jamaat, got.Jamaat)
	assert.Equal(t, domain.SourceComputed, got.Source)

	_, err = cache.Get(ctx, mosqueID, "2024-06-15")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = cache.Get(ctx, uuid.New(), "2024-06-14")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Equal(t, 48*time.Hour, mr.TTL(prayerCacheKey(mosqueID, "2024-06-14")))
}

func TestRateLimiter_Allow(t *testing.T) {
	_, client := setupTestRedis(t)
	limiter := NewRateLimiter(client, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, domain.ChannelWhatsApp)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := limiter.Allow(ctx, domain.ChannelWhatsApp)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = limiter.Allow(ctx, domain.ChannelPush)
	require.NoError(t, err)
	assert.True(t, ok, "channels are limited independently")

	rate, err := limiter.CurrentRate(ctx, domain.ChannelWhatsApp)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rate)
}

func TestRateLimiter_WaitHonoursContext(t *testing.T) {
	_, client := setupTestRedis(t)
	limiter := NewRateLimiter(client, 1)

	require.NoError(t, limiter.Wait(context.Background(), domain.ChannelPush))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := limiter.Wait(ctx, domain.ChannelPush)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimiter_Disabled(t *testing.T) {
	_, client := setupTestRedis(t)
	assert.NoError(t, NewRateLimiter(client, 0).Wait(context.Background(), domain.ChannelPush))
}
