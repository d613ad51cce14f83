package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/masjidconnect/reminder-service/internal/domain"
)

const (
	rateLimitKeyPrefix = "ratelimit:"
	rateLimitWindow    = time.Second
)

// RateLimiter implements domain.RateLimiter as a sliding window shared by
// every replica sending on the same channel.
type RateLimiter struct {
	client      *Client
	limitPerSec int
	pollEvery   time.Duration
}

func NewRateLimiter(client *Client, limitPerSec int) *RateLimiter {
	return &RateLimiter{
		client:      client,
		limitPerSec: limitPerSec,
		pollEvery:   10 * time.Millisecond,
	}
}

func rateLimitKey(channel domain.Channel) string {
	return rateLimitKeyPrefix + string(channel)
}

// Allow checks if a send is allowed under the rate limit using sliding window
func (r *RateLimiter) Allow(ctx context.Context, channel domain.Channel) (bool, error) {
	key := rateLimitKey(channel)
	now := time.Now()
	windowStart := now.Add(-rateLimitWindow)

	pipe := r.client.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	if countCmd.Val() >= int64(r.limitPerSec) {
		return false, nil
	}

	if err := r.client.client.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: uuid.NewString(),
	}).Err(); err != nil {
		return false, fmt.Errorf("failed to record send: %w", err)
	}

	r.client.client.Expire(ctx, key, 2*rateLimitWindow)

	return true, nil
}

// Wait blocks until a send is allowed
func (r *RateLimiter) Wait(ctx context.Context, channel domain.Channel) error {
	if r.limitPerSec <= 0 {
		return nil
	}

	allowed, err := r.Allow(ctx, channel)
	if err != nil || allowed {
		return err
	}

	ticker := time.NewTicker(r.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			allowed, err := r.Allow(ctx, channel)
			if err != nil {
				return err
			}
			if allowed {
				return nil
			}
		}
	}
}

// CurrentRate returns the number of sends in the current window.
func (r *RateLimiter) CurrentRate(ctx context.Context, channel domain.Channel) (int64, error) {
	key := rateLimitKey(channel)
	windowStart := time.Now().Add(-rateLimitWindow)

	pipe := r.client.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to get current rate: %w", err)
	}

	return countCmd.Val(), nil
}
