package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/masjidconnect/reminder-service/internal/config"
)

const clientName = "reminder-service"

// Client holds the connection shared by the lock store, the prayer-time
// cache and the rate limiter.
type Client struct {
	client *redis.Client
}

// New connects using cfg.URL and verifies the server answers.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.ClientName = clientName
	opt.MaxRetries = cfg.MaxRetries
	opt.PoolSize = cfg.PoolSize
	opt.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{client: client}, nil
}

// NewFromClient wraps an existing go-redis client.
func NewFromClient(client *redis.Client) *Client {
	return &Client{client: client}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Health pings the server.
func (c *Client) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// CheckLockDurability returns an error when the server's eviction policy may
// drop reminder locks under memory pressure. An evicted lock lets a second
// invocation in the same window send again.
func (c *Client) CheckLockDurability(ctx context.Context) error {
	values, err := c.client.ConfigGet(ctx, "maxmemory-policy").Result()
	if err != nil {
		return fmt.Errorf("failed to read maxmemory-policy: %w", err)
	}
	if policy := values["maxmemory-policy"]; evictsLocks(policy) {
		return fmt.Errorf("maxmemory-policy %q can evict reminder locks", policy)
	}
	return nil
}

// evictsLocks reports whether policy can remove keys that have a TTL. Lock
// keys always carry one, so volatile policies are as unsafe as allkeys ones.
func evictsLocks(policy string) bool {
	return policy != "" && policy != "noeviction" &&
		(strings.HasPrefix(policy, "allkeys-") || strings.HasPrefix(policy, "volatile-"))
}
