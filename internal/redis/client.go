package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// Client holds the shared go-redis connection behind the Store, PubSub,
// and Lease views. One client per process; all three share its pool.
type Client struct {
	rdb *goredis.Client
}

// NewClient connects from a URL like "redis://localhost:6379". Every
// operation runs through a circuit breaker hook so a dead Redis fails
// fast instead of stacking timeouts.
func NewClient(redisURL string) (*Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	rdb := goredis.NewClient(opts)
	rdb.AddHook(newBreakerHook())
	return &Client{rdb: rdb}, nil
}

// Ping verifies the connection. The health endpoint calls this.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
