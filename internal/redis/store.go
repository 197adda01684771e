package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/0xNerd/degen-server/internal/metrics"
)

// Store is the Redis-backed key-value cache with per-entry TTL. Keys are
// namespaced by purpose (content:, search:, analysis:, followers:).
type Store struct {
	rdb goredis.Cmdable
}

// NewStore creates a cache store on top of a client.
func NewStore(client *Client) *Store {
	return &Store{rdb: client.rdb}
}

// Get returns the cached value for key, or found=false on miss.
// Expiry is handled by Redis TTLs, so a returned value is always fresh.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		metrics.CacheMissesTotal.WithLabelValues(keyNamespace(key)).Inc()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	metrics.CacheHitsTotal.WithLabelValues(keyNamespace(key)).Inc()
	return data, true, nil
}

// Set stores value under key with the given TTL.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func keyNamespace(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return "other"
}
