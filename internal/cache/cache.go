// Package cache implements the cache-aside read path shared by the
// fetch and scoring layers: present entries win, misses fall through to
// a fill function whose result is stored under the entry's TTL.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/0xNerd/degen-server/internal/domain"
)

// GetOrFill returns the decoded entry under key when present, otherwise
// runs fill, stores the encoded result with the given TTL, and returns
// it. Cache read and write failures degrade to a warning; the filled
// value still flows to the caller.
func GetOrFill[T any](ctx context.Context, store domain.Store, key string, ttl time.Duration, fill func(context.Context) (T, error)) (T, error) {
	var zero T

	data, found, err := store.Get(ctx, key)
	if err != nil {
		slog.Warn("cache read failed, falling through to live fill", "key", key, "error", err)
	} else if found {
		var value T
		if err := json.Unmarshal(data, &value); err != nil {
			slog.Warn("corrupt cache entry, falling through to live fill", "key", key, "error", err)
		} else {
			return value, nil
		}
	}

	value, err := fill(ctx)
	if err != nil {
		return zero, err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return zero, fmt.Errorf("encode cache value for %s: %w", key, err)
	}
	if err := store.Set(ctx, key, encoded, ttl); err != nil {
		slog.Warn("cache write failed", "key", key, "error", err)
	}

	return value, nil
}
