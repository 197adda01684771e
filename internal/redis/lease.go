package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Lease implements a single-holder lock using Redis SETNX with TTL.
// The job queue uses it to skip an attempt when another process already
// holds the lease for the same job name.
type Lease struct {
	rdb        *goredis.Client
	instanceID string
	key        string
	ttl        time.Duration
}

// NewLease creates a lease on "lock:<name>" held for ttl.
// instanceID should be unique per process (e.g., hostname-PID).
func NewLease(client *Client, instanceID, name string, ttl time.Duration) *Lease {
	return &Lease{
		rdb:        client.rdb,
		instanceID: instanceID,
		key:        "lock:" + name,
		ttl:        ttl,
	}
}

// TryAcquire attempts to take the lease.
// Returns true if this instance now holds it, false if another does.
func (l *Lease) TryAcquire(ctx context.Context) (bool, error) {
	return l.rdb.SetNX(ctx, l.key, l.instanceID, l.ttl).Result()
}

// Release voluntarily gives up the lease. Only deletes the key if this
// instance still holds it, so an expired-and-reacquired lease is not stolen.
func (l *Lease) Release(ctx context.Context) error {
	script := `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
	`
	return l.rdb.Eval(ctx, script, []string{l.key}, l.instanceID).Err()
}
