package httpserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnRateLimiterBurstThenDeny(t *testing.T) {
	l := newConnRateLimiter(0.001, 2)

	assert.True(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.1"))
	assert.False(t, l.allow("10.0.0.1"))

	// Buckets are per IP.
	assert.True(t, l.allow("10.0.0.2"))
}

func TestConnRateLimiterCleanupDropsIdleBuckets(t *testing.T) {
	l := newConnRateLimiter(1, 1)
	l.allow("10.0.0.1")
	l.allow("10.0.0.2")

	entry := l.limiters["10.0.0.1"]
	entry.lastSeen = entry.lastSeen.Add(-2 * limiterIdleCutoff)

	l.mu.Lock()
	l.cleanup(l.limiters["10.0.0.2"].lastSeen)
	l.mu.Unlock()

	assert.NotContains(t, l.limiters, "10.0.0.1")
	assert.Contains(t, l.limiters, "10.0.0.2")
}
