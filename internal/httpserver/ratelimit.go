package httpserver

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterCleanupEvery = 5 * time.Minute
	limiterIdleCutoff   = 10 * time.Minute
)

// connRateLimiter caps the rate of new websocket connections per IP
// with a token bucket each, so one misbehaving subscriber cannot churn
// the hub for everyone else.
type connRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	rate      rate.Limit
	burst     int
	cleanupAt time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newConnRateLimiter allows perSecond sustained connections per IP with
// the given burst.
func newConnRateLimiter(perSecond float64, burst int) *connRateLimiter {
	return &connRateLimiter{
		limiters:  make(map[string]*limiterEntry),
		rate:      rate.Limit(perSecond),
		burst:     burst,
		cleanupAt: time.Now().Add(limiterCleanupEvery),
	}
}

// allow reports whether a new connection from ip may proceed.
func (l *connRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now := time.Now(); now.After(l.cleanupAt) {
		l.cleanup(now)
		l.cleanupAt = now.Add(limiterCleanupEvery)
	}

	entry, ok := l.limiters[ip]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

// cleanup drops buckets idle past the cutoff. Caller holds mu.
func (l *connRateLimiter) cleanup(now time.Time) {
	cutoff := now.Add(-limiterIdleCutoff)
	for ip, entry := range l.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(l.limiters, ip)
		}
	}
}
