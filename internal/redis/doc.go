// Package redis provides the Redis-backed cache store, the digest
// pub/sub channel, and the job lease used for cross-process dedup.
package redis
