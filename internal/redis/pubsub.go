package redis

import (
	"context"
	"encoding/json"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/0xNerd/degen-server/internal/domain"
)

// PubSub provides cross-instance broadcast via Redis Pub/Sub.
type PubSub struct {
	rdb *goredis.Client
}

// NewPubSub creates a new PubSub instance.
func NewPubSub(client *Client) *PubSub {
	return &PubSub{rdb: client.rdb}
}

// Publish sends a raw payload to a named channel.
func (ps *PubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	return ps.rdb.Publish(ctx, channel, payload).Err()
}

// Subscription represents an active Pub/Sub subscription to digest updates.
type Subscription struct {
	sub    *goredis.PubSub
	Ch     <-chan domain.Digest
	cancel context.CancelFunc
}

// Close unsubscribes and closes the subscription.
func (s *Subscription) Close() {
	s.cancel()
	_ = s.sub.Close()
}

// SubscribeDigests subscribes to the digest broadcast channel.
// Returns a Subscription with a channel that receives envelopes.
// Call subscription.Close() when done.
func (ps *PubSub) SubscribeDigests(ctx context.Context) *Subscription {
	sub := ps.rdb.Subscribe(ctx, domain.ChannelDigest)

	subCtx, cancel := context.WithCancel(ctx)
	ch := make(chan domain.Digest, 16)

	go func() {
		defer close(ch)
		msgCh := sub.Channel()
		for {
			select {
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				var digest domain.Digest
				if err := json.Unmarshal([]byte(msg.Payload), &digest); err != nil {
					slog.Warn("Failed to unmarshal digest message", "error", err)
					continue
				}
				select {
				case ch <- digest:
				default:
					// Drop if receiver is slow
				}
			case <-subCtx.Done():
				return
			}
		}
	}()

	return &Subscription{
		sub:    sub,
		Ch:     ch,
		cancel: cancel,
	}
}
