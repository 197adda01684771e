package domain

import (
	"context"
	"time"
)

// Cache key namespaces and pub/sub channel names. Stable strings: readers
// outside this process depend on them.
const (
	KeyPrefixContent   = "content:"
	KeyPrefixSearch    = "search:"
	KeyPrefixAnalysis  = "analysis:"
	KeyPrefixFollowers = "followers:"

	KeyLatestDigest = "analysis:latest"
	ChannelDigest   = "analysis:updates"
)

// DigestMetadata describes one pipeline cycle.
type DigestMetadata struct {
	TotalAnalyzed    int      `json:"totalAnalyzed"`
	SignificantCount int      `json:"significantCount"`
	TargetSubjects   []string `json:"targetSubjects"`
	BatchID          string   `json:"batchId"`
}

// TopicCount is one entry of the top-topics ranking.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// DigestStatistics aggregates a cycle's analyzed items.
type DigestStatistics struct {
	AverageScore          float64           `json:"averageScore"`
	AverageCredibility    float64           `json:"averageCredibility"`
	SentimentDistribution map[Sentiment]int `json:"sentimentDistribution"`
	TopTopics             []TopicCount      `json:"topTopics"`
}

// DigestItem is the published shape of a significant item, with the
// engagement sub-fields normalized into a stable envelope schema.
type DigestItem struct {
	ID          string     `json:"id"`
	AuthorName  string     `json:"authorName"`
	Text        string     `json:"text"`
	CreatedAt   time.Time  `json:"createdAt"`
	Sentiment   Sentiment  `json:"sentiment"`
	Score       float64    `json:"score"`
	Credibility float64    `json:"credibility"`
	Topics      []string   `json:"topics"`
	Summary     string     `json:"summary"`
	Engagement  Engagement `json:"engagement"`
}

// Digest is the JSON envelope published after each pipeline cycle and
// persisted as the last-known-good snapshot.
type Digest struct {
	Timestamp  time.Time        `json:"timestamp"`
	Metadata   DigestMetadata   `json:"metadata"`
	Statistics DigestStatistics `json:"statistics"`
	Items      []DigestItem     `json:"items"`
}

// Store is a key-value cache with per-entry TTL. Get returns found=false
// on miss or expiry; a present, unexpired entry is always preferred over
// a fresh fetch.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Publisher broadcasts a payload to a named channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}
