package domain

import (
	"context"
	"time"
)

// MediaType identifies the kind of media attached to a post.
type MediaType string

const (
	MediaPhoto MediaType = "photo"
	MediaVideo MediaType = "video"
	MediaGIF   MediaType = "gif"
)

// Media is a single attachment on a post.
type Media struct {
	Type MediaType `json:"type"`
	URL  string    `json:"url"`
}

// Engagement holds the interaction counters of a post.
type Engagement struct {
	Likes     int `json:"likes"`
	Retweets  int `json:"retweets"`
	Replies   int `json:"replies"`
	Views     int `json:"views"`
	Bookmarks int `json:"bookmarks"`
}

// Interactions is the sum of active interactions (everything but views).
func (e Engagement) Interactions() int {
	return e.Likes + e.Retweets + e.Replies + e.Bookmarks
}

// ContentItem is an immutable post produced by the fetcher.
// Never mutated after creation.
type ContentItem struct {
	ID         string     `json:"id"`
	AuthorID   string     `json:"authorId"`
	AuthorName string     `json:"authorName"`
	Text       string     `json:"text"`
	CreatedAt  time.Time  `json:"createdAt"`
	Engagement Engagement `json:"engagement"`
	Media      []Media    `json:"media,omitempty"`
	URLs       []string   `json:"urls,omitempty"`
	Hashtags   []string   `json:"hashtags,omitempty"`
	Mentions   []string   `json:"mentions,omitempty"`

	IsReply          bool `json:"isReply"`
	IsRetweet        bool `json:"isRetweet"`
	IsQuote          bool `json:"isQuote"`
	IsPinned         bool `json:"isPinned"`
	IsThreadRoot     bool `json:"isThreadRoot"`
	ThreadDepth      int  `json:"threadDepth"`
	HasPoll          bool `json:"hasPoll"`
	SensitiveContent bool `json:"sensitiveContent"`
}

// SearchMode selects the ranking of search results at the content source.
type SearchMode string

const (
	SearchLatest SearchMode = "Latest"
	SearchTop    SearchMode = "Top"
)

// Trend is a single trending topic as reported by the content source.
type Trend struct {
	Name      string `json:"name"`
	PostCount int    `json:"postCount"`
}

// ItemStream is a lazy, finite sequence of content items. Implementations
// pull pages from the source on demand; callers drain it fully before
// caching. After ok == false the stream is exhausted and must not be
// pulled again.
type ItemStream interface {
	Next(ctx context.Context) (item ContentItem, ok bool, err error)
}

// ContentSource is the capability set a concrete content backend must
// satisfy. Any source implementing it is substitutable behind the fetcher.
type ContentSource interface {
	FetchByAuthor(ctx context.Context, username string, count int) ItemStream
	FetchReplies(ctx context.Context, username string) ItemStream
	Search(ctx context.Context, query string, count int, mode SearchMode) ItemStream
	Trends(ctx context.Context) ([]Trend, error)
	FollowerCount(ctx context.Context, authorID string) (int, error)
}

// DrainStream fully materializes a lazy item stream into a slice.
func DrainStream(ctx context.Context, s ItemStream) ([]ContentItem, error) {
	var items []ContentItem
	for {
		item, ok, err := s.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return items, nil
		}
		items = append(items, item)
	}
}
