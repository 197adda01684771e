package fetcher

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/0xNerd/degen-server/internal/cache"
	"github.com/0xNerd/degen-server/internal/domain"
)

// contentTTL is how long fetched content stays fresh in the cache.
const contentTTL = 600 * time.Second

// Fetcher produces content items for a username, a search query, or the
// trend listing, transparently cached and transparently authenticated.
type Fetcher struct {
	source  domain.ContentSource
	cache   domain.Store
	session SessionClient
	creds   Credentials
	clock   clockwork.Clock
}

// New creates a fetcher. Initialize must succeed before any fetch.
func New(source domain.ContentSource, cache domain.Store, session SessionClient, creds Credentials, clock clockwork.Clock) *Fetcher {
	return &Fetcher{
		source:  source,
		cache:   cache,
		session: session,
		creds:   creds,
		clock:   clock,
	}
}

// Initialize establishes a session via the auth strategy chain.
// A domain.ErrAuthentication result is fatal: the pipeline must not start.
func (f *Fetcher) Initialize(ctx context.Context) error {
	return f.authenticate(ctx)
}

// GetContent returns up to count posts from a subject's timeline.
func (f *Fetcher) GetContent(ctx context.Context, subject string, count int) ([]domain.ContentItem, error) {
	key := domain.KeyPrefixContent + subject + ":" + strconv.Itoa(count)
	items, err := cache.GetOrFill(ctx, f.cache, key, contentTTL, func(ctx context.Context) ([]domain.ContentItem, error) {
		return domain.DrainStream(ctx, f.source.FetchByAuthor(ctx, subject, count))
	})
	if err != nil {
		return nil, &domain.FetchError{Op: "content", Subject: subject, Err: err}
	}
	return items, nil
}

// GetContentAndReplies returns a subject's posts including replies.
func (f *Fetcher) GetContentAndReplies(ctx context.Context, subject string) ([]domain.ContentItem, error) {
	key := domain.KeyPrefixContent + subject + ":replies"
	items, err := cache.GetOrFill(ctx, f.cache, key, contentTTL, func(ctx context.Context) ([]domain.ContentItem, error) {
		return domain.DrainStream(ctx, f.source.FetchReplies(ctx, subject))
	})
	if err != nil {
		return nil, &domain.FetchError{Op: "replies", Subject: subject, Err: err}
	}
	return items, nil
}

// Search returns up to count posts matching query.
func (f *Fetcher) Search(ctx context.Context, query string, count int, mode domain.SearchMode) ([]domain.ContentItem, error) {
	key := domain.KeyPrefixSearch + query + ":" + strconv.Itoa(count)
	items, err := cache.GetOrFill(ctx, f.cache, key, contentTTL, func(ctx context.Context) ([]domain.ContentItem, error) {
		return domain.DrainStream(ctx, f.source.Search(ctx, query, count, mode))
	})
	if err != nil {
		return nil, &domain.FetchError{Op: "search", Subject: query, Err: err}
	}
	return items, nil
}

// GetTrends returns the current trend listing.
func (f *Fetcher) GetTrends(ctx context.Context) ([]domain.Trend, error) {
	trends, err := cache.GetOrFill(ctx, f.cache, domain.KeyPrefixContent+"trends", contentTTL, f.source.Trends)
	if err != nil {
		return nil, &domain.FetchError{Op: "trends", Subject: "", Err: err}
	}
	return trends, nil
}

// GetFollowerCount returns an author's follower count. Credibility
// scoring must never hard-fail on this signal, so a live-fetch failure
// degrades to 0 instead of propagating.
func (f *Fetcher) GetFollowerCount(ctx context.Context, authorID string) int {
	key := domain.KeyPrefixFollowers + authorID
	count, err := cache.GetOrFill(ctx, f.cache, key, contentTTL, func(ctx context.Context) (int, error) {
		return f.source.FollowerCount(ctx, authorID)
	})
	if err != nil {
		slog.Warn("follower count unavailable, degrading to 0", "author_id", authorID, "error", err)
		return 0
	}
	return count
}
