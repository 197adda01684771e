package twitter

import (
	"context"
	"net/url"
	"strconv"

	"github.com/0xNerd/degen-server/internal/domain"
	"github.com/0xNerd/degen-server/internal/metrics"
)

// pageSize caps how many items one timeline request asks for.
const pageSize = 20

// fetchPage pulls one page for a cursor position.
type fetchPage func(ctx context.Context, cursor string) ([]domain.ContentItem, string, error)

// pageStream lazily walks a cursor-paginated timeline, yielding at most
// limit items (limit <= 0 means until the source is exhausted).
type pageStream struct {
	fetch   fetchPage
	limit   int
	yielded int
	cursor  string
	buf     []domain.ContentItem
	done    bool
}

func newPageStream(fetch fetchPage, limit int) *pageStream {
	return &pageStream{fetch: fetch, limit: limit}
}

func (s *pageStream) Next(ctx context.Context) (domain.ContentItem, bool, error) {
	if s.limit > 0 && s.yielded >= s.limit {
		return domain.ContentItem{}, false, nil
	}

	for len(s.buf) == 0 {
		if s.done {
			return domain.ContentItem{}, false, nil
		}
		items, next, err := s.fetch(ctx, s.cursor)
		if err != nil {
			return domain.ContentItem{}, false, err
		}
		// An empty page or a repeated/absent cursor ends the sequence.
		if len(items) == 0 || next == "" || next == s.cursor {
			s.done = true
		}
		s.cursor = next
		s.buf = items
	}

	item := s.buf[0]
	s.buf = s.buf[1:]
	s.yielded++
	return item, true, nil
}

// Source adapts the client to the fetcher's capability set.
type Source struct {
	client *Client
}

// NewSource wraps an authenticated client as a content source.
func NewSource(client *Client) *Source {
	return &Source{client: client}
}

var _ domain.ContentSource = (*Source)(nil)

// FetchByAuthor returns up to count posts from a user's timeline.
func (s *Source) FetchByAuthor(ctx context.Context, username string, count int) domain.ItemStream {
	return newPageStream(func(ctx context.Context, cursor string) ([]domain.ContentItem, string, error) {
		return s.timelinePage(ctx, "/i/api/1.1/timeline/user.json", url.Values{
			"screen_name": {username},
			"count":       {strconv.Itoa(pageSize)},
		}, cursor, "timeline")
	}, count)
}

// FetchReplies returns a user's posts including their replies.
func (s *Source) FetchReplies(ctx context.Context, username string) domain.ItemStream {
	return newPageStream(func(ctx context.Context, cursor string) ([]domain.ContentItem, string, error) {
		return s.timelinePage(ctx, "/i/api/1.1/timeline/replies.json", url.Values{
			"screen_name": {username},
			"count":       {strconv.Itoa(pageSize)},
		}, cursor, "replies")
	}, 0)
}

// Search returns up to count posts matching a query.
func (s *Source) Search(ctx context.Context, query string, count int, mode domain.SearchMode) domain.ItemStream {
	return newPageStream(func(ctx context.Context, cursor string) ([]domain.ContentItem, string, error) {
		return s.timelinePage(ctx, "/i/api/2/search/adaptive.json", url.Values{
			"q":     {query},
			"count": {strconv.Itoa(pageSize)},
			"mode":  {string(mode)},
		}, cursor, "search")
	}, count)
}

func (s *Source) timelinePage(ctx context.Context, path string, query url.Values, cursor, op string) ([]domain.ContentItem, string, error) {
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	body, err := s.client.doGET(ctx, path, query)
	if err != nil {
		metrics.FetchesTotal.WithLabelValues(op, "error").Inc()
		return nil, "", err
	}
	metrics.FetchesTotal.WithLabelValues(op, "ok").Inc()
	return parseTimelinePage(body)
}

// Trends returns the current trending topics.
func (s *Source) Trends(ctx context.Context) ([]domain.Trend, error) {
	body, err := s.client.doGET(ctx, "/i/api/1.1/trends/plus.json", nil)
	if err != nil {
		metrics.FetchesTotal.WithLabelValues("trends", "error").Inc()
		return nil, err
	}
	metrics.FetchesTotal.WithLabelValues("trends", "ok").Inc()
	return parseTrends(body)
}

// FollowerCount returns the follower count of an author.
func (s *Source) FollowerCount(ctx context.Context, authorID string) (int, error) {
	body, err := s.client.doGET(ctx, "/i/api/1.1/users/show.json", url.Values{
		"user_id": {authorID},
	})
	if err != nil {
		metrics.FetchesTotal.WithLabelValues("followers", "error").Inc()
		return 0, err
	}
	metrics.FetchesTotal.WithLabelValues("followers", "ok").Inc()
	return parseFollowerCount(body)
}
