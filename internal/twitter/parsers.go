package twitter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/0xNerd/degen-server/internal/domain"
)

// twitterTimeLayout is the legacy created_at format ("Mon Jan 02 15:04:05 -0700 2006").
const twitterTimeLayout = "Mon Jan 02 15:04:05 -0700 2006"

// wireTweet is the legacy-shaped tweet object in timeline responses.
type wireTweet struct {
	IDStr         string `json:"id_str"`
	UserIDStr     string `json:"user_id_str"`
	ScreenName    string `json:"screen_name"`
	FullText      string `json:"full_text"`
	CreatedAt     string `json:"created_at"`
	FavoriteCount int    `json:"favorite_count"`
	RetweetCount  int    `json:"retweet_count"`
	ReplyCount    int    `json:"reply_count"`
	BookmarkCount int    `json:"bookmark_count"`
	ViewsCount    int    `json:"views_count"`

	Entities struct {
		Hashtags []struct {
			Text string `json:"text"`
		} `json:"hashtags"`
		UserMentions []struct {
			ScreenName string `json:"screen_name"`
		} `json:"user_mentions"`
		URLs []struct {
			ExpandedURL string `json:"expanded_url"`
		} `json:"urls"`
		Media []struct {
			Type     string `json:"type"`
			MediaURL string `json:"media_url_https"`
		} `json:"media"`
	} `json:"entities"`

	InReplyToStatusIDStr string `json:"in_reply_to_status_id_str"`
	RetweetedStatusIDStr string `json:"retweeted_status_id_str"`
	IsQuoteStatus        bool   `json:"is_quote_status"`
	Pinned               bool   `json:"pinned"`
	PossiblySensitive    bool   `json:"possibly_sensitive"`
	HasPollCard          bool   `json:"has_poll"`
	SelfThread           *struct {
		IDStr string `json:"id_str"`
		Depth int    `json:"depth"`
	} `json:"self_thread"`
}

// timelinePage is the envelope of a timeline or search response.
type timelinePage struct {
	Tweets []wireTweet `json:"tweets"`
	Cursor struct {
		Bottom string `json:"bottom"`
	} `json:"cursor"`
}

// parseTimelinePage decodes a timeline response into content items and
// the next-page cursor. An empty cursor means the sequence is finished.
func parseTimelinePage(body []byte) ([]domain.ContentItem, string, error) {
	var page timelinePage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, "", fmt.Errorf("unmarshal timeline page: %w", err)
	}

	items := make([]domain.ContentItem, 0, len(page.Tweets))
	for _, t := range page.Tweets {
		item, err := parseTweet(t)
		if err != nil {
			return nil, "", err
		}
		items = append(items, item)
	}
	return items, page.Cursor.Bottom, nil
}

func parseTweet(t wireTweet) (domain.ContentItem, error) {
	if t.IDStr == "" {
		return domain.ContentItem{}, fmt.Errorf("tweet without id")
	}

	createdAt, err := time.Parse(twitterTimeLayout, t.CreatedAt)
	if err != nil {
		return domain.ContentItem{}, fmt.Errorf("tweet %s: parse created_at %q: %w", t.IDStr, t.CreatedAt, err)
	}

	item := domain.ContentItem{
		ID:         t.IDStr,
		AuthorID:   t.UserIDStr,
		AuthorName: t.ScreenName,
		Text:       t.FullText,
		CreatedAt:  createdAt,
		Engagement: domain.Engagement{
			Likes:     t.FavoriteCount,
			Retweets:  t.RetweetCount,
			Replies:   t.ReplyCount,
			Views:     t.ViewsCount,
			Bookmarks: t.BookmarkCount,
		},
		IsReply:          t.InReplyToStatusIDStr != "",
		IsRetweet:        t.RetweetedStatusIDStr != "",
		IsQuote:          t.IsQuoteStatus,
		IsPinned:         t.Pinned,
		HasPoll:          t.HasPollCard,
		SensitiveContent: t.PossiblySensitive,
	}

	for _, h := range t.Entities.Hashtags {
		item.Hashtags = append(item.Hashtags, h.Text)
	}
	for _, m := range t.Entities.UserMentions {
		item.Mentions = append(item.Mentions, m.ScreenName)
	}
	for _, u := range t.Entities.URLs {
		item.URLs = append(item.URLs, u.ExpandedURL)
	}
	for _, m := range t.Entities.Media {
		var mt domain.MediaType
		switch m.Type {
		case "photo":
			mt = domain.MediaPhoto
		case "video":
			mt = domain.MediaVideo
		case "animated_gif":
			mt = domain.MediaGIF
		default:
			continue
		}
		item.Media = append(item.Media, domain.Media{Type: mt, URL: m.MediaURL})
	}

	if t.SelfThread != nil {
		item.ThreadDepth = t.SelfThread.Depth
		item.IsThreadRoot = t.SelfThread.IDStr == t.IDStr
	}

	return item, nil
}

// parseTrends decodes the trends response.
func parseTrends(body []byte) ([]domain.Trend, error) {
	var raw struct {
		Trends []struct {
			Name       string `json:"name"`
			TweetCount int    `json:"tweet_count"`
		} `json:"trends"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal trends: %w", err)
	}

	trends := make([]domain.Trend, 0, len(raw.Trends))
	for _, t := range raw.Trends {
		trends = append(trends, domain.Trend{Name: t.Name, PostCount: t.TweetCount})
	}
	return trends, nil
}

// parseFollowerCount decodes a users/show response.
func parseFollowerCount(body []byte) (int, error) {
	var raw struct {
		FollowersCount int `json:"followers_count"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return 0, fmt.Errorf("unmarshal user: %w", err)
	}
	return raw.FollowersCount, nil
}
