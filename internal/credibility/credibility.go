// Package credibility computes the composite credibility score of a
// content item: a weighted sum of four independently clamped sub-scores
// (engagement, content quality, behavioral, media richness). All
// normalization constants are configuration, not formula internals.
package credibility

import (
	"math"
	"strings"

	"github.com/0xNerd/degen-server/internal/domain"
)

// Weights maps the four sub-scores to their share of the composite.
// The sum must be <= 1. Immutable process-wide configuration.
type Weights struct {
	Engagement     float64
	ContentQuality float64
	Behavioral     float64
	MediaRichness  float64
}

// DefaultWeights is the tuning used by the production pipeline.
func DefaultWeights() Weights {
	return Weights{
		Engagement:     0.35,
		ContentQuality: 0.30,
		Behavioral:     0.20,
		MediaRichness:  0.15,
	}
}

// Params holds the normalization constants of the sub-score formulas.
type Params struct {
	// Engagement. Counter weights form the blended interaction volume;
	// ViralCeiling is the volume that log-normalizes to 1. When views
	// are present, the interactions-per-view ratio contributes
	// RatioWeight of the sub-score (RatioCeiling maps to a full 1);
	// without views, the interactions-per-follower ratio stands in,
	// normalized against FollowerRatioCeiling.
	LikeWeight           float64
	RetweetWeight        float64
	ReplyWeight          float64
	BookmarkWeight       float64
	ViralCeiling         float64
	RatioCeiling         float64
	FollowerRatioCeiling float64
	RatioWeight          float64

	// Content quality. Text length rewards up to TextLengthCap runes;
	// hashtag/mention densities above their per-word thresholds are
	// penalized; links and polls reward; flagged content is penalized.
	TextLengthCap    int
	LengthWeight     float64
	HashtagRatioMax  float64
	HashtagPenalty   float64
	MentionRatioMax  float64
	MentionPenalty   float64
	LinkBonus        float64
	PollBonus        float64
	SensitivePenalty float64

	// Behavioral. Starts neutral at BehavioralBase.
	BehavioralBase float64
	OriginalBonus  float64
	QuoteBonus     float64
	ThreadBonus    float64 // asymptote of the diminishing per-item thread bonus
	PinnedBonus    float64
	ReplyBonus     float64
	RepostPenalty  float64

	// Media richness.
	VideoScore         float64
	PhotoScore         float64
	NoMediaLinkBonus   float64
	MaxMediaCount      int
	ExcessMediaPenalty float64
}

// DefaultParams is the tuning used by the production pipeline.
func DefaultParams() Params {
	return Params{
		LikeWeight:           1.0,
		RetweetWeight:        2.0,
		ReplyWeight:          1.5,
		BookmarkWeight:       0.5,
		ViralCeiling:         100_000,
		RatioCeiling:         0.1,
		FollowerRatioCeiling: 0.05,
		RatioWeight:          0.3,

		TextLengthCap:    280,
		LengthWeight:     0.4,
		HashtagRatioMax:  0.2,
		HashtagPenalty:   0.3,
		MentionRatioMax:  0.2,
		MentionPenalty:   0.2,
		LinkBonus:        0.15,
		PollBonus:        0.1,
		SensitivePenalty: 0.4,

		BehavioralBase: 0.5,
		OriginalBonus:  0.2,
		QuoteBonus:     0.1,
		ThreadBonus:    0.15,
		PinnedBonus:    0.1,
		ReplyBonus:     0.05,
		RepostPenalty:  0.3,

		VideoScore:         0.8,
		PhotoScore:         0.5,
		NoMediaLinkBonus:   0.4,
		MaxMediaCount:      4,
		ExcessMediaPenalty: 0.2,
	}
}

// Calculator scores items with a fixed parameter/weight set.
type Calculator struct {
	params  Params
	weights Weights
}

// NewCalculator creates a calculator from a parameter and weight set.
func NewCalculator(params Params, weights Weights) *Calculator {
	return &Calculator{params: params, weights: weights}
}

// Score returns the composite credibility of an item, clamped to [0,1].
// followers is the author's follower count, or 0 when unknown.
func (c *Calculator) Score(item domain.ContentItem, followers int) float64 {
	w := c.weights
	composite := w.Engagement*c.EngagementScore(item, followers) +
		w.ContentQuality*c.ContentQualityScore(item) +
		w.Behavioral*c.BehavioralScore(item) +
		w.MediaRichness*c.MediaRichnessScore(item)
	return clamp01(composite)
}

// EngagementScore log-normalizes the blended interaction volume against
// the viral ceiling, mixing in the per-view interaction ratio when views
// are available. Without views it falls back to the per-follower ratio,
// and to pure volume when neither is known.
func (c *Calculator) EngagementScore(item domain.ContentItem, followers int) float64 {
	p := c.params
	e := item.Engagement

	volume := p.LikeWeight*float64(e.Likes) +
		p.RetweetWeight*float64(e.Retweets) +
		p.ReplyWeight*float64(e.Replies) +
		p.BookmarkWeight*float64(e.Bookmarks)

	volumeScore := clamp01(math.Log1p(volume) / math.Log1p(p.ViralCeiling))

	var ratioScore float64
	switch {
	case e.Views > 0:
		ratioScore = clamp01(float64(e.Interactions()) / float64(e.Views) / p.RatioCeiling)
	case followers > 0:
		ratioScore = clamp01(float64(e.Interactions()) / float64(followers) / p.FollowerRatioCeiling)
	default:
		return volumeScore
	}

	return clamp01((1-p.RatioWeight)*volumeScore + p.RatioWeight*ratioScore)
}

// ContentQualityScore rewards substantive text and outbound references,
// penalizes tag-stuffing and flagged content.
func (c *Calculator) ContentQualityScore(item domain.ContentItem) float64 {
	p := c.params

	length := float64(len([]rune(item.Text)))
	score := math.Min(length/float64(p.TextLengthCap), 1) * p.LengthWeight

	words := len(strings.Fields(item.Text))
	if words == 0 {
		words = 1
	}
	if float64(len(item.Hashtags))/float64(words) > p.HashtagRatioMax {
		score -= p.HashtagPenalty
	}
	if float64(len(item.Mentions))/float64(words) > p.MentionRatioMax {
		score -= p.MentionPenalty
	}

	if len(item.URLs) > 0 {
		score += p.LinkBonus
	}
	if item.HasPoll {
		score += p.PollBonus
	}
	if item.SensitiveContent {
		score -= p.SensitivePenalty
	}

	return clamp01(score)
}

// BehavioralScore starts neutral and shifts on authorship signals.
func (c *Calculator) BehavioralScore(item domain.ContentItem) float64 {
	p := c.params
	score := p.BehavioralBase

	if item.IsRetweet {
		score -= p.RepostPenalty
	} else {
		score += p.OriginalBonus
	}
	if item.IsQuote {
		score += p.QuoteBonus
	}
	if item.IsThreadRoot || item.ThreadDepth > 0 {
		// Diminishing bonus per additional thread item, asymptotic to
		// ThreadBonus.
		depth := item.ThreadDepth
		if depth < 1 {
			depth = 1
		}
		score += p.ThreadBonus * (1 - 1/float64(depth+1))
	}
	if item.IsPinned {
		score += p.PinnedBonus
	}
	if item.IsReply {
		score += p.ReplyBonus
	}

	return clamp01(score)
}

// MediaRichnessScore rewards attached media (video over photo), rewards
// links/polls only for media-free posts, and penalizes excessive
// attachment counts.
func (c *Calculator) MediaRichnessScore(item domain.ContentItem) float64 {
	p := c.params
	score := 0.0

	hasVideo := false
	hasPhoto := false
	for _, m := range item.Media {
		switch m.Type {
		case domain.MediaVideo:
			hasVideo = true
		case domain.MediaPhoto, domain.MediaGIF:
			hasPhoto = true
		}
	}

	switch {
	case hasVideo:
		score += p.VideoScore
	case hasPhoto:
		score += p.PhotoScore
	}

	if len(item.Media) == 0 && (len(item.URLs) > 0 || item.HasPoll) {
		score += p.NoMediaLinkBonus
	}
	if len(item.Media) > p.MaxMediaCount {
		score -= p.ExcessMediaPenalty
	}

	return clamp01(score)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
