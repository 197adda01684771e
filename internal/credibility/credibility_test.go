package credibility

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/0xNerd/degen-server/internal/domain"
)

func defaultCalc() *Calculator {
	return NewCalculator(DefaultParams(), DefaultWeights())
}

func TestScoreAlwaysInRange(t *testing.T) {
	calc := defaultCalc()

	items := []domain.ContentItem{
		{},
		{
			Text: strings.Repeat("gm ", 200),
			Engagement: domain.Engagement{
				Likes: 1_000_000, Retweets: 500_000, Replies: 250_000,
				Views: 10_000_000, Bookmarks: 100_000,
			},
			Media:        []domain.Media{{Type: domain.MediaVideo}},
			URLs:         []string{"https://a", "https://b"},
			HasPoll:      true,
			IsThreadRoot: true,
			ThreadDepth:  12,
			IsPinned:     true,
		},
		{
			SensitiveContent: true,
			IsRetweet:        true,
			Media: []domain.Media{
				{Type: domain.MediaPhoto}, {Type: domain.MediaPhoto},
				{Type: domain.MediaPhoto}, {Type: domain.MediaPhoto},
				{Type: domain.MediaPhoto}, {Type: domain.MediaPhoto},
			},
		},
	}

	for _, item := range items {
		score := calc.Score(item, 0)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)

		for name, sub := range map[string]float64{
			"engagement": calc.EngagementScore(item, 0),
			"quality":    calc.ContentQualityScore(item),
			"behavioral": calc.BehavioralScore(item),
			"media":      calc.MediaRichnessScore(item),
		} {
			assert.GreaterOrEqual(t, sub, 0.0, name)
			assert.LessOrEqual(t, sub, 1.0, name)
		}
	}
}

func TestEngagementScoreZeroCounters(t *testing.T) {
	calc := defaultCalc()

	score := calc.EngagementScore(domain.ContentItem{}, 0)
	assert.Zero(t, score)
}

func TestEngagementScoreGrowsWithVolume(t *testing.T) {
	calc := defaultCalc()

	low := calc.EngagementScore(domain.ContentItem{
		Engagement: domain.Engagement{Likes: 10},
	}, 0)
	high := calc.EngagementScore(domain.ContentItem{
		Engagement: domain.Engagement{Likes: 10_000},
	}, 0)
	assert.Greater(t, high, low)
}

func TestEngagementScoreBlendsViewRatio(t *testing.T) {
	calc := defaultCalc()

	// Same volume, but terrible reach: ratio drags the blend down.
	noViews := calc.EngagementScore(domain.ContentItem{
		Engagement: domain.Engagement{Likes: 500},
	}, 0)
	hugeViews := calc.EngagementScore(domain.ContentItem{
		Engagement: domain.Engagement{Likes: 500, Views: 10_000_000},
	}, 0)
	assert.Greater(t, noViews, hugeViews)
}

func TestEngagementScoreFollowerFallback(t *testing.T) {
	calc := defaultCalc()

	item := domain.ContentItem{
		Engagement: domain.Engagement{Likes: 500},
	}

	// No views: follower count stands in for reach. 500 interactions
	// against 10M followers is a worse ratio than against 20k.
	small := calc.EngagementScore(item, 20_000)
	huge := calc.EngagementScore(item, 10_000_000)
	assert.Greater(t, small, huge)

	// Views take precedence over followers when both are present.
	viewed := item
	viewed.Engagement.Views = 1_000_000
	assert.Equal(t,
		calc.EngagementScore(viewed, 0),
		calc.EngagementScore(viewed, 20_000),
	)
}

func TestContentQualityHashtagStuffing(t *testing.T) {
	calc := defaultCalc()

	// 8 hashtags in a 10-word text with sensitive flag: both penalties hit.
	item := domain.ContentItem{
		Text:             "buy now best coin ever moon soon trust me fr",
		Hashtags:         []string{"a", "b", "c", "d", "e", "f", "g", "h"},
		SensitiveContent: true,
	}
	assert.Zero(t, calc.ContentQualityScore(item))
	assert.Zero(t, calc.EngagementScore(item, 0))
}

func TestContentQualityRewardsLinksAndPolls(t *testing.T) {
	calc := defaultCalc()

	plain := domain.ContentItem{Text: "a detailed analysis of the protocol upgrade"}
	linked := plain
	linked.URLs = []string{"https://example.com/audit"}
	linked.HasPoll = true

	assert.Greater(t, calc.ContentQualityScore(linked), calc.ContentQualityScore(plain))
}

func TestBehavioralPureRepostPenalized(t *testing.T) {
	calc := defaultCalc()

	original := calc.BehavioralScore(domain.ContentItem{})
	repost := calc.BehavioralScore(domain.ContentItem{IsRetweet: true})

	assert.Greater(t, original, repost)
	assert.InDelta(t, 0.7, original, 1e-9) // base 0.5 + original bonus 0.2
}

func TestBehavioralThreadBonusDiminishes(t *testing.T) {
	calc := defaultCalc()

	depth1 := calc.BehavioralScore(domain.ContentItem{IsThreadRoot: true, ThreadDepth: 1})
	depth3 := calc.BehavioralScore(domain.ContentItem{IsThreadRoot: true, ThreadDepth: 3})
	depth9 := calc.BehavioralScore(domain.ContentItem{IsThreadRoot: true, ThreadDepth: 9})

	assert.Greater(t, depth3, depth1)
	assert.Greater(t, depth9, depth3)
	// Marginal gain shrinks with depth.
	assert.Less(t, depth9-depth3, depth3-depth1)
}

func TestMediaVideoBeatsPhoto(t *testing.T) {
	calc := defaultCalc()

	video := calc.MediaRichnessScore(domain.ContentItem{
		Media: []domain.Media{{Type: domain.MediaVideo}},
	})
	photo := calc.MediaRichnessScore(domain.ContentItem{
		Media: []domain.Media{{Type: domain.MediaPhoto}},
	})
	assert.Greater(t, video, photo)
}

func TestMediaLinkOnlyPostNotPenalized(t *testing.T) {
	calc := defaultCalc()

	linkOnly := calc.MediaRichnessScore(domain.ContentItem{
		URLs: []string{"https://example.com"},
	})
	linkWithPhoto := domain.ContentItem{
		URLs:  []string{"https://example.com"},
		Media: []domain.Media{{Type: domain.MediaPhoto}},
	}

	assert.Greater(t, linkOnly, 0.0)
	// Link bonus only applies without media.
	assert.Equal(t, DefaultParams().PhotoScore, calc.MediaRichnessScore(linkWithPhoto))
}

func TestMediaExcessCountPenalized(t *testing.T) {
	calc := defaultCalc()

	four := make([]domain.Media, 4)
	six := make([]domain.Media, 6)
	for i := range four {
		four[i] = domain.Media{Type: domain.MediaPhoto}
	}
	for i := range six {
		six[i] = domain.Media{Type: domain.MediaPhoto}
	}

	assert.Greater(t,
		calc.MediaRichnessScore(domain.ContentItem{Media: four}),
		calc.MediaRichnessScore(domain.ContentItem{Media: six}),
	)
}

func TestWeightsTunableWithoutFormulaChanges(t *testing.T) {
	item := domain.ContentItem{
		Text:  "original research thread on the new L2 sequencer design",
		Media: []domain.Media{{Type: domain.MediaVideo}},
	}

	engagementOnly := NewCalculator(DefaultParams(), Weights{Engagement: 1})
	mediaOnly := NewCalculator(DefaultParams(), Weights{MediaRichness: 1})

	assert.Equal(t, engagementOnly.EngagementScore(item, 0), engagementOnly.Score(item, 0))
	assert.Equal(t, mediaOnly.MediaRichnessScore(item), mediaOnly.Score(item, 0))
}
