package domain

import "context"

// Sentiment is the oracle-assigned polarity of a post.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Valid reports whether the sentiment is one of the three known values.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// Classification is the structured output of the classification oracle.
type Classification struct {
	Sentiment Sentiment `json:"sentiment"`
	Score     float64   `json:"score"`
	Topics    []string  `json:"topics"`
	Summary   string    `json:"summary"`
}

// AnalysisResult combines the oracle classification with the locally
// computed composite credibility score. Computed once per item id.
type AnalysisResult struct {
	Sentiment        Sentiment `json:"sentiment"`
	Score            float64   `json:"score"`
	Topics           []string  `json:"topics"`
	Summary          string    `json:"summary"`
	CredibilityScore float64   `json:"credibilityScore"`
}

// AnalyzedItem is a content item with its attached analysis.
type AnalyzedItem struct {
	Item     ContentItem    `json:"item"`
	Analysis AnalysisResult `json:"analysis"`
}

// Oracle classifies a single text. The response is treated as a black box
// returning well-formed structured output; implementations must validate
// before returning.
type Oracle interface {
	Classify(ctx context.Context, text string) (Classification, error)
}
