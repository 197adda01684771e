// Package scorer analyzes content items in rate-limited batches: each
// item gets an oracle classification and a composite credibility score,
// cached per item id so repeated cycles never re-classify the same post.
package scorer

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/0xNerd/degen-server/internal/cache"
	"github.com/0xNerd/degen-server/internal/credibility"
	"github.com/0xNerd/degen-server/internal/domain"
	"github.com/0xNerd/degen-server/internal/logging"
	"github.com/0xNerd/degen-server/internal/metrics"
)

const (
	// analysisTTL is how long a per-item analysis stays fresh.
	analysisTTL = time.Hour

	// batchSize bounds concurrent oracle calls; interBatchDelay paces
	// consecutive batches to respect upstream rate limits.
	batchSize       = 10
	interBatchDelay = 2 * time.Second

	// significanceThreshold drops items the oracle scored as noise.
	significanceThreshold = 0.3
)

// FollowerLookup resolves an author's follower count for credibility
// enrichment. Implementations degrade to 0 when the count is unknown.
type FollowerLookup interface {
	GetFollowerCount(ctx context.Context, authorID string) int
}

// Scorer runs the per-item analysis path.
type Scorer struct {
	oracle    domain.Oracle
	store     domain.Store
	cred      *credibility.Calculator
	followers FollowerLookup
	clock     clockwork.Clock
}

// New creates a scorer.
func New(oracle domain.Oracle, store domain.Store, cred *credibility.Calculator, followers FollowerLookup, clock clockwork.Clock) *Scorer {
	return &Scorer{
		oracle:    oracle,
		store:     store,
		cred:      cred,
		followers: followers,
		clock:     clock,
	}
}

// Result is the outcome of analyzing one slice of items. Items holds the
// significant analyses; Errors holds the per-item failures that were
// isolated from the rest of the run.
type Result struct {
	Items  []domain.AnalyzedItem
	Errors []*domain.ScoringError
}

// Analyze classifies and scores items in batches of batchSize, pausing
// interBatchDelay between batches. A failing item yields a ScoringError
// in the result without affecting its batch mates; only context
// cancellation aborts the run. Returned items are those the oracle
// scored above the significance threshold, in input order.
func (s *Scorer) Analyze(ctx context.Context, items []domain.ContentItem) (Result, error) {
	var out Result

	for start := 0; start < len(items); start += batchSize {
		if start > 0 {
			select {
			case <-s.clock.After(interBatchDelay):
			case <-ctx.Done():
				return out, ctx.Err()
			}
		}

		end := min(start+batchSize, len(items))
		batch := items[start:end]

		analyzed := make([]*domain.AnalyzedItem, len(batch))
		failed := make([]*domain.ScoringError, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		for i, item := range batch {
			i, item := i, item
			g.Go(func() error {
				analysis, err := s.analyzeOne(gctx, item)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					metrics.ScoringErrorsTotal.Inc()
					failed[i] = &domain.ScoringError{ItemID: item.ID, Err: err}
					return nil
				}
				analyzed[i] = &domain.AnalyzedItem{Item: item, Analysis: analysis}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return out, err
		}

		for i := range batch {
			if failed[i] != nil {
				logging.WithItem(failed[i].ItemID).Warn("item scoring failed", "error", failed[i].Err)
				out.Errors = append(out.Errors, failed[i])
				continue
			}
			if analyzed[i].Analysis.Score > significanceThreshold {
				out.Items = append(out.Items, *analyzed[i])
			}
		}
	}

	return out, nil
}

// analyzeOne resolves one item's analysis, preferring the cached entry
// under analysis:<id>. The credibility score is computed alongside the
// classification so the cached value carries both.
func (s *Scorer) analyzeOne(ctx context.Context, item domain.ContentItem) (domain.AnalysisResult, error) {
	key := domain.KeyPrefixAnalysis + item.ID
	return cache.GetOrFill(ctx, s.store, key, analysisTTL, func(ctx context.Context) (domain.AnalysisResult, error) {
		classification, err := s.oracle.Classify(ctx, item.Text)
		if err != nil {
			return domain.AnalysisResult{}, err
		}

		followers := s.followers.GetFollowerCount(ctx, item.AuthorID)
		return domain.AnalysisResult{
			Sentiment:        classification.Sentiment,
			Score:            classification.Score,
			Topics:           classification.Topics,
			Summary:          classification.Summary,
			CredibilityScore: s.cred.Score(item, followers),
		}, nil
	})
}
