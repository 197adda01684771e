// Package pipeline orchestrates the recurring sentiment cycle: harvest
// content for the configured terms and subjects, analyze it, select the
// significant items, and publish one digest envelope per cycle.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/0xNerd/degen-server/internal/domain"
	"github.com/0xNerd/degen-server/internal/jobs"
	"github.com/0xNerd/degen-server/internal/logging"
	"github.com/0xNerd/degen-server/internal/metrics"
	"github.com/0xNerd/degen-server/internal/scorer"
)

const (
	// jobName identifies the recurring cycle in the job queue.
	jobName = "sentiment-pipeline"

	// Strict significance gate on published items.
	minScore       = 0.6
	minCredibility = 0.5

	// Retry policy of a failed cycle.
	cycleAttempts    = 3
	cycleBackoffBase = time.Minute

	// snapshotTTL bounds how long a stale last-known-good digest serves.
	snapshotTTL = time.Hour

	// topTopicsLimit caps the published topic ranking.
	topTopicsLimit = 5

	// trendQueryLimit caps how many trend names seed extra searches.
	trendQueryLimit = 3
)

// ContentFetcher is the harvest surface the orchestrator drives.
type ContentFetcher interface {
	Initialize(ctx context.Context) error
	GetContent(ctx context.Context, subject string, count int) ([]domain.ContentItem, error)
	Search(ctx context.Context, query string, count int, mode domain.SearchMode) ([]domain.ContentItem, error)
	GetTrends(ctx context.Context) ([]domain.Trend, error)
}

// Analyzer scores a harvested slice of items.
type Analyzer interface {
	Analyze(ctx context.Context, items []domain.ContentItem) (scorer.Result, error)
}

// Config tunes one orchestrator instance.
type Config struct {
	TargetSubjects []string
	PrimaryTerms   []string
	ContextTerms   []string
	IncludeTrends  bool
	FetchCount     int
	Interval       time.Duration
}

// Orchestrator owns the cycle schedule and the digest publication path.
type Orchestrator struct {
	fetcher   ContentFetcher
	analyzer  Analyzer
	store     domain.Store
	publisher domain.Publisher
	queue     *jobs.Queue
	guard     jobs.Guard
	cfg       Config
	clock     clockwork.Clock

	running      atomic.Bool
	shutdownOnce sync.Once
}

// New creates an orchestrator. guard may be nil for single-process runs.
func New(fetcher ContentFetcher, analyzer Analyzer, store domain.Store, publisher domain.Publisher, queue *jobs.Queue, guard jobs.Guard, cfg Config, clock clockwork.Clock) *Orchestrator {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.FetchCount <= 0 {
		cfg.FetchCount = 20
	}
	return &Orchestrator{
		fetcher:   fetcher,
		analyzer:  analyzer,
		store:     store,
		publisher: publisher,
		queue:     queue,
		guard:     guard,
		cfg:       cfg,
		clock:     clock,
	}
}

// Initialize authenticates the fetcher, arms the recurring cycle, and
// kicks off one bootstrap run. An authentication failure is fatal: the
// schedule is never armed.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	if err := o.fetcher.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize fetcher: %w", err)
	}

	err := o.queue.Add(jobs.Spec{
		Name:     jobName,
		Every:    o.cfg.Interval,
		Attempts: cycleAttempts,
		Backoff:  jobs.Backoff{Base: cycleBackoffBase, Factor: 2},
		Run:      o.Run,
		Guard:    o.guard,
	})
	if err != nil {
		return fmt.Errorf("arm pipeline schedule: %w", err)
	}
	o.queue.Start(ctx)

	o.queue.Kick(ctx, jobName)

	slog.Info("pipeline initialized",
		"interval", o.cfg.Interval,
		"subjects", len(o.cfg.TargetSubjects),
		"primary_terms", len(o.cfg.PrimaryTerms))
	return nil
}

// Run executes one cycle under the single-flight guard: a trigger that
// fires while a cycle is in flight is dropped, never queued.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		slog.Info("pipeline cycle already running, dropping trigger")
		metrics.PipelineCyclesTotal.WithLabelValues("skipped").Inc()
		return nil
	}
	defer o.running.Store(false)

	start := o.clock.Now()
	err := o.runCycle(ctx)
	metrics.PipelineCycleDuration.Observe(o.clock.Since(start).Seconds())

	if err != nil {
		metrics.PipelineCyclesTotal.WithLabelValues("failure").Inc()
		return err
	}
	metrics.PipelineCyclesTotal.WithLabelValues("success").Inc()
	return nil
}

// Shutdown stops the schedule. Safe to call repeatedly and on a
// partially initialized orchestrator.
func (o *Orchestrator) Shutdown() {
	o.shutdownOnce.Do(func() {
		if o.queue != nil {
			o.queue.Stop()
		}
		slog.Info("pipeline stopped")
	})
}

func (o *Orchestrator) runCycle(ctx context.Context) error {
	items, err := o.harvest(ctx)
	if err != nil {
		return err
	}

	result, err := o.analyzer.Analyze(ctx, items)
	if err != nil {
		return fmt.Errorf("analyze harvest: %w", err)
	}
	for _, scoreErr := range result.Errors {
		logging.WithItem(scoreErr.ItemID).Warn("item excluded from cycle", "error", scoreErr.Err)
	}

	significant := make([]domain.AnalyzedItem, 0, len(result.Items))
	for _, item := range result.Items {
		if item.Analysis.Score >= minScore && item.Analysis.CredibilityScore >= minCredibility {
			significant = append(significant, item)
		}
	}
	metrics.SignificantItems.Set(float64(len(significant)))

	digest := o.buildDigest(len(items), result.Items, significant)
	return o.publish(ctx, digest)
}

// harvest collects the cycle's raw items: every primary × context term
// pair searched independently, every tracked subject's timeline, and
// optionally the current top trends as extra queries. Partial source
// failures degrade the harvest; only an empty harvest with failures
// fails the cycle.
func (o *Orchestrator) harvest(ctx context.Context) ([]domain.ContentItem, error) {
	var (
		collected []domain.ContentItem
		lastErr   error
		failures  int
	)
	seenQuery := make(map[string]struct{})

	runSearch := func(query string) {
		if _, dup := seenQuery[query]; dup {
			return
		}
		seenQuery[query] = struct{}{}

		items, err := o.fetcher.Search(ctx, query, o.cfg.FetchCount, domain.SearchLatest)
		if err != nil {
			logging.WithQuery(query).Warn("search failed, continuing cycle", "error", err)
			failures++
			lastErr = err
			return
		}
		collected = append(collected, items...)
	}

	for _, primary := range o.cfg.PrimaryTerms {
		if len(o.cfg.ContextTerms) == 0 {
			runSearch(primary)
			continue
		}
		for _, contextTerm := range o.cfg.ContextTerms {
			runSearch(primary + " " + contextTerm)
		}
	}

	if o.cfg.IncludeTrends {
		trends, err := o.fetcher.GetTrends(ctx)
		if err != nil {
			slog.Warn("trend listing failed, continuing cycle", "error", err)
		} else {
			for i, trend := range trends {
				if i == trendQueryLimit {
					break
				}
				runSearch(trend.Name)
			}
		}
	}

	for _, subject := range o.cfg.TargetSubjects {
		items, err := o.fetcher.GetContent(ctx, subject, o.cfg.FetchCount)
		if err != nil {
			slog.Warn("subject fetch failed, continuing cycle", "subject", subject, "error", err)
			failures++
			lastErr = err
			continue
		}
		collected = append(collected, items...)
	}

	deduped := dedupeByID(collected)
	if len(deduped) == 0 && failures > 0 {
		return nil, fmt.Errorf("harvest produced nothing (%d source failures): %w", failures, lastErr)
	}

	logging.WithStage("harvest").Info("harvest complete", "items", len(deduped), "source_failures", failures)
	return deduped, nil
}

func (o *Orchestrator) buildDigest(totalAnalyzed int, analyzed, significant []domain.AnalyzedItem) domain.Digest {
	items := make([]domain.DigestItem, len(significant))
	for i, a := range significant {
		items[i] = domain.DigestItem{
			ID:          a.Item.ID,
			AuthorName:  a.Item.AuthorName,
			Text:        a.Item.Text,
			CreatedAt:   a.Item.CreatedAt,
			Sentiment:   a.Analysis.Sentiment,
			Score:       a.Analysis.Score,
			Credibility: a.Analysis.CredibilityScore,
			Topics:      a.Analysis.Topics,
			Summary:     a.Analysis.Summary,
			Engagement:  a.Item.Engagement,
		}
	}

	return domain.Digest{
		Timestamp: o.clock.Now().UTC(),
		Metadata: domain.DigestMetadata{
			TotalAnalyzed:    totalAnalyzed,
			SignificantCount: len(significant),
			TargetSubjects:   o.cfg.TargetSubjects,
			BatchID:          uuid.NewString(),
		},
		Statistics: buildStatistics(analyzed),
		Items:      items,
	}
}

// buildStatistics aggregates over every analyzed item of the cycle, not
// just the strictly significant ones.
func buildStatistics(analyzed []domain.AnalyzedItem) domain.DigestStatistics {
	stats := domain.DigestStatistics{
		SentimentDistribution: make(map[domain.Sentiment]int),
		TopTopics:             []domain.TopicCount{},
	}
	if len(analyzed) == 0 {
		return stats
	}

	var scoreSum, credSum float64
	topicCounts := make(map[string]int)
	for _, a := range analyzed {
		scoreSum += a.Analysis.Score
		credSum += a.Analysis.CredibilityScore
		stats.SentimentDistribution[a.Analysis.Sentiment]++
		for _, topic := range a.Analysis.Topics {
			topicCounts[topic]++
		}
	}

	n := float64(len(analyzed))
	stats.AverageScore = scoreSum / n
	stats.AverageCredibility = credSum / n
	stats.TopTopics = rankTopics(topicCounts, topTopicsLimit)
	return stats
}

// rankTopics returns the limit most frequent topics, ties broken
// alphabetically for a stable envelope.
func rankTopics(counts map[string]int, limit int) []domain.TopicCount {
	ranked := make([]domain.TopicCount, 0, len(counts))
	for topic, count := range counts {
		ranked = append(ranked, domain.TopicCount{Topic: topic, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Topic < ranked[j].Topic
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// publish broadcasts the envelope and persists it as the last-known-good
// snapshot. Re-persisting an identical envelope is a plain overwrite.
func (o *Orchestrator) publish(ctx context.Context, digest domain.Digest) error {
	payload, err := json.Marshal(digest)
	if err != nil {
		return fmt.Errorf("encode digest: %w", err)
	}

	if err := o.publisher.Publish(ctx, domain.ChannelDigest, payload); err != nil {
		return &domain.PublishError{Channel: domain.ChannelDigest, Err: err}
	}
	if err := o.store.Set(ctx, domain.KeyLatestDigest, payload, snapshotTTL); err != nil {
		return &domain.PublishError{Channel: domain.KeyLatestDigest, Err: err}
	}

	slog.Info("digest published",
		"batch_id", digest.Metadata.BatchID,
		"analyzed", digest.Metadata.TotalAnalyzed,
		"significant", digest.Metadata.SignificantCount)
	return nil
}

func dedupeByID(items []domain.ContentItem) []domain.ContentItem {
	seen := make(map[string]struct{}, len(items))
	out := items[:0:0]
	for _, item := range items {
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}
	return out
}
