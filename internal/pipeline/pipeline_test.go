package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xNerd/degen-server/internal/domain"
	"github.com/0xNerd/degen-server/internal/jobs"
	"github.com/0xNerd/degen-server/internal/scorer"
	"github.com/0xNerd/degen-server/internal/storetest"
)

type fakeFetcher struct {
	mu       sync.Mutex
	initErr  error
	searches map[string][]domain.ContentItem
	timeline map[string][]domain.ContentItem
	trends   []domain.Trend

	searchQueries []string
	subjects      []string
}

func (f *fakeFetcher) Initialize(context.Context) error { return f.initErr }

func (f *fakeFetcher) Search(_ context.Context, query string, _ int, _ domain.SearchMode) ([]domain.ContentItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchQueries = append(f.searchQueries, query)
	items, ok := f.searches[query]
	if !ok {
		return nil, &domain.FetchError{Op: "search", Subject: query, Err: errors.New("no results configured")}
	}
	return items, nil
}

func (f *fakeFetcher) GetContent(_ context.Context, subject string, _ int) ([]domain.ContentItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	items, ok := f.timeline[subject]
	if !ok {
		return nil, &domain.FetchError{Op: "content", Subject: subject, Err: errors.New("no timeline configured")}
	}
	return items, nil
}

func (f *fakeFetcher) GetTrends(context.Context) ([]domain.Trend, error) {
	return f.trends, nil
}

func (f *fakeFetcher) queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.searchQueries...)
}

// passthroughAnalyzer assigns each item a fixed analysis keyed by id.
type passthroughAnalyzer struct {
	analyses map[string]domain.AnalysisResult
	started  chan struct{}
	release  chan struct{}
}

func (a *passthroughAnalyzer) Analyze(ctx context.Context, items []domain.ContentItem) (scorer.Result, error) {
	if a.started != nil {
		a.started <- struct{}{}
	}
	if a.release != nil {
		select {
		case <-a.release:
		case <-ctx.Done():
			return scorer.Result{}, ctx.Err()
		}
	}

	var result scorer.Result
	for _, item := range items {
		analysis, ok := a.analyses[item.ID]
		if !ok {
			result.Errors = append(result.Errors, &domain.ScoringError{ItemID: item.ID, Err: errors.New("no analysis configured")})
			continue
		}
		result.Items = append(result.Items, domain.AnalyzedItem{Item: item, Analysis: analysis})
	}
	return result, nil
}

type capturingPublisher struct {
	mu       sync.Mutex
	err      error
	payloads [][]byte
	channels []string
}

func (p *capturingPublisher) Publish(_ context.Context, channel string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.channels = append(p.channels, channel)
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *capturingPublisher) last(t *testing.T) domain.Digest {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.payloads)
	var digest domain.Digest
	require.NoError(t, json.Unmarshal(p.payloads[len(p.payloads)-1], &digest))
	return digest
}

func item(id string) domain.ContentItem {
	return domain.ContentItem{ID: id, AuthorID: "author-" + id, Text: "post " + id}
}

func analysis(sentiment domain.Sentiment, score, cred float64, topics ...string) domain.AnalysisResult {
	return domain.AnalysisResult{Sentiment: sentiment, Score: score, Topics: topics, CredibilityScore: cred}
}

func newOrchestrator(fetcher *fakeFetcher, analyzer Analyzer, publisher *capturingPublisher, cfg Config) (*Orchestrator, *storetest.MemoryStore, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	store := storetest.NewMemoryStore(clock)
	queue := jobs.NewQueue(clock, nil)
	return New(fetcher, analyzer, store, publisher, queue, nil, cfg, clock), store, clock
}

func TestRunCyclePublishesDigest(t *testing.T) {
	fetcher := &fakeFetcher{
		searches: map[string][]domain.ContentItem{
			"presale launch": {item("a"), item("b")},
			"presale crypto": {item("c")},
		},
		timeline: map[string][]domain.ContentItem{
			"whale_alerts": {item("d")},
		},
	}
	analyzer := &passthroughAnalyzer{analyses: map[string]domain.AnalysisResult{
		"a": analysis(domain.SentimentPositive, 0.9, 0.8, "presale", "launch"),
		"b": analysis(domain.SentimentNegative, 0.7, 0.3, "rug"),      // credibility below gate
		"c": analysis(domain.SentimentNeutral, 0.5, 0.9, "presale"),   // score below gate
		"d": analysis(domain.SentimentPositive, 0.65, 0.55, "whales"), // passes both
	}}
	publisher := &capturingPublisher{}

	o, store, _ := newOrchestrator(fetcher, analyzer, publisher, Config{
		TargetSubjects: []string{"whale_alerts"},
		PrimaryTerms:   []string{"presale"},
		ContextTerms:   []string{"launch", "crypto"},
	})

	require.NoError(t, o.Run(context.Background()))

	digest := publisher.last(t)
	assert.Equal(t, 4, digest.Metadata.TotalAnalyzed)
	assert.Equal(t, 2, digest.Metadata.SignificantCount)
	assert.Equal(t, []string{"whale_alerts"}, digest.Metadata.TargetSubjects)
	assert.NotEmpty(t, digest.Metadata.BatchID)

	require.Len(t, digest.Items, 2)
	assert.Equal(t, "a", digest.Items[0].ID)
	assert.Equal(t, "d", digest.Items[1].ID)

	// Statistics cover all four analyzed items, not just the two published.
	assert.InDelta(t, (0.9+0.7+0.5+0.65)/4, digest.Statistics.AverageScore, 1e-9)
	assert.InDelta(t, (0.8+0.3+0.9+0.55)/4, digest.Statistics.AverageCredibility, 1e-9)
	assert.Equal(t, 2, digest.Statistics.SentimentDistribution[domain.SentimentPositive])
	assert.Equal(t, 1, digest.Statistics.SentimentDistribution[domain.SentimentNegative])
	assert.Equal(t, 1, digest.Statistics.SentimentDistribution[domain.SentimentNeutral])

	require.NotEmpty(t, digest.Statistics.TopTopics)
	assert.Equal(t, domain.TopicCount{Topic: "presale", Count: 2}, digest.Statistics.TopTopics[0])

	// Snapshot persisted alongside the broadcast.
	assert.Equal(t, []string{domain.ChannelDigest}, publisher.channels)
	assert.True(t, store.Has(domain.KeyLatestDigest))
}

func TestRunCycleDeduplicatesAcrossSources(t *testing.T) {
	shared := item("dup")
	fetcher := &fakeFetcher{
		searches: map[string][]domain.ContentItem{
			"presale": {shared, item("a")},
		},
		timeline: map[string][]domain.ContentItem{
			"whale_alerts": {shared},
		},
	}
	analyzer := &passthroughAnalyzer{analyses: map[string]domain.AnalysisResult{
		"dup": analysis(domain.SentimentPositive, 0.9, 0.9),
		"a":   analysis(domain.SentimentPositive, 0.9, 0.9),
	}}
	publisher := &capturingPublisher{}

	o, _, _ := newOrchestrator(fetcher, analyzer, publisher, Config{
		TargetSubjects: []string{"whale_alerts"},
		PrimaryTerms:   []string{"presale"},
	})

	require.NoError(t, o.Run(context.Background()))

	digest := publisher.last(t)
	assert.Equal(t, 2, digest.Metadata.TotalAnalyzed)
	assert.Len(t, digest.Items, 2)
}

func TestRunCycleToleratesPartialSourceFailures(t *testing.T) {
	fetcher := &fakeFetcher{
		searches: map[string][]domain.ContentItem{
			"presale": {item("a")},
			// "memecoin" is not configured and fails.
		},
		timeline: map[string][]domain.ContentItem{},
	}
	analyzer := &passthroughAnalyzer{analyses: map[string]domain.AnalysisResult{
		"a": analysis(domain.SentimentPositive, 0.9, 0.9),
	}}
	publisher := &capturingPublisher{}

	o, _, _ := newOrchestrator(fetcher, analyzer, publisher, Config{
		PrimaryTerms: []string{"presale", "memecoin"},
	})

	require.NoError(t, o.Run(context.Background()))
	assert.Equal(t, 1, publisher.last(t).Metadata.TotalAnalyzed)
}

func TestRunCycleFailsWhenHarvestEmptyWithFailures(t *testing.T) {
	fetcher := &fakeFetcher{searches: map[string][]domain.ContentItem{}}
	analyzer := &passthroughAnalyzer{}
	publisher := &capturingPublisher{}

	o, _, _ := newOrchestrator(fetcher, analyzer, publisher, Config{
		PrimaryTerms: []string{"presale"},
	})

	err := o.Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, publisher.channels)
}

func TestRunCycleIncludesTrendQueries(t *testing.T) {
	fetcher := &fakeFetcher{
		searches: map[string][]domain.ContentItem{
			"presale": {item("a")},
			"trend-1": {item("b")},
			"trend-2": {},
			"trend-3": {},
		},
		trends: []domain.Trend{
			{Name: "trend-1"}, {Name: "trend-2"}, {Name: "trend-3"}, {Name: "trend-4"},
		},
	}
	analyzer := &passthroughAnalyzer{analyses: map[string]domain.AnalysisResult{
		"a": analysis(domain.SentimentPositive, 0.9, 0.9),
		"b": analysis(domain.SentimentPositive, 0.9, 0.9),
	}}
	publisher := &capturingPublisher{}

	o, _, _ := newOrchestrator(fetcher, analyzer, publisher, Config{
		PrimaryTerms:  []string{"presale"},
		IncludeTrends: true,
	})

	require.NoError(t, o.Run(context.Background()))

	queries := fetcher.queries()
	assert.Contains(t, queries, "trend-1")
	assert.Contains(t, queries, "trend-3")
	assert.NotContains(t, queries, "trend-4")
}

func TestRunDropsConcurrentTrigger(t *testing.T) {
	fetcher := &fakeFetcher{
		searches: map[string][]domain.ContentItem{"presale": {item("a")}},
	}
	analyzer := &passthroughAnalyzer{
		analyses: map[string]domain.AnalysisResult{"a": analysis(domain.SentimentPositive, 0.9, 0.9)},
		started:  make(chan struct{}, 1),
		release:  make(chan struct{}),
	}
	publisher := &capturingPublisher{}

	o, _, _ := newOrchestrator(fetcher, analyzer, publisher, Config{
		PrimaryTerms: []string{"presale"},
	})

	done := make(chan error, 1)
	go func() { done <- o.Run(context.Background()) }()
	<-analyzer.started

	// Second trigger while the first is mid-analysis: dropped, no error.
	require.NoError(t, o.Run(context.Background()))

	close(analyzer.release)
	require.NoError(t, <-done)

	// Only the first run published.
	assert.Len(t, publisher.channels, 1)
}

func TestRunCyclePublishFailureSurfaces(t *testing.T) {
	fetcher := &fakeFetcher{
		searches: map[string][]domain.ContentItem{"presale": {item("a")}},
	}
	analyzer := &passthroughAnalyzer{analyses: map[string]domain.AnalysisResult{
		"a": analysis(domain.SentimentPositive, 0.9, 0.9),
	}}
	publisher := &capturingPublisher{err: errors.New("connection reset")}

	o, _, _ := newOrchestrator(fetcher, analyzer, publisher, Config{
		PrimaryTerms: []string{"presale"},
	})

	err := o.Run(context.Background())
	var publishErr *domain.PublishError
	require.ErrorAs(t, err, &publishErr)
	assert.Equal(t, domain.ChannelDigest, publishErr.Channel)
}

func TestInitializeFailsOnAuthError(t *testing.T) {
	fetcher := &fakeFetcher{initErr: domain.ErrAuthentication}
	publisher := &capturingPublisher{}

	o, _, _ := newOrchestrator(fetcher, &passthroughAnalyzer{}, publisher, Config{})
	defer o.Shutdown()

	err := o.Initialize(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuthentication)
}

func TestInitializeRunsBootstrapCycle(t *testing.T) {
	fetcher := &fakeFetcher{
		searches: map[string][]domain.ContentItem{"presale": {item("a")}},
	}
	analyzer := &passthroughAnalyzer{analyses: map[string]domain.AnalysisResult{
		"a": analysis(domain.SentimentPositive, 0.9, 0.9),
	}}
	publisher := &capturingPublisher{}

	o, store, _ := newOrchestrator(fetcher, analyzer, publisher, Config{
		PrimaryTerms: []string{"presale"},
	})
	defer o.Shutdown()

	require.NoError(t, o.Initialize(context.Background()))

	assert.Eventually(t, func() bool {
		return store.Has(domain.KeyLatestDigest)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestShutdownIsIdempotent(t *testing.T) {
	fetcher := &fakeFetcher{searches: map[string][]domain.ContentItem{}}
	o, _, _ := newOrchestrator(fetcher, &passthroughAnalyzer{}, &capturingPublisher{}, Config{})

	require.NoError(t, o.Initialize(context.Background()))
	o.Shutdown()
	o.Shutdown()
}
