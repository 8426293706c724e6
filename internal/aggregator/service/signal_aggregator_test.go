package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"market-pulse/internal/aggregator/config"
	"market-pulse/internal/aggregator/dto"
	"market-pulse/internal/entity"
	"market-pulse/pkg/logger"
)

type fakeTickerRepo struct {
	tickers []entity.Ticker
	err     error
}

func (f *fakeTickerRepo) GetActiveTickers(ctx context.Context, asOf time.Time) ([]entity.Ticker, error) {
	return f.tickers, f.err
}

type fakeMentionRepo struct {
	articles     map[string][]dto.ArticleInput
	counts       map[string][]int
	embeddings   map[string][][]float64
	articlesErr  error
	countsErr    error
	embeddingErr error
}

func (f *fakeMentionRepo) GetQualifyingArticles(ctx context.Context, ticker string, from, to time.Time) ([]dto.ArticleInput, error) {
	if f.articlesErr != nil {
		return nil, f.articlesErr
	}
	return f.articles[ticker], nil
}

func (f *fakeMentionRepo) CountMentionsPerBucket(ctx context.Context, ticker string, from, to time.Time, bucket time.Duration) ([]int, error) {
	if f.countsErr != nil {
		return nil, f.countsErr
	}
	return f.counts[ticker], nil
}

func (f *fakeMentionRepo) GetRecentEmbeddings(ctx context.Context, ticker string, since time.Time, limit int) ([][]float64, error) {
	if f.embeddingErr != nil {
		return nil, f.embeddingErr
	}
	return f.embeddings[ticker], nil
}

type fakeSignalRepo struct {
	inserted   []entity.Signal
	contribs   []entity.SignalContribution
	insertErrs []error
	calls      int
	nextID     int64
}

func (f *fakeSignalRepo) InsertWithContributions(ctx context.Context, signal *entity.Signal, contribs []entity.SignalContribution) error {
	f.calls++
	if len(f.insertErrs) > 0 {
		err := f.insertErrs[0]
		f.insertErrs = f.insertErrs[1:]
		if err != nil {
			return err
		}
	}

	f.nextID++
	signal.ID = f.nextID
	f.inserted = append(f.inserted, *signal)
	for i := range contribs {
		contribs[i].SignalID = signal.ID
		f.contribs = append(f.contribs, contribs[i])
	}
	return nil
}

func (f *fakeSignalRepo) GetSignals(ctx context.Context, ticker string, from, to time.Time, limit int) ([]entity.Signal, error) {
	return nil, nil
}

func (f *fakeSignalRepo) GetLatestSignal(ctx context.Context, ticker string) (*entity.Signal, error) {
	return nil, nil
}

func (f *fakeSignalRepo) GetContributions(ctx context.Context, signalID int64) ([]entity.SignalContribution, error) {
	return nil, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Scoring.Defaults()
	cfg.Scoring.EventTagBoosts = map[string]float64{
		EventTagRisingVelocity: 0.05,
		EventTagFreshNovelty:   0.05,
	}
	cfg.Aggregator.BucketDuration = time.Hour
	cfg.Aggregator.MaxConcurrent = 2
	cfg.Aggregator.PersistMaxRetries = 1
	return cfg
}

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

func floatPtr(v float64) *float64 { return &v }

func bucketWindow() (time.Time, time.Time) {
	end := time.Date(2025, 3, 1, 16, 0, 0, 0, time.UTC)
	return end.Add(-time.Hour), end
}

func TestAggregateTickerMeanSentimentAndContributors(t *testing.T) {
	start, end := bucketWindow()
	mentions := &fakeMentionRepo{
		articles: map[string][]dto.ArticleInput{
			"AAPL": {
				{ArticleID: 1, PublishedAt: start.Add(10 * time.Minute), Sentiment: floatPtr(0.8), Confidence: 0.95},
				{ArticleID: 2, PublishedAt: start.Add(20 * time.Minute), Sentiment: floatPtr(0.6), Confidence: 0.7},
				{ArticleID: 3, PublishedAt: start.Add(30 * time.Minute), Sentiment: floatPtr(-0.2), Confidence: 0.6},
			},
		},
		counts: map[string][]int{"AAPL": {1, 1, 1, 1}},
	}

	agg := NewSignalAggregator(testConfig(), testLogger(), &fakeTickerRepo{}, mentions, &fakeSignalRepo{})

	signal, contribs, err := agg.AggregateTicker(context.Background(), "AAPL", start, end)
	require.NoError(t, err)
	require.NotNil(t, signal)

	require.NotNil(t, signal.Sentiment)
	assert.InDelta(t, 0.4, *signal.Sentiment, 1e-9)
	assert.Equal(t, "AAPL", signal.Ticker)
	assert.Equal(t, end, signal.Ts)

	// Top two articles by absolute sentiment, strongest first.
	require.Len(t, contribs, entity.MaxSignalContributors)
	assert.Equal(t, int64(1), contribs[0].ArticleID)
	assert.Equal(t, 1, contribs[0].Rank)
	assert.Equal(t, int64(2), contribs[1].ArticleID)
	assert.Equal(t, 2, contribs[1].Rank)
}

func TestAggregateTickerSkipsEmptyBucket(t *testing.T) {
	start, end := bucketWindow()
	mentions := &fakeMentionRepo{articles: map[string][]dto.ArticleInput{}}

	agg := NewSignalAggregator(testConfig(), testLogger(), &fakeTickerRepo{}, mentions, &fakeSignalRepo{})

	signal, contribs, err := agg.AggregateTicker(context.Background(), "AAPL", start, end)
	require.NoError(t, err)
	assert.Nil(t, signal)
	assert.Nil(t, contribs)
}

func TestAggregateTickerNoveltyWithoutHistory(t *testing.T) {
	start, end := bucketWindow()
	embedding := []float64{1, 0, 0}
	mentions := &fakeMentionRepo{
		articles: map[string][]dto.ArticleInput{
			"AAPL": {
				{ArticleID: 1, PublishedAt: start.Add(5 * time.Minute), Sentiment: floatPtr(0.5), Embedding: embedding},
			},
		},
		counts: map[string][]int{"AAPL": {1}},
	}

	agg := NewSignalAggregator(testConfig(), testLogger(), &fakeTickerRepo{}, mentions, &fakeSignalRepo{})

	signal, _, err := agg.AggregateTicker(context.Background(), "AAPL", start, end)
	require.NoError(t, err)
	require.NotNil(t, signal)
	require.NotNil(t, signal.Novelty)
	assert.Equal(t, 1.0, *signal.Novelty)
	assert.Contains(t, []string(signal.EventTags), EventTagFreshNovelty)
}

func TestAggregateTickerNoveltyAgainstIdenticalHistory(t *testing.T) {
	start, end := bucketWindow()
	embedding := []float64{0.5, 0.5, 0}
	mentions := &fakeMentionRepo{
		articles: map[string][]dto.ArticleInput{
			"AAPL": {
				{ArticleID: 1, PublishedAt: start.Add(5 * time.Minute), Sentiment: floatPtr(0.5), Embedding: embedding},
			},
		},
		counts:     map[string][]int{"AAPL": {1}},
		embeddings: map[string][][]float64{"AAPL": {embedding}},
	}

	agg := NewSignalAggregator(testConfig(), testLogger(), &fakeTickerRepo{}, mentions, &fakeSignalRepo{})

	signal, _, err := agg.AggregateTicker(context.Background(), "AAPL", start, end)
	require.NoError(t, err)
	require.NotNil(t, signal.Novelty)
	assert.InDelta(t, 0.0, *signal.Novelty, 1e-9)
	assert.NotContains(t, []string(signal.EventTags), EventTagFreshNovelty)
}

func TestAggregateTickerVelocityZScore(t *testing.T) {
	start, end := bucketWindow()
	// Baseline counts alternate 0 and 2: mean 1, stddev 1. Current bucket
	// holds 3 mentions, so z = (3 - 1) / 1 = 2.
	mentions := &fakeMentionRepo{
		articles: map[string][]dto.ArticleInput{
			"AAPL": {
				{ArticleID: 1, PublishedAt: start.Add(5 * time.Minute), Sentiment: floatPtr(0.1)},
				{ArticleID: 2, PublishedAt: start.Add(15 * time.Minute), Sentiment: floatPtr(0.2)},
				{ArticleID: 3, PublishedAt: start.Add(25 * time.Minute), Sentiment: floatPtr(0.3)},
			},
		},
		counts: map[string][]int{"AAPL": {0, 2, 0, 2}},
	}

	agg := NewSignalAggregator(testConfig(), testLogger(), &fakeTickerRepo{}, mentions, &fakeSignalRepo{})

	signal, _, err := agg.AggregateTicker(context.Background(), "AAPL", start, end)
	require.NoError(t, err)
	require.NotNil(t, signal.Velocity)
	assert.InDelta(t, 2.0, *signal.Velocity, 1e-9)
	assert.Contains(t, []string(signal.EventTags), EventTagRisingVelocity)
}

func TestAggregateTickerVelocityFlatBaseline(t *testing.T) {
	start, end := bucketWindow()
	mentions := &fakeMentionRepo{
		articles: map[string][]dto.ArticleInput{
			"AAPL": {
				{ArticleID: 1, PublishedAt: start.Add(5 * time.Minute), Sentiment: floatPtr(0.1)},
			},
		},
		counts: map[string][]int{"AAPL": {0, 0, 0}},
	}

	agg := NewSignalAggregator(testConfig(), testLogger(), &fakeTickerRepo{}, mentions, &fakeSignalRepo{})

	signal, _, err := agg.AggregateTicker(context.Background(), "AAPL", start, end)
	require.NoError(t, err)
	require.NotNil(t, signal.Velocity)
	assert.InDelta(t, 1.0, *signal.Velocity, 1e-9)
}

func TestAggregateTickerContributorFallbackToConfidence(t *testing.T) {
	start, end := bucketWindow()
	mentions := &fakeMentionRepo{
		articles: map[string][]dto.ArticleInput{
			"AAPL": {
				{ArticleID: 1, PublishedAt: start.Add(5 * time.Minute), Confidence: 0.4},
				{ArticleID: 2, PublishedAt: start.Add(10 * time.Minute), Confidence: 0.95},
				{ArticleID: 3, PublishedAt: start.Add(15 * time.Minute), Confidence: 0.7},
			},
		},
		counts: map[string][]int{"AAPL": {1}},
	}

	agg := NewSignalAggregator(testConfig(), testLogger(), &fakeTickerRepo{}, mentions, &fakeSignalRepo{})

	signal, contribs, err := agg.AggregateTicker(context.Background(), "AAPL", start, end)
	require.NoError(t, err)
	assert.Nil(t, signal.Sentiment)

	require.Len(t, contribs, 2)
	assert.Equal(t, int64(2), contribs[0].ArticleID)
	assert.Equal(t, int64(3), contribs[1].ArticleID)
}

func TestAggregateBucketIsolatesTickerFailures(t *testing.T) {
	_, end := bucketWindow()
	cfg := testConfig()

	mentions := &fakeMentionRepo{
		articles: map[string][]dto.ArticleInput{
			"AAPL": {
				{ArticleID: 1, PublishedAt: end.Add(-5 * time.Minute), Sentiment: floatPtr(0.9)},
			},
		},
		counts: map[string][]int{"AAPL": {1}},
	}
	tickers := &fakeTickerRepo{tickers: []entity.Ticker{{Symbol: "AAPL"}, {Symbol: "MSFT"}}}
	signals := &fakeSignalRepo{}

	agg := NewSignalAggregator(cfg, testLogger(), tickers, mentions, signals)

	result, emitted, err := agg.AggregateBucket(context.Background(), end)
	require.NoError(t, err)

	assert.Equal(t, 2, result.TickersTotal)
	assert.Equal(t, 1, result.SignalsEmitted)
	assert.Equal(t, 1, result.TickersSkipped)
	assert.Equal(t, 0, result.TickersFailed)
	require.Len(t, emitted, 1)
	assert.Equal(t, "AAPL", emitted[0].Ticker)

	// Persistence went through the repository.
	require.Len(t, signals.inserted, 1)
	require.Len(t, signals.contribs, 1)
	assert.Equal(t, signals.inserted[0].ID, signals.contribs[0].SignalID)
}

func TestAggregateBucketRetriedPersistInsertsOnce(t *testing.T) {
	_, end := bucketWindow()
	cfg := testConfig()
	cfg.Aggregator.PersistMaxRetries = 3

	mentions := &fakeMentionRepo{
		articles: map[string][]dto.ArticleInput{
			"AAPL": {
				{ArticleID: 1, PublishedAt: end.Add(-5 * time.Minute), Sentiment: floatPtr(0.9)},
			},
		},
		counts: map[string][]int{"AAPL": {1}},
	}
	tickers := &fakeTickerRepo{tickers: []entity.Ticker{{Symbol: "AAPL"}}}
	signals := &fakeSignalRepo{insertErrs: []error{errors.New("pq: deadlock detected")}}

	agg := NewSignalAggregator(cfg, testLogger(), tickers, mentions, signals)

	result, emitted, err := agg.AggregateBucket(context.Background(), end)
	require.NoError(t, err)

	assert.Equal(t, 1, result.SignalsEmitted)
	assert.Equal(t, 0, result.TickersFailed)
	require.Len(t, emitted, 1)

	// The deadlocked attempt rolled back as one unit; the retry produced
	// exactly one signal row with its contributions.
	assert.Equal(t, 2, signals.calls)
	require.Len(t, signals.inserted, 1)
	require.Len(t, signals.contribs, 1)
	assert.Equal(t, signals.inserted[0].ID, signals.contribs[0].SignalID)
	assert.Equal(t, emitted[0].ID, signals.inserted[0].ID)
}

func TestAggregateBucketReportsFailedTickers(t *testing.T) {
	_, end := bucketWindow()

	mentions := &fakeMentionRepo{articlesErr: errors.New("pq: relation does not exist")}
	tickers := &fakeTickerRepo{tickers: []entity.Ticker{{Symbol: "AAPL"}}}

	agg := NewSignalAggregator(testConfig(), testLogger(), tickers, mentions, &fakeSignalRepo{})

	result, emitted, err := agg.AggregateBucket(context.Background(), end)
	require.NoError(t, err)

	assert.Equal(t, 1, result.TickersFailed)
	assert.Equal(t, []string{"AAPL"}, result.FailedTickers)
	assert.Empty(t, emitted)
}

func TestAggregateTickerComputesWithBadWeightSum(t *testing.T) {
	start, end := bucketWindow()
	cfg := testConfig()
	// Weights that do not sum to 1 are warned about at construction but
	// never block computation.
	cfg.Scoring.WeightSentiment = 1.0
	cfg.Scoring.WeightNovelty = 0.5
	cfg.Scoring.WeightVelocity = 0.5

	mentions := &fakeMentionRepo{
		articles: map[string][]dto.ArticleInput{
			"AAPL": {
				{ArticleID: 1, PublishedAt: start.Add(5 * time.Minute), Sentiment: floatPtr(0.5)},
			},
		},
		counts: map[string][]int{"AAPL": {1}},
	}

	agg := NewSignalAggregator(cfg, testLogger(), &fakeTickerRepo{}, mentions, &fakeSignalRepo{})

	signal, _, err := agg.AggregateTicker(context.Background(), "AAPL", start, end)
	require.NoError(t, err)
	require.NotNil(t, signal)
	assert.InDelta(t, 0.5, signal.Score, 1e-9)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 0}, []float64{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float64{1, 0}, []float64{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{1}))
	assert.Equal(t, 0.0, cosineSimilarity(nil, nil))
}

func TestCompositeScoreWeighting(t *testing.T) {
	cfg := testConfig()
	agg := NewSignalAggregator(cfg, testLogger(), &fakeTickerRepo{}, &fakeMentionRepo{}, &fakeSignalRepo{}).(*signalAggregator)

	score := agg.compositeScore(floatPtr(0.5), floatPtr(1.0), nil, nil)
	assert.InDelta(t, 0.4*0.5+0.3*1.0, score, 1e-9)

	// tanh squashes extreme velocity toward 1.
	squashed := agg.compositeScore(nil, nil, floatPtr(100), nil)
	assert.InDelta(t, 0.3, squashed, 1e-6)

	boosted := agg.compositeScore(nil, nil, nil, []string{EventTagFreshNovelty})
	assert.InDelta(t, 0.05, boosted, 1e-9)
}
