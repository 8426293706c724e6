package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"market-pulse/internal/aggregator/config"
	"market-pulse/internal/aggregator/dto"
	"market-pulse/internal/aggregator/repository"
	"market-pulse/internal/entity"
	"market-pulse/pkg/logger"
	"market-pulse/pkg/retry"
	"market-pulse/pkg/utils"
)

// Event tags attached to signals when their thresholds are crossed.
const (
	EventTagRisingVelocity = "rising_velocity"
	EventTagFreshNovelty   = "fresh_novelty"
)

// SignalAggregator computes per-ticker composite signals for a time bucket.
type SignalAggregator interface {
	// AggregateBucket runs the aggregation for every active ticker over the
	// bucket ending at bucketEnd. Per-ticker failures are isolated; the
	// returned result reports them without aborting the run.
	AggregateBucket(ctx context.Context, bucketEnd time.Time) (*dto.BucketResult, []entity.Signal, error)
	// AggregateTicker computes (without persisting) the signal for one
	// ticker over [bucketStart, bucketEnd). Returns nil when no qualifying
	// articles exist.
	AggregateTicker(ctx context.Context, ticker string, bucketStart, bucketEnd time.Time) (*entity.Signal, []entity.SignalContribution, error)
}

// NewSignalAggregator creates a new SignalAggregator. A weight sum outside
// [0.9, 1.1] is logged as a warning but does not block computation.
func NewSignalAggregator(
	cfg *config.Config,
	log *logger.Logger,
	tickerRepo repository.TickerRepository,
	mentionRepo repository.MentionRepository,
	signalRepo repository.SignalRepository,
) SignalAggregator {
	scoring := cfg.Scoring
	weightSum := scoring.WeightSentiment + scoring.WeightNovelty + scoring.WeightVelocity
	if weightSum < 0.9 || weightSum > 1.1 {
		log.Warn("Scoring weights do not sum to 1.0",
			logger.Float64Field("weight_sum", weightSum),
			logger.Float64Field("w_sentiment", scoring.WeightSentiment),
			logger.Float64Field("w_novelty", scoring.WeightNovelty),
			logger.Float64Field("w_velocity", scoring.WeightVelocity),
		)
	}

	return &signalAggregator{
		cfg:         cfg,
		logger:      log,
		tickerRepo:  tickerRepo,
		mentionRepo: mentionRepo,
		signalRepo:  signalRepo,
	}
}

type signalAggregator struct {
	cfg         *config.Config
	logger      *logger.Logger
	tickerRepo  repository.TickerRepository
	mentionRepo repository.MentionRepository
	signalRepo  repository.SignalRepository
}

func (s *signalAggregator) AggregateBucket(ctx context.Context, bucketEnd time.Time) (*dto.BucketResult, []entity.Signal, error) {
	bucketEnd = bucketEnd.UTC()
	bucketStart := bucketEnd.Add(-s.cfg.Aggregator.BucketDuration)

	tickers, err := s.tickerRepo.GetActiveTickers(ctx, bucketEnd)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get active tickers: %w", err)
	}

	result := &dto.BucketResult{
		BucketStart:  bucketStart,
		BucketEnd:    bucketEnd,
		TickersTotal: len(tickers),
	}

	maxConcurrent := s.cfg.Aggregator.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	semaphore := make(chan struct{}, maxConcurrent)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		emitted []entity.Signal
	)

	for _, ticker := range tickers {
		if !utils.ShouldContinue(ctx) {
			break
		}
		symbol := ticker.Symbol
		wg.Add(1)
		utils.GoSafe(func() {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			signal, err := s.aggregateAndPersist(ctx, symbol, bucketStart, bucketEnd)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				// One ticker's failure must not abort the other tickers.
				s.logger.Error("Ticker aggregation failed", logger.ErrorField(err), logger.StringField("ticker", symbol))
				result.TickersFailed++
				result.FailedTickers = append(result.FailedTickers, symbol)
			case signal == nil:
				result.TickersSkipped++
			default:
				result.SignalsEmitted++
				emitted = append(emitted, *signal)
			}
		})
	}

	wg.Wait()

	s.logger.Info("Aggregation bucket completed",
		logger.Field("bucket_end", bucketEnd),
		logger.IntField("tickers_total", result.TickersTotal),
		logger.IntField("signals_emitted", result.SignalsEmitted),
		logger.IntField("tickers_skipped", result.TickersSkipped),
		logger.IntField("tickers_failed", result.TickersFailed),
	)
	return result, emitted, nil
}

func (s *signalAggregator) aggregateAndPersist(ctx context.Context, ticker string, bucketStart, bucketEnd time.Time) (*entity.Signal, error) {
	signal, contribs, err := s.AggregateTicker(ctx, ticker, bucketStart, bucketEnd)
	if err != nil {
		return nil, err
	}
	if signal == nil {
		return nil, nil
	}

	maxRetries := s.cfg.Aggregator.PersistMaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	err = retry.Do(ctx, maxRetries, retry.IsTransientPG, func(ctx context.Context) error {
		// Each attempt works on fresh copies; a rolled-back transaction
		// must not leak its id assignment into the next attempt.
		attempt := *signal
		attempt.ID = 0
		attemptContribs := make([]entity.SignalContribution, len(contribs))
		copy(attemptContribs, contribs)

		if err := s.signalRepo.InsertWithContributions(ctx, &attempt, attemptContribs); err != nil {
			return err
		}
		signal.ID = attempt.ID
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist signal for %s: %w", ticker, err)
	}

	return signal, nil
}

func (s *signalAggregator) AggregateTicker(ctx context.Context, ticker string, bucketStart, bucketEnd time.Time) (*entity.Signal, []entity.SignalContribution, error) {
	articles, err := s.mentionRepo.GetQualifyingArticles(ctx, ticker, bucketStart, bucketEnd)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get qualifying articles: %w", err)
	}
	if len(articles) == 0 {
		// No qualifying articles means no observation, not a zero-score row.
		return nil, nil, nil
	}

	sentiment := bucketSentiment(articles)
	novelty, err := s.bucketNovelty(ctx, ticker, bucketStart, articles)
	if err != nil {
		return nil, nil, err
	}
	velocity, err := s.bucketVelocity(ctx, ticker, bucketStart, len(articles))
	if err != nil {
		return nil, nil, err
	}

	tags := s.eventTags(novelty, velocity)
	score := s.compositeScore(sentiment, novelty, velocity, tags)

	signal := &entity.Signal{
		Ticker:    ticker,
		Ts:        bucketEnd,
		Sentiment: sentiment,
		Novelty:   novelty,
		Velocity:  velocity,
		EventTags: tags,
		Score:     score,
	}

	return signal, rankContributors(articles), nil
}

// bucketSentiment is the mean of available per-article sentiments, nil when
// none of the bucket's articles carry a score.
func bucketSentiment(articles []dto.ArticleInput) *float64 {
	var sum float64
	var n int
	for _, a := range articles {
		if a.Sentiment != nil {
			sum += *a.Sentiment
			n++
		}
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	return &mean
}

// bucketNovelty compares each article's embedding against the ticker's
// recent history and averages the distances, clamped to [0,1]. An article
// with no prior similar content scores 1. Nil when no article in the bucket
// has an embedding.
func (s *signalAggregator) bucketNovelty(ctx context.Context, ticker string, bucketStart time.Time, articles []dto.ArticleInput) (*float64, error) {
	lookback := time.Duration(s.cfg.Scoring.NoveltyLookbackHours) * time.Hour
	history, err := s.mentionRepo.GetRecentEmbeddings(ctx, ticker, bucketStart.Add(-lookback), 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent embeddings: %w", err)
	}

	var sum float64
	var n int
	for _, a := range articles {
		if len(a.Embedding) == 0 {
			continue
		}
		maxSim := 0.0
		for _, prior := range history {
			if sim := cosineSimilarity(a.Embedding, prior); sim > maxSim {
				maxSim = sim
			}
		}
		sum += clamp01(1 - maxSim)
		n++
	}
	if n == 0 {
		return nil, nil
	}

	novelty := clamp01(sum / float64(n))
	return &novelty, nil
}

// bucketVelocity is the z-score of the current bucket's mention count
// against the per-bucket baseline over the configured window. With a flat
// baseline (zero stddev) the raw deviation from the mean is returned so a
// sudden burst over total silence still registers.
func (s *signalAggregator) bucketVelocity(ctx context.Context, ticker string, bucketStart time.Time, currentCount int) (*float64, error) {
	bucket := s.cfg.Aggregator.BucketDuration
	baselineStart := bucketStart.Add(-time.Duration(s.cfg.Scoring.VelocityBaselineDays) * 24 * time.Hour)

	counts, err := s.mentionRepo.CountMentionsPerBucket(ctx, ticker, baselineStart, bucketStart, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to count baseline mentions: %w", err)
	}
	if len(counts) == 0 {
		return nil, nil
	}

	mean, stddev := meanStddev(counts)
	diff := float64(currentCount) - mean

	var velocity float64
	if stddev == 0 {
		velocity = diff
	} else {
		velocity = diff / stddev
	}
	return &velocity, nil
}

// eventTags derives tags from threshold crossings, ordered deterministically.
func (s *signalAggregator) eventTags(novelty, velocity *float64) []string {
	var tags []string
	if velocity != nil && *velocity >= s.cfg.Scoring.RisingVelocityZ {
		tags = append(tags, EventTagRisingVelocity)
	}
	if novelty != nil && *novelty >= s.cfg.Scoring.FreshNovelty {
		tags = append(tags, EventTagFreshNovelty)
	}
	return tags
}

// compositeScore folds the bounded terms into one weighted sum. Missing
// terms contribute zero. Velocity is squashed with tanh so one viral burst
// cannot dominate the bounded sentiment and novelty terms.
func (s *signalAggregator) compositeScore(sentiment, novelty, velocity *float64, tags []string) float64 {
	scoring := s.cfg.Scoring

	var score float64
	if sentiment != nil {
		score += scoring.WeightSentiment * *sentiment
	}
	if novelty != nil {
		score += scoring.WeightNovelty * *novelty
	}
	if velocity != nil {
		score += scoring.WeightVelocity * math.Tanh(*velocity)
	}
	for _, tag := range tags {
		score += scoring.EventTagBoosts[tag]
	}
	return score
}

// rankContributors orders articles by contribution magnitude (absolute
// sentiment, falling back to link confidence, ties broken by recency) and
// keeps the top ranked set, capped at entity.MaxSignalContributors.
func rankContributors(articles []dto.ArticleInput) []entity.SignalContribution {
	ranked := make([]dto.ArticleInput, len(articles))
	copy(ranked, articles)

	sort.SliceStable(ranked, func(i, j int) bool {
		wi, wj := contributionWeight(ranked[i]), contributionWeight(ranked[j])
		if wi != wj {
			return wi > wj
		}
		return ranked[i].PublishedAt.After(ranked[j].PublishedAt)
	})

	n := len(ranked)
	if n > entity.MaxSignalContributors {
		n = entity.MaxSignalContributors
	}

	contribs := make([]entity.SignalContribution, n)
	for i := 0; i < n; i++ {
		contribs[i] = entity.SignalContribution{
			ArticleID: ranked[i].ArticleID,
			Rank:      i + 1,
		}
	}
	return contribs
}

func contributionWeight(a dto.ArticleInput) float64 {
	if a.Sentiment != nil {
		return math.Abs(*a.Sentiment)
	}
	return a.Confidence
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func meanStddev(counts []int) (float64, float64) {
	n := float64(len(counts))
	var sum float64
	for _, c := range counts {
		sum += float64(c)
	}
	mean := sum / n

	var sq float64
	for _, c := range counts {
		d := float64(c) - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / n)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
