package scheduler

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/robfig/cron/v3"

	"market-pulse/internal/aggregator/config"
	"market-pulse/internal/aggregator/service"
	"market-pulse/internal/entity"
	"market-pulse/pkg/alert"
	"market-pulse/pkg/logger"
	"market-pulse/pkg/utils"
)

// Scheduler runs the signal aggregation on a cron cadence, once per
// completed bucket, and pushes alerts for signals that cross the
// configured score threshold.
type Scheduler interface {
	Start(ctx context.Context) error
	// RunOnce aggregates the most recent completed bucket immediately.
	RunOnce(ctx context.Context) error
	Stop()
}

func NewScheduler(
	cfg *config.Config,
	log *logger.Logger,
	aggregator service.SignalAggregator,
	notifier alert.Notifier,
) Scheduler {
	return &scheduler{
		cfg:        cfg,
		logger:     log,
		aggregator: aggregator,
		notifier:   notifier,
		cron:       cron.New(),
	}
}

type scheduler struct {
	cfg        *config.Config
	logger     *logger.Logger
	aggregator service.SignalAggregator
	notifier   alert.Notifier
	cron       *cron.Cron
}

func (s *scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.cfg.Aggregator.CronSpec, func() {
		if !utils.ShouldContinue(ctx) {
			return
		}
		if err := s.RunOnce(ctx); err != nil {
			s.logger.Error("Scheduled aggregation run failed", logger.ErrorField(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to register aggregation cron %q: %w", s.cfg.Aggregator.CronSpec, err)
	}

	s.cron.Start()
	s.logger.Info("Aggregation scheduler started", logger.StringField("cron", s.cfg.Aggregator.CronSpec))
	return nil
}

func (s *scheduler) RunOnce(ctx context.Context) error {
	bucketEnd := utils.TruncateToBucket(time.Now().UTC(), s.cfg.Aggregator.BucketDuration)

	result, signals, err := s.aggregator.AggregateBucket(ctx, bucketEnd)
	if err != nil {
		return err
	}

	if result.TickersFailed > 0 {
		s.logger.Warn("Aggregation run finished with failed tickers",
			logger.IntField("tickers_failed", result.TickersFailed),
			logger.Field("failed_tickers", result.FailedTickers),
		)
	}

	s.notify(signals)
	return nil
}

// notify pushes one alert per signal whose absolute score crosses the
// configured threshold. Delivery failures are logged and skipped so a
// flaky bot never blocks the aggregation loop.
func (s *scheduler) notify(signals []entity.Signal) {
	if s.notifier == nil {
		return
	}

	threshold := s.cfg.Aggregator.AlertScoreAbsMin
	for _, signal := range signals {
		if math.Abs(signal.Score) < threshold {
			continue
		}
		msg := alert.FormatSignalAlert(alert.SignalAlert{
			Ticker:    signal.Ticker,
			Timestamp: signal.Ts,
			Score:     signal.Score,
			Sentiment: signal.Sentiment,
			Novelty:   signal.Novelty,
			Velocity:  signal.Velocity,
			EventTags: signal.EventTags,
		})
		if err := s.notifier.SendMessage(msg); err != nil {
			s.logger.Error("Failed to send signal alert",
				logger.ErrorField(err),
				logger.StringField("ticker", signal.Ticker),
			)
		}
	}
}

func (s *scheduler) Stop() {
	cronCtx := s.cron.Stop()
	<-cronCtx.Done()
	s.logger.Info("Aggregation scheduler stopped")
}
