package consumer

import (
	"context"
	"sync"
	"time"

	"market-pulse/internal/aggregator/config"
	"market-pulse/internal/aggregator/scheduler"
	"market-pulse/pkg/common"
	"market-pulse/pkg/logger"
	"market-pulse/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// RedisConsumer listens for on-demand aggregation triggers on the Redis
// stream, complementing the cron-driven scheduler.
type RedisConsumer struct {
	cfg         *config.Config
	redisClient *redis.Client
	scheduler   scheduler.Scheduler
	logger      *logger.Logger
	stopChan    chan struct{}
	wg          sync.WaitGroup
}

// NewRedisConsumer creates a new RedisConsumer.
func NewRedisConsumer(
	cfg *config.Config,
	redisClient *redis.Client,
	sched scheduler.Scheduler,
	log *logger.Logger,
) *RedisConsumer {
	return &RedisConsumer{
		cfg:         cfg,
		redisClient: redisClient,
		scheduler:   sched,
		logger:      log,
		stopChan:    make(chan struct{}),
	}
}

// Start begins the consumer's processing loop.
func (c *RedisConsumer) Start(ctx context.Context) {
	c.logger.Info("Redis consumer started")
	c.RegisterStreamHandler(ctx, c.processTrigger, common.RedisStreamAggregationRun, c.cfg.Aggregator.BucketDuration)
}

func (c *RedisConsumer) RegisterStreamHandler(ctx context.Context, fn func(ctx context.Context), streamName string, timeout time.Duration) {
	c.logger.Info("Registering stream handler", logger.Field("stream", streamName))
	c.wg.Add(1)
	utils.GoSafe(func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Redis consumer stopping due to context cancellation")
				return
			case <-c.stopChan:
				c.logger.Info("Redis consumer stopping")
				return
			default:
				ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
				fn(ctxTimeout)
				cancel()
			}
		}
	})
}

// processTrigger consumes one trigger message and runs the aggregation for
// the most recent completed bucket.
func (c *RedisConsumer) processTrigger(ctx context.Context) {
	streams, err := c.redisClient.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    common.RedisStreamGroup,
		Consumer: common.RedisStreamConsumer,
		Streams:  []string{common.RedisStreamAggregationRun, ">"},
		Count:    1,
		Block:    2 * time.Second,
	}).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			c.logger.Error("Failed to read aggregation trigger stream", logger.ErrorField(err))
		}
		return
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			c.logger.Info("Aggregation trigger received", logger.StringField("message_id", message.ID))
			if err := c.scheduler.RunOnce(ctx); err != nil {
				c.logger.Error("Triggered aggregation run failed", logger.ErrorField(err))
				continue
			}
			if err := c.redisClient.XAck(ctx, common.RedisStreamAggregationRun, common.RedisStreamGroup, message.ID).Err(); err != nil {
				c.logger.Error("Failed to ack aggregation trigger", logger.ErrorField(err), logger.StringField("message_id", message.ID))
			}
		}
	}
}

// Stop gracefully shuts down the consumer.
func (c *RedisConsumer) Stop() {
	close(c.stopChan)
	c.wg.Wait()
	c.logger.Info("Redis consumer stopped")
}
