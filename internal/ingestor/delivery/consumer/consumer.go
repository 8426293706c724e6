package consumer

import (
	"context"
	"sync"
	"time"

	"market-pulse/internal/ingestor/config"
	"market-pulse/internal/ingestor/service"
	"market-pulse/pkg/common"
	"market-pulse/pkg/logger"
	"market-pulse/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// RedisConsumer manages consumption of ingest items from the Redis stream.
type RedisConsumer struct {
	cfg           *config.Config
	redisClient   *redis.Client
	streamService service.StreamService
	ingestService service.IngestService
	logger        *logger.Logger
	stopChan      chan struct{}
	wg            sync.WaitGroup
}

// NewRedisConsumer creates a new RedisConsumer.
func NewRedisConsumer(
	cfg *config.Config,
	redisClient *redis.Client,
	streamService service.StreamService,
	ingestService service.IngestService,
	log *logger.Logger,
) *RedisConsumer {
	return &RedisConsumer{
		cfg:           cfg,
		redisClient:   redisClient,
		streamService: streamService,
		ingestService: ingestService,
		logger:        log,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the consumer's processing loops.
func (c *RedisConsumer) Start(ctx context.Context) {
	c.logger.Info("Redis consumer started")
	c.RegisterStreamHandler(ctx, c.streamService.ProcessItem, common.RedisStreamIngestItem, c.cfg.Ingestor.RedisStreamIngestTimeout)

	if c.cfg.Ingestor.RetentionDays > 0 {
		c.RegisterTickerHandler(ctx, c.cleanupOldArticles, 24*time.Hour, time.Hour, "article-retention")
	}
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

func (c *RedisConsumer) RegisterTickerHandler(ctx context.Context, fn func(ctx context.Context), interval time.Duration, timeout time.Duration, name string) {
	c.logger.Info("Registering ticker handler",
		logger.Field("name", name),
		logger.Field("interval", interval),
		logger.Field("timeout", timeout))
	c.wg.Add(1)
	utils.GoSafe(func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
				fn(ctxTimeout)
				cancel()
			case <-ctx.Done():
				c.logger.Info("Ticker handler stopping due to context cancellation", logger.Field("name", name))
				return
			case <-c.stopChan:
				c.logger.Info("Ticker handler stopping", logger.Field("name", name))
				return
			}
		}
	})
}

func (c *RedisConsumer) cleanupOldArticles(ctx context.Context) {
	deleted, err := c.ingestService.DeleteOldArticles(ctx)
	if err != nil {
		c.logger.Error("Failed to delete old articles", logger.ErrorField(err))
		return
	}
	if deleted > 0 {
		c.logger.Info("Deleted old articles", logger.Field("count", deleted))
	}
}

// Stop gracefully shuts down the consumer.
func (c *RedisConsumer) Stop() {
	close(c.stopChan)
	c.wg.Wait()
	c.logger.Info("Redis consumer stopped")
}
