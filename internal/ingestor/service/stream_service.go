package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"market-pulse/internal/ingestor/dto"
	"market-pulse/pkg/common"
	"market-pulse/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// StreamService consumes raw ingest items from the redis stream.
type StreamService interface {
	ProcessItem(ctx context.Context)
}

// NewStreamService creates a new StreamService.
func NewStreamService(redisClient *redis.Client, ingestSvc IngestService, log *logger.Logger) StreamService {
	return &streamService{
		redisClient: redisClient,
		ingestSvc:   ingestSvc,
		logger:      log,
	}
}

type streamService struct {
	redisClient *redis.Client
	ingestSvc   IngestService
	logger      *logger.Logger
}

// ProcessItem dequeues and ingests a single item.
func (s *streamService) ProcessItem(ctx context.Context) {
	streams, err := s.redisClient.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    common.RedisStreamGroup,
		Consumer: common.RedisStreamConsumer,
		Streams:  []string{common.RedisStreamIngestItem, ">"},
		Count:    1,
		Block:    2 * time.Second,
	}).Result()

	if err != nil {
		// Context cancellation and empty reads are expected during shutdown
		// and idle periods.
		if err == context.Canceled || err == redis.Nil {
			return
		}
		s.logger.Error("Failed to read from ingest stream", logger.ErrorField(err))
		return
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return
	}

	message := streams[0].Messages[0]

	payload, ok := message.Values["payload"].(string)
	if !ok {
		s.logger.Error("field 'payload' not found or not a string in stream message", logger.Field("message_id", message.ID))
		s.ack(ctx, message.ID)
		return
	}

	var item dto.IngestItem
	if err := json.Unmarshal([]byte(payload), &item); err != nil {
		s.logger.Error("Failed to unmarshal ingest item", logger.ErrorField(err), logger.Field("message_id", message.ID))
		// Ack malformed messages so a poison pill cannot wedge the stream.
		s.ack(ctx, message.ID)
		return
	}

	article, err := s.ingestSvc.Ingest(ctx, item)
	if err != nil {
		if errors.Is(err, dto.ErrValidation) {
			// One bad item must not fail the run; reject it and move on.
			s.logger.Warn("Rejected invalid ingest item", logger.ErrorField(err), logger.StringField("url", item.URL))
			s.ack(ctx, message.ID)
			return
		}
		s.logger.Error("Failed to ingest item", logger.ErrorField(err), logger.StringField("url", item.URL))
		// Leave unacked so the pending-entries retry path can reclaim it.
		return
	}

	s.logger.Info("Ingested article",
		logger.Field("article_id", article.ID),
		logger.StringField("source", article.Source),
		logger.IntField("ticker_links", len(article.Tickers)),
	)
	s.ack(ctx, message.ID)
}

func (s *streamService) ack(ctx context.Context, messageID string) {
	if err := s.redisClient.XAck(ctx, common.RedisStreamIngestItem, common.RedisStreamGroup, messageID).Err(); err != nil {
		s.logger.Error("Failed to acknowledge message", logger.ErrorField(err), logger.Field("message_id", messageID))
	}
}
