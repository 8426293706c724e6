package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"market-pulse/internal/ingestor/config"
	"market-pulse/internal/ingestor/dto"
	"market-pulse/pkg/common"
	"market-pulse/pkg/logger"
	"market-pulse/pkg/utils"

	"github.com/PuerkitoBio/goquery"
	"github.com/mauidude/go-readability"
	"github.com/mmcdole/gofeed"
	"github.com/redis/go-redis/v9"
)

// RSSCollector polls configured feeds and publishes raw ingest items onto
// the redis stream for the ingestion pipeline.
type RSSCollector struct {
	cfg         *config.Config
	logger      *logger.Logger
	redisClient *redis.Client
	client      *http.Client
	stopChan    chan struct{}
	wg          sync.WaitGroup
}

// NewRSSCollector creates a new RSSCollector.
func NewRSSCollector(cfg *config.Config, log *logger.Logger, redisClient *redis.Client) *RSSCollector {
	return &RSSCollector{
		cfg:         cfg,
		logger:      log,
		redisClient: redisClient,
		client:      &http.Client{Timeout: 30 * time.Second},
		stopChan:    make(chan struct{}),
	}
}

// Start begins the periodic collection loop.
func (c *RSSCollector) Start(ctx context.Context) {
	interval := c.cfg.Collector.FetchInterval
	if interval <= 0 {
		interval = time.Hour
	}

	c.wg.Add(1)
	utils.GoSafe(func() {
		defer c.wg.Done()

		c.CollectAll(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.CollectAll(ctx)
			case <-ctx.Done():
				c.logger.Info("Collector stopping due to context cancellation")
				return
			case <-c.stopChan:
				c.logger.Info("Collector stopping")
				return
			}
		}
	})
}

// CollectAll fetches every configured feed, bounded by the configured
// concurrency. A failing feed is logged and skipped, never fatal.
func (c *RSSCollector) CollectAll(ctx context.Context) {
	maxConcurrent := c.cfg.Collector.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	semaphore := make(chan struct{}, maxConcurrent)

	var wg sync.WaitGroup
	for _, feed := range c.cfg.Collector.Feeds {
		if !utils.ShouldContinue(ctx) {
			break
		}
		feed := feed
		wg.Add(1)
		utils.GoSafe(func() {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if err := c.collectFeed(ctx, feed); err != nil {
				c.logger.Error("Failed to collect feed", logger.ErrorField(err), logger.StringField("url", feed.URL))
			}
		})
	}
	wg.Wait()
}

func (c *RSSCollector) collectFeed(ctx context.Context, feed config.Feed) error {
	c.logger.Info("Processing feed", logger.StringField("url", feed.URL))

	fp := gofeed.NewParser()
	parsed, err := fp.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		return fmt.Errorf("failed to parse feed: %w", err)
	}

	maxAge := time.Duration(c.cfg.Collector.MaxItemAgeDays) * 24 * time.Hour
	published := 0

	for _, item := range parsed.Items {
		if !utils.ShouldContinue(ctx) {
			return ctx.Err()
		}
		if item.Link == "" || item.PublishedParsed == nil {
			continue
		}
		if maxAge > 0 && time.Since(*item.PublishedParsed) > maxAge {
			continue
		}

		parsedURL, err := url.Parse(item.Link)
		if err != nil {
			c.logger.Warn("Skipping item with unparseable link", logger.StringField("link", item.Link))
			continue
		}
		if utils.ContainsString(c.cfg.Collector.BlacklistedDomains, parsedURL.Hostname()) {
			c.logger.Warn("Skip item from blacklisted domain", logger.StringField("domain", parsedURL.Hostname()))
			continue
		}

		text, err := c.extractContent(ctx, item.Link)
		if err != nil {
			c.logger.Warn("Failed to extract content, using item description", logger.ErrorField(err), logger.StringField("link", item.Link))
			text = item.Description
		}

		ingestItem := dto.IngestItem{
			Source:      feed.Source,
			SourceID:    item.GUID,
			URL:         item.Link,
			PublishedAt: item.PublishedParsed.UTC(),
			RetrievedAt: time.Now().UTC(),
			Title:       item.Title,
			Text:        text,
			Lang:        feed.Lang,
			Meta:        map[string]string{"feed_url": feed.URL},
		}
		if len(item.Authors) > 0 {
			ingestItem.Author = item.Authors[0].Name
		}
		truncateToLimits(&ingestItem)

		if err := c.publish(ctx, ingestItem); err != nil {
			c.logger.Error("Failed to publish ingest item", logger.ErrorField(err), logger.StringField("link", item.Link))
			continue
		}
		published++
	}

	c.logger.Info("Feed collected",
		logger.StringField("url", feed.URL),
		logger.IntField("items_total", len(parsed.Items)),
		logger.IntField("items_published", published),
	)
	return nil
}

// truncateToLimits clamps title and text to the ingest field limits so an
// oversized feed item is published truncated rather than rejected downstream.
func truncateToLimits(item *dto.IngestItem) {
	if len(item.Title) > dto.MaxTitleLen {
		item.Title = item.Title[:dto.MaxTitleLen]
	}
	if len(item.Text) > dto.MaxTextLen {
		item.Text = item.Text[:dto.MaxTextLen]
	}
}

// extractContent downloads the page and pulls the readable article body.
func (c *RSSCollector) extractContent(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", link, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch content, status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	doc, err := readability.NewDocument(string(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse content: %w", err)
	}

	docHTML, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(doc.Content())))
	if err != nil {
		return "", fmt.Errorf("failed to parse extracted content: %w", err)
	}

	content := strings.Join(strings.Fields(docHTML.Text()), " ")
	return utils.CleanToValidUTF8(content), nil
}

func (c *RSSCollector) publish(ctx context.Context, item dto.IngestItem) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal ingest item: %w", err)
	}

	return c.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: common.RedisStreamIngestItem,
		Values: map[string]interface{}{"payload": payload},
		MaxLen: c.cfg.Redis.StreamMaxLen,
	}).Err()
}

// Stop gracefully shuts down the collector.
func (c *RSSCollector) Stop() {
	close(c.stopChan)
	c.wg.Wait()
	c.logger.Info("Collector stopped")
}
