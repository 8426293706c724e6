package config

import (
	"time"

	"market-pulse/internal/ingestor/linker"
	"market-pulse/pkg/config"
)

// Ingestor holds ingestion pipeline configuration.
type Ingestor struct {
	MaxConcurrent            int           `mapstructure:"max_concurrent"`
	RedisStreamIngestTimeout time.Duration `mapstructure:"redis_stream_ingest_timeout"`
	PersistMaxRetries        int           `mapstructure:"persist_max_retries"`
	AliasMapCacheTTL         time.Duration `mapstructure:"alias_map_cache_ttl"`
	SkipSentimentForSources  []string      `mapstructure:"skip_sentiment_for_sources"`
	RetentionDays            int           `mapstructure:"retention_days"`
}

// Collector holds RSS/GDELT feed collection configuration.
type Collector struct {
	Feeds              []Feed        `mapstructure:"feeds"`
	FetchInterval      time.Duration `mapstructure:"fetch_interval"`
	MaxConcurrent      int           `mapstructure:"max_concurrent"`
	MaxItemAgeDays     int           `mapstructure:"max_item_age_days"`
	BlacklistedDomains []string      `mapstructure:"blacklisted_domains"`
}

// Feed describes one collected feed endpoint.
type Feed struct {
	URL    string `mapstructure:"url"`
	Source string `mapstructure:"source"`
	Lang   string `mapstructure:"lang"`
}

// Model holds the external sentiment/embedding model configuration.
type Model struct {
	Provider            string `mapstructure:"provider"`
	APIKey              string `mapstructure:"api_key"`
	SentimentModel      string `mapstructure:"sentiment_model"`
	EmbeddingModel      string `mapstructure:"embedding_model"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
}

// Credibility holds the source trust scoring constants.
type Credibility struct {
	SourceBase   map[string]float64 `mapstructure:"source_base"`
	UnknownBase  float64            `mapstructure:"unknown_base"`
	AuthorBonus  float64            `mapstructure:"author_bonus"`
	LicenseBonus float64            `mapstructure:"license_bonus"`
	HTTPSBonus   float64            `mapstructure:"https_bonus"`
}

// Config holds the full configuration for the ingestion service.
type Config struct {
	App         config.App         `mapstructure:"app"`
	Logger      config.Logger      `mapstructure:"logger"`
	Database    config.Database    `mapstructure:"database"`
	Redis       config.Redis       `mapstructure:"redis"`
	Ingestor    Ingestor           `mapstructure:"ingestor"`
	Collector   Collector          `mapstructure:"collector"`
	Model       Model              `mapstructure:"model"`
	Credibility Credibility        `mapstructure:"credibility"`
	Linker      linker.Confidences `mapstructure:"linker"`
}

// Load loads the ingestion service configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
