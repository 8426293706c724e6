package config

import (
	"time"

	"market-pulse/pkg/config"
)

// Scoring holds the signal composite scoring configuration.
type Scoring struct {
	WeightSentiment      float64            `mapstructure:"weight_sentiment"`
	WeightNovelty        float64            `mapstructure:"weight_novelty"`
	WeightVelocity       float64            `mapstructure:"weight_velocity"`
	EventTagBoosts       map[string]float64 `mapstructure:"event_tag_boosts"`
	NoveltyLookbackHours int                `mapstructure:"novelty_lookback_hours"`
	VelocityBaselineDays int                `mapstructure:"velocity_baseline_days"`
	RisingVelocityZ      float64            `mapstructure:"rising_velocity_z"`
	FreshNovelty         float64            `mapstructure:"fresh_novelty"`
}

// Defaults fills unset scoring values with the stock configuration.
func (s *Scoring) Defaults() {
	if s.WeightSentiment == 0 && s.WeightNovelty == 0 && s.WeightVelocity == 0 {
		s.WeightSentiment = 0.4
		s.WeightNovelty = 0.3
		s.WeightVelocity = 0.3
	}
	if s.NoveltyLookbackHours <= 0 {
		s.NoveltyLookbackHours = 24
	}
	if s.VelocityBaselineDays <= 0 {
		s.VelocityBaselineDays = 30
	}
	if s.RisingVelocityZ == 0 {
		s.RisingVelocityZ = 2.0
	}
	if s.FreshNovelty == 0 {
		s.FreshNovelty = 0.8
	}
}

// Aggregator holds aggregation run configuration.
type Aggregator struct {
	BucketDuration    time.Duration `mapstructure:"bucket_duration"`
	CronSpec          string        `mapstructure:"cron_spec"`
	MaxConcurrent     int           `mapstructure:"max_concurrent"`
	PersistMaxRetries int           `mapstructure:"persist_max_retries"`
	AlertScoreAbsMin  float64       `mapstructure:"alert_score_abs_min"`
}

// Telegram holds configuration for the alert notifier.
type Telegram struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// Config holds the full configuration for the aggregation service.
type Config struct {
	App        config.App      `mapstructure:"app"`
	Logger     config.Logger   `mapstructure:"logger"`
	Database   config.Database `mapstructure:"database"`
	Redis      config.Redis    `mapstructure:"redis"`
	API        config.API      `mapstructure:"api"`
	Scoring    Scoring         `mapstructure:"scoring"`
	Aggregator Aggregator      `mapstructure:"aggregator"`
	Telegram   Telegram        `mapstructure:"telegram"`
}

// Load loads the aggregation service configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	cfg.Scoring.Defaults()
	if cfg.Aggregator.BucketDuration <= 0 {
		cfg.Aggregator.BucketDuration = time.Hour
	}
	return &cfg, nil
}
