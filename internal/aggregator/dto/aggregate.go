package dto

import "time"

// ArticleInput is one qualifying article feeding a ticker's bucket
// aggregation. Sentiment is nil when no score is available for the article.
type ArticleInput struct {
	ArticleID   int64     `json:"article_id"`
	PublishedAt time.Time `json:"published_at"`
	Sentiment   *float64  `json:"sentiment,omitempty"`
	Confidence  float64   `json:"confidence"`
	Embedding   []float64 `json:"-"`
}

// BucketResult summarizes one aggregation run across tickers.
type BucketResult struct {
	BucketStart    time.Time `json:"bucket_start"`
	BucketEnd      time.Time `json:"bucket_end"`
	TickersTotal   int       `json:"tickers_total"`
	SignalsEmitted int       `json:"signals_emitted"`
	TickersSkipped int       `json:"tickers_skipped"`
	TickersFailed  int       `json:"tickers_failed"`
	FailedTickers  []string  `json:"failed_tickers,omitempty"`
}
