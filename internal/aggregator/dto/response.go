package dto

import (
	"time"

	"market-pulse/internal/entity"
)

// ErrorResponse is the JSON body returned on request failures.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SignalResponse is the JSON representation of one signal point.
type SignalResponse struct {
	ID        int64                  `json:"id"`
	Ticker    string                 `json:"ticker"`
	Ts        time.Time              `json:"ts"`
	Sentiment *float64               `json:"sentiment"`
	Novelty   *float64               `json:"novelty"`
	Velocity  *float64               `json:"velocity"`
	EventTags []string               `json:"event_tags"`
	Score     float64                `json:"score"`
	Contribs  []ContributionResponse `json:"contributions,omitempty"`
}

// ContributionResponse identifies an article backing a signal, by rank.
type ContributionResponse struct {
	ArticleID int64 `json:"article_id"`
	Rank      int   `json:"rank"`
}

// AppendBarsRequest carries new OHLCV observations for one ticker.
type AppendBarsRequest struct {
	Timeframe string           `json:"timeframe"`
	Bars      []PriceBarUpload `json:"bars"`
}

// PriceBarUpload is one uploaded OHLCV observation.
type PriceBarUpload struct {
	Ts     time.Time `json:"ts"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// PriceBarResponse is the JSON representation of one OHLCV observation.
type PriceBarResponse struct {
	Ticker    string    `json:"ticker"`
	Ts        time.Time `json:"ts"`
	Timeframe string    `json:"timeframe"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// NewSignalResponse maps a signal entity to its API representation.
func NewSignalResponse(s *entity.Signal) SignalResponse {
	resp := SignalResponse{
		ID:        s.ID,
		Ticker:    s.Ticker,
		Ts:        s.Ts,
		Sentiment: s.Sentiment,
		Novelty:   s.Novelty,
		Velocity:  s.Velocity,
		EventTags: s.EventTags,
		Score:     s.Score,
	}
	for _, c := range s.Contributions {
		resp.Contribs = append(resp.Contribs, ContributionResponse{ArticleID: c.ArticleID, Rank: c.Rank})
	}
	return resp
}

// NewPriceBarResponse maps a price bar entity to its API representation.
func NewPriceBarResponse(b *entity.PriceBar) PriceBarResponse {
	return PriceBarResponse{
		Ticker:    b.Ticker,
		Ts:        b.Ts,
		Timeframe: b.Timeframe,
		Open:      b.O,
		High:      b.H,
		Low:       b.L,
		Close:     b.C,
		Volume:    b.V,
	}
}
