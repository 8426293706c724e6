package entity

import (
	"time"

	"github.com/lib/pq"
)

// MaxSignalContributors caps how many contributing articles are stored per
// signal.
const MaxSignalContributors = 2

// Signal is one per-ticker, per-timestamp aggregate observation. Rows are
// append-only: a new aggregation run inserts fresh observations and never
// rewrites prior ones.
type Signal struct {
	ID            int64                `gorm:"primaryKey;autoIncrement" json:"id"`
	Ticker        string               `gorm:"size:10;not null;index:idx_signal_ticker_ts" json:"ticker"`
	Ts            time.Time            `gorm:"not null;index:idx_signal_ticker_ts" json:"ts"`
	Sentiment     *float64             `json:"sentiment,omitempty"`
	Novelty       *float64             `json:"novelty,omitempty"`
	Velocity      *float64             `json:"velocity,omitempty"`
	EventTags     pq.StringArray       `gorm:"type:text[]" json:"event_tags"`
	Score         float64              `json:"score"`
	CreatedAt     time.Time            `gorm:"autoCreateTime" json:"created_at"`
	Contributions []SignalContribution `gorm:"foreignKey:SignalID;constraint:OnDelete:CASCADE" json:"contributions,omitempty"`
}

// TableName specifies the table name for the Signal model.
func (Signal) TableName() string {
	return "signal"
}

// SignalContribution records that an article fed into a signal, ranked by
// contribution strength (rank 1 is strongest).
type SignalContribution struct {
	SignalID  int64 `gorm:"primaryKey" json:"signal_id"`
	ArticleID int64 `gorm:"primaryKey" json:"article_id"`
	Rank      int   `gorm:"not null" json:"rank"`
}

// TableName specifies the table name for the SignalContribution model.
func (SignalContribution) TableName() string {
	return "signal_contrib"
}
