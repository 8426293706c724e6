package entity

import "time"

// Timeframe values accepted for price bars.
const (
	Timeframe1d = "1d"
	Timeframe1h = "1h"
	Timeframe1m = "1m"
)

// PriceBar is one OHLCV observation keyed by (ticker, ts, timeframe).
// The series is append-only; rows are only removed by explicit correction.
type PriceBar struct {
	Ticker    string    `gorm:"primaryKey;size:10" json:"ticker"`
	Ts        time.Time `gorm:"primaryKey" json:"ts"`
	Timeframe string    `gorm:"primaryKey" json:"timeframe"`
	O         float64   `json:"o"`
	H         float64   `json:"h"`
	L         float64   `json:"l"`
	C         float64   `json:"c"`
	V         int64     `json:"v"`
}

// TableName specifies the table name for the PriceBar model.
func (PriceBar) TableName() string {
	return "price_bar"
}

// ValidTimeframe reports whether tf is one of the accepted timeframes.
func ValidTimeframe(tf string) bool {
	switch tf {
	case Timeframe1d, Timeframe1h, Timeframe1m:
		return true
	}
	return false
}
