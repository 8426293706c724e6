package entity

import (
	"time"

	"github.com/lib/pq"
)

// Ticker is the reference entity for a tradable symbol.
type Ticker struct {
	Symbol    string         `gorm:"primaryKey;size:10" json:"symbol"`
	Name      string         `json:"name"`
	Exchange  string         `json:"exchange"`
	CIK       string         `json:"cik"`
	Aliases   pq.StringArray `gorm:"type:text[]" json:"aliases"`
	ValidFrom *time.Time     `json:"valid_from,omitempty"`
	ValidTo   *time.Time     `json:"valid_to,omitempty"`
}

// TableName specifies the table name for the Ticker model.
func (Ticker) TableName() string {
	return "ticker"
}

// IsActive reports whether the ticker is valid at the given instant. A nil
// bound is open-ended.
func (t Ticker) IsActive(asOf time.Time) bool {
	if t.ValidFrom != nil && t.ValidFrom.After(asOf) {
		return false
	}
	if t.ValidTo != nil && !t.ValidTo.After(asOf) {
		return false
	}
	return true
}
