package credibility

import (
	"strings"

	"market-pulse/internal/ingestor/dto"
)

// Weights holds the tunable scoring constants. Base scores are keyed by
// source; the adjustments are additive and the result is clamped to [0,100].
type Weights struct {
	SourceBase   map[string]float64
	UnknownBase  float64
	AuthorBonus  float64
	LicenseBonus float64
	HTTPSBonus   float64
}

// DefaultWeights returns the stock scoring constants.
func DefaultWeights() Weights {
	return Weights{
		SourceBase: map[string]float64{
			dto.SourceSEC:        90,
			dto.SourceGDELT:      70,
			dto.SourceStocktwits: 40,
			dto.SourceTwitter:    35,
			dto.SourceReddit:     30,
		},
		UnknownBase:  50,
		AuthorBonus:  5,
		LicenseBonus: 3,
		HTTPSBonus:   2,
	}
}

// Scorer computes source credibility. It is a pure function of its inputs.
type Scorer struct {
	weights Weights
}

// NewScorer creates a Scorer with the given weights. Zero-value weight maps
// fall back to the defaults.
func NewScorer(w Weights) *Scorer {
	if w.SourceBase == nil {
		w = DefaultWeights()
	}
	return &Scorer{weights: w}
}

// Score maps an ingest item to a trust score in [0,100].
func (s *Scorer) Score(item dto.IngestItem) float64 {
	score, ok := s.weights.SourceBase[item.Source]
	if !ok {
		score = s.weights.UnknownBase
	}

	if item.Author != "" {
		score += s.weights.AuthorBonus
	}
	if item.License != "" {
		score += s.weights.LicenseBonus
	}
	if strings.HasPrefix(item.URL, "https://") {
		score += s.weights.HTTPSBonus
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}
