package dto

import "fmt"

const probSumTolerance = 0.01

// EmbeddingDims is the vector size produced by the default sentence model.
const EmbeddingDims = 384

// Sentiment carries the output contract of the sentiment model: three class
// probabilities summing to 1 and a signed score in [-1,1].
type Sentiment struct {
	ProbPos  float64 `json:"prob_pos"`
	ProbNeg  float64 `json:"prob_neg"`
	ProbNeu  float64 `json:"prob_neu"`
	Score    float64 `json:"score"`
	Model    string  `json:"model"`
	ModelRev string  `json:"model_rev"`
}

// Validate rejects sentiment outputs violating the model contract.
func (s *Sentiment) Validate() error {
	for name, p := range map[string]float64{
		"prob_pos": s.ProbPos,
		"prob_neg": s.ProbNeg,
		"prob_neu": s.ProbNeu,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("%w: %s %f out of [0,1]", ErrValidation, name, p)
		}
	}

	sum := s.ProbPos + s.ProbNeg + s.ProbNeu
	if diff := sum - 1.0; diff > probSumTolerance || diff < -probSumTolerance {
		return fmt.Errorf("%w: probabilities sum to %f, expected 1.0", ErrValidation, sum)
	}
	if s.Score < -1 || s.Score > 1 {
		return fmt.Errorf("%w: sentiment score %f out of [-1,1]", ErrValidation, s.Score)
	}
	return nil
}

// EmbeddingVector carries one article embedding with its declared dimension.
type EmbeddingVector struct {
	Vector []float64 `json:"vector"`
	Model  string    `json:"model"`
	Dims   int       `json:"dims"`
}

// Validate rejects dimension mismatches between the declared dims and the
// actual vector length.
func (e *EmbeddingVector) Validate() error {
	if e.Dims != len(e.Vector) {
		return fmt.Errorf("%w: dims %d does not match vector length %d", ErrValidation, e.Dims, len(e.Vector))
	}
	if e.Dims != EmbeddingDims {
		return fmt.Errorf("%w: expected %d-dim embedding, got %d", ErrValidation, EmbeddingDims, e.Dims)
	}
	return nil
}
