package weighting

import (
	"github.com/parlayforge/parlayforge/internal/prediction"
)

// ConfidenceStrategy weights each agent proportionally to its reported
// confidence. All-zero confidence degrades to an equal split.
type ConfidenceStrategy struct{}

// ID returns the strategy identifier
func (s *ConfidenceStrategy) ID() string { return StrategyConfidence }

// ComputeWeights implements Strategy
func (s *ConfidenceStrategy) ComputeWeights(preds []prediction.Prediction, _ Context) (map[string]float64, error) {
	if len(preds) == 0 {
		return nil, prediction.ErrNoAgentResponse
	}
	if w, ok := singleResponder(preds); ok {
		return w, nil
	}

	return normalize(preds, func(p prediction.Prediction) float64 {
		return p.Confidence
	}), nil
}
