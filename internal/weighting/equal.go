package weighting

import (
	"github.com/parlayforge/parlayforge/internal/prediction"
)

// EqualStrategy assigns uniform 1/n weights. It is the default strategy
// and the fallback when other strategies have no data to work with.
type EqualStrategy struct{}

// ID returns the strategy identifier
func (s *EqualStrategy) ID() string { return StrategyEqual }

// ComputeWeights implements Strategy
func (s *EqualStrategy) ComputeWeights(preds []prediction.Prediction, _ Context) (map[string]float64, error) {
	if len(preds) == 0 {
		return nil, prediction.ErrNoAgentResponse
	}

	weights := make(map[string]float64, len(preds))
	for _, p := range preds {
		weights[p.AgentID] = 1.0 / float64(len(preds))
	}
	return weights, nil
}
