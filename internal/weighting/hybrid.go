package weighting

import (
	"github.com/parlayforge/parlayforge/internal/prediction"
)

// HybridStrategy blends the confidence and historical strategies with a
// configurable confidence share, then renormalizes the mix to sum to 1.0.
// Renormalization here is part of the strategy definition, not a repair of
// a broken invariant: both inputs are themselves valid weight vectors.
type HybridStrategy struct {
	confidence      *ConfidenceStrategy
	historical      *HistoricalStrategy
	confidenceShare float64
}

// ID returns the strategy identifier
func (s *HybridStrategy) ID() string { return StrategyHybrid }

// ComputeWeights implements Strategy
func (s *HybridStrategy) ComputeWeights(preds []prediction.Prediction, ctx Context) (map[string]float64, error) {
	if len(preds) == 0 {
		return nil, prediction.ErrNoAgentResponse
	}
	if w, ok := singleResponder(preds); ok {
		return w, nil
	}

	confW, err := s.confidence.ComputeWeights(preds, ctx)
	if err != nil {
		return nil, err
	}
	histW, err := s.historical.ComputeWeights(preds, ctx)
	if err != nil {
		return nil, err
	}

	mixed := make(map[string]float64, len(preds))
	total := 0.0
	for _, p := range preds {
		w := s.confidenceShare*confW[p.AgentID] + (1.0-s.confidenceShare)*histW[p.AgentID]
		mixed[p.AgentID] = w
		total += w
	}

	for agent := range mixed {
		mixed[agent] /= total
	}
	return mixed, nil
}
