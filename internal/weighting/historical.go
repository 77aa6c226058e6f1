package weighting

import (
	"github.com/parlayforge/parlayforge/internal/prediction"
)

// HistoricalStrategy weights each agent proportionally to its rolling
// accuracy for its sport. Agents with no recorded history get the
// configured prior so new agents are neither zero-weighted nor divided by.
type HistoricalStrategy struct{}

// ID returns the strategy identifier
func (s *HistoricalStrategy) ID() string { return StrategyHistorical }

// ComputeWeights implements Strategy
func (s *HistoricalStrategy) ComputeWeights(preds []prediction.Prediction, ctx Context) (map[string]float64, error) {
	if len(preds) == 0 {
		return nil, prediction.ErrNoAgentResponse
	}
	if w, ok := singleResponder(preds); ok {
		return w, nil
	}

	return normalize(preds, func(p prediction.Prediction) float64 {
		if ctx.Accuracy != nil {
			if rec, ok := ctx.Accuracy.Lookup(p.Sport, p.AgentID); ok {
				return rec.RollingAccuracy
			}
		}
		return ctx.Prior
	}), nil
}
