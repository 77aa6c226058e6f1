// Package weighting converts a set of sub-agent predictions into normalized
// per-agent contribution weights under a pluggable policy.
package weighting

import (
	"fmt"
	"math"

	"github.com/parlayforge/parlayforge/internal/prediction"
)

// Strategy identifiers accepted on a request
const (
	StrategyConfidence     = "confidence"
	StrategyHistorical     = "historical"
	StrategyUserPreference = "user_preference"
	StrategyHybrid         = "hybrid"
	StrategyEqual          = "equal"
)

// weightTolerance is the floating tolerance on the weight-sum invariant
const weightTolerance = 1e-6

// AccuracyProvider exposes the learner's accuracy table to the historical
// and hybrid strategies. Lookup returns false when the (sport, agent) pair
// has no recorded history.
type AccuracyProvider interface {
	Lookup(sport prediction.Sport, agentID string) (prediction.AccuracyRecord, bool)
}

// Context carries the per-request inputs a strategy may consult
type Context struct {
	UserID   string
	Accuracy AccuracyProvider
	Prior    float64 // Accuracy assumed for agents with no history
}

// Strategy computes per-agent weights for one request. The returned map is
// keyed by agent ID and must sum to 1.0 within tolerance; the aggregator
// verifies this and treats a violation as a strategy bug.
type Strategy interface {
	ID() string
	ComputeWeights(preds []prediction.Prediction, ctx Context) (map[string]float64, error)
}

// Registry holds the closed set of strategies available per request
type Registry struct {
	strategies map[string]Strategy
	defaultID  string
}

// RegistryConfig configures strategy construction
type RegistryConfig struct {
	DefaultStrategy  string
	HistoricalPrior  float64
	HybridConfidence float64 // Confidence share of the hybrid mix
}

// NewRegistry builds the five spec'd strategies
func NewRegistry(cfg RegistryConfig, prefs *PreferenceStore) *Registry {
	equal := &EqualStrategy{}
	confidence := &ConfidenceStrategy{}
	historical := &HistoricalStrategy{}

	r := &Registry{
		strategies: map[string]Strategy{
			StrategyEqual:          equal,
			StrategyConfidence:     confidence,
			StrategyHistorical:     historical,
			StrategyUserPreference: &UserPreferenceStrategy{prefs: prefs, fallback: equal},
			StrategyHybrid: &HybridStrategy{
				confidence:      confidence,
				historical:      historical,
				confidenceShare: cfg.HybridConfidence,
			},
		},
		defaultID: cfg.DefaultStrategy,
	}
	return r
}

// Register adds or replaces a strategy under its own ID
func (r *Registry) Register(s Strategy) {
	r.strategies[s.ID()] = s
}

// Get resolves a strategy by ID; an empty ID selects the configured default
func (r *Registry) Get(id string) (Strategy, error) {
	if id == "" {
		id = r.defaultID
	}
	s, ok := r.strategies[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", prediction.ErrUnknownStrategy, id)
	}
	return s, nil
}

// IDs returns the registered strategy identifiers
func (r *Registry) IDs() []string {
	return []string{StrategyConfidence, StrategyHistorical, StrategyUserPreference, StrategyHybrid, StrategyEqual}
}

// ValidateWeights enforces the weight-sum invariant. It never normalizes:
// a bad sum is a strategy bug and must surface, not be papered over.
func ValidateWeights(weights map[string]float64) error {
	if len(weights) == 0 {
		return prediction.ErrNoAgentResponse
	}

	sum := 0.0
	for agent, w := range weights {
		if w < 0 || w > 1 {
			return fmt.Errorf("%w: weight %f for agent %s outside [0,1]", prediction.ErrWeightInvariant, w, agent)
		}
		sum += w
	}

	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("%w: weights sum to %.9f", prediction.ErrWeightInvariant, sum)
	}
	return nil
}

// singleResponder implements the shared edge case: exactly one responding
// agent gets weight 1.0 regardless of strategy.
func singleResponder(preds []prediction.Prediction) (map[string]float64, bool) {
	if len(preds) != 1 {
		return nil, false
	}
	return map[string]float64{preds[0].AgentID: 1.0}, true
}

// normalize scales raw non-negative scores into weights summing to 1.0.
// A zero total falls back to an equal split - the score source had nothing
// to distinguish the agents.
func normalize(preds []prediction.Prediction, score func(prediction.Prediction) float64) map[string]float64 {
	total := 0.0
	for _, p := range preds {
		total += score(p)
	}

	weights := make(map[string]float64, len(preds))
	if total <= 0 {
		for _, p := range preds {
			weights[p.AgentID] = 1.0 / float64(len(preds))
		}
		return weights
	}

	for _, p := range preds {
		weights[p.AgentID] = score(p) / total
	}
	return weights
}
