package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/parlayforge/parlayforge/internal/prediction"
)

// HockeyAgent predicts hockey matchups. Hockey is close to a coin flip on
// any given night, so the model is shallow and capped low.
type HockeyAgent struct {
	*BaseAgent
	model strengthModel
}

// NewHockeyAgent creates the hockey sub-agent
func NewHockeyAgent(prior, ewmaAlpha float64, log zerolog.Logger) *HockeyAgent {
	return &HockeyAgent{
		BaseAgent: NewBaseAgent("hockey-agent", prediction.SportHockey, prior, ewmaAlpha, log),
		model: strengthModel{
			homeEdge: 0.03,
			spread:   3.5,
			floor:    0.51,
			ceiling:  0.72,
		},
	}
}

// Predict produces a pick for a hockey matchup
func (a *HockeyAgent) Predict(ctx context.Context, query prediction.Query) (*prediction.Prediction, error) {
	start := time.Now()
	defer a.observe(start)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mu, err := parseMatchup(query.Subject)
	if err != nil {
		return nil, fmt.Errorf("hockey agent: %w", err)
	}

	side, prob, confidence := a.model.pick(mu)

	p := &prediction.Prediction{
		Sport:      prediction.SportHockey,
		AgentID:    a.ID(),
		Subject:    query.Subject,
		Pick:       fmt.Sprintf("%s ML", side),
		Confidence: confidence,
		Reasoning: fmt.Sprintf(
			"%s edges %s at %.0f%% on goal-differential ratings; tight margin typical for hockey",
			side, otherSide(mu, side), prob*100),
		GeneratedAt: time.Now().UTC(),
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
