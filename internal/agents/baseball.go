package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/parlayforge/parlayforge/internal/prediction"
)

// BaseballAgent predicts moneyline winners for baseball matchups.
// Baseball outcomes carry the most game-to-game variance of the four
// sports, so the model is tuned toward modest confidence.
type BaseballAgent struct {
	*BaseAgent
	model strengthModel
}

// NewBaseballAgent creates the baseball sub-agent
func NewBaseballAgent(prior, ewmaAlpha float64, log zerolog.Logger) *BaseballAgent {
	return &BaseballAgent{
		BaseAgent: NewBaseAgent("baseball-agent", prediction.SportBaseball, prior, ewmaAlpha, log),
		model: strengthModel{
			homeEdge: 0.04,
			spread:   4.0,
			floor:    0.52,
			ceiling:  0.78,
		},
	}
}

// Predict produces a moneyline pick for a baseball matchup
func (a *BaseballAgent) Predict(ctx context.Context, query prediction.Query) (*prediction.Prediction, error) {
	start := time.Now()
	defer a.observe(start)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mu, err := parseMatchup(query.Subject)
	if err != nil {
		return nil, fmt.Errorf("baseball agent: %w", err)
	}

	side, prob, confidence := a.model.pick(mu)

	p := &prediction.Prediction{
		Sport:      prediction.SportBaseball,
		AgentID:    a.ID(),
		Subject:    query.Subject,
		Pick:       fmt.Sprintf("%s ML", side),
		Confidence: confidence,
		Reasoning: fmt.Sprintf(
			"%s projected to win %.0f%% of simulated matchups against %s; pitching-adjusted rating edge with home factor applied",
			side, prob*100, otherSide(mu, side)),
		GeneratedAt: time.Now().UTC(),
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// otherSide returns the matchup side that was not picked
func otherSide(mu matchup, picked string) string {
	if picked == mu.Home {
		return mu.Away
	}
	return mu.Home
}
