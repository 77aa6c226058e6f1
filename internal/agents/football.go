package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/parlayforge/parlayforge/internal/prediction"
)

// FootballAgent predicts football matchups using the shared strength model
// with a pronounced home edge.
type FootballAgent struct {
	*BaseAgent
	model strengthModel
}

// NewFootballAgent creates the football sub-agent
func NewFootballAgent(prior, ewmaAlpha float64, log zerolog.Logger) *FootballAgent {
	return &FootballAgent{
		BaseAgent: NewBaseAgent("football-agent", prediction.SportFootball, prior, ewmaAlpha, log),
		model: strengthModel{
			homeEdge: 0.07,
			spread:   5.0,
			floor:    0.53,
			ceiling:  0.85,
		},
	}
}

// Predict produces a pick for a football matchup
func (a *FootballAgent) Predict(ctx context.Context, query prediction.Query) (*prediction.Prediction, error) {
	start := time.Now()
	defer a.observe(start)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mu, err := parseMatchup(query.Subject)
	if err != nil {
		return nil, fmt.Errorf("football agent: %w", err)
	}

	side, prob, confidence := a.model.pick(mu)

	p := &prediction.Prediction{
		Sport:      prediction.SportFootball,
		AgentID:    a.ID(),
		Subject:    query.Subject,
		Pick:       fmt.Sprintf("%s ML", side),
		Confidence: confidence,
		Reasoning: fmt.Sprintf(
			"%s favored at %.0f%% over %s; efficiency ratings plus home-field adjustment",
			side, prob*100, otherSide(mu, side)),
		GeneratedAt: time.Now().UTC(),
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
