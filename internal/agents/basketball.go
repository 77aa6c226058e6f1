package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/parlayforge/parlayforge/internal/prediction"
)

// BasketballAgent predicts basketball matchups. Favorites convert at a
// higher rate than in other sports, so the model is steeper and allows
// higher confidence.
type BasketballAgent struct {
	*BaseAgent
	model strengthModel
}

// NewBasketballAgent creates the basketball sub-agent
func NewBasketballAgent(prior, ewmaAlpha float64, log zerolog.Logger) *BasketballAgent {
	return &BasketballAgent{
		BaseAgent: NewBaseAgent("basketball-agent", prediction.SportBasketball, prior, ewmaAlpha, log),
		model: strengthModel{
			homeEdge: 0.06,
			spread:   6.0,
			floor:    0.55,
			ceiling:  0.90,
		},
	}
}

// Predict produces a pick for a basketball matchup
func (a *BasketballAgent) Predict(ctx context.Context, query prediction.Query) (*prediction.Prediction, error) {
	start := time.Now()
	defer a.observe(start)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mu, err := parseMatchup(query.Subject)
	if err != nil {
		return nil, fmt.Errorf("basketball agent: %w", err)
	}

	side, prob, confidence := a.model.pick(mu)

	p := &prediction.Prediction{
		Sport:      prediction.SportBasketball,
		AgentID:    a.ID(),
		Subject:    query.Subject,
		Pick:       fmt.Sprintf("%s ML", side),
		Confidence: confidence,
		Reasoning: fmt.Sprintf(
			"%s rated %.0f%% to beat %s on net-rating differential; home-court advantage included",
			side, prob*100, otherSide(mu, side)),
		GeneratedAt: time.Now().UTC(),
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
