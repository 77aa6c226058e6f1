// Package prediction defines the core data model shared by the sub-agents,
// the weighting strategies and the head aggregator.
package prediction

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Sport identifies a sub-agent specialization
type Sport string

const (
	SportBaseball   Sport = "baseball"
	SportBasketball Sport = "basketball"
	SportFootball   Sport = "football"
	SportHockey     Sport = "hockey"
)

// AllSports lists every supported sport in canonical order
func AllSports() []Sport {
	return []Sport{SportBaseball, SportBasketball, SportFootball, SportHockey}
}

// ParseSport validates and normalizes a sport identifier
func ParseSport(s string) (Sport, error) {
	switch Sport(s) {
	case SportBaseball, SportBasketball, SportFootball, SportHockey:
		return Sport(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSport, s)
	}
}

// Query is a single prediction request as seen by a sub-agent
type Query struct {
	RequestID uuid.UUID `json:"request_id"`
	Text      string    `json:"text"`    // Normalized query text (teams, matchup, market)
	Subject   string    `json:"subject"` // Teams/players the query is about
	UserID    string    `json:"user_id,omitempty"`
}

// Prediction is a single sub-agent's output for a query.
// Immutable once produced.
type Prediction struct {
	Sport       Sport     `json:"sport"`
	AgentID     string    `json:"agent_id"`
	Subject     string    `json:"subject"`
	Pick        string    `json:"pick"`
	Confidence  float64   `json:"confidence"` // 0.0-1.0
	Reasoning   string    `json:"reasoning"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Validate enforces the confidence-range invariant on sub-agent output
func (p *Prediction) Validate() error {
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("%w: agent %s reported confidence %f", ErrInvalidPrediction, p.AgentID, p.Confidence)
	}
	if p.Pick == "" {
		return fmt.Errorf("%w: agent %s returned empty pick", ErrInvalidPrediction, p.AgentID)
	}
	return nil
}

// WeightedPrediction pairs a prediction with the weight assigned by the
// active strategy for one request. Weights are recomputed per request and
// never persisted on the prediction itself.
type WeightedPrediction struct {
	Prediction
	Weight float64 `json:"weight"` // 0.0-1.0, sums to 1.0 across the request
}

// Pick is one contribution inside a combined recommendation
type Pick struct {
	Sport              Sport   `json:"sport"`
	AgentID            string  `json:"agent_id"`
	Pick               string  `json:"pick"`
	Confidence         float64 `json:"confidence"`
	ContributionWeight float64 `json:"contribution_weight"`
}

// CombinedRecommendation is the head aggregator's merged output.
// Derived and recomputable; never mutated after creation.
type CombinedRecommendation struct {
	RequestID         uuid.UUID `json:"request_id"`
	Picks             []Pick    `json:"picks"` // Ordered by descending contribution weight
	OverallConfidence float64   `json:"overall_confidence"`
	Reasoning         string    `json:"reasoning"`
	Strategy          string    `json:"strategy"`
	ExcludedSports    []Sport   `json:"excluded_sports,omitempty"` // Requested but non-responsive
	GeneratedAt       time.Time `json:"generated_at"`
}

// Outcome is a caller-reported ground truth for a past request.
// Discarded after the accuracy records are updated.
type Outcome struct {
	RequestID    uuid.UUID `json:"request_id"`
	Sport        Sport     `json:"sport"`
	AgentID      string    `json:"agent_id"`
	ActualResult string    `json:"actual_result"`
	Correct      bool      `json:"correct"`
	ReportedAt   time.Time `json:"reported_at"`
}

// AgentHealth is the sub-agent health contract
type AgentHealth struct {
	Available       bool    `json:"available"`
	RollingAccuracy float64 `json:"rolling_accuracy"`
}

// AccuracyRecord tracks per (sport, agent) historical correctness.
// Mutated only by the outcome learner.
type AccuracyRecord struct {
	Sport              Sport   `json:"sport"`
	AgentID            string  `json:"agent_id"`
	TotalPredictions   int64   `json:"total_predictions"`
	CorrectPredictions int64   `json:"correct_predictions"`
	RollingAccuracy    float64 `json:"rolling_accuracy"`
}
