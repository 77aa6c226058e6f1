package agents

import (
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// matchup is a parsed two-sided subject
type matchup struct {
	Home string
	Away string
}

// parseMatchup splits a subject like "Yankees vs Red Sox" or
// "Rangers @ Bruins" into home and away sides. With "@"/"at" the first
// side is the visitor; with "vs" the first side is treated as home.
func parseMatchup(subject string) (matchup, error) {
	s := strings.TrimSpace(subject)

	for _, sep := range []string{" @ ", " at "} {
		if parts := strings.SplitN(s, sep, 2); len(parts) == 2 {
			return matchup{
				Away: strings.TrimSpace(parts[0]),
				Home: strings.TrimSpace(parts[1]),
			}, nil
		}
	}

	for _, sep := range []string{" vs ", " vs. ", " v "} {
		if parts := strings.SplitN(s, sep, 2); len(parts) == 2 {
			return matchup{
				Home: strings.TrimSpace(parts[0]),
				Away: strings.TrimSpace(parts[1]),
			}, nil
		}
	}

	return matchup{}, fmt.Errorf("cannot parse matchup from subject %q", subject)
}

// strengthModel is the deterministic heuristic shared by the sport agents.
// Team ratings are derived from a stable hash of the team name, so the same
// query always produces the same prediction - which keeps aggregation
// results reproducible and cacheable.
type strengthModel struct {
	homeEdge float64 // Rating bonus for the home side
	spread   float64 // Logistic steepness: higher = more decisive picks
	floor    float64 // Minimum confidence reported
	ceiling  float64 // Maximum confidence reported
}

// rating maps a team name to a stable strength value in [0,1]
func (m strengthModel) rating(team string) float64 {
	h := fnv.New64a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(team))))
	return float64(h.Sum64()%10000) / 10000.0
}

// winProbability returns the model's probability that the home side wins
func (m strengthModel) winProbability(mu matchup) float64 {
	diff := m.rating(mu.Home) + m.homeEdge - m.rating(mu.Away)
	return 1.0 / (1.0 + math.Exp(-m.spread*diff))
}

// pick returns the favored side, the win probability of that side, and the
// confidence the agent reports for it
func (m strengthModel) pick(mu matchup) (side string, prob, confidence float64) {
	p := m.winProbability(mu)
	side = mu.Home
	prob = p
	if p < 0.5 {
		side = mu.Away
		prob = 1.0 - p
	}

	confidence = math.Min(m.ceiling, math.Max(m.floor, prob))
	return side, prob, confidence
}
