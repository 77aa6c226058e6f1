// Package agents provides the sub-agent contract and the sport-specialized
// predictors feeding the head aggregator.
package agents

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/parlayforge/parlayforge/internal/prediction"
)

// SubAgent is the contract every sport predictor implements.
// Predict must return within the caller's context deadline; the aggregator
// treats a deadline miss as a timeout and excludes the agent for that
// request. ReportOutcome is fire-and-forget from the caller's perspective
// and must be idempotent per request ID.
type SubAgent interface {
	ID() string
	Sport() prediction.Sport
	Predict(ctx context.Context, query prediction.Query) (*prediction.Prediction, error)
	ReportOutcome(ctx context.Context, requestID uuid.UUID, outcome prediction.Outcome) error
	Health() prediction.AgentHealth
}

// Registry maps sports to their registered agent. The set of variants is
// closed: one agent per sport, dispatched by the sport tag.
type Registry struct {
	mu     sync.RWMutex
	agents map[prediction.Sport]SubAgent
}

// NewRegistry creates an empty agent registry
func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[prediction.Sport]SubAgent),
	}
}

// Register adds an agent for its sport, replacing any previous registration
func (r *Registry) Register(agent SubAgent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agent.Sport()] = agent
}

// Get returns the agent registered for a sport
func (r *Registry) Get(sport prediction.Sport) (SubAgent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, ok := r.agents[sport]
	if !ok {
		return nil, fmt.Errorf("%w: no agent registered for %q", prediction.ErrUnknownSport, sport)
	}
	return agent, nil
}

// Sports returns the sports with a registered agent
func (r *Registry) Sports() []prediction.Sport {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sports := make([]prediction.Sport, 0, len(r.agents))
	for _, s := range prediction.AllSports() {
		if _, ok := r.agents[s]; ok {
			sports = append(sports, s)
		}
	}
	return sports
}

// All returns every registered agent in canonical sport order
func (r *Registry) All() []SubAgent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make([]SubAgent, 0, len(r.agents))
	for _, s := range prediction.AllSports() {
		if a, ok := r.agents[s]; ok {
			agents = append(agents, a)
		}
	}
	return agents
}
