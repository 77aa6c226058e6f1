package agents

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/parlayforge/parlayforge/internal/prediction"
)

var (
	predictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_predictions_total",
		Help: "Total predictions produced per agent",
	}, []string{"agent"})

	predictionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agent_prediction_duration_seconds",
		Help:    "Prediction latency per agent",
		Buckets: prometheus.DefBuckets,
	}, []string{"agent"})

	outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_outcomes_total",
		Help: "Outcome reports processed per agent (duplicates excluded)",
	}, []string{"agent", "result"})
)

// BaseAgent provides the bookkeeping shared by all sport agents: logging,
// metrics, the agent's own rolling accuracy, and idempotent outcome
// processing keyed by request ID.
type BaseAgent struct {
	id    string
	sport prediction.Sport
	log   zerolog.Logger

	// ewmaAlpha controls how quickly rolling accuracy follows recent
	// outcomes. Must be in (0,1).
	ewmaAlpha float64

	mu        sync.Mutex
	accuracy  float64
	seen      int64
	processed map[uuid.UUID]struct{} // request IDs already applied
	available bool
}

// NewBaseAgent creates the shared agent core
func NewBaseAgent(id string, sport prediction.Sport, prior, ewmaAlpha float64, log zerolog.Logger) *BaseAgent {
	return &BaseAgent{
		id:        id,
		sport:     sport,
		log:       log.With().Str("agent", id).Str("sport", string(sport)).Logger(),
		ewmaAlpha: ewmaAlpha,
		accuracy:  prior,
		processed: make(map[uuid.UUID]struct{}),
		available: true,
	}
}

// ID returns the agent identifier
func (a *BaseAgent) ID() string { return a.id }

// Sport returns the agent's specialization
func (a *BaseAgent) Sport() prediction.Sport { return a.sport }

// Logger returns the agent's component logger
func (a *BaseAgent) Logger() zerolog.Logger { return a.log }

// ReportOutcome applies a ground-truth report to the agent's own rolling
// accuracy. Duplicate deliveries for the same request ID are absorbed.
func (a *BaseAgent) ReportOutcome(_ context.Context, requestID uuid.UUID, outcome prediction.Outcome) error {
	if requestID == uuid.Nil {
		return fmt.Errorf("outcome report missing request id")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, dup := a.processed[requestID]; dup {
		a.log.Debug().
			Str("request_id", requestID.String()).
			Msg("Duplicate outcome report ignored")
		return nil
	}
	a.processed[requestID] = struct{}{}

	observed := 0.0
	result := "incorrect"
	if outcome.Correct {
		observed = 1.0
		result = "correct"
	}
	a.accuracy = a.accuracy + a.ewmaAlpha*(observed-a.accuracy)
	a.seen++

	outcomesTotal.WithLabelValues(a.id, result).Inc()

	a.log.Info().
		Str("request_id", requestID.String()).
		Bool("correct", outcome.Correct).
		Float64("rolling_accuracy", a.accuracy).
		Int64("outcomes_seen", a.seen).
		Msg("Outcome applied")

	return nil
}

// Health reports availability and the agent's current rolling accuracy
func (a *BaseAgent) Health() prediction.AgentHealth {
	a.mu.Lock()
	defer a.mu.Unlock()
	return prediction.AgentHealth{
		Available:       a.available,
		RollingAccuracy: a.accuracy,
	}
}

// SetAvailable toggles the agent's availability (used on shutdown)
func (a *BaseAgent) SetAvailable(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.available = v
}

// observe records prediction metrics
func (a *BaseAgent) observe(start time.Time) {
	predictionDuration.WithLabelValues(a.id).Observe(time.Since(start).Seconds())
	predictionsTotal.WithLabelValues(a.id).Inc()
}
