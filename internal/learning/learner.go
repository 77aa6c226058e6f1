// Package learning maintains the per (sport, agent) accuracy table fed by
// outcome reports and consumed by the historical weighting strategies.
package learning

import (
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/parlayforge/parlayforge/internal/prediction"
)

var rollingAccuracy = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "agent_rolling_accuracy",
	Help: "Rolling accuracy per sport and agent",
}, []string{"sport", "agent"})

type recordKey struct {
	sport   prediction.Sport
	agentID string
}

type dedupeKey struct {
	requestID uuid.UUID
	agentID   string
}

// Learner owns the process-wide accuracy table. Rolling accuracy follows
// an exponentially weighted moving average so recent outcomes move the
// estimate without any single outcome dominating it. Reports are
// idempotent per (request, agent); read-modify-write is serialized.
type Learner struct {
	mu        sync.RWMutex
	records   map[recordKey]*prediction.AccuracyRecord
	processed map[dedupeKey]struct{}
	alpha     float64
	prior     float64
	log       zerolog.Logger
}

// NewLearner creates an empty accuracy table
func NewLearner(prior, alpha float64, log zerolog.Logger) *Learner {
	return &Learner{
		records:   make(map[recordKey]*prediction.AccuracyRecord),
		processed: make(map[dedupeKey]struct{}),
		alpha:     alpha,
		prior:     prior,
		log:       log.With().Str("component", "learner").Logger(),
	}
}

// Record applies one outcome report. Duplicate deliveries for the same
// (request, agent) pair leave the table unchanged.
func (l *Learner) Record(sport prediction.Sport, agentID string, requestID uuid.UUID, wasCorrect bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	dk := dedupeKey{requestID: requestID, agentID: agentID}
	if _, dup := l.processed[dk]; dup {
		l.log.Debug().
			Str("request_id", requestID.String()).
			Str("agent", agentID).
			Msg("Duplicate outcome report ignored")
		return
	}
	l.processed[dk] = struct{}{}

	rk := recordKey{sport: sport, agentID: agentID}
	rec, ok := l.records[rk]
	if !ok {
		rec = &prediction.AccuracyRecord{
			Sport:           sport,
			AgentID:         agentID,
			RollingAccuracy: l.prior,
		}
		l.records[rk] = rec
	}

	observed := 0.0
	if wasCorrect {
		observed = 1.0
		rec.CorrectPredictions++
	}
	rec.TotalPredictions++
	rec.RollingAccuracy = rec.RollingAccuracy + l.alpha*(observed-rec.RollingAccuracy)

	rollingAccuracy.WithLabelValues(string(sport), agentID).Set(rec.RollingAccuracy)

	l.log.Info().
		Str("sport", string(sport)).
		Str("agent", agentID).
		Str("request_id", requestID.String()).
		Bool("correct", wasCorrect).
		Float64("rolling_accuracy", rec.RollingAccuracy).
		Int64("total", rec.TotalPredictions).
		Msg("Accuracy record updated")
}

// Lookup implements weighting.AccuracyProvider
func (l *Learner) Lookup(sport prediction.Sport, agentID string) (prediction.AccuracyRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.records[recordKey{sport: sport, agentID: agentID}]
	if !ok {
		return prediction.AccuracyRecord{}, false
	}
	return *rec, true
}

// Snapshot returns a copy of every accuracy record, for checkpointing
// and the health endpoint
func (l *Learner) Snapshot() []prediction.AccuracyRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]prediction.AccuracyRecord, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, *rec)
	}
	return out
}

// Restore seeds the table from checkpointed records. Existing in-memory
// records win over restored ones; Restore is meant for process start.
func (l *Learner) Restore(records []prediction.AccuracyRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	restored := 0
	for _, rec := range records {
		rk := recordKey{sport: rec.Sport, agentID: rec.AgentID}
		if _, exists := l.records[rk]; exists {
			continue
		}
		copied := rec
		l.records[rk] = &copied
		rollingAccuracy.WithLabelValues(string(rec.Sport), rec.AgentID).Set(rec.RollingAccuracy)
		restored++
	}

	if restored > 0 {
		l.log.Info().Int("records", restored).Msg("Restored accuracy records from checkpoint")
	}
}
