// Package aggregator implements the head aggregator: it fans a query out
// to the sport sub-agents, weights their predictions under the requested
// strategy, and merges them into one combined recommendation.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/parlayforge/parlayforge/internal/agents"
	"github.com/parlayforge/parlayforge/internal/cache"
	"github.com/parlayforge/parlayforge/internal/learning"
	"github.com/parlayforge/parlayforge/internal/prediction"
	"github.com/parlayforge/parlayforge/internal/weighting"
)

// reasoningTopN is how many top-weighted agents contribute reasoning text
const reasoningTopN = 3

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aggregation_requests_total",
		Help: "Aggregation requests by result",
	}, []string{"result"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "aggregation_request_duration_seconds",
		Help:    "End-to-end aggregation latency",
		Buckets: prometheus.DefBuckets,
	})

	agentFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aggregation_agent_failures_total",
		Help: "Per-agent failures during fan-out",
	}, []string{"agent", "kind"})
)

// Request is one aggregation request
type Request struct {
	Query      string
	Sports     []prediction.Sport
	StrategyID string
	UserID     string
}

// Config holds aggregator settings
type Config struct {
	AgentTimeout    time.Duration
	CacheTTL        time.Duration // <= 0 disables caching entirely
	HistoricalPrior float64
}

// Aggregator orchestrates cache, fan-out, weighting and merge
type Aggregator struct {
	registry   *agents.Registry
	strategies *weighting.Registry
	cache      cache.Cache
	learner    *learning.Learner
	cfg        Config
	log        zerolog.Logger

	// onRecommendation is an optional hook invoked for every freshly
	// computed recommendation (cache hits excluded); used by the live feed
	onRecommendation func(*prediction.CombinedRecommendation)
}

// New creates the head aggregator
func New(registry *agents.Registry, strategies *weighting.Registry, c cache.Cache, learner *learning.Learner, cfg Config, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		registry:   registry,
		strategies: strategies,
		cache:      c,
		learner:    learner,
		cfg:        cfg,
		log:        log.With().Str("component", "aggregator").Logger(),
	}
}

// OnRecommendation registers the fresh-recommendation hook
func (a *Aggregator) OnRecommendation(fn func(*prediction.CombinedRecommendation)) {
	a.onRecommendation = fn
}

// agentResult is one sub-agent's outcome during fan-out
type agentResult struct {
	sport prediction.Sport
	pred  *prediction.Prediction
	err   error
}

// Aggregate runs the full request state machine:
// CacheCheck -> FanOut -> Collect -> Weight -> Merge -> CacheStore.
// Individual agent failures are recovered locally; zero usable
// predictions fail the request with ErrNoAgentResponse.
func (a *Aggregator) Aggregate(ctx context.Context, req Request) (*prediction.CombinedRecommendation, error) {
	start := time.Now()
	defer func() { requestDuration.Observe(time.Since(start).Seconds()) }()

	strategy, err := a.strategies.Get(req.StrategyID)
	if err != nil {
		requestsTotal.WithLabelValues("bad_request").Inc()
		return nil, err
	}

	if len(req.Sports) == 0 {
		requestsTotal.WithLabelValues("bad_request").Inc()
		return nil, fmt.Errorf("%w: no sports requested", prediction.ErrNoAgentResponse)
	}

	// The user only disambiguates the fingerprint when the strategy
	// actually consults per-user state
	fingerprintUser := ""
	if strategy.ID() == weighting.StrategyUserPreference {
		fingerprintUser = req.UserID
	}
	key := prediction.Fingerprint(req.Query, req.Sports, strategy.ID(), fingerprintUser)

	if a.cfg.CacheTTL > 0 {
		if rec, ok := a.cache.Get(ctx, key); ok {
			a.log.Debug().Str("fingerprint", key).Msg("Cache hit")
			requestsTotal.WithLabelValues("cache_hit").Inc()
			return rec, nil
		}
	}

	requestID := uuid.New()
	results := a.fanOut(ctx, requestID, req)

	preds := make([]prediction.Prediction, 0, len(results))
	var excluded []prediction.Sport
	for _, r := range results {
		if r.err != nil {
			excluded = append(excluded, r.sport)
			continue
		}
		preds = append(preds, *r.pred)
	}

	if len(preds) == 0 {
		requestsTotal.WithLabelValues("no_response").Inc()
		return nil, fmt.Errorf("%w: all %d agents failed or timed out", prediction.ErrNoAgentResponse, len(results))
	}

	weights, err := strategy.ComputeWeights(preds, weighting.Context{
		UserID:   req.UserID,
		Accuracy: a.learner,
		Prior:    a.cfg.HistoricalPrior,
	})
	if err != nil {
		requestsTotal.WithLabelValues("strategy_error").Inc()
		return nil, err
	}

	// A bad weight sum is a strategy bug: fail loudly, never renormalize
	if err := weighting.ValidateWeights(weights); err != nil {
		a.log.Error().
			Err(err).
			Str("strategy", strategy.ID()).
			Int("agents", len(preds)).
			Msg("Weighting strategy violated the weight-sum invariant")
		requestsTotal.WithLabelValues("weight_invariant").Inc()
		return nil, err
	}

	rec := a.merge(requestID, strategy.ID(), preds, weights, excluded)

	// A cancelled request must not populate the cache with abandoned work
	if ctx.Err() != nil {
		requestsTotal.WithLabelValues("cancelled").Inc()
		return nil, ctx.Err()
	}

	if a.cfg.CacheTTL > 0 {
		a.cache.Put(ctx, key, rec, a.cfg.CacheTTL)
	}

	if a.onRecommendation != nil {
		a.onRecommendation(rec)
	}

	requestsTotal.WithLabelValues("ok").Inc()
	a.log.Info().
		Str("request_id", requestID.String()).
		Str("strategy", strategy.ID()).
		Int("agents_responded", len(preds)).
		Int("agents_excluded", len(excluded)).
		Float64("overall_confidence", rec.OverallConfidence).
		Msg("Aggregation complete")

	return rec, nil
}

// fanOut dispatches to every requested agent concurrently, enforcing the
// per-agent timeout independently so a slow agent never delays the rest.
// Collect waits for every dispatched agent (or its timeout) before
// returning - merging a partial set early would break the weight-sum
// invariant.
func (a *Aggregator) fanOut(ctx context.Context, requestID uuid.UUID, req Request) []agentResult {
	var mu sync.Mutex
	results := make([]agentResult, 0, len(req.Sports))

	g, gctx := errgroup.WithContext(ctx)

	for _, sport := range req.Sports {
		sport := sport
		g.Go(func() error {
			res := a.callAgent(gctx, requestID, sport, req)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			// Agent failures are recovered locally, never group-fatal
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// callAgent runs one sub-agent under its own deadline and classifies the
// failure modes the spec recovers locally
func (a *Aggregator) callAgent(ctx context.Context, requestID uuid.UUID, sport prediction.Sport, req Request) agentResult {
	agent, err := a.registry.Get(sport)
	if err != nil {
		agentFailures.WithLabelValues(string(sport), "unregistered").Inc()
		a.log.Warn().Str("sport", string(sport)).Msg("No agent registered for requested sport")
		return agentResult{sport: sport, err: err}
	}

	agentCtx, cancel := context.WithTimeout(ctx, a.cfg.AgentTimeout)
	defer cancel()

	query := prediction.Query{
		RequestID: requestID,
		Text:      prediction.NormalizeQuery(req.Query),
		Subject:   req.Query,
		UserID:    req.UserID,
	}

	pred, err := agent.Predict(agentCtx, query)
	if err != nil {
		kind := "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(agentCtx.Err(), context.DeadlineExceeded) {
			kind = "timeout"
			err = fmt.Errorf("%w: agent %s exceeded %s", prediction.ErrAgentTimeout, agent.ID(), a.cfg.AgentTimeout)
		}
		agentFailures.WithLabelValues(agent.ID(), kind).Inc()
		a.log.Warn().
			Err(err).
			Str("agent", agent.ID()).
			Str("request_id", requestID.String()).
			Msg("Agent excluded from request")
		return agentResult{sport: sport, err: err}
	}

	// Enforce the confidence-range invariant on agent output
	if err := pred.Validate(); err != nil {
		agentFailures.WithLabelValues(agent.ID(), "invalid").Inc()
		a.log.Warn().
			Err(err).
			Str("agent", agent.ID()).
			Str("request_id", requestID.String()).
			Msg("Agent returned invalid prediction, excluded from request")
		return agentResult{sport: sport, err: err}
	}

	return agentResult{sport: sport, pred: pred}
}

// merge combines weighted predictions into one recommendation.
// Overall confidence is the weight-weighted confidence sum; picks are
// ordered by descending contribution weight with sport as a deterministic
// tie-break.
func (a *Aggregator) merge(requestID uuid.UUID, strategyID string, preds []prediction.Prediction, weights map[string]float64, excluded []prediction.Sport) *prediction.CombinedRecommendation {
	weighted := make([]prediction.WeightedPrediction, 0, len(preds))
	overall := 0.0
	for _, p := range preds {
		w := weights[p.AgentID]
		overall += w * p.Confidence
		weighted = append(weighted, prediction.WeightedPrediction{Prediction: p, Weight: w})
	}

	sort.Slice(weighted, func(i, j int) bool {
		if weighted[i].Weight != weighted[j].Weight {
			return weighted[i].Weight > weighted[j].Weight
		}
		return weighted[i].Sport < weighted[j].Sport
	})

	picks := make([]prediction.Pick, 0, len(weighted))
	for _, wp := range weighted {
		picks = append(picks, prediction.Pick{
			Sport:              wp.Sport,
			AgentID:            wp.AgentID,
			Pick:               wp.Pick,
			Confidence:         wp.Confidence,
			ContributionWeight: wp.Weight,
		})
	}

	var reasoning strings.Builder
	top := len(weighted)
	if top > reasoningTopN {
		top = reasoningTopN
	}
	for i := 0; i < top; i++ {
		if i > 0 {
			reasoning.WriteString(" | ")
		}
		fmt.Fprintf(&reasoning, "[%s] %s", weighted[i].Sport, weighted[i].Reasoning)
	}
	if len(excluded) > 0 {
		names := make([]string, 0, len(excluded))
		for _, s := range excluded {
			names = append(names, string(s))
		}
		sort.Strings(names)
		fmt.Fprintf(&reasoning, " (no response from: %s)", strings.Join(names, ", "))
	}

	return &prediction.CombinedRecommendation{
		RequestID:         requestID,
		Picks:             picks,
		OverallConfidence: overall,
		Reasoning:         reasoning.String(),
		Strategy:          strategyID,
		ExcludedSports:    sortedSports(excluded),
		GeneratedAt:       time.Now().UTC(),
	}
}

// ReportOutcome routes a ground-truth report to the learner and to the
// agent's own bookkeeping. Both sides are idempotent per request ID, so
// at-least-once delivery from the event bus is safe.
func (a *Aggregator) ReportOutcome(ctx context.Context, outcome prediction.Outcome) error {
	agent, err := a.registry.Get(outcome.Sport)
	if err != nil {
		return err
	}

	agentID := outcome.AgentID
	if agentID == "" {
		agentID = agent.ID()
	}

	a.learner.Record(outcome.Sport, agentID, outcome.RequestID, outcome.Correct)

	if err := agent.ReportOutcome(ctx, outcome.RequestID, outcome); err != nil {
		return fmt.Errorf("agent %s rejected outcome report: %w", agentID, err)
	}
	return nil
}

// sortedSports returns a deterministic copy of a sport list
func sortedSports(sports []prediction.Sport) []prediction.Sport {
	if len(sports) == 0 {
		return nil
	}
	out := make([]prediction.Sport, len(sports))
	copy(out, sports)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
