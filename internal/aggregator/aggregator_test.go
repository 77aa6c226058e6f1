package aggregator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlayforge/parlayforge/internal/agents"
	"github.com/parlayforge/parlayforge/internal/cache"
	"github.com/parlayforge/parlayforge/internal/learning"
	"github.com/parlayforge/parlayforge/internal/prediction"
	"github.com/parlayforge/parlayforge/internal/weighting"
)

// stubAgent is a scriptable sub-agent for aggregator tests
type stubAgent struct {
	id         string
	sport      prediction.Sport
	confidence float64
	err        error
	delay      time.Duration
	calls      atomic.Int64
}

func (a *stubAgent) ID() string              { return a.id }
func (a *stubAgent) Sport() prediction.Sport { return a.sport }

func (a *stubAgent) Predict(ctx context.Context, query prediction.Query) (*prediction.Prediction, error) {
	a.calls.Add(1)

	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if a.err != nil {
		return nil, a.err
	}

	return &prediction.Prediction{
		Sport:       a.sport,
		AgentID:     a.id,
		Subject:     query.Subject,
		Pick:        "Home ML",
		Confidence:  a.confidence,
		Reasoning:   "stub reasoning",
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func (a *stubAgent) ReportOutcome(_ context.Context, _ uuid.UUID, _ prediction.Outcome) error {
	return nil
}

func (a *stubAgent) Health() prediction.AgentHealth {
	return prediction.AgentHealth{Available: true}
}

// badWeightStrategy violates the weight-sum invariant on purpose
type badWeightStrategy struct{}

func (s *badWeightStrategy) ID() string { return "bad" }
func (s *badWeightStrategy) ComputeWeights(preds []prediction.Prediction, _ weighting.Context) (map[string]float64, error) {
	weights := make(map[string]float64, len(preds))
	for _, p := range preds {
		weights[p.AgentID] = 0.9
	}
	return weights, nil
}

type fixture struct {
	agg      *Aggregator
	registry *agents.Registry
	learner  *learning.Learner
	cache    cache.Cache
}

func newFixture(t *testing.T, cfg Config, subAgents ...*stubAgent) *fixture {
	t.Helper()

	registry := agents.NewRegistry()
	for _, a := range subAgents {
		registry.Register(a)
	}

	learner := learning.NewLearner(0.5, 0.2, zerolog.Nop())
	strategies := weighting.NewRegistry(weighting.RegistryConfig{
		DefaultStrategy:  weighting.StrategyEqual,
		HistoricalPrior:  0.5,
		HybridConfidence: 0.5,
	}, weighting.NewPreferenceStore())

	memCache := cache.NewMemoryCache(16, zerolog.Nop())

	return &fixture{
		agg:      New(registry, strategies, memCache, learner, cfg, zerolog.Nop()),
		registry: registry,
		learner:  learner,
		cache:    memCache,
	}
}

func defaultConfig() Config {
	return Config{
		AgentTimeout:    200 * time.Millisecond,
		CacheTTL:        time.Minute,
		HistoricalPrior: 0.5,
	}
}

func TestAggregateConfidenceWeighting(t *testing.T) {
	basketball := &stubAgent{id: "basketball-agent", sport: prediction.SportBasketball, confidence: 0.8}
	hockey := &stubAgent{id: "hockey-agent", sport: prediction.SportHockey, confidence: 0.6}
	f := newFixture(t, defaultConfig(), basketball, hockey)

	rec, err := f.agg.Aggregate(context.Background(), Request{
		Query:      "Lakers vs Celtics",
		Sports:     []prediction.Sport{prediction.SportBasketball, prediction.SportHockey},
		StrategyID: weighting.StrategyConfidence,
	})
	require.NoError(t, err)
	require.Len(t, rec.Picks, 2)

	// Picks ordered by descending contribution weight
	assert.Equal(t, "basketball-agent", rec.Picks[0].AgentID)
	assert.InDelta(t, 0.8/1.4, rec.Picks[0].ContributionWeight, 1e-9)
	assert.Equal(t, "hockey-agent", rec.Picks[1].AgentID)
	assert.InDelta(t, 0.6/1.4, rec.Picks[1].ContributionWeight, 1e-9)

	assert.InDelta(t, 0.6857, rec.OverallConfidence, 1e-4)
	assert.Equal(t, weighting.StrategyConfidence, rec.Strategy)
	assert.Empty(t, rec.ExcludedSports)
	assert.NotEmpty(t, rec.Reasoning)
}

func TestAggregateCacheHitSkipsAgents(t *testing.T) {
	agent := &stubAgent{id: "hockey-agent", sport: prediction.SportHockey, confidence: 0.7}
	f := newFixture(t, defaultConfig(), agent)

	req := Request{
		Query:  "Rangers @ Bruins",
		Sports: []prediction.Sport{prediction.SportHockey},
	}

	first, err := f.agg.Aggregate(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, int64(1), agent.calls.Load())

	second, err := f.agg.Aggregate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(1), agent.calls.Load(), "cache hit must not re-invoke agents")
	assert.Equal(t, first.RequestID, second.RequestID)
}

func TestAggregateCacheDisabledByNonPositiveTTL(t *testing.T) {
	agent := &stubAgent{id: "hockey-agent", sport: prediction.SportHockey, confidence: 0.7}
	cfg := defaultConfig()
	cfg.CacheTTL = 0
	f := newFixture(t, cfg, agent)

	req := Request{
		Query:  "Rangers @ Bruins",
		Sports: []prediction.Sport{prediction.SportHockey},
	}

	_, err := f.agg.Aggregate(context.Background(), req)
	require.NoError(t, err)
	_, err = f.agg.Aggregate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int64(2), agent.calls.Load(), "ttl <= 0 must bypass the cache entirely")
	assert.Equal(t, 0, f.cache.Len())
}

func TestAggregatePartialFailure(t *testing.T) {
	healthy := &stubAgent{id: "basketball-agent", sport: prediction.SportBasketball, confidence: 0.8}
	failing := &stubAgent{id: "football-agent", sport: prediction.SportFootball, err: errors.New("model unavailable")}
	slow := &stubAgent{id: "hockey-agent", sport: prediction.SportHockey, confidence: 0.6, delay: time.Second}
	f := newFixture(t, defaultConfig(), healthy, failing, slow)

	rec, err := f.agg.Aggregate(context.Background(), Request{
		Query:      "big slate tonight",
		Sports:     []prediction.Sport{prediction.SportBasketball, prediction.SportFootball, prediction.SportHockey},
		StrategyID: weighting.StrategyEqual,
	})
	require.NoError(t, err)

	require.Len(t, rec.Picks, 1)
	assert.Equal(t, "basketball-agent", rec.Picks[0].AgentID)
	assert.InDelta(t, 1.0, rec.Picks[0].ContributionWeight, 1e-9, "weights renormalize over responders only")

	assert.ElementsMatch(t,
		[]prediction.Sport{prediction.SportFootball, prediction.SportHockey},
		rec.ExcludedSports)
	assert.Contains(t, rec.Reasoning, "no response from")
}

func TestAggregateAllAgentsFail(t *testing.T) {
	failing := &stubAgent{id: "football-agent", sport: prediction.SportFootball, err: errors.New("boom")}
	slow := &stubAgent{id: "hockey-agent", sport: prediction.SportHockey, delay: time.Second}
	f := newFixture(t, defaultConfig(), failing, slow)

	_, err := f.agg.Aggregate(context.Background(), Request{
		Query:  "anything",
		Sports: []prediction.Sport{prediction.SportFootball, prediction.SportHockey},
	})
	assert.ErrorIs(t, err, prediction.ErrNoAgentResponse)
	assert.Equal(t, 0, f.cache.Len(), "failed requests are never cached")
}

func TestAggregateUnregisteredSportExcluded(t *testing.T) {
	agent := &stubAgent{id: "hockey-agent", sport: prediction.SportHockey, confidence: 0.7}
	f := newFixture(t, defaultConfig(), agent)

	rec, err := f.agg.Aggregate(context.Background(), Request{
		Query:  "Rangers @ Bruins",
		Sports: []prediction.Sport{prediction.SportHockey, prediction.SportFootball},
	})
	require.NoError(t, err)

	require.Len(t, rec.Picks, 1)
	assert.Equal(t, []prediction.Sport{prediction.SportFootball}, rec.ExcludedSports)
}

func TestAggregateInvalidPredictionExcluded(t *testing.T) {
	valid := &stubAgent{id: "hockey-agent", sport: prediction.SportHockey, confidence: 0.7}
	invalid := &stubAgent{id: "baseball-agent", sport: prediction.SportBaseball, confidence: 1.7}
	f := newFixture(t, defaultConfig(), valid, invalid)

	rec, err := f.agg.Aggregate(context.Background(), Request{
		Query:  "Yankees vs Red Sox",
		Sports: []prediction.Sport{prediction.SportHockey, prediction.SportBaseball},
	})
	require.NoError(t, err)

	require.Len(t, rec.Picks, 1)
	assert.Equal(t, "hockey-agent", rec.Picks[0].AgentID)
	assert.Equal(t, []prediction.Sport{prediction.SportBaseball}, rec.ExcludedSports)
}

func TestAggregateUnknownStrategy(t *testing.T) {
	agent := &stubAgent{id: "hockey-agent", sport: prediction.SportHockey, confidence: 0.7}
	f := newFixture(t, defaultConfig(), agent)

	_, err := f.agg.Aggregate(context.Background(), Request{
		Query:      "Rangers @ Bruins",
		Sports:     []prediction.Sport{prediction.SportHockey},
		StrategyID: "martingale",
	})
	assert.ErrorIs(t, err, prediction.ErrUnknownStrategy)
}

func TestAggregateNoSportsRequested(t *testing.T) {
	f := newFixture(t, defaultConfig())

	_, err := f.agg.Aggregate(context.Background(), Request{Query: "anything"})
	assert.ErrorIs(t, err, prediction.ErrNoAgentResponse)
}

func TestAggregateWeightInvariantViolation(t *testing.T) {
	a := &stubAgent{id: "hockey-agent", sport: prediction.SportHockey, confidence: 0.7}
	b := &stubAgent{id: "baseball-agent", sport: prediction.SportBaseball, confidence: 0.5}
	f := newFixture(t, defaultConfig(), a, b)

	// Register a strategy that returns a broken weight vector
	f.agg.strategies.Register(&badWeightStrategy{})

	_, err := f.agg.Aggregate(context.Background(), Request{
		Query:      "Yankees vs Red Sox",
		Sports:     []prediction.Sport{prediction.SportHockey, prediction.SportBaseball},
		StrategyID: "bad",
	})
	assert.ErrorIs(t, err, prediction.ErrWeightInvariant)
	assert.Equal(t, 0, f.cache.Len())
}

func TestAggregateCancelledRequestNotCached(t *testing.T) {
	agent := &stubAgent{id: "hockey-agent", sport: prediction.SportHockey, confidence: 0.7, delay: 50 * time.Millisecond}
	f := newFixture(t, defaultConfig(), agent)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := f.agg.Aggregate(ctx, Request{
		Query:  "Rangers @ Bruins",
		Sports: []prediction.Sport{prediction.SportHockey},
	})
	require.Error(t, err)
	assert.Equal(t, 0, f.cache.Len(), "cancelled requests must never populate the cache")
}

func TestAggregateRecommendationHook(t *testing.T) {
	agent := &stubAgent{id: "hockey-agent", sport: prediction.SportHockey, confidence: 0.7}
	f := newFixture(t, defaultConfig(), agent)

	var published atomic.Int64
	f.agg.OnRecommendation(func(_ *prediction.CombinedRecommendation) {
		published.Add(1)
	})

	req := Request{
		Query:  "Rangers @ Bruins",
		Sports: []prediction.Sport{prediction.SportHockey},
	}

	_, err := f.agg.Aggregate(context.Background(), req)
	require.NoError(t, err)
	_, err = f.agg.Aggregate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int64(1), published.Load(), "cache hits do not re-publish to the feed")
}

func TestReportOutcome(t *testing.T) {
	agent := &stubAgent{id: "hockey-agent", sport: prediction.SportHockey, confidence: 0.7}
	f := newFixture(t, defaultConfig(), agent)

	requestID := uuid.New()
	outcome := prediction.Outcome{
		RequestID: requestID,
		Sport:     prediction.SportHockey,
		Correct:   true,
	}

	require.NoError(t, f.agg.ReportOutcome(context.Background(), outcome))
	require.NoError(t, f.agg.ReportOutcome(context.Background(), outcome))

	rec, ok := f.learner.Lookup(prediction.SportHockey, "hockey-agent")
	require.True(t, ok)
	assert.Equal(t, int64(1), rec.TotalPredictions, "outcome reports are idempotent per request")
}

func TestReportOutcomeUnknownSport(t *testing.T) {
	f := newFixture(t, defaultConfig())

	err := f.agg.ReportOutcome(context.Background(), prediction.Outcome{
		RequestID: uuid.New(),
		Sport:     prediction.SportFootball,
		Correct:   true,
	})
	assert.ErrorIs(t, err, prediction.ErrUnknownSport)
}
