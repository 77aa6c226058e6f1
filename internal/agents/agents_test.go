package agents

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlayforge/parlayforge/internal/prediction"
)

func testQuery(subject string) prediction.Query {
	return prediction.Query{
		RequestID: uuid.New(),
		Text:      subject,
		Subject:   subject,
	}
}

func TestParseMatchup(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		home    string
		away    string
		wantErr bool
	}{
		{name: "vs puts first side at home", subject: "Yankees vs Red Sox", home: "Yankees", away: "Red Sox"},
		{name: "vs with period", subject: "Lakers vs. Celtics", home: "Lakers", away: "Celtics"},
		{name: "single v", subject: "Bills v Dolphins", home: "Bills", away: "Dolphins"},
		{name: "at symbol puts first side away", subject: "Rangers @ Bruins", home: "Bruins", away: "Rangers"},
		{name: "word at", subject: "Rangers at Bruins", home: "Bruins", away: "Rangers"},
		{name: "extra whitespace", subject: "  Yankees vs Red Sox  ", home: "Yankees", away: "Red Sox"},
		{name: "no separator", subject: "Yankees", wantErr: true},
		{name: "empty", subject: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mu, err := parseMatchup(tt.subject)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.home, mu.Home)
			assert.Equal(t, tt.away, mu.Away)
		})
	}
}

func TestStrengthModelDeterministic(t *testing.T) {
	m := strengthModel{homeEdge: 0.04, spread: 4.0, floor: 0.52, ceiling: 0.78}
	mu := matchup{Home: "Yankees", Away: "Red Sox"}

	side1, prob1, conf1 := m.pick(mu)
	side2, prob2, conf2 := m.pick(mu)

	assert.Equal(t, side1, side2)
	assert.Equal(t, prob1, prob2)
	assert.Equal(t, conf1, conf2)
}

func TestStrengthModelConfidenceBounds(t *testing.T) {
	m := strengthModel{homeEdge: 0.06, spread: 6.0, floor: 0.55, ceiling: 0.90}

	teams := []string{"Lakers", "Celtics", "Warriors", "Nuggets", "Heat", "Knicks", "Suns", "Bucks"}
	for _, home := range teams {
		for _, away := range teams {
			if home == away {
				continue
			}
			_, prob, conf := m.pick(matchup{Home: home, Away: away})
			assert.GreaterOrEqual(t, prob, 0.5, "picked side must be the favorite")
			assert.GreaterOrEqual(t, conf, m.floor)
			assert.LessOrEqual(t, conf, m.ceiling)
		}
	}
}

func TestAgentsPredict(t *testing.T) {
	log := zerolog.Nop()
	ctx := context.Background()

	tests := []struct {
		name  string
		agent SubAgent
		sport prediction.Sport
	}{
		{"baseball", NewBaseballAgent(0.5, 0.2, log), prediction.SportBaseball},
		{"basketball", NewBasketballAgent(0.5, 0.2, log), prediction.SportBasketball},
		{"football", NewFootballAgent(0.5, 0.2, log), prediction.SportFootball},
		{"hockey", NewHockeyAgent(0.5, 0.2, log), prediction.SportHockey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.sport, tt.agent.Sport())

			p, err := tt.agent.Predict(ctx, testQuery("Home Team vs Away Team"))
			require.NoError(t, err)
			require.NoError(t, p.Validate())

			assert.Equal(t, tt.sport, p.Sport)
			assert.Equal(t, tt.agent.ID(), p.AgentID)
			assert.Contains(t, p.Pick, "ML")
			assert.NotEmpty(t, p.Reasoning)
		})
	}
}

func TestAgentPredictSameQuerySamePick(t *testing.T) {
	agent := NewHockeyAgent(0.5, 0.2, zerolog.Nop())
	ctx := context.Background()

	p1, err := agent.Predict(ctx, testQuery("Rangers @ Bruins"))
	require.NoError(t, err)
	p2, err := agent.Predict(ctx, testQuery("Rangers @ Bruins"))
	require.NoError(t, err)

	assert.Equal(t, p1.Pick, p2.Pick)
	assert.Equal(t, p1.Confidence, p2.Confidence)
}

func TestAgentPredictUnparseableSubject(t *testing.T) {
	agent := NewFootballAgent(0.5, 0.2, zerolog.Nop())

	_, err := agent.Predict(context.Background(), testQuery("who wins tonight"))
	assert.Error(t, err)
}

func TestAgentPredictCancelledContext(t *testing.T) {
	agent := NewBaseballAgent(0.5, 0.2, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := agent.Predict(ctx, testQuery("Yankees vs Red Sox"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBaseAgentReportOutcomeIdempotent(t *testing.T) {
	agent := NewBaseAgent("test-agent", prediction.SportHockey, 0.5, 0.2, zerolog.Nop())
	ctx := context.Background()

	requestID := uuid.New()
	outcome := prediction.Outcome{RequestID: requestID, Correct: true, ReportedAt: time.Now()}

	require.NoError(t, agent.ReportOutcome(ctx, requestID, outcome))
	afterFirst := agent.Health().RollingAccuracy
	assert.InDelta(t, 0.6, afterFirst, 1e-9)

	require.NoError(t, agent.ReportOutcome(ctx, requestID, outcome))
	assert.Equal(t, afterFirst, agent.Health().RollingAccuracy, "duplicate report must not move accuracy")
}

func TestBaseAgentReportOutcomeNilRequestID(t *testing.T) {
	agent := NewBaseAgent("test-agent", prediction.SportHockey, 0.5, 0.2, zerolog.Nop())

	err := agent.ReportOutcome(context.Background(), uuid.Nil, prediction.Outcome{})
	assert.Error(t, err)
}

func TestBaseAgentAvailability(t *testing.T) {
	agent := NewBaseAgent("test-agent", prediction.SportHockey, 0.5, 0.2, zerolog.Nop())

	assert.True(t, agent.Health().Available)
	agent.SetAvailable(false)
	assert.False(t, agent.Health().Available)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	log := zerolog.Nop()

	r.Register(NewHockeyAgent(0.5, 0.2, log))
	r.Register(NewBaseballAgent(0.5, 0.2, log))

	t.Run("get registered", func(t *testing.T) {
		agent, err := r.Get(prediction.SportHockey)
		require.NoError(t, err)
		assert.Equal(t, "hockey-agent", agent.ID())
	})

	t.Run("get unregistered", func(t *testing.T) {
		_, err := r.Get(prediction.SportFootball)
		assert.ErrorIs(t, err, prediction.ErrUnknownSport)
	})

	t.Run("canonical order", func(t *testing.T) {
		assert.Equal(t, []prediction.Sport{prediction.SportBaseball, prediction.SportHockey}, r.Sports())

		all := r.All()
		require.Len(t, all, 2)
		assert.Equal(t, prediction.SportBaseball, all[0].Sport())
		assert.Equal(t, prediction.SportHockey, all[1].Sport())
	})
}
