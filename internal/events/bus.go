// Package events carries outcome reports over NATS so result feeds can
// publish ground truth without blocking on the learner.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/parlayforge/parlayforge/internal/prediction"
)

// outcomeTopic is appended to the configured subject prefix
const outcomeTopic = "outcomes"

// queueGroup ensures one delivery per process group when multiple
// aggregator instances share a NATS cluster
const queueGroup = "aggregators"

var (
	outcomesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outcome_events_published_total",
		Help: "Outcome reports published to the event bus",
	})
	outcomesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outcome_events_received_total",
		Help: "Outcome reports received from the event bus",
	}, []string{"result"})
)

// OutcomeHandler consumes one outcome report. Delivery is at-least-once;
// handlers must be idempotent per request ID.
type OutcomeHandler func(ctx context.Context, outcome prediction.Outcome) error

// Bus is the NATS-backed outcome event bus
type Bus struct {
	nc     *nats.Conn
	prefix string
	log    zerolog.Logger
}

// Config configures the bus connection
type Config struct {
	URL           string
	SubjectPrefix string
}

// Connect dials NATS with infinite reconnects. The bus is optional;
// callers pass outcomes straight to the learner when it is absent.
func Connect(cfg Config, log zerolog.Logger) (*Bus, error) {
	componentLog := log.With().Str("component", "event_bus").Logger()

	nc, err := nats.Connect(
		cfg.URL,
		nats.Name("parlayforge-aggregator"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				componentLog.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			componentLog.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "parlayforge."
	}

	componentLog.Info().
		Str("nats_url", cfg.URL).
		Str("prefix", cfg.SubjectPrefix).
		Msg("Event bus connected")

	return &Bus{nc: nc, prefix: cfg.SubjectPrefix, log: componentLog}, nil
}

// PublishOutcome publishes one outcome report, fire-and-forget
func (b *Bus) PublishOutcome(ctx context.Context, outcome prediction.Outcome) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !b.nc.IsConnected() {
		return fmt.Errorf("event bus not connected")
	}

	if outcome.ReportedAt.IsZero() {
		outcome.ReportedAt = time.Now().UTC()
	}

	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}

	subject := b.prefix + outcomeTopic
	if err := b.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish outcome: %w", err)
	}

	outcomesPublished.Inc()
	b.log.Debug().
		Str("request_id", outcome.RequestID.String()).
		Str("sport", string(outcome.Sport)).
		Str("subject", subject).
		Msg("Outcome published")

	return nil
}

// SubscribeOutcomes delivers outcome reports to the handler via a queue
// subscription. Malformed payloads are logged and dropped; handler errors
// are logged but never redelivered within a process.
func (b *Bus) SubscribeOutcomes(handler OutcomeHandler) (*nats.Subscription, error) {
	subject := b.prefix + outcomeTopic

	sub, err := b.nc.QueueSubscribe(subject, queueGroup, func(msg *nats.Msg) {
		var outcome prediction.Outcome
		if err := json.Unmarshal(msg.Data, &outcome); err != nil {
			outcomesReceived.WithLabelValues("malformed").Inc()
			b.log.Warn().Err(err).Msg("Failed to unmarshal outcome event")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := handler(ctx, outcome); err != nil {
			outcomesReceived.WithLabelValues("error").Inc()
			b.log.Error().
				Err(err).
				Str("request_id", outcome.RequestID.String()).
				Msg("Outcome handler error")
			return
		}
		outcomesReceived.WithLabelValues("ok").Inc()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to outcomes: %w", err)
	}

	b.log.Info().Str("subject", subject).Str("queue", queueGroup).Msg("Subscribed to outcome events")
	return sub, nil
}

// Connected reports connection health
func (b *Bus) Connected() bool {
	return b.nc != nil && b.nc.IsConnected()
}

// Close drains and closes the connection
func (b *Bus) Close() {
	if b.nc != nil {
		if err := b.nc.Drain(); err != nil {
			b.log.Warn().Err(err).Msg("NATS drain failed, closing hard")
			b.nc.Close()
		}
		b.log.Info().Msg("Event bus closed")
	}
}
