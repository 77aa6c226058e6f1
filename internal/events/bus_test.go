package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlayforge/parlayforge/internal/prediction"
)

// startTestNATSServer starts an embedded NATS server for testing
func startTestNATSServer(t *testing.T) *server.Server {
	t.Helper()

	opts := &server.Options{
		Host: "127.0.0.1",
		Port: -1, // Random port
	}

	ns, err := server.NewServer(opts)
	require.NoError(t, err)

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(ns.Shutdown)
	return ns
}

func setupTestBus(t *testing.T) *Bus {
	t.Helper()

	ns := startTestNATSServer(t)
	bus, err := Connect(Config{
		URL:           ns.ClientURL(),
		SubjectPrefix: "test.parlayforge.",
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(bus.Close)

	return bus
}

func TestConnect(t *testing.T) {
	bus := setupTestBus(t)
	assert.True(t, bus.Connected())
}

func TestConnectDefaultPrefix(t *testing.T) {
	ns := startTestNATSServer(t)

	bus, err := Connect(Config{URL: ns.ClientURL()}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(bus.Close)

	assert.Equal(t, "parlayforge.", bus.prefix)
}

func TestPublishAndSubscribeOutcome(t *testing.T) {
	bus := setupTestBus(t)

	var mu sync.Mutex
	var received []prediction.Outcome
	done := make(chan struct{})

	_, err := bus.SubscribeOutcomes(func(_ context.Context, outcome prediction.Outcome) error {
		mu.Lock()
		received = append(received, outcome)
		mu.Unlock()
		close(done)
		return nil
	})
	require.NoError(t, err)

	want := prediction.Outcome{
		RequestID:    uuid.New(),
		Sport:        prediction.SportHockey,
		AgentID:      "hockey-agent",
		ActualResult: "Bruins won",
		Correct:      true,
	}
	require.NoError(t, bus.PublishOutcome(context.Background(), want))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("outcome not delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, want.RequestID, received[0].RequestID)
	assert.Equal(t, want.Sport, received[0].Sport)
	assert.True(t, received[0].Correct)
	assert.False(t, received[0].ReportedAt.IsZero(), "publish stamps a missing ReportedAt")
}

func TestPublishCancelledContext(t *testing.T) {
	bus := setupTestBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := bus.PublishOutcome(ctx, prediction.Outcome{RequestID: uuid.New()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSubscribeMalformedPayloadDropped(t *testing.T) {
	bus := setupTestBus(t)

	handled := make(chan struct{}, 1)
	_, err := bus.SubscribeOutcomes(func(_ context.Context, _ prediction.Outcome) error {
		handled <- struct{}{}
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.nc.Publish(bus.prefix+outcomeTopic, []byte("not json")))
	require.NoError(t, bus.nc.Flush())

	select {
	case <-handled:
		t.Fatal("malformed payload must not reach the handler")
	case <-time.After(200 * time.Millisecond):
	}
}
