package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerStartShutdown(t *testing.T) {
	s := NewServer(0, zerolog.Nop()) // Port 0: any free port

	require.NoError(t, s.Start())
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Shutdown(ctx))
}

func TestShutdownWithoutStart(t *testing.T) {
	s := NewServer(0, zerolog.Nop())
	assert.NoError(t, s.Shutdown(context.Background()))
}
