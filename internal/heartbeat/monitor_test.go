package heartbeat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitTransition(t *testing.T, transitions <-chan Transition) Transition {
	t.Helper()
	select {
	case transition := <-transitions:
		return transition
	case <-time.After(time.Second):
		require.FailNow(t, "timed out waiting for transition")
	}
	return Transition{}
}

func TestMonitorEmitsTransitions(t *testing.T) {
	registry := NewRegistry()
	transitions := make(chan Transition, 4)
	monitor := NewMonitor(registry, MonitorConfig{
		Interval: 10 * time.Millisecond,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		OnTransition: func(ctx context.Context, transition Transition) {
			transitions <- transition
		},
	})

	registry.Beat("connector:discord", "gateway session established")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = monitor.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	registry.Degrade("connector:discord", "gateway session error", errors.New("read gateway message: EOF"))

	degraded := waitTransition(t, transitions)
	assert.Equal(t, StateHealthy, degraded.FromState)
	assert.Equal(t, StateDegraded, degraded.ToState)
	assert.NotEmpty(t, degraded.Error)

	registry.Beat("connector:discord", "gateway session established")
	recovered := waitTransition(t, transitions)
	assert.Equal(t, StateDegraded, recovered.FromState)
	assert.Equal(t, StateHealthy, recovered.ToState)

	cancel()
	<-done
}
