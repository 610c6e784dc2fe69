package vsync

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/frametime"
)

type flakyMonitor struct {
	failures int32
	calls    atomic.Int32
}

func (m *flakyMonitor) Initialize() error {
	if m.calls.Add(1) <= m.failures {
		return errors.New("device busy")
	}
	return nil
}

func (m *flakyMonitor) Wait() Tick { return Tick{Valid: true} }
func (m *flakyMonitor) Terminate()  {}

func fastRetry(n int) RetryConfig {
	return RetryConfig{MaxRetries: n, RetryDelay: time.Millisecond, MaxRetryDelay: 2 * time.Millisecond}
}

func TestTimedMonitorDefaults(t *testing.T) {
	m := NewTimed()
	assert.Equal(t, frametime.DefaultFrameInterval, m.Interval())
	assert.NoError(t, m.Initialize())
}

func TestTimedMonitorTicks(t *testing.T) {
	m := NewTimed(WithInterval(2 * time.Millisecond))
	defer m.Terminate()

	start := time.Now()
	first := m.Wait()
	second := m.Wait()

	assert.True(t, first.Valid)
	assert.True(t, second.Valid)
	assert.Equal(t, uint32(1), first.Sequence)
	assert.Equal(t, uint32(2), second.Sequence)
	assert.GreaterOrEqual(t, time.Since(start), 4*time.Millisecond)
}

func TestTimedMonitorTerminateReleasesWait(t *testing.T) {
	m := NewTimed(WithInterval(time.Hour))

	done := make(chan Tick, 1)
	go func() { done <- m.Wait() }()

	m.Terminate()
	m.Terminate()

	select {
	case tick := <-done:
		assert.False(t, tick.Valid)
	case <-time.After(time.Second):
		t.Fatal("Wait not released by Terminate")
	}
}

func TestInitializeRetriesPrimary(t *testing.T) {
	primary := &flakyMonitor{failures: 2}

	m, fallback, err := Initialize(context.Background(), primary, nil, fastRetry(3))

	require.NoError(t, err)
	assert.False(t, fallback)
	assert.Same(t, primary, m)
	assert.Equal(t, int32(3), primary.calls.Load())
}

func TestInitializeFallsBack(t *testing.T) {
	primary := &flakyMonitor{failures: 100}

	m, fallback, err := Initialize(context.Background(), primary, nil, fastRetry(2))

	require.NoError(t, err)
	assert.True(t, fallback)
	assert.IsType(t, &TimedMonitor{}, m)
	assert.Equal(t, int32(3), primary.calls.Load())
}

func TestInitializeWithoutPrimary(t *testing.T) {
	timed := NewTimed()

	m, fallback, err := Initialize(context.Background(), nil, timed, RetryConfig{})

	require.NoError(t, err)
	assert.True(t, fallback)
	assert.Same(t, timed, m)
}

func TestInitializeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Initialize(ctx, &flakyMonitor{failures: 100}, nil, fastRetry(5))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTimedMonitorReducedRate(t *testing.T) {
	m := NewTimed(WithInterval(5 * time.Millisecond))
	defer m.Terminate()
	m.SetVSyncsPerRender(4)

	start := time.Now()
	require.True(t, m.Wait().Valid)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
