package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/frametime"
	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/threadsync"
	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/vsync"
	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/worker"
)

const waitFor = 2 * time.Second

type surface string

func (s surface) ID() string { return string(s) }

type scene struct {
	keepUpdating atomic.Bool
	passes       atomic.Int64
}

func (s *scene) Update(frametime.Prediction) worker.UpdateStatus {
	s.passes.Add(1)
	return worker.UpdateStatus{KeepUpdating: s.keepUpdating.Load()}
}

type renderer struct {
	mu       sync.Mutex
	rendered map[string]int
}

func (r *renderer) Render(target threadsync.Surface) worker.RenderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rendered == nil {
		r.rendered = map[string]int{}
	}
	r.rendered[target.ID()]++
	return worker.RenderStatus{}
}

func (r *renderer) ReplaceSurface(_, _ threadsync.Surface) bool { return true }
func (r *renderer) SurfaceLost(threadsync.Surface)              {}

func (r *renderer) renders(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rendered[id]
}

type recordingMetrics struct {
	mu     sync.Mutex
	states []string

	updates  atomic.Int64
	observed atomic.Int64
}

func (m *recordingMetrics) UpdatePass(bool)                            { m.updates.Add(1) }
func (m *recordingMetrics) RenderPass(bool)                            {}
func (m *recordingMetrics) VSyncTick(bool)                             {}
func (m *recordingMetrics) VSyncMissed(uint32)                         {}
func (m *recordingMetrics) SurfaceRequest(threadsync.RequestKind, bool) {}
func (m *recordingMetrics) Observe(threadsync.Stats, time.Duration)     { m.observed.Add(1) }

func (m *recordingMetrics) SetState(s string) {
	m.mu.Lock()
	m.states = append(m.states, s)
	m.mu.Unlock()
}

func newController(t *testing.T, sc *scene, r *renderer, mod func(*Config)) *Controller {
	t.Helper()

	cfg := Config{
		Scene:    sc,
		Renderer: r,
		Surface:  surface("main"),
		Fallback: vsync.NewTimed(vsync.WithInterval(time.Millisecond)),
	}
	if mod != nil {
		mod(&cfg)
	}

	c, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Stop() })
	return c
}

func stopWithin(t *testing.T, c *Controller) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- c.Stop() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Stop did not return")
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{Renderer: &renderer{}})
	assert.Error(t, err)

	_, err = New(Config{Scene: &scene{}})
	assert.Error(t, err)
}

func TestNewAssignsID(t *testing.T) {
	c := newController(t, &scene{}, &renderer{}, nil)
	assert.Len(t, c.ID(), 36)

	named := newController(t, &scene{}, &renderer{}, func(cfg *Config) { cfg.ID = "lobby" })
	assert.Equal(t, "lobby", named.ID())
}

func TestLifecycle(t *testing.T) {
	sc := &scene{}
	sc.keepUpdating.Store(true)
	r := &renderer{}
	c := newController(t, sc, r, nil)

	assert.Equal(t, Ready, c.State())
	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, Running, c.State())
	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyStarted)

	assert.Eventually(t, func() bool { return r.renders("main") > 3 }, waitFor, time.Millisecond)
	assert.True(t, c.Stats().FallbackVSync)

	c.Pause()
	assert.Equal(t, Paused, c.State())
	c.Pause()
	assert.Equal(t, Paused, c.State())

	c.Resume()
	assert.Equal(t, Running, c.State())
	before := r.renders("main")
	assert.Eventually(t, func() bool { return r.renders("main") > before }, waitFor, time.Millisecond)

	stopWithin(t, c)
	assert.Equal(t, Stopped, c.State())
	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyStarted)
}

func TestStopTerminatesAllLoops(t *testing.T) {
	sc := &scene{}
	sc.keepUpdating.Store(true)
	c := newController(t, sc, &renderer{}, nil)
	require.NoError(t, c.Start(context.Background()))

	assert.Eventually(t, func() bool { return sc.passes.Load() > 2 }, waitFor, time.Millisecond)

	stopWithin(t, c)
	passes := sc.passes.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, passes, sc.passes.Load(), "no update pass after Stop")
	assert.False(t, c.Stats().Sync.Running)

	// Repeated Stop returns immediately.
	stopWithin(t, c)
}

func TestStopWhilePausedAndSleeping(t *testing.T) {
	c := newController(t, &scene{}, &renderer{}, nil)
	require.NoError(t, c.Start(context.Background()))

	assert.Eventually(t, func() bool { return c.Stats().Sync.Sleeping }, waitFor, time.Millisecond)
	c.Pause()

	stopWithin(t, c)
}

func TestStopBeforeStart(t *testing.T) {
	c := newController(t, &scene{}, &renderer{}, nil)
	stopWithin(t, c)
	assert.Equal(t, Stopped, c.State())
	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyStarted)
}

func TestContextCancelStops(t *testing.T) {
	c := newController(t, &scene{}, &renderer{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool { return c.State() == Stopped }, waitFor, time.Millisecond)
	stopWithin(t, c)
}

func TestResumeAfterPauseIsIdempotent(t *testing.T) {
	c := newController(t, &scene{}, &renderer{}, nil)
	require.NoError(t, c.Start(context.Background()))

	c.Resume() // not paused: ignored
	assert.Equal(t, Running, c.State())

	c.Pause()
	c.Resume()
	c.Resume()
	assert.Equal(t, Running, c.State())
	assert.False(t, c.Stats().Sync.Paused)
}

func TestVisibility(t *testing.T) {
	sc := &scene{}
	sc.keepUpdating.Store(true)
	c := newController(t, sc, &renderer{}, nil)

	c.SetVisible(false) // not started: ignored
	assert.Equal(t, Ready, c.State())

	require.NoError(t, c.Start(context.Background()))

	c.SetVisible(false)
	assert.Equal(t, PausedWhileHidden, c.State())
	assert.True(t, c.Stats().Sync.Paused)

	c.Resume() // only showing resumes
	assert.Equal(t, PausedWhileHidden, c.State())

	passes := sc.passes.Load()
	c.RequestUpdateOnce() // ignored while hidden
	time.Sleep(20 * time.Millisecond)
	assert.LessOrEqual(t, sc.passes.Load(), passes+1)

	c.SetVisible(true)
	assert.Equal(t, Running, c.State())
	assert.Eventually(t, func() bool { return sc.passes.Load() > passes+2 }, waitFor, time.Millisecond)
}

func TestHiddenFromPaused(t *testing.T) {
	c := newController(t, &scene{}, &renderer{}, nil)
	require.NoError(t, c.Start(context.Background()))

	c.Pause()
	c.SetVisible(false)
	assert.Equal(t, PausedWhileHidden, c.State())

	c.SetVisible(true)
	assert.Equal(t, Running, c.State())
}

func TestReplaceSurfaceWhilePausedKeepsPaused(t *testing.T) {
	r := &renderer{}
	c := newController(t, &scene{}, r, nil)
	require.NoError(t, c.Start(context.Background()))
	c.Pause()
	time.Sleep(20 * time.Millisecond)
	assert.Eventually(t, func() bool { return c.Stats().Sync.UpdateReadyCount == 0 }, waitFor, time.Millisecond)

	assert.True(t, c.ReplaceSurface(surface("next")))
	assert.Equal(t, Paused, c.State())
	assert.Equal(t, 1, r.renders("next"))
}

func TestReplaceSurfaceRejected(t *testing.T) {
	c := newController(t, &scene{}, &renderer{}, nil)

	assert.False(t, c.ReplaceSurface(surface("early")), "not started")

	require.NoError(t, c.Start(context.Background()))
	assert.False(t, c.ReplaceSurface(nil))

	stopWithin(t, c)
	assert.False(t, c.ReplaceSurface(surface("late")), "stopped")
}

func TestConcurrentReplaceSurfaceIsSerialized(t *testing.T) {
	sc := &scene{}
	sc.keepUpdating.Store(true)
	r := &renderer{}
	c := newController(t, sc, r, nil)
	require.NoError(t, c.Start(context.Background()))

	var wg sync.WaitGroup
	var ok atomic.Int32
	for _, id := range []string{"a", "b", "c", "d"} {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.ReplaceSurface(surface(id)) {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(4), ok.Load())
	assert.Equal(t, uint64(4), c.Stats().Sync.RequestsServiced)
}

func TestRequestUpdateOnceWhilePaused(t *testing.T) {
	sc := &scene{}
	c := newController(t, sc, &renderer{}, nil)
	require.NoError(t, c.Start(context.Background()))

	c.Pause()
	assert.Eventually(t, func() bool { return c.Stats().Sync.UpdateReadyCount == 0 }, waitFor, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	passes := sc.passes.Load()

	c.RequestUpdateOnce()
	assert.Eventually(t, func() bool { return sc.passes.Load() == passes+1 }, waitFor, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, passes+1, sc.passes.Load())
	assert.Equal(t, Paused, c.State())
}

func TestRequestUpdateWakesSleepingUpdate(t *testing.T) {
	sc := &scene{}
	c := newController(t, sc, &renderer{}, nil)
	require.NoError(t, c.Start(context.Background()))

	assert.Eventually(t, func() bool { return c.Stats().Sync.Sleeping }, waitFor, time.Millisecond)
	passes := sc.passes.Load()

	c.RequestUpdate()
	assert.Eventually(t, func() bool { return sc.passes.Load() > passes }, waitFor, time.Millisecond)
}

func TestSetRenderRefreshRate(t *testing.T) {
	c := newController(t, &scene{}, &renderer{}, nil)

	assert.Error(t, c.SetRenderRefreshRate(0))
	require.NoError(t, c.SetRenderRefreshRate(2))
	assert.Equal(t, uint32(2), c.Stats().Sync.VSyncsPerRender)
}

func TestFrameCountersAdvance(t *testing.T) {
	sc := &scene{}
	sc.keepUpdating.Store(true)
	c := newController(t, sc, &renderer{}, nil)
	require.NoError(t, c.Start(context.Background()))

	assert.Eventually(t, func() bool { return c.FrameNumber() > 3 }, waitFor, time.Millisecond)
	assert.NotZero(t, c.TimeMicroseconds())
}

func TestMetricsWiring(t *testing.T) {
	sc := &scene{}
	sc.keepUpdating.Store(true)
	m := &recordingMetrics{}
	c := newController(t, sc, &renderer{}, func(cfg *Config) {
		cfg.Metrics = m
		cfg.SampleInterval = time.Millisecond
	})

	require.NoError(t, c.Start(context.Background()))
	assert.Eventually(t, func() bool { return m.updates.Load() > 0 && m.observed.Load() > 0 }, waitFor, time.Millisecond)

	c.Pause()
	stopWithin(t, c)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, []string{"running", "paused", "stopped"}, m.states)
}
