// Package pipeline owns the update, render and vsync workers of one frame
// pipeline and drives them through their lifecycle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/frametime"
	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/threadsync"
	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/vsync"
	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/worker"
)

// ErrAlreadyStarted is returned by Start on a controller that is not Ready.
var ErrAlreadyStarted = errors.New("pipeline: already started")

const defaultSampleInterval = time.Second

// Metrics receives worker activity and sampled pipeline state.
type Metrics interface {
	worker.Recorder
	SetState(state string)
	Observe(stats threadsync.Stats, predicted time.Duration)
}

// Config contains controller dependencies and settings.
type Config struct {
	// ID identifies the pipeline in logs and telemetry (default: random UUID).
	ID string

	MaximumUpdateCount int
	VSyncsPerRender    uint32

	Scene    worker.SceneUpdater // required
	Renderer worker.Renderer     // required

	// Surface is the initial render target. If nil, render waits for
	// ReplaceSurface.
	Surface threadsync.Surface

	// Monitor is the platform vsync source. If nil, or if it fails to
	// initialize, a timed monitor is used.
	Monitor vsync.Monitor
	// Fallback replaces the default timed monitor.
	Fallback vsync.Monitor
	Retry    vsync.RetryConfig

	Notifier threadsync.EventNotifier
	Metrics  Metrics // optional

	// SampleInterval is how often gauges are refreshed (default: 1s).
	SampleInterval time.Duration

	FrameTimerOptions []frametime.Option
}

// Stats is a controller snapshot.
type Stats struct {
	ID            string
	State         string
	FallbackVSync bool
	Sync          threadsync.Stats
	Prediction    frametime.Prediction
	FrameInterval *frametime.IntervalStats
}

// Controller is the pipeline state machine.
//
// Thread-safety: every method is safe for concurrent use. ReplaceSurface
// calls are serialized.
type Controller struct {
	cfg   Config
	timer *frametime.Timer
	sync  *threadsync.Synchronizer

	mu            sync.Mutex
	state         State
	monitor       vsync.Monitor
	fallbackVSync bool
	group         *errgroup.Group
	stopAfter     func() bool
	sampleDone    chan struct{}
	joined        chan struct{}
	joinErr       error

	replaceMu sync.Mutex
}

// New creates a controller in the Ready state.
func New(cfg Config) (*Controller, error) {
	if cfg.Scene == nil {
		return nil, fmt.Errorf("pipeline: scene updater is required")
	}
	if cfg.Renderer == nil {
		return nil, fmt.Errorf("pipeline: renderer is required")
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = defaultSampleInterval
	}

	timer := frametime.New(cfg.FrameTimerOptions...)
	synchronizer := threadsync.New(threadsync.Config{
		MaximumUpdateCount: cfg.MaximumUpdateCount,
		VSyncsPerRender:    cfg.VSyncsPerRender,
	}, timer, cfg.Notifier)

	return &Controller{
		cfg:    cfg,
		timer:  timer,
		sync:   synchronizer,
		state:  Ready,
		joined: make(chan struct{}),
	}, nil
}

// ID returns the pipeline instance ID.
func (c *Controller) ID() string { return c.cfg.ID }

// Start initializes the vsync monitor and starts the update, render and
// vsync workers, in that order. Cancelling ctx stops the pipeline.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Ready {
		return ErrAlreadyStarted
	}

	monitor, fallback, err := vsync.Initialize(ctx, c.cfg.Monitor, c.cfg.Fallback, c.cfg.Retry)
	if err != nil {
		return fmt.Errorf("pipeline: start: %w", err)
	}
	c.monitor = monitor
	c.fallbackVSync = fallback

	var recorder worker.Recorder
	if c.cfg.Metrics != nil {
		recorder = c.cfg.Metrics
	}

	c.sync.Start()

	c.group = new(errgroup.Group)
	c.group.Go(worker.NewUpdate(c.sync, c.cfg.Scene, recorder).Run)
	c.group.Go(worker.NewRender(c.sync, c.cfg.Renderer, c.cfg.Surface, recorder).Run)
	c.group.Go(worker.NewVSync(c.sync, monitor, recorder).Run)

	if c.cfg.Metrics != nil {
		c.sampleDone = make(chan struct{})
		c.group.Go(c.sampleLoop)
	}

	c.setState(Running)
	c.stopAfter = context.AfterFunc(ctx, func() {
		slog.Info("pipeline: context done, stopping", "id", c.cfg.ID)
		_ = c.Stop()
	})

	slog.Info("pipeline: started",
		"id", c.cfg.ID,
		"maximum_update_count", c.sync.MaximumUpdateCount(),
		"vsyncs_per_render", c.sync.RenderRefreshRate(),
		"fallback_vsync", fallback,
	)
	return nil
}

// Stop stops the synchronizer first so every blocked worker wakes, then
// joins the workers. Stop on a Ready controller makes it Stopped without
// starting anything. Safe to call more than once; every call returns after
// the workers have exited.
func (c *Controller) Stop() error {
	c.mu.Lock()
	switch {
	case c.state == Stopped:
		c.mu.Unlock()
		<-c.joined
		return c.joinErr
	case c.state == Ready:
		c.setState(Stopped)
		close(c.joined)
		c.mu.Unlock()
		return nil
	}

	c.setState(Stopped)
	c.stopAfter()
	c.mu.Unlock()

	c.sync.Stop()
	c.monitor.Terminate()
	if c.sampleDone != nil {
		close(c.sampleDone)
	}

	if err := c.group.Wait(); err != nil {
		c.joinErr = fmt.Errorf("pipeline: worker: %w", err)
	}
	close(c.joined)

	slog.Info("pipeline: stopped", "id", c.cfg.ID)
	return c.joinErr
}

// Pause gates the update and vsync workers. No-op unless Running.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Running {
		slog.Debug("pipeline: pause ignored", "state", c.state)
		return
	}
	c.pauseLocked()
	c.setState(Paused)
}

func (c *Controller) pauseLocked() {
	c.sync.Pause()
	// An update worker that is asleep must wake to park on the pause gate.
	c.sync.UpdateRequested()
}

// Resume restarts a paused pipeline. No-op unless Paused; a pipeline
// paused because it is hidden only resumes through SetVisible.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Paused {
		slog.Debug("pipeline: resume ignored", "state", c.state)
		return
	}
	c.resumeLocked()
}

func (c *Controller) resumeLocked() {
	c.sync.ResumeFrameTime()
	c.sync.Resume()
	c.sync.UpdateRequested()
	c.setState(Running)
}

// SetVisible reacts to the window being hidden or shown. Hiding pauses
// until shown again; showing also forces one update.
func (c *Controller) SetVisible(visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if visible {
		if c.state != PausedWhileHidden {
			return
		}
		c.resumeLocked()
		c.requestUpdateOnceLocked()
		return
	}

	if !c.state.started() {
		return
	}
	if c.state == Running {
		c.pauseLocked()
	}
	c.setState(PausedWhileHidden)
}

// ReplaceSurface swaps the render target and blocks until render has
// processed it, even while paused. Returns false if the pipeline is not
// started or render could not switch.
func (c *Controller) ReplaceSurface(s threadsync.Surface) bool {
	c.replaceMu.Lock()
	defer c.replaceMu.Unlock()

	if s == nil || !c.State().started() {
		return false
	}

	ok := c.sync.ReplaceSurface(s)
	slog.Info("pipeline: surface replace", "id", c.cfg.ID, "surface", s.ID(), "ok", ok)
	return ok
}

// SurfaceLost tells render its target is gone; rendering idles until the
// next ReplaceSurface. Does not block.
func (c *Controller) SurfaceLost() {
	if !c.State().started() {
		return
	}
	c.sync.SurfaceLost()
}

// RequestUpdate wakes a sleeping update worker. Allowed while Running or
// Paused.
func (c *Controller) RequestUpdate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Running || c.state == Paused {
		c.sync.UpdateRequested()
	}
}

// RequestUpdateOnce forces exactly one update pass, even while paused.
// Ignored while hidden.
func (c *Controller) RequestUpdateOnce() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Running || c.state == Paused {
		c.requestUpdateOnceLocked()
	}
}

func (c *Controller) requestUpdateOnceLocked() {
	c.sync.UpdateRequested()
	c.sync.UpdateWhilePaused()
}

// SetRenderRefreshRate sets how many display ticks make one render
// interval. Zero is rejected.
func (c *Controller) SetRenderRefreshRate(vsyncsPerRender uint32) error {
	if vsyncsPerRender == 0 {
		return fmt.Errorf("pipeline: refresh rate must be at least 1")
	}
	c.sync.SetRenderRefreshRate(vsyncsPerRender)
	return nil
}

// FrameNumber returns the frame number of the last display tick.
func (c *Controller) FrameNumber() uint32 { return c.sync.FrameNumber() }

// TimeMicroseconds returns the timestamp of the last display tick.
func (c *Controller) TimeMicroseconds() uint64 { return c.sync.TimeMicroseconds() }

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns a snapshot of the pipeline.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	state, fallback := c.state, c.fallbackVSync
	c.mu.Unlock()

	return Stats{
		ID:            c.cfg.ID,
		State:         state.String(),
		FallbackVSync: fallback,
		Sync:          c.sync.Stats(),
		Prediction:    c.sync.PeekNextSyncTime(),
		FrameInterval: c.timer.Stats(),
	}
}

// setState must be called with mu held.
func (c *Controller) setState(s State) {
	if c.state != s {
		slog.Debug("pipeline: state", "id", c.cfg.ID, "from", c.state, "to", s)
	}
	c.state = s
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.SetState(s.String())
	}
}

func (c *Controller) sampleLoop() error {
	ticker := time.NewTicker(c.cfg.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.sampleDone:
			return nil
		case <-ticker.C:
			c.cfg.Metrics.Observe(c.sync.Stats(), c.timer.PredictedInterval())
		}
	}
}
