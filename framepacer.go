package framepacer

import (
	"context"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/frametime"
	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/pipeline"
	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/threadsync"
	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/vsync"
	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/worker"
)

// Config, Stats and State are re-exported from the pipeline package.
// See internal/pipeline/controller.go for full documentation.
type (
	Config = pipeline.Config
	Stats  = pipeline.Stats
	State  = pipeline.State
)

// Lifecycle states, re-exported from the pipeline package.
const (
	Ready             = pipeline.Ready
	Running           = pipeline.Running
	Paused            = pipeline.Paused
	PausedWhileHidden = pipeline.PausedWhileHidden
	Stopped           = pipeline.Stopped
)

// ErrAlreadyStarted is returned by Start on a pipeline that is not Ready.
var ErrAlreadyStarted = pipeline.ErrAlreadyStarted

// Client-implemented collaborators.
type (
	Surface       = threadsync.Surface
	EventNotifier = threadsync.EventNotifier
	SceneUpdater  = worker.SceneUpdater
	UpdateStatus  = worker.UpdateStatus
	Renderer      = worker.Renderer
	RenderStatus  = worker.RenderStatus
	Prediction    = frametime.Prediction
)

// Vsync sources.
type (
	Monitor      = vsync.Monitor
	Tick         = vsync.Tick
	RetryConfig  = vsync.RetryConfig
	TimedMonitor = vsync.TimedMonitor
	TimedOption  = vsync.TimedOption
)

// NewTimedMonitor returns a monitor that ticks at a fixed interval.
func NewTimedMonitor(opts ...TimedOption) *TimedMonitor {
	return vsync.NewTimed(opts...)
}

// WithInterval sets the timed monitor tick period.
func WithInterval(d time.Duration) TimedOption { return vsync.WithInterval(d) }

// Pipeline is the public interface of a paced frame pipeline.
//
// Lifecycle: New() → Start() → Pause()/Resume()/RequestUpdate()/... → Stop()
//
// Thread-safety: all methods safe for concurrent use.
type Pipeline interface {
	// Start initializes the vsync monitor (falling back to timed ticks after
	// retries) and spawns the update, render and vsync workers.
	// Cancelling ctx stops the pipeline.
	//
	// Returns: ErrAlreadyStarted unless Ready.
	Start(ctx context.Context) error

	// Stop releases every blocked worker and joins them.
	// Idempotent. Stop before Start moves straight to Stopped.
	Stop() error

	// Pause gates update and vsync. No-op unless Running.
	Pause()

	// Resume restarts the frame timer and releases the workers.
	// No-op unless Paused.
	Resume()

	// SetVisible(false) moves Paused to PausedWhileHidden and pauses a
	// Running pipeline. SetVisible(true) only leaves PausedWhileHidden.
	SetVisible(visible bool)

	// ReplaceSurface blocks until render has switched to s, even while
	// paused. Returns false if the pipeline is not started, s is nil or
	// the renderer rejected s.
	ReplaceSurface(s Surface) bool

	// SurfaceLost tells render to drop its surface and wait for a new one.
	SurfaceLost()

	// RequestUpdate wakes a sleeping update worker.
	RequestUpdate()

	// RequestUpdateOnce runs one update and render pass even while paused.
	// Ignored while hidden.
	RequestUpdateOnce()

	// SetRenderRefreshRate renders once every vsyncsPerRender ticks.
	SetRenderRefreshRate(vsyncsPerRender uint32) error

	// FrameNumber and TimeMicroseconds describe the last display tick.
	FrameNumber() uint32
	TimeMicroseconds() uint64

	State() State
	Stats() Stats
	ID() string
}

// New creates a pipeline in the Ready state. Scene and Renderer are
// required.
func New(cfg Config) (Pipeline, error) {
	c, err := pipeline.New(cfg)
	if err != nil {
		return nil, err
	}
	return c, nil
}
