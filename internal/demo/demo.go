// Package demo provides a simulated scene and renderer so the daemon can
// run the pipeline without a display.
package demo

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/frametime"
	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/threadsync"
	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/worker"
)

// Surface is a named off-screen render target.
type Surface struct {
	name string
}

// NewSurface creates a surface.
func NewSurface(name string) *Surface { return &Surface{name: name} }

// ID returns the surface name.
func (s *Surface) ID() string { return s.name }

// Scene keeps updating for a fixed number of passes after each Animate call,
// then reports idle so the update worker sleeps.
type Scene struct {
	animateFrames int64
	cost          time.Duration

	remaining atomic.Int64
	passes    atomic.Uint64
	nextSync  atomic.Uint32
}

// NewScene creates a scene. cost is slept on every pass.
func NewScene(animateFrames int, cost time.Duration) *Scene {
	s := &Scene{animateFrames: int64(animateFrames), cost: cost}
	s.Animate()
	return s
}

// Animate starts (or restarts) an animation.
func (s *Scene) Animate() { s.remaining.Store(s.animateFrames) }

// Update implements worker.SceneUpdater. The last pass of an animation asks
// for an event notification.
func (s *Scene) Update(next frametime.Prediction) worker.UpdateStatus {
	if s.cost > 0 {
		time.Sleep(s.cost)
	}
	s.passes.Add(1)
	s.nextSync.Store(next.NextSyncTimeMs)

	left := s.remaining.Add(-1)
	if left < 0 {
		s.remaining.Store(0)
	}
	return worker.UpdateStatus{
		KeepUpdating:      left > 0,
		NeedsNotification: left == 0,
	}
}

// NextSyncTimeMs returns the display time the last pass was prepared for.
func (s *Scene) NextSyncTimeMs() uint32 { return s.nextSync.Load() }

// Passes returns the number of update passes run.
func (s *Scene) Passes() uint64 { return s.passes.Load() }

// Renderer counts frames drawn per pass and simulates draw cost.
type Renderer struct {
	cost time.Duration

	frames   atomic.Uint64
	replaced atomic.Uint64
	rejectID atomic.Value // string
}

// NewRenderer creates a renderer. cost is slept on every drawn frame.
func NewRenderer(cost time.Duration) *Renderer {
	r := &Renderer{cost: cost}
	r.rejectID.Store("")
	return r
}

// Reject makes ReplaceSurface fail for surfaces with the given ID.
func (r *Renderer) Reject(id string) { r.rejectID.Store(id) }

// Render implements worker.Renderer.
func (r *Renderer) Render(threadsync.Surface) worker.RenderStatus {
	if r.cost > 0 {
		time.Sleep(r.cost)
	}
	r.frames.Add(1)
	return worker.RenderStatus{}
}

// ReplaceSurface implements worker.Renderer.
func (r *Renderer) ReplaceSurface(current, next threadsync.Surface) bool {
	if next.ID() == r.rejectID.Load().(string) {
		slog.Warn("demo: surface rejected", "surface", next.ID())
		return false
	}
	r.replaced.Add(1)
	return true
}

// SurfaceLost implements worker.Renderer.
func (r *Renderer) SurfaceLost(current threadsync.Surface) {
	slog.Info("demo: surface lost", "surface", current.ID())
}

// Frames returns the number of frames drawn.
func (r *Renderer) Frames() uint64 { return r.frames.Load() }

// Replaced returns the number of successful surface replacements.
func (r *Renderer) Replaced() uint64 { return r.replaced.Load() }

// Notifier counts event wake-ups requested by the update worker.
type Notifier struct {
	triggers atomic.Uint64
}

// Trigger implements threadsync.EventNotifier.
func (n *Notifier) Trigger() {
	n.triggers.Add(1)
	slog.Debug("demo: event notification")
}

// Triggers returns the number of Trigger calls.
func (n *Notifier) Triggers() uint64 { return n.triggers.Load() }
