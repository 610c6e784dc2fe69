// Package worker runs the three goroutines that drive a frame pipeline.
//
// Each loop exits when the synchronizer stops. Loops return error so they
// can be run by an errgroup; they currently never fail.
package worker

import (
	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/frametime"
	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/threadsync"
)

// UpdateStatus is what a scene update pass reports.
type UpdateStatus struct {
	// KeepUpdating asks for another pass regardless of render (animations).
	KeepUpdating bool
	// NeedsNotification wakes the event goroutine before render is signalled.
	NeedsNotification bool
}

// SceneUpdater advances the scene by one pass.
type SceneUpdater interface {
	Update(next frametime.Prediction) UpdateStatus
}

// RenderStatus is what a render pass reports.
type RenderStatus struct {
	// NeedsUpdate asks the update worker for another pass.
	NeedsUpdate bool
}

// Renderer draws into a surface.
//
// ReplaceSurface switches from current (nil if none) to next and reports
// success; on failure the renderer must still be able to draw to current.
// SurfaceLost tells the renderer current is gone.
type Renderer interface {
	Render(target threadsync.Surface) RenderStatus
	ReplaceSurface(current, next threadsync.Surface) bool
	SurfaceLost(current threadsync.Surface)
}

// Recorder observes worker activity. Implementations must be safe for use
// by all three workers at once.
type Recorder interface {
	UpdatePass(keepUpdating bool)
	RenderPass(rendered bool)
	VSyncTick(valid bool)
	VSyncMissed(n uint32)
	SurfaceRequest(kind threadsync.RequestKind, ok bool)
}

type nopRecorder struct{}

func (nopRecorder) UpdatePass(bool)                            {}
func (nopRecorder) RenderPass(bool)                            {}
func (nopRecorder) VSyncTick(bool)                             {}
func (nopRecorder) VSyncMissed(uint32)                         {}
func (nopRecorder) SurfaceRequest(threadsync.RequestKind, bool) {}

func orNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}
