package worker

import (
	"log/slog"

	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/threadsync"
)

// Render draws published update passes and services surface requests.
type Render struct {
	sync     *threadsync.Synchronizer
	renderer Renderer
	recorder Recorder

	// Render goroutine only
	surface threadsync.Surface
}

// NewRender creates the render worker. initial may be nil, in which case the
// worker waits for the first ReplaceSurface.
func NewRender(sync *threadsync.Synchronizer, renderer Renderer, initial threadsync.Surface, recorder Recorder) *Render {
	return &Render{sync: sync, renderer: renderer, surface: initial, recorder: orNop(recorder)}
}

// Run loops until the synchronizer stops.
func (w *Render) Run() error {
	slog.Debug("worker: render started")
	defer slog.Debug("worker: render stopped")

	for {
		if w.surface == nil && !w.sync.RenderWaitForSurface() {
			return nil
		}

		running, req := w.sync.RenderSyncWithUpdate()
		if !running {
			return nil
		}

		processed := false
		if req != nil {
			w.service(req)
			processed = true
		}

		var status RenderStatus
		rendered := w.surface != nil
		if rendered {
			status = w.renderer.Render(w.surface)
		}
		w.recorder.RenderPass(rendered)

		w.sync.RenderFinished(status.NeedsUpdate, processed)
	}
}

func (w *Render) service(req *threadsync.SurfaceRequest) {
	switch req.Kind() {
	case threadsync.RequestReplaceSurface:
		next := req.Surface()
		ok := next != nil && w.renderer.ReplaceSurface(w.surface, next)
		if ok {
			w.surface = next
			slog.Info("worker: surface replaced", "surface", next.ID())
		} else {
			slog.Warn("worker: surface replacement failed, keeping current surface",
				"surface", surfaceID(next), "current", surfaceID(w.surface))
		}
		req.SetReplaceCompleted(ok)
		w.recorder.SurfaceRequest(req.Kind(), ok)

	case threadsync.RequestSurfaceLost:
		if w.surface != nil {
			w.renderer.SurfaceLost(w.surface)
			slog.Info("worker: surface lost", "surface", w.surface.ID())
		}
		w.surface = nil
		w.recorder.SurfaceRequest(req.Kind(), true)
	}
}

func surfaceID(s threadsync.Surface) string {
	if s == nil {
		return ""
	}
	return s.ID()
}
