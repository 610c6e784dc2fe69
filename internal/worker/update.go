package worker

import (
	"log/slog"

	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/threadsync"
)

// Update runs scene update passes paced by the synchronizer.
type Update struct {
	sync     *threadsync.Synchronizer
	scene    SceneUpdater
	recorder Recorder
}

// NewUpdate creates the update worker. recorder may be nil.
func NewUpdate(sync *threadsync.Synchronizer, scene SceneUpdater, recorder Recorder) *Update {
	return &Update{sync: sync, scene: scene, recorder: orNop(recorder)}
}

// Run loops until the synchronizer stops.
//
// A pass is followed by another while the scene keeps updating or render
// asked for one; otherwise the worker tries to sleep.
func (w *Update) Run() error {
	slog.Debug("worker: update started")
	defer slog.Debug("worker: update stopped")

	running := true
	for running {
		w.sync.UpdateReadyToRun()
		if !w.sync.IsRunning() {
			break
		}

		status := w.scene.Update(w.sync.PredictNextSyncTime())

		var renderNeedsUpdate bool
		running, renderNeedsUpdate = w.sync.UpdateSyncWithRender(status.NeedsNotification)
		if !running {
			break
		}
		w.recorder.UpdatePass(status.KeepUpdating)

		if !status.KeepUpdating && !renderNeedsUpdate {
			running = w.sync.UpdateTryToSleep()
		}
	}

	return nil
}
