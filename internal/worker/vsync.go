package worker

import (
	"log/slog"

	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/threadsync"
	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/vsync"
)

// rateSetter is implemented by monitors that can tick at a reduced rate.
type rateSetter interface {
	SetVSyncsPerRender(n uint32)
}

// VSync forwards display ticks from a monitor to the synchronizer.
type VSync struct {
	sync     *threadsync.Synchronizer
	monitor  vsync.Monitor
	recorder Recorder
}

// NewVSync creates the vsync worker. monitor must already be initialized.
func NewVSync(sync *threadsync.Synchronizer, monitor vsync.Monitor, recorder Recorder) *VSync {
	return &VSync{sync: sync, monitor: monitor, recorder: orNop(recorder)}
}

// Run loops until the synchronizer stops. The frame number advances on
// valid ticks only. Gaps in the platform sequence are reported as missed
// refreshes; that includes refreshes that passed while the pipeline idled.
func (w *VSync) Run() error {
	slog.Debug("worker: vsync started")
	defer slog.Debug("worker: vsync stopped")

	var frameNumber, lastSequence uint32
	rate := w.sync.RenderRefreshRate()
	w.applyRate(rate)

	running := true
	for running {
		tick := w.monitor.Wait()
		if tick.Valid {
			frameNumber++
			if tick.Sequence != 0 {
				if lastSequence != 0 && tick.Sequence > lastSequence+1 {
					missed := tick.Sequence - lastSequence - 1
					slog.Debug("worker: vsync missed refreshes", "missed", missed, "sequence", tick.Sequence)
					w.recorder.VSyncMissed(missed)
				}
				lastSequence = tick.Sequence
			}
		}
		w.recorder.VSyncTick(tick.Valid)

		var current uint32
		running, current = w.sync.VSyncNotifierSyncWithUpdateAndRender(
			tick.Valid, frameNumber, tick.Seconds, tick.Microseconds, rate)
		if current != rate {
			slog.Debug("worker: render refresh rate changed", "from", rate, "to", current)
			rate = current
			w.applyRate(rate)
		}
	}

	return nil
}

func (w *VSync) applyRate(n uint32) {
	if rs, ok := w.monitor.(rateSetter); ok {
		rs.SetVSyncsPerRender(n)
	}
}
