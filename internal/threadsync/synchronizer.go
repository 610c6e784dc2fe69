// Package threadsync paces the update, render and vsync workers of a frame
// pipeline.
//
// Goroutine topology:
//   - update worker: UpdateReadyToRun → scene update → UpdateSyncWithRender → UpdateTryToSleep
//   - render worker: RenderSyncWithUpdate → draw or service a request → RenderFinished
//   - vsync worker: wait for a display tick → VSyncNotifierSyncWithUpdateAndRender
//   - controlling goroutine: Start/Stop/Pause/Resume/ReplaceSurface/UpdateRequested
//
// Every suspension is on its own waitPoint so a notification only wakes the
// goroutine it is meant for:
//
//	point                  waiter                    released by
//	pause                  UpdateReadyToRun          Resume, UpdateWhilePaused, Stop
//	updateSleep            UpdateTryToSleep          UpdateRequested, Resume, Stop
//	renderFinished         UpdateSyncWithRender,     RenderFinished, UpdateRequested, Stop
//	                       UpdateWaitForAllRenderingToFinish
//	updateFinished         RenderSyncWithUpdate      UpdateSyncWithRender, Stop
//	vsyncReceived          waitSync                  VSyncNotifierSyncWithUpdateAndRender, Stop
//	vsyncSleep             VSyncNotifier...          Resume, UpdateWhilePaused, update wake-up, Stop
//	renderRequestSleep     RenderWaitForSurface      ReplaceSurface, SurfaceLost, Stop
//	renderRequestFinished  ReplaceSurface            RenderFinished(requestProcessed), Stop
//
// A notifier never holds two waitPoint mutexes at once.
package threadsync

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/frametime"
	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/invariant"
)

const (
	// DefaultMaximumUpdateCount is double buffering.
	DefaultMaximumUpdateCount = 2

	microsecondsPerSecond = 1000000
)

// EventNotifier wakes the event goroutine so it processes queued events.
// Trigger must be safe to call from the update worker.
type EventNotifier interface {
	Trigger()
}

type noopNotifier struct{}

func (noopNotifier) Trigger() {}

// Config contains synchronizer settings.
type Config struct {
	// MaximumUpdateCount caps how many update passes may wait for render
	// (default: 2).
	MaximumUpdateCount int
	// VSyncsPerRender is how many display ticks make one render interval
	// (default: 1).
	VSyncsPerRender uint32
}

// Synchronizer owns all state shared by the three workers.
//
// Thread-safety: every method is safe for concurrent use, but each group is
// meant to be called by one goroutine (see package doc).
type Synchronizer struct {
	maximumUpdateCount int32
	frameTimer         *frametime.Timer
	notifier           EventNotifier

	// --- Shared flags (atomic, stored before the matching notify) ---

	running         atomic.Bool
	stopped         atomic.Bool // running went false; no restart
	paused          atomic.Bool
	sleeping        atomic.Bool // update worker is idle
	updateRequested atomic.Bool
	updateRequired  atomic.Bool // last render pass asked for another update

	allowUpdateWhilePaused oneShot

	updateReadyCount atomic.Int32
	vsyncsPerRender  atomic.Uint32

	// --- Wait points ---

	pause                 *waitPoint
	updateSleep           *waitPoint
	renderFinished        *waitPoint
	updateFinished        *waitPoint
	vsyncReceived         *waitPoint
	vsyncSleep            *waitPoint
	renderRequestSleep    *waitPoint
	renderRequestFinished *waitPoint

	// Owned by vsyncReceived.mu
	syncFrameNumber  uint32
	syncSeconds      uint32
	syncMicroseconds uint32

	// Owned by updateSleep.mu: Resume released a sleeping update worker.
	resumeWake bool

	// Owned by renderRequestSleep.mu
	pending *SurfaceRequest

	// Render worker only
	inFlight *SurfaceRequest

	// --- Operational counters ---

	updatePasses     atomic.Uint64
	renderPasses     atomic.Uint64
	vsyncTicks       atomic.Uint64
	requestsServiced atomic.Uint64
}

// New creates a synchronizer. notifier may be nil.
func New(cfg Config, frameTimer *frametime.Timer, notifier EventNotifier) *Synchronizer {
	if cfg.MaximumUpdateCount <= 0 {
		cfg.MaximumUpdateCount = DefaultMaximumUpdateCount
	}
	if cfg.VSyncsPerRender == 0 {
		cfg.VSyncsPerRender = 1
	}
	if frameTimer == nil {
		frameTimer = frametime.New()
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}

	s := &Synchronizer{
		maximumUpdateCount:    int32(cfg.MaximumUpdateCount),
		frameTimer:            frameTimer,
		notifier:              notifier,
		pause:                 newWaitPoint("pause"),
		updateSleep:           newWaitPoint("update_sleep"),
		renderFinished:        newWaitPoint("render_finished"),
		updateFinished:        newWaitPoint("update_finished"),
		vsyncReceived:         newWaitPoint("vsync_received"),
		vsyncSleep:            newWaitPoint("vsync_sleep"),
		renderRequestSleep:    newWaitPoint("render_request_sleep"),
		renderRequestFinished: newWaitPoint("render_request_finished"),
	}
	s.vsyncsPerRender.Store(cfg.VSyncsPerRender)

	return s
}

// MaximumUpdateCount returns the look-ahead cap.
func (s *Synchronizer) MaximumUpdateCount() int { return int(s.maximumUpdateCount) }

// --- Controlling goroutine ---

// Start records the minimum frame interval and marks the pipeline running.
// Must be called exactly once, before any worker loop runs.
func (s *Synchronizer) Start() {
	if s.stopped.Load() || s.running.Load() {
		invariant.Check(false, "threadsync: Start on a started or stopped synchronizer",
			"running", s.running.Load(), "stopped", s.stopped.Load())
		return
	}

	s.frameTimer.SetMinimumFrameTimeInterval(s.minimumFrameInterval(s.vsyncsPerRender.Load()))
	s.running.Store(true)

	slog.Debug("threadsync: started", "maximum_update_count", s.maximumUpdateCount)
}

// Stop marks the pipeline stopped and wakes every wait point so all loops
// observe running == false and exit. Safe to call more than once.
func (s *Synchronizer) Stop() {
	s.running.Store(false)
	s.stopped.Store(true)

	// Wake if sleeping, and un-pause so nothing stays parked on paused.
	s.UpdateRequested()
	s.paused.Store(false)
	s.sleeping.Store(false)

	for _, w := range []*waitPoint{
		s.pause,
		s.updateSleep,
		s.renderFinished,
		s.updateFinished,
		s.vsyncReceived,
		s.vsyncSleep,
		s.renderRequestSleep,
		s.renderRequestFinished,
	} {
		w.notify(nil)
	}

	s.frameTimer.Suspend()

	s.updateReadyCount.Store(0)
	s.updateRequired.Store(false)
	s.updateRequested.Store(false)

	slog.Debug("threadsync: stopped")
}

// IsRunning reports whether Start was called and Stop was not.
func (s *Synchronizer) IsRunning() bool { return s.running.Load() }

// Pause gates the update and vsync workers and suspends frame tracking.
// Idempotent.
func (s *Synchronizer) Pause() {
	s.paused.Store(true)
	s.frameTimer.Suspend()
	slog.Debug("threadsync: paused")
}

// Resume clears paused and sleeping and wakes the pause, sleep and vsync
// waits, so a paused-and-sleeping pipeline resumes in one step. Idempotent.
func (s *Synchronizer) Resume() {
	s.paused.Store(false)

	s.updateSleep.notify(func() {
		if s.sleeping.Load() {
			s.resumeWake = true
		}
		s.sleeping.Store(false)
	})
	s.pause.notify(nil)
	s.vsyncSleep.notify(nil)

	s.frameTimer.Resume()
	slog.Debug("threadsync: resumed")
}

// ResumeFrameTime restarts frame tracking without resuming the workers.
func (s *Synchronizer) ResumeFrameTime() {
	s.frameTimer.Resume()
}

// UpdateRequested asks the update worker to run on its next wake even if it
// was going to sleep.
func (s *Synchronizer) UpdateRequested() {
	s.updateRequested.Store(true)

	s.updateSleep.notify(nil)
	s.renderFinished.notify(nil)
}

// UpdateWhilePaused lets exactly one update pass through while paused.
func (s *Synchronizer) UpdateWhilePaused() {
	s.allowUpdateWhilePaused.Set()

	s.vsyncSleep.notify(nil)
	s.pause.notify(nil)
}

// ReplaceSurface hands newSurface to the render worker and blocks until it
// has been processed. It forces one update/render pass so the request is
// serviced even while paused. Returns the outcome reported by render, or
// false if the pipeline is not running or stops before render answers.
//
// Callers must serialize ReplaceSurface.
func (s *Synchronizer) ReplaceSurface(newSurface Surface) bool {
	if !s.running.Load() {
		return false
	}

	req := newRequest(RequestReplaceSurface, newSurface)
	s.post(req)

	s.UpdateRequested()
	s.UpdateWhilePaused()

	s.renderRequestFinished.wait(func() bool {
		return !s.running.Load() || req.Done()
	})

	return req.Done() && req.ReplaceCompleted()
}

// SurfaceLost tells the render worker its target is gone. Render drops the
// target and waits for the next ReplaceSurface. Does not block.
func (s *Synchronizer) SurfaceLost() {
	if !s.running.Load() {
		return
	}

	s.post(newRequest(RequestSurfaceLost, nil))

	s.UpdateRequested()
	s.UpdateWhilePaused()
}

// post stores req as the pending request. A replace supersedes a pending
// surface-lost; a surface-lost never overwrites a pending replace.
func (s *Synchronizer) post(req *SurfaceRequest) {
	s.renderRequestSleep.notify(func() {
		if s.pending != nil && s.pending.kind == RequestReplaceSurface {
			if req.kind == RequestSurfaceLost {
				slog.Debug("threadsync: surface lost ignored, replace pending")
				return
			}
			invariant.Check(false, "threadsync: replace requested while another is pending")
		}
		s.pending = req
	})
}

// FrameNumber returns the frame number of the last display tick.
func (s *Synchronizer) FrameNumber() uint32 {
	var n uint32
	s.vsyncReceived.locked(func() { n = s.syncFrameNumber })
	return n
}

// TimeMicroseconds returns the timestamp of the last display tick.
func (s *Synchronizer) TimeMicroseconds() uint64 {
	var t uint64
	s.vsyncReceived.locked(func() {
		t = uint64(s.syncSeconds)*microsecondsPerSecond + uint64(s.syncMicroseconds)
	})
	return t
}

// SetRenderRefreshRate sets how many display ticks make one render interval.
// Takes effect on the next tick.
func (s *Synchronizer) SetRenderRefreshRate(vsyncsPerRender uint32) {
	if vsyncsPerRender == 0 {
		invariant.Check(false, "threadsync: refresh rate must be at least 1")
		return
	}
	s.vsyncsPerRender.Store(vsyncsPerRender)
}

// RenderRefreshRate returns the configured display ticks per render.
func (s *Synchronizer) RenderRefreshRate() uint32 { return s.vsyncsPerRender.Load() }

// PredictNextSyncTime delegates to the frame timer. Update worker only; it
// moves the frame duration baseline.
func (s *Synchronizer) PredictNextSyncTime() frametime.Prediction {
	return s.frameTimer.PredictNextSyncTime()
}

// PeekNextSyncTime is PredictNextSyncTime without side effects.
func (s *Synchronizer) PeekNextSyncTime() frametime.Prediction {
	return s.frameTimer.PeekNextSyncTime()
}

// --- Update worker ---

// UpdateReadyToRun blocks until the update worker may run a pass: while
// paused it waits for Resume or the one-shot override; otherwise it waits
// for the next display tick. A pass released from the pause wait, or let
// through by an override armed before entry, proceeds immediately instead of
// waiting for a fresh tick.
func (s *Synchronizer) UpdateReadyToRun() {
	wokenFromPause := false

	if s.paused.Load() {
		blocked := s.pause.wait(func() bool {
			return !s.running.Load() || !s.paused.Load() || s.allowUpdateWhilePaused.Peek()
		})
		overridden := s.allowUpdateWhilePaused.Take()
		wokenFromPause = blocked || overridden
	}

	if !wokenFromPause {
		s.waitSync()
	}
}

// waitSync blocks until the frame number advances past the value seen on
// entry, then consumes the pause override.
func (s *Synchronizer) waitSync() {
	var observed uint32
	s.vsyncReceived.locked(func() { observed = s.syncFrameNumber })

	s.vsyncReceived.wait(func() bool {
		return !s.running.Load() || s.syncFrameNumber != observed
	})

	s.allowUpdateWhilePaused.Take()
}

// UpdateSyncWithRender publishes a completed update pass to render.
//
// If notifyEvent is set the event goroutine is triggered first, so it starts
// working before update touches shared state. If maximumUpdateCount passes
// are already waiting, it blocks until render makes room, then increments
// the ready count and wakes render.
//
// Returns whether the pipeline is still running and the updateRequired flag
// reported by the last render pass.
func (s *Synchronizer) UpdateSyncWithRender(notifyEvent bool) (running, renderNeedsUpdate bool) {
	if notifyEvent && s.running.Load() {
		s.notifier.Trigger()
	}

	s.renderFinished.wait(func() bool {
		return !s.running.Load() || s.updateReadyCount.Load() < s.maximumUpdateCount
	})

	if !s.running.Load() {
		return false, s.updateRequired.Load()
	}

	n := s.updateReadyCount.Add(1)
	invariant.Check(n <= s.maximumUpdateCount, "threadsync: update ready count over cap",
		"count", n, "max", s.maximumUpdateCount)
	s.updatePasses.Add(1)

	s.updateFinished.notify(nil)

	return s.running.Load(), s.updateRequired.Load()
}

// UpdateWaitForAllRenderingToFinish blocks until render has consumed every
// published pass, or until a new update request or Stop arrives.
func (s *Synchronizer) UpdateWaitForAllRenderingToFinish() {
	s.renderFinished.wait(func() bool {
		return !s.running.Load() || s.updateReadyCount.Load() == 0 || s.updateRequested.Load()
	})
}

// UpdateTryToSleep parks the update worker when there is nothing to do.
//
// If neither render nor a caller asked for another pass it first waits for
// outstanding rendering, then sleeps until UpdateRequested, Resume or Stop. While
// asleep the vsync worker idles too and frame tracking is paused.
// updateRequested is cleared on exit. Returns running.
func (s *Synchronizer) UpdateTryToSleep() bool {
	if !s.updateRequired.Load() && !s.updateRequested.Load() {
		s.UpdateWaitForAllRenderingToFinish()
	}

	slept := false

	s.updateSleep.mu.Lock()
	for s.running.Load() && !s.updateRequired.Load() && !s.updateRequested.Load() && !s.resumeWake {
		if !slept {
			s.sleeping.Store(true)
			s.frameTimer.Sleep()
			slept = true
			slog.Debug("threadsync: update sleeping")
		}
		s.updateSleep.cond.Wait()
	}
	s.updateRequested.Store(false)
	s.resumeWake = false
	s.updateSleep.mu.Unlock()

	if slept {
		s.frameTimer.WakeUp()
		s.sleeping.Store(false)
		s.vsyncSleep.notify(nil)
		slog.Debug("threadsync: update woken")
	}

	return s.running.Load()
}

// --- Render worker ---

// RenderWaitForSurface blocks a render worker that has no target until a
// request is pending or Stop. It does not take the request; the next
// RenderSyncWithUpdate does. Returns running.
func (s *Synchronizer) RenderWaitForSurface() bool {
	s.renderRequestSleep.wait(func() bool {
		return !s.running.Load() || s.pending != nil
	})
	return s.running.Load()
}

// RenderSyncWithUpdate blocks until an update pass is ready or Stop.
//
// If a surface request is pending it is returned (and no longer pending);
// the caller services it instead of drawing this pass.
func (s *Synchronizer) RenderSyncWithUpdate() (running bool, req *SurfaceRequest) {
	s.updateFinished.wait(func() bool {
		return !s.running.Load() || s.updateReadyCount.Load() > 0
	})

	s.renderRequestSleep.locked(func() {
		req = s.pending
		s.pending = nil
	})
	s.inFlight = req

	return s.running.Load(), req
}

// RenderFinished consumes one published update pass and stores
// updateRequired for update to read. If requestProcessed, the request
// returned by the last RenderSyncWithUpdate is marked done and a blocked
// ReplaceSurface returns.
//
// This is the only place the ready count is decremented and the only place
// the request-finished signal is sent.
func (s *Synchronizer) RenderFinished(updateRequired, requestProcessed bool) {
	s.updateRequired.Store(updateRequired)

	for {
		n := s.updateReadyCount.Load()
		if n <= 0 {
			// Stop resets the count while render may be mid-pass.
			invariant.Check(!s.running.Load(), "threadsync: render finished with nothing ready")
			break
		}
		if s.updateReadyCount.CompareAndSwap(n, n-1) {
			break
		}
	}
	s.renderPasses.Add(1)

	s.renderFinished.notify(nil)

	if requestProcessed {
		req := s.inFlight
		s.inFlight = nil

		invariant.Check(req != nil, "threadsync: request processed without a request")
		if req != nil {
			req.done.Store(true)
			s.requestsServiced.Add(1)
		}

		s.renderRequestFinished.notify(nil)
	}
}

// --- VSync worker ---

// VSyncNotifierSyncWithUpdateAndRender records one raw display tick.
//
// vsyncsPerRender is the worker's copy of the refresh rate; the current
// value is returned so the worker can keep it. Valid ticks feed the frame
// timer. The tick is recorded as the last sync and releases waitSync.
// Then, while running, not overridden and the consumer side is sleeping or
// paused, the vsync worker itself idles. Returns running.
func (s *Synchronizer) VSyncNotifierSyncWithUpdateAndRender(
	validSync bool,
	frameNumber, seconds, microseconds uint32,
	vsyncsPerRender uint32,
) (bool, uint32) {
	if current := s.vsyncsPerRender.Load(); current != vsyncsPerRender {
		vsyncsPerRender = current
		s.frameTimer.SetMinimumFrameTimeInterval(s.minimumFrameInterval(current))
	}

	if validSync {
		s.frameTimer.SetSyncTime(frameNumber)
	}

	s.vsyncReceived.notify(func() {
		s.syncFrameNumber = frameNumber
		s.syncSeconds = seconds
		s.syncMicroseconds = microseconds
	})
	s.vsyncTicks.Add(1)

	s.vsyncSleep.wait(func() bool {
		return !s.running.Load() ||
			s.allowUpdateWhilePaused.Peek() ||
			!(s.sleeping.Load() || s.paused.Load())
	})

	return s.running.Load(), vsyncsPerRender
}

func (s *Synchronizer) minimumFrameInterval(vsyncsPerRender uint32) time.Duration {
	return time.Duration(vsyncsPerRender) * frametime.DefaultFrameInterval
}
