// Package frametime tracks observed display refresh ticks and predicts when
// the next refresh will happen.
//
// Display ticks are not perfectly periodic (compositor and driver jitter), so
// the prediction averages the most recent intervals instead of trusting the
// last one. Idle gaps (Sleep, Suspend) are never recorded as an interval.
package frametime

import (
	"sync"
	"time"
)

const (
	// DefaultFrameInterval is one refresh of a 60Hz display.
	DefaultFrameInterval = 16667 * time.Microsecond

	// PredictionWindow is how many recent intervals the prediction averages.
	PredictionWindow = 4

	// defaultHistorySize bounds the interval ring used by Stats (2s at 60Hz).
	defaultHistorySize = 120
)

// Clock is the time source of a Timer.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Prediction is the output of PredictNextSyncTime.
//
// Times are milliseconds since the Timer was created.
type Prediction struct {
	// LastFrameDeltaSeconds is how long the previous update frame covered.
	LastFrameDeltaSeconds float32
	// LastSyncTimeMs is the timestamp of the most recent display tick.
	LastSyncTimeMs uint32
	// NextSyncTimeMs is the predicted timestamp of the next display tick.
	NextSyncTimeMs uint32
}

// Option configures a Timer.
type Option func(*Timer)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(t *Timer) { t.clock = c }
}

// WithHistorySize sets how many intervals are kept for Stats.
// Values below PredictionWindow are raised to PredictionWindow.
func WithHistorySize(n int) Option {
	return func(t *Timer) {
		if n < PredictionWindow {
			n = PredictionWindow
		}
		t.intervals = make([]time.Duration, n)
	}
}

// Timer is safe for concurrent use. SetSyncTime is called from the vsync
// worker, Sleep/WakeUp from the update worker, Suspend/Resume from the
// controlling goroutine.
type Timer struct {
	clock Clock
	epoch time.Time

	mu              sync.Mutex
	minimumInterval time.Duration

	intervals []time.Duration // ring buffer
	head      int             // next write position
	count     int             // valid entries

	hasSync       bool
	needBaseline  bool // next tick re-anchors lastSync without recording
	lastSync      time.Time
	lastSyncFrame uint32

	hasPrevious  bool
	previousSync time.Time // lastSync reported by the previous prediction

	sleeping  bool
	suspended bool
}

// New creates a Timer anchored at the current clock time.
func New(opts ...Option) *Timer {
	t := &Timer{
		clock:           systemClock{},
		minimumInterval: DefaultFrameInterval,
		intervals:       make([]time.Duration, defaultHistorySize),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.epoch = t.clock.Now()
	return t
}

// SetMinimumFrameTimeInterval sets the floor for predicted intervals, so
// updates are never scheduled faster than the display can show them.
func (t *Timer) SetMinimumFrameTimeInterval(d time.Duration) {
	t.mu.Lock()
	t.minimumInterval = d
	t.mu.Unlock()
}

// MinimumFrameTimeInterval returns the current floor.
func (t *Timer) MinimumFrameTimeInterval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.minimumInterval
}

// SetSyncTime records a genuine display tick with sequence number frameNumber.
//
// The interval since the previous tick is divided by the number of frames
// elapsed, so a skipped tick does not double the average. Ticks while
// sleeping or suspended are ignored, and the first tick after either only
// re-anchors the history.
func (t *Timer) SetSyncTime(frameNumber uint32) {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sleeping || t.suspended {
		return
	}

	if !t.hasSync || t.needBaseline {
		t.anchor(now, frameNumber)
		return
	}

	frames := frameNumber - t.lastSyncFrame
	if frames == 0 {
		frames = 1
	}

	if interval := now.Sub(t.lastSync) / time.Duration(frames); interval > 0 {
		t.push(interval)
	}

	t.lastSync = now
	t.lastSyncFrame = frameNumber
}

// Sleep stops tracking while the update worker is idle.
func (t *Timer) Sleep() {
	t.mu.Lock()
	t.sleeping = true
	t.mu.Unlock()
}

// WakeUp resumes tracking after Sleep. The idle gap is not recorded.
func (t *Timer) WakeUp() {
	t.mu.Lock()
	t.sleeping = false
	t.needBaseline = true
	t.hasPrevious = false
	t.mu.Unlock()
}

// Suspend stops tracking across Pause/Stop and drops the interval history
// and any in-flight prediction state.
func (t *Timer) Suspend() {
	t.mu.Lock()
	t.suspended = true
	t.head, t.count = 0, 0
	t.needBaseline = true
	t.hasPrevious = false
	t.mu.Unlock()
}

// Resume restarts tracking after Suspend.
func (t *Timer) Resume() {
	t.mu.Lock()
	t.suspended = false
	t.needBaseline = true
	t.hasPrevious = false
	t.mu.Unlock()
}

// PredictNextSyncTime returns the previous frame duration, the last tick
// time and the predicted next tick time, and makes the last tick the
// baseline for the next frame duration. Only the update worker calls it.
//
// If the predicted tick is already in the past (the caller is running late)
// it is moved to the first tick after now.
func (t *Timer) PredictNextSyncTime() Prediction {
	return t.predict(true)
}

// PeekNextSyncTime returns what PredictNextSyncTime would return without
// moving the frame duration baseline. Safe for observers.
func (t *Timer) PeekNextSyncTime() Prediction {
	return t.predict(false)
}

func (t *Timer) predict(commit bool) Prediction {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	interval := t.predictedInterval()

	lastSync := now
	if t.hasSync {
		lastSync = t.lastSync
	}

	next := lastSync.Add(interval)
	if next.Before(now) {
		late := now.Sub(next)
		next = next.Add((late/interval + 1) * interval)
	}

	delta := interval
	if t.hasPrevious && lastSync.After(t.previousSync) {
		delta = lastSync.Sub(t.previousSync)
	}
	if commit {
		t.previousSync = lastSync
		t.hasPrevious = true
	}

	return Prediction{
		LastFrameDeltaSeconds: float32(delta.Seconds()),
		LastSyncTimeMs:        t.millis(lastSync),
		NextSyncTimeMs:        t.millis(next),
	}
}

// PredictedInterval returns the interval the next prediction will use.
func (t *Timer) PredictedInterval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.predictedInterval()
}

// Stats computes stability statistics over the recorded interval history.
func (t *Timer) Stats() *IntervalStats {
	t.mu.Lock()
	intervals := t.ordered()
	t.mu.Unlock()

	return CalculateIntervalStats(intervals)
}

// predictedInterval averages the last PredictionWindow intervals, clamped to
// the minimum interval. Caller holds t.mu.
func (t *Timer) predictedInterval() time.Duration {
	n := t.count
	if n > PredictionWindow {
		n = PredictionWindow
	}

	floor := t.minimumInterval
	if floor <= 0 {
		floor = time.Microsecond
	}

	if n == 0 {
		if t.minimumInterval > 0 {
			return t.minimumInterval
		}
		return DefaultFrameInterval
	}

	var sum time.Duration
	for i := 1; i <= n; i++ {
		sum += t.intervals[(t.head-i+len(t.intervals))%len(t.intervals)]
	}

	avg := sum / time.Duration(n)
	if avg < floor {
		return floor
	}
	return avg
}

func (t *Timer) anchor(now time.Time, frameNumber uint32) {
	t.hasSync = true
	t.needBaseline = false
	t.lastSync = now
	t.lastSyncFrame = frameNumber
}

func (t *Timer) push(d time.Duration) {
	t.intervals[t.head] = d
	t.head = (t.head + 1) % len(t.intervals)
	if t.count < len(t.intervals) {
		t.count++
	}
}

// ordered returns the history oldest first. Caller holds t.mu.
func (t *Timer) ordered() []time.Duration {
	out := make([]time.Duration, 0, t.count)
	start := (t.head - t.count + len(t.intervals)) % len(t.intervals)
	for i := 0; i < t.count; i++ {
		out = append(out, t.intervals[(start+i)%len(t.intervals)])
	}
	return out
}

func (t *Timer) millis(at time.Time) uint32 {
	return uint32(at.Sub(t.epoch) / time.Millisecond)
}
