package vsync

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/framepacer/internal/frametime"
)

// TimedMonitor emits a tick every interval, measured from the previous tick.
// It stands in for a hardware monitor at a nominal 60Hz. In reduced frame
// rate modes it ticks once per render interval instead of once per refresh.
type TimedMonitor struct {
	interval        time.Duration
	vsyncsPerRender atomic.Uint32

	mu       sync.Mutex
	last     time.Time
	sequence uint32

	done     chan struct{}
	doneOnce sync.Once
}

// TimedOption configures a TimedMonitor.
type TimedOption func(*TimedMonitor)

// WithInterval overrides the tick interval (default: 16667µs).
func WithInterval(d time.Duration) TimedOption {
	return func(m *TimedMonitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// NewTimed creates a software monitor.
func NewTimed(opts ...TimedOption) *TimedMonitor {
	m := &TimedMonitor{
		interval: frametime.DefaultFrameInterval,
		done:     make(chan struct{}),
	}
	m.vsyncsPerRender.Store(1)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetVSyncsPerRender stretches the tick period to n intervals.
func (m *TimedMonitor) SetVSyncsPerRender(n uint32) {
	if n == 0 {
		n = 1
	}
	m.vsyncsPerRender.Store(n)
}

// Interval returns the tick interval.
func (m *TimedMonitor) Interval() time.Duration { return m.interval }

// Initialize always succeeds.
func (m *TimedMonitor) Initialize() error {
	slog.Debug("vsync: timed monitor initialized", "interval", m.interval)
	return nil
}

// Wait sleeps for what is left of the period since the previous tick. If
// the previous tick is more than a period old it sleeps a full period.
// Returns an invalid tick once terminated.
func (m *TimedMonitor) Wait() Tick {
	m.mu.Lock()
	last := m.last
	m.mu.Unlock()

	period := m.interval * time.Duration(m.vsyncsPerRender.Load())
	delay := period
	if !last.IsZero() {
		if elapsed := time.Since(last); elapsed < period {
			delay = period - elapsed
		}
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-m.done:
		return Tick{}
	case <-timer.C:
	}

	now := time.Now()

	m.mu.Lock()
	m.last = now
	m.sequence++
	seq := m.sequence
	m.mu.Unlock()

	return Tick{
		Valid:        true,
		Sequence:     seq,
		Seconds:      uint32(now.Unix()),
		Microseconds: uint32(now.Nanosecond() / int(time.Microsecond)),
	}
}

// Terminate releases a blocked Wait. Safe to call more than once.
func (m *TimedMonitor) Terminate() {
	m.doneOnce.Do(func() { close(m.done) })
}
