// Package vsync provides display refresh sources for the vsync worker.
//
// A Monitor is a platform vsync primitive. When none can be initialized the
// worker falls back to a TimedMonitor, which produces software ticks at a
// fixed interval.
package vsync

// Tick is one display refresh reported by a Monitor.
type Tick struct {
	// Valid is false when the monitor woke without observing a refresh
	// (timeout, terminated). Invalid ticks do not advance the frame count.
	Valid bool

	// Sequence is the platform refresh counter, or 0 if the platform has
	// none. A jump of more than one between valid ticks is a missed refresh.
	Sequence uint32

	// Wall-clock time of the refresh.
	Seconds      uint32
	Microseconds uint32
}

// Monitor is a blocking source of display refresh ticks.
//
// Wait is called from the vsync worker only. Terminate may be called from
// any goroutine and must release a blocked Wait.
type Monitor interface {
	Initialize() error
	Wait() Tick
	Terminate()
}
