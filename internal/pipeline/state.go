package pipeline

// State is the controller lifecycle state.
type State int

const (
	// Ready: created, workers not started.
	Ready State = iota
	// Running: workers paced by display ticks.
	Running
	// Paused: update and vsync idle; surface requests still serviced.
	Paused
	// PausedWhileHidden: paused because the window is hidden; only showing
	// the window resumes.
	PausedWhileHidden
	// Stopped: workers joined. Terminal.
	Stopped
)

// String returns a human-readable representation of the state
func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case PausedWhileHidden:
		return "paused_while_hidden"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// started reports whether workers are live in s.
func (s State) started() bool {
	return s == Running || s == Paused || s == PausedWhileHidden
}
