package threadsync

import "sync/atomic"

// oneShot is a flag that is cleared by the reader that consumes it.
type oneShot struct {
	armed atomic.Bool
}

// Set arms the token.
func (o *oneShot) Set() { o.armed.Store(true) }

// Peek reports whether the token is armed without consuming it.
func (o *oneShot) Peek() bool { return o.armed.Load() }

// Take consumes the token and reports whether it was armed.
func (o *oneShot) Take() bool { return o.armed.Swap(false) }
