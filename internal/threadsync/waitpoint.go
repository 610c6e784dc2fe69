package threadsync

import (
	"log/slog"
	"sync"
)

// waitPoint is one {mutex, condition, predicate} triple.
//
// Predicates run with mu held. Anything a predicate reads is either owned by
// mu or is an atomic that is stored before notify is called, so a waiter can
// never miss the state change that should release it.
type waitPoint struct {
	name string
	mu   sync.Mutex
	cond *sync.Cond
}

func newWaitPoint(name string) *waitPoint {
	w := &waitPoint{name: name}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// wait blocks until ready reports true and reports whether it blocked.
func (w *waitPoint) wait(ready func() bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	blocked := false
	for !ready() {
		if !blocked {
			slog.Debug("threadsync: wait", "point", w.name)
			blocked = true
		}
		w.cond.Wait()
	}

	if blocked {
		slog.Debug("threadsync: released", "point", w.name)
	}
	return blocked
}

// notify runs mutate (if any) under mu and wakes every waiter.
func (w *waitPoint) notify(mutate func()) {
	w.mu.Lock()
	if mutate != nil {
		mutate()
	}
	w.cond.Broadcast()
	w.mu.Unlock()
}

// locked runs fn under mu without waking anyone.
func (w *waitPoint) locked(fn func()) {
	w.mu.Lock()
	fn()
	w.mu.Unlock()
}
