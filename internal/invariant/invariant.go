// Package invariant reports broken caller contracts.
//
// Violations are programming errors, not environmental failures: they are
// always logged, and builds tagged framepacer_debug panic on them so tests
// and development runs fail loudly.
package invariant

import (
	"fmt"
	"log/slog"
)

// Check reports a violation when ok is false.
//
// msg and args follow slog key/value conventions.
func Check(ok bool, msg string, args ...any) {
	if ok {
		return
	}

	slog.Error("invariant violated: "+msg, args...)

	if panicOnViolation {
		panic(fmt.Sprintf("invariant violated: %s %v", msg, args))
	}
}
