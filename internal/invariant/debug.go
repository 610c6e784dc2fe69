//go:build framepacer_debug

package invariant

const panicOnViolation = true
