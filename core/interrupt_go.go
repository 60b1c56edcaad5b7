//go:build !tinygo

package core

import "sync"

// State is a placeholder for interrupt state on regular Go
type State uintptr

// irqMask stands in for the CPU interrupt mask on regular Go. The simulator
// and tests may call into the core from several goroutines, so the critical
// section has to exclude them the same way masked interrupts do on target.
// It is not reentrant: code holding it must not call another entry point
// that masks interrupts.
var irqMask sync.Mutex

// disableInterrupts enters the critical section (regular Go implementation)
func disableInterrupts() State {
	irqMask.Lock()
	return 0
}

// restoreInterrupts leaves the critical section (regular Go implementation)
func restoreInterrupts(state State) {
	irqMask.Unlock()
}
