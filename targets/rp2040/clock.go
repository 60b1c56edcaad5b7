//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"gobldc/core"
)

// RP2040 Timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWL = timerBase + 0x0C // Raw timer low word
)

var timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))

// InitClock records the boot time. The RP2040 timer is a free running
// 1MHz counter, which is core.TimerFreq.
func InitClock() {
	UpdateSystemTime()
	core.TimerInit()
}

// GetHardwareTime returns the low 32 bits of the microsecond counter
func GetHardwareTime() uint32 {
	return timerRAWL.Get()
}

// UpdateSystemTime updates the core timer with hardware time.
// Called from the main loop before processing timers.
func UpdateSystemTime() {
	core.SetTime(GetHardwareTime())
}
