package core

import "sync/atomic"

// FaultID identifies one fault condition. The status word carries one bit
// per fault, so at most MaxFaults are defined.
type FaultID uint8

const (
	FaultNone         FaultID = iota
	FaultClosedLoop           // closed loop control lost sync
	FaultVoltage              // battery under the shutdown threshold
	FaultThrottleHigh         // throttle not at zero on power up

	MaxFaults = 8
)

func (f FaultID) String() string {
	switch f {
	case FaultNone:
		return "none"
	case FaultClosedLoop:
		return "closed_loop"
	case FaultVoltage:
		return "voltage"
	case FaultThrottleHigh:
		return "throttle_high"
	}
	return "fault" + utoa(uint32(f))
}

// FaultStatus is the latched fault bitmap; zero means no fault
type FaultStatus uint8

// Has reports whether fault id is latched
func (s FaultStatus) Has(id FaultID) bool {
	return id != FaultNone && s&(1<<id) != 0
}

// FaultReporter is the fault collaborator of the state machine. Set and
// Init are called from the control tick with interrupts masked.
type FaultReporter interface {
	Status() FaultStatus
	Set(id FaultID)
	Init()
}

// Fault bucket sizing. Each bucket is a 6-bit counter; an asserted
// condition fills it by one per update and latches the fault once the
// bucket reaches FaultBucketSet. Cleared updates drain it by one.
const (
	FaultBucketBits  = 6
	FaultBucketLimit = 1<<FaultBucketBits - 1
	FaultBucketSet   = 48 - 1
)

type faultEntry struct {
	bucket  uint8
	enabled bool
	latched bool
}

// FaultManager tracks fault conditions with a leaky bucket per fault.
// Faults stay latched until Init.
type FaultManager struct {
	faults [MaxFaults]faultEntry
	status atomic.Uint32
}

// NewFaultManager returns an initialized manager with every fault enabled
func NewFaultManager() *FaultManager {
	f := &FaultManager{}
	f.Init()
	return f
}

// Init clears every bucket and latched fault and enables all faults
func (f *FaultManager) Init() {
	for i := range f.faults {
		f.faults[i] = faultEntry{enabled: true}
	}
	f.status.Store(0)
}

// Status returns the latched fault bitmap
func (f *FaultManager) Status() FaultStatus {
	return FaultStatus(f.status.Load())
}

// Enable enables or disables latching of a fault
func (f *FaultManager) Enable(id FaultID, enable bool) {
	if id >= MaxFaults {
		return
	}
	f.faults[id].enabled = enable
}

// Set latches a fault immediately. Disabled faults only fill their bucket.
func (f *FaultManager) Set(id FaultID) {
	if id == FaultNone || id >= MaxFaults {
		return
	}
	e := &f.faults[id]
	e.bucket = FaultBucketSet
	if !e.enabled {
		return
	}
	e.latched = true
	f.status.Store(f.status.Load() | 1<<id)
}

// Update feeds one observation of a fault condition into its bucket. It
// masks interrupts itself and must not be called from the control tick.
func (f *FaultManager) Update(id FaultID, asserted bool) {
	if id == FaultNone || id >= MaxFaults {
		return
	}
	state := disableInterrupts()
	defer restoreInterrupts(state)

	e := &f.faults[id]
	if asserted {
		if e.bucket < FaultBucketSet {
			e.bucket++
		} else if !e.latched {
			f.Set(id)
			if e.latched {
				RecordEvent(EvtFault, uint8(id), GetTime(), uint32(e.bucket), 0)
			}
		}
		return
	}
	if e.bucket > 0 {
		e.bucket--
	}
}

// Bucket returns the fill level of a fault bucket
func (f *FaultManager) Bucket(id FaultID) uint8 {
	if id >= MaxFaults {
		return 0
	}
	state := disableInterrupts()
	defer restoreInterrupts(state)

	return f.faults[id].bucket
}
