package core

import (
	"sync/atomic"

	"gobldc/protocol"
)

const (
	// UndervoltageThreshold is the battery voltage, in ADC counts, below
	// which the voltage fault bucket fills. It sits under the droop seen at
	// startup and when leaving the ramp; a stalled rotor reads ~0x02F0 on
	// 3S with the reference divider.
	UndervoltageThreshold = 0x0260

	// TelemetryDivider sends one status frame every 16 task runs
	TelemetryDivider = 0x10
)

// ThrottleSource reports the throttle position in PWM counts
type ThrottleSource interface {
	Throttle() uint16
}

// FaultUpdater feeds observations into the fault manager's buckets
type FaultUpdater interface {
	Update(id FaultID, asserted bool)
}

// PeriodicTask is the background task: throttle input, battery monitoring
// and telemetry. Wake is called from timer context; Run from the main
// loop.
type PeriodicTask struct {
	motor    *Motor
	faults   FaultUpdater
	throttle ThrottleSource
	link     *protocol.Transport

	ready atomic.Bool

	// UndervoltageThreshold may be lowered for bench supplies
	UndervoltageThreshold uint16

	throttleSMA uint16
	vsys        uint16
	runs        uint32
	lastStatus  Status
}

// NewPeriodicTask returns a task for m. link may be nil to disable
// telemetry.
func NewPeriodicTask(m *Motor, faults FaultUpdater, throttle ThrottleSource, link *protocol.Transport) *PeriodicTask {
	return &PeriodicTask{
		motor:                 m,
		faults:                faults,
		throttle:              throttle,
		link:                  link,
		UndervoltageThreshold: UndervoltageThreshold,
	}
}

// Wake marks the task ready to run
func (p *PeriodicTask) Wake() {
	p.ready.Store(true)
}

// Run runs the task if it has been woken and reports whether it ran
func (p *PeriodicTask) Run() bool {
	if !p.ready.CompareAndSwap(true, false) {
		return false
	}
	p.run()
	return true
}

func (p *PeriodicTask) run() {
	throttle := p.throttle.Throttle()

	state := disableInterrupts()
	p.throttleSMA = uint16((uint32(throttle) + uint32(p.throttleSMA)) / 2)
	arming := p.motor.opState() <= StateArming
	if !arming {
		p.motor.setSpeed(p.throttleSMA)
	}
	running := p.motor.RunState() == Running
	p.vsys = p.motor.hw.Sensor.BatteryVoltage()
	restoreInterrupts(state)

	if p.faults != nil {
		if arming {
			// the throttle has to be at zero before the motor arms
			p.faults.Update(FaultThrottleHigh, p.throttleSMA > p.motor.params.ShutoffDuty)
		}
		if running && p.vsys > 0 {
			p.faults.Update(FaultVoltage, p.vsys < p.UndervoltageThreshold)
		}
	}

	p.runs++
	if p.runs%TelemetryDivider == 0 {
		p.report()
	}
}

func (p *PeriodicTask) report() {
	st := p.motor.Snapshot()
	st.Seq = p.runs / TelemetryDivider
	st.Throttle = p.throttleSMA
	p.lastStatus = st
	if p.link != nil {
		SendStatus(p.link, &st)
	}
	if IsDebugEnabled() {
		DebugPrintln("[BLDC] " + st.State.String() +
			" spd=" + utoa(uint32(st.Speed)) +
			" ct=" + utoa(uint32(st.Period)) +
			" vs=" + utoa(uint32(st.Battery)) +
			" err=" + itoa(int(st.TimingError)) +
			" flt=" + utoa(uint32(st.Faults)))
	}
}

// Runs returns how many times the task has run
func (p *PeriodicTask) Runs() uint32 {
	return p.runs
}

// LastStatus returns the last status sample taken for telemetry
func (p *PeriodicTask) LastStatus() Status {
	return p.lastStatus
}

// Voltage returns the last battery voltage sample
func (p *PeriodicTask) Voltage() uint16 {
	return p.vsys
}
