package core

import (
	"fmt"
	"sync/atomic"
)

// Hardware bundles the collaborators a Motor drives. All of them are
// required.
type Hardware struct {
	Backend CommutationBackend
	PWM     PWMDriver
	Faults  FaultReporter
	Sensor  TimingSensor
}

// Motor is the commutation state machine for one sensorless BLDC motor.
//
// Tick runs at the control rate and owns every field. The commutation
// timer only calls CommutationStep, which reads the state cell and nothing
// else. The state, period and speed cells are atomic so observers never see
// a torn value; multi-field updates happen inside the critical section.
type Motor struct {
	hw     Hardware
	params Params

	state  atomic.Uint32 // OpState
	period atomic.Uint32 // commutation period, counter counts
	speed  atomic.Uint32 // commanded duty, PWM counts

	opTimer     uint16 // ALIGN countdown
	armingTimer uint16 // ARMING elapsed ticks
	faultCount  uint16 // CLOSED_LOOP hysteresis, ClosedLoopFaultCount down to 0
	duty        uint16 // last commanded duty
	rejecting   bool   // last corrector sample was out of bound
}

// NewMotor validates params and returns a motor in StateUninitialized. The
// first Tick moves it to StateArming.
func NewMotor(hw Hardware, params Params) (*Motor, error) {
	switch {
	case hw.Backend == nil:
		return nil, fmt.Errorf("%w: commutation backend", ErrMissingHardware)
	case hw.PWM == nil:
		return nil, fmt.Errorf("%w: pwm driver", ErrMissingHardware)
	case hw.Faults == nil:
		return nil, fmt.Errorf("%w: fault reporter", ErrMissingHardware)
	case hw.Sensor == nil:
		return nil, fmt.Errorf("%w: timing sensor", ErrMissingHardware)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	m := &Motor{hw: hw, params: params}
	m.period.Store(uint32(PeriodDisabled))
	return m, nil
}

// MustNewMotor is NewMotor for board bring-up code where a wiring error is
// fatal
func MustNewMotor(hw Hardware, params Params) *Motor {
	m, err := NewMotor(hw, params)
	if err != nil {
		panic(err)
	}
	return m
}

// Params returns the tuning the motor was built with
func (m *Motor) Params() Params {
	return m.params
}

func (m *Motor) opState() OpState {
	return OpState(m.state.Load())
}

func (m *Motor) setPeriod(v uint16) {
	m.period.Store(uint32(v))
}

// enter switches state and initializes the per-state data of the new state
func (m *Motor) enter(s OpState) {
	prev := m.opState()
	switch s {
	case StateArming:
		m.armingTimer = 0
	case StateAlign:
		m.opTimer = m.params.AlignTicks
	case StateClosedLoop:
		m.faultCount = m.params.ClosedLoopFaultCount
	}
	m.state.Store(uint32(s))
	if prev != s {
		RecordEvent(EvtStateChange, uint8(s), GetTime(), uint32(prev), uint32(m.period.Load()))
	}
}

// stop floats the phases and clears the commanded speed, leaving the
// operating state alone
func (m *Motor) stop() {
	m.hw.Backend.Stop()
	m.speed.Store(0)
}

func (m *Motor) reset() {
	m.stop()
	m.setPeriod(PeriodDisabled)
	m.rejecting = false
	m.hw.Faults.Init()
	m.enter(StateStopped)
	RecordEvent(EvtReset, uint8(StateStopped), GetTime(), 0, 0)
}

// Reset stops the motor, disables commutation, re-initializes the fault
// manager and forces StateStopped. Safe to call at any time, including
// after a fault.
func (m *Motor) Reset() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	m.reset()
}

// SetSpeed sets the commanded duty. Values at or below the shutoff duty
// stop the motor. A stopped motor only starts above the startup duty; once
// running, any value above shutoff is taken.
func (m *Motor) SetSpeed(v uint16) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	m.setSpeed(v)
}

// setSpeed is SetSpeed for callers already inside the critical section
func (m *Motor) setSpeed(v uint16) {
	if v <= m.params.ShutoffDuty {
		m.stop()
		return
	}
	if v > m.params.StartupDuty || m.speed.Load() != 0 {
		m.speed.Store(uint32(v))
	}
}

// Speed returns the commanded duty in PWM counts
func (m *Motor) Speed() uint16 {
	return uint16(m.speed.Load())
}

// Timing returns the commutation period in counter counts
func (m *Motor) Timing() uint16 {
	return uint16(m.period.Load())
}

// SetTiming overrides the commutation period
func (m *Motor) SetTiming(v uint16) {
	m.setPeriod(v)
}

// RunState reports Running while the commanded duty is above shutoff
func (m *Motor) RunState() RunState {
	if m.Speed() > m.params.ShutoffDuty {
		return Running
	}
	return NotRunning
}

// OpState returns the current operating state
func (m *Motor) OpState() OpState {
	return m.opState()
}

// SetOpState forces the operating state. Entering a state initializes its
// timers and counters as a normal transition would. Intended for bring-up
// and tests.
func (m *Motor) SetOpState(s OpState) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	m.enter(s)
}

// HysteresisCounter returns the remaining closed loop rejections tolerated
// before a fault is raised
func (m *Motor) HysteresisCounter() uint16 {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	return m.faultCount
}

// Tick advances the state machine by one control period, applies the
// resulting duty to the PWM driver and returns it.
func (m *Motor) Tick() uint16 {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	duty := m.step()
	m.duty = duty
	m.hw.PWM.SetDutyCycle(duty)
	return duty
}

func (m *Motor) step() uint16 {
	if m.hw.Faults.Status() != 0 {
		// frozen: the state is kept for inspection until Reset
		m.stop()
		return 0
	}

	p := &m.params
	duty := m.Speed()

	switch m.opState() {
	case StateUninitialized:
		m.enter(StateArming)
		return 0

	case StateArming:
		m.setPeriod(p.ArmingTiming)
		if m.armingTimer >= p.ArmingTotal {
			m.reset()
			return 0
		}
		m.armingTimer++
		return p.armingDuty(m.armingTimer)

	case StateStopped:
		if duty > 0 {
			m.enter(StateAlign)
			m.setPeriod(p.RampStartPeriod)
		}

	case StateAlign:
		if m.opTimer > 0 {
			m.opTimer--
			return p.AlignDuty
		}
		m.enter(StateRampUp)

	case StateRampUp:
		period := m.Timing()
		m.setPeriod(RampTiming(period, p.RampEndPeriod, p.RampStep))
		if period <= p.RampEndPeriod {
			m.enter(StateOpenLoop)
		}
		return p.RampUpDuty

	case StateOpenLoop:
		period := m.Timing()
		m.setPeriod(RampTiming(period, p.StartupPeriod, p.RampStep))
		if _, ok := m.closedLoopCorrect(period); ok {
			m.enter(StateClosedLoop)
		}
		return p.StartupDuty

	case StateClosedLoop:
		if _, ok := m.closedLoopCorrect(m.Timing()); ok {
			m.faultCount = p.ClosedLoopFaultCount
		} else if m.faultCount > 0 {
			m.faultCount--
		} else {
			m.hw.Faults.Set(FaultClosedLoop)
			RecordEvent(EvtFault, uint8(FaultClosedLoop), GetTime(), uint32(m.Timing()), 0)
		}
	}
	return duty
}

// CommutationStep is called from the commutation timer. ARMING and ALIGN
// hold sector 0; the spinning states advance one sector; anything else does
// nothing.
func (m *Motor) CommutationStep() {
	switch m.opState() {
	case StateArming, StateAlign:
		m.hw.Backend.HoldSector()
	case StateRampUp, StateOpenLoop, StateClosedLoop:
		m.hw.Backend.AdvanceSector()
	}
}
