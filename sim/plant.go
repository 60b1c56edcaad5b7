package sim

import (
	"time"

	"gobldc/core"
)

// Plant constants. A motor at StartupDuty settles at StartupPeriod, so the
// natural commutation period at duty d is NaturalConstant/d. The back-EMF
// amplitude grows with speed and saturates at BEMFMax.
const (
	NaturalConstant = core.DefaultStartupPeriod * 122
	BEMFConstant    = core.DefaultStartupPeriod * BEMFMax
	BEMFMax         = 700
	ADCMax          = 0x0FFF

	// phase A is considered turning while it changed mode this recently
	spinTimeout = 30 * time.Millisecond
)

// Plant models a sensorless BLDC motor and its power stage closely enough
// to close the back-EMF loop. It implements core.PhaseDriver,
// core.PWMDriver and core.ThrottleSource.
//
// The rotor has a natural commutation period set by the duty and the load,
// reached with a first-order lag. While phase A floats, the simulated
// divider reads a back-EMF whose falling/rising ratio encodes how far the
// commanded period is from the natural one.
type Plant struct {
	pwmPeriod uint16
	period    func() uint16 // commanded commutation period

	battery      float64
	sag          float64
	timeConstant float64
	load         float64

	duty     uint16
	throttle uint16
	modes    [core.NumPhases]core.PhaseMode
	// mode phase A had before it last floated
	floatFrom core.PhaseMode

	natural    float64
	lastChange uint32
	changes    uint32
	stalled    bool
}

// PlantConfig describes the simulated motor and battery
type PlantConfig struct {
	PWMPeriodCounts   uint16
	BatteryCounts     uint16
	SagPerDutyCount   float64
	TimeConstantTicks float64
	Load              float64
}

// NewPlant returns a stopped motor. period reports the commutation period
// the controller is commanding.
func NewPlant(cfg PlantConfig, period func() uint16) *Plant {
	return &Plant{
		pwmPeriod:    cfg.PWMPeriodCounts,
		period:       period,
		battery:      float64(cfg.BatteryCounts),
		sag:          cfg.SagPerDutyCount,
		timeConstant: cfg.TimeConstantTicks,
		load:         cfg.Load,
	}
}

// SetPhase implements core.PhaseDriver
func (p *Plant) SetPhase(ph core.Phase, mode core.PhaseMode) {
	if ph == core.PhaseA && p.modes[ph] != mode {
		if mode == core.PhaseFloat {
			p.floatFrom = p.modes[ph]
		}
		p.lastChange = core.GetTime()
		p.changes++
	}
	p.modes[ph] = mode
}

// PhaseVoltage implements core.PhaseDriver
func (p *Plant) PhaseVoltage() uint16 {
	switch p.modes[core.PhaseA] {
	case core.PhasePWM:
		return p.batteryVoltage()
	case core.PhaseLow:
		return 0
	}

	if !p.spinning() {
		return 0
	}
	period := float64(p.period())
	rising := BEMFConstant / period
	if rising > BEMFMax {
		rising = BEMFMax
	}
	if p.floatFrom == core.PhaseLow {
		return clampADC(rising)
	}
	errCounts := (p.natural - period) / 2
	return clampADC(rising * (64 + errCounts) / 64)
}

// SetDutyCycle implements core.PWMDriver. The controller calls it once per
// control tick, which is what advances the rotor model.
func (p *Plant) SetDutyCycle(v uint16) {
	p.duty = v
	if !p.spinning() {
		p.natural = 0
		return
	}
	if p.natural == 0 {
		// the rotor starts out locked to the field
		p.natural = float64(p.period())
	}
	p.natural += (p.naturalTarget() - p.natural) / p.timeConstant
}

// DutyCycle implements core.PWMDriver
func (p *Plant) DutyCycle() uint16 {
	return p.duty
}

// PeriodCounts implements core.PWMDriver
func (p *Plant) PeriodCounts() uint16 {
	return p.pwmPeriod
}

// Throttle implements core.ThrottleSource
func (p *Plant) Throttle() uint16 {
	return p.throttle
}

// SetThrottlePercent moves the simulated throttle stick
func (p *Plant) SetThrottlePercent(percent float32) {
	p.throttle = core.PercentToCounts(percent, p.pwmPeriod)
}

// Stall locks the rotor. The phase A divider then reads no back-EMF.
func (p *Plant) Stall() {
	p.stalled = true
}

// NaturalPeriod returns the period the rotor is currently turning at, or 0
// when it is not turning
func (p *Plant) NaturalPeriod() uint16 {
	return uint16(p.natural)
}

func (p *Plant) naturalTarget() float64 {
	if p.duty == 0 {
		return float64(core.PeriodDisabled)
	}
	v := NaturalConstant * p.load / float64(p.duty)
	if v > float64(core.PeriodDisabled) {
		v = float64(core.PeriodDisabled)
	}
	return v
}

func (p *Plant) spinning() bool {
	if p.stalled || p.changes < 2 {
		return false
	}
	return core.GetTime()-p.lastChange < uint32(spinTimeout/time.Microsecond)
}

func (p *Plant) batteryVoltage() uint16 {
	v := p.battery - p.sag*float64(p.duty)
	if v < 0 {
		return 0
	}
	return uint16(v)
}

func clampADC(v float64) uint16 {
	if v <= 0 {
		return 0
	}
	if v >= ADCMax {
		return ADCMax
	}
	return uint16(v)
}
