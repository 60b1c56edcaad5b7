package core

import (
	"errors"
	"fmt"
)

// PeriodDisabled is the commutation period used while the drive is off.
// The commutation timer keeps running at its slowest rate and the step
// logic has no effect.
const PeriodDisabled uint16 = 0xFFFF

// Default tuning, characterized with a 1100kv motor on a 3S battery
// (12.5V) and a 1024 count PWM period.
const (
	DefaultPWMPeriodCounts = 1024

	DefaultArmingPercent   = 8.5
	DefaultAlignPercent    = 25.0
	DefaultRampUpPercent   = 14.0
	DefaultStartupPercent  = 12.0
	DefaultShutoffPercent  = 9.0 // stalls at ~8%
	DefaultRampStartPeriod = 5632
	DefaultRampEndPeriod   = 1760
	DefaultStartupPeriod   = 1866 // slight slowdown after the ramp helps sync

	// ramp step of 1.5 counts per ms scaled by the control rate multiplier (4)
	DefaultRampStep = 6

	DefaultAlignTicks   = 200 // 200 ticks at 1 ms
	DefaultArmingTotal  = 0x0900
	DefaultArmingDelay  = 0x0200
	DefaultBeepPeriod   = 0x0200
	DefaultBeepOnTicks  = 0x0040
	DefaultArmingTiming = 0x0010 // short period while sampling battery voltage

	DefaultErrorLimit           = 50
	DefaultGain                 = 10
	DefaultClosedLoopFaultCount = 2000

	// commutation period counts tick at 4MHz
	DefaultCommCounterHz = 4000000
)

var (
	ErrInvalidParams   = errors.New("invalid controller parameters")
	ErrMissingHardware = errors.New("missing hardware collaborator")
)

// Params holds every tunable of the commutation controller. Duty values are
// PWM counts, periods are commutation counter counts and durations are
// control ticks.
type Params struct {
	PWMPeriodCounts uint16

	ArmingDuty  uint16
	AlignDuty   uint16
	RampUpDuty  uint16
	StartupDuty uint16
	ShutoffDuty uint16

	RampStartPeriod uint16
	RampEndPeriod   uint16
	StartupPeriod   uint16
	RampStep        uint16

	AlignTicks uint16

	ArmingTiming uint16
	ArmingDelay  uint16
	ArmingTotal  uint16
	BeepPeriod   uint16
	BeepOnTicks  uint16

	ErrorLimit           int16
	Gain                 int16
	ClosedLoopFaultCount uint16

	CommCounterHz uint32
}

// DefaultParams returns the default tuning for a PWM period of
// pwmPeriodCounts counts
func DefaultParams(pwmPeriodCounts uint16) Params {
	return Params{
		PWMPeriodCounts:      pwmPeriodCounts,
		ArmingDuty:           PercentToCounts(DefaultArmingPercent, pwmPeriodCounts),
		AlignDuty:            PercentToCounts(DefaultAlignPercent, pwmPeriodCounts),
		RampUpDuty:           PercentToCounts(DefaultRampUpPercent, pwmPeriodCounts),
		StartupDuty:          PercentToCounts(DefaultStartupPercent, pwmPeriodCounts),
		ShutoffDuty:          PercentToCounts(DefaultShutoffPercent, pwmPeriodCounts),
		RampStartPeriod:      DefaultRampStartPeriod,
		RampEndPeriod:        DefaultRampEndPeriod,
		StartupPeriod:        DefaultStartupPeriod,
		RampStep:             DefaultRampStep,
		AlignTicks:           DefaultAlignTicks,
		ArmingTiming:         DefaultArmingTiming,
		ArmingDelay:          DefaultArmingDelay,
		ArmingTotal:          DefaultArmingTotal,
		BeepPeriod:           DefaultBeepPeriod,
		BeepOnTicks:          DefaultBeepOnTicks,
		ErrorLimit:           DefaultErrorLimit,
		Gain:                 DefaultGain,
		ClosedLoopFaultCount: DefaultClosedLoopFaultCount,
		CommCounterHz:        DefaultCommCounterHz,
	}
}

// Validate checks the relations the state machine depends on
func (p *Params) Validate() error {
	switch {
	case p.PWMPeriodCounts == 0:
		return fmt.Errorf("%w: pwm period is zero", ErrInvalidParams)
	case p.ShutoffDuty >= p.StartupDuty:
		return fmt.Errorf("%w: shutoff duty %d must be below startup duty %d", ErrInvalidParams, p.ShutoffDuty, p.StartupDuty)
	case p.StartupDuty > p.PWMPeriodCounts || p.AlignDuty > p.PWMPeriodCounts ||
		p.RampUpDuty > p.PWMPeriodCounts || p.ArmingDuty > p.PWMPeriodCounts:
		return fmt.Errorf("%w: duty exceeds pwm period %d", ErrInvalidParams, p.PWMPeriodCounts)
	case p.RampStep == 0:
		return fmt.Errorf("%w: ramp step is zero", ErrInvalidParams)
	case p.RampEndPeriod == 0 || p.RampStartPeriod <= p.RampEndPeriod:
		return fmt.Errorf("%w: ramp must start above its end period", ErrInvalidParams)
	case p.StartupPeriod == 0 || p.StartupPeriod == PeriodDisabled:
		return fmt.Errorf("%w: startup period %d out of range", ErrInvalidParams, p.StartupPeriod)
	case p.ArmingDelay >= p.ArmingTotal:
		return fmt.Errorf("%w: arming delay must be shorter than arming total", ErrInvalidParams)
	case p.BeepPeriod == 0 || p.BeepOnTicks > p.BeepPeriod:
		return fmt.Errorf("%w: beep on-time must fit in a nonzero beep period", ErrInvalidParams)
	case p.ErrorLimit <= 0:
		return fmt.Errorf("%w: error limit must be positive", ErrInvalidParams)
	case p.Gain <= 0:
		return fmt.Errorf("%w: gain must be positive", ErrInvalidParams)
	case p.CommCounterHz == 0:
		return fmt.Errorf("%w: commutation counter rate is zero", ErrInvalidParams)
	}
	return nil
}

// armingDuty is the duty schedule while arming. After ArmingDelay ticks the
// output pulses at ArmingDuty for the first BeepOnTicks of every BeepPeriod
// (1/8 duty with the defaults), which makes the motor click audibly.
func (p Params) armingDuty(timer uint16) uint16 {
	if timer <= p.ArmingDelay {
		return 0
	}
	if timer%p.BeepPeriod >= p.BeepOnTicks {
		return 0
	}
	return p.ArmingDuty
}

// PeriodTicks converts a commutation period to system timer ticks
func (p Params) PeriodTicks(period uint16) uint32 {
	ticks := uint32((uint64(period) * TimerFreq) / uint64(p.CommCounterHz))
	if ticks == 0 {
		return 1
	}
	return ticks
}
