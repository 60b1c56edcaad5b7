package core

import "sync/atomic"

// Phase is one of the three motor phases
type Phase uint8

const (
	PhaseA Phase = iota
	PhaseB
	PhaseC

	NumPhases = 3
)

// PhaseMode is the drive applied to one half bridge
type PhaseMode uint8

const (
	PhaseFloat PhaseMode = iota // half bridge disabled, phase floats
	PhaseLow                    // low side on, phase at 0V
	PhasePWM                    // high side switched by the PWM duty
)

// PhaseDriver is the hardware abstraction for the three half bridges
type PhaseDriver interface {
	// SetPhase configures one half bridge.
	// Called from the commutation timer; must not block.
	SetPhase(p Phase, mode PhaseMode)

	// PhaseVoltage returns the latest ADC sample of the phase A divider
	PhaseVoltage() uint16
}

// NumSectors is the length of the six-step sequence
const NumSectors = 6

// Each sector spans 60 electrical degrees. Phase A is the sensed phase: it
// floats rising during sector 5 and falling during sector 2.
var sectorTable = [NumSectors][NumPhases]PhaseMode{
	{PhasePWM, PhaseLow, PhaseFloat},
	{PhasePWM, PhaseFloat, PhaseLow},
	{PhaseFloat, PhasePWM, PhaseLow},
	{PhaseLow, PhasePWM, PhaseFloat},
	{PhaseLow, PhaseFloat, PhasePWM},
	{PhaseFloat, PhaseLow, PhasePWM},
}

const (
	// BackEMFPlausible is the minimum sum of rising and falling back-EMF
	// samples for the timing error to be trusted
	BackEMFPlausible = 0x0190 * 2

	timingErrorShift = 6
	timingErrorOne   = 1 << timingErrorShift
)

// Sequencer runs the six-step commutation sequence on a PhaseDriver and
// derives the commutation timing error from the phase A back-EMF. It
// implements both CommutationBackend and TimingSensor.
//
// Sector methods run on the commutation timer; the sensor accessors may be
// called from the control tick, so measurements are published atomically.
type Sequencer struct {
	drv    PhaseDriver
	sector uint8

	rising      atomic.Uint32
	falling     atomic.Uint32
	vbatt       atomic.Uint32
	timingError atomic.Int32
}

// NewSequencer returns a sequencer with all phases floating
func NewSequencer(drv PhaseDriver) *Sequencer {
	s := &Sequencer{drv: drv}
	s.Stop()
	return s
}

// Sector returns the sector last applied
func (s *Sequencer) Sector() uint8 {
	return s.sector
}

// HoldSector applies sector 0 and samples the battery voltage, which is
// what the phase A divider reads while phase A is driven
func (s *Sequencer) HoldSector() {
	s.sector = 0
	s.apply(0)
	s.vbatt.Store(uint32(s.drv.PhaseVoltage()))
}

// AdvanceSector steps to the next sector
func (s *Sequencer) AdvanceSector() {
	s.sector++
	if s.sector >= NumSectors {
		s.sector = 0
	}
	s.apply(s.sector)
}

// Stop floats every phase
func (s *Sequencer) Stop() {
	for p := Phase(0); p < NumPhases; p++ {
		s.drv.SetPhase(p, PhaseFloat)
	}
}

func (s *Sequencer) apply(sector uint8) {
	adc := uint32(s.drv.PhaseVoltage())
	switch sector {
	case 0:
		// phase A floated rising during sector 5
		s.rising.Store((s.rising.Load() + adc) >> 1)
	case 2:
		// phase A was driven during sector 1
		s.vbatt.Store(adc)
	case 3:
		// phase A floated falling during sector 2
		s.falling.Store((s.falling.Load() + adc) >> 1)
	case 5:
		s.updateTimingError()
	}

	// float first so a phase is never driven high and low at once
	modes := &sectorTable[sector]
	for p := Phase(0); p < NumPhases; p++ {
		if modes[p] == PhaseFloat {
			s.drv.SetPhase(p, PhaseFloat)
		}
	}
	for p := Phase(0); p < NumPhases; p++ {
		if modes[p] != PhaseFloat {
			s.drv.SetPhase(p, modes[p])
		}
	}
}

// updateTimingError computes falling/rising - 1 scaled by 64. It is
// positive when timing is advanced.
func (s *Sequencer) updateTimingError() {
	rising := s.rising.Load()
	if rising == 0 {
		return
	}
	e := int32((s.falling.Load()<<timingErrorShift)/rising) - timingErrorOne
	if e > 0x7FFF {
		e = 0x7FFF
	}
	s.timingError.Store(e)
}

// HasTimingError reports whether the back-EMF is strong enough to trust the
// timing error
func (s *Sequencer) HasTimingError() bool {
	return s.rising.Load()+s.falling.Load() > BackEMFPlausible
}

// TimingError returns the last computed timing error
func (s *Sequencer) TimingError() int16 {
	return int16(s.timingError.Load())
}

// BatteryVoltage returns the last battery voltage sample in ADC counts
func (s *Sequencer) BatteryVoltage() uint16 {
	return uint16(s.vbatt.Load())
}

// BackEMF returns the averaged rising and falling back-EMF samples
func (s *Sequencer) BackEMF() (rising, falling uint16) {
	return uint16(s.rising.Load()), uint16(s.falling.Load())
}
