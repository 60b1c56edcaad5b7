package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type phaseCall struct {
	phase Phase
	mode  PhaseMode
}

type fakePhaseDriver struct {
	modes [NumPhases]PhaseMode
	calls []phaseCall
	adc   uint16
}

func (d *fakePhaseDriver) SetPhase(p Phase, mode PhaseMode) {
	d.modes[p] = mode
	d.calls = append(d.calls, phaseCall{p, mode})
}

func (d *fakePhaseDriver) PhaseVoltage() uint16 { return d.adc }

func TestSequencerSectorTable(t *testing.T) {
	drv := &fakePhaseDriver{}
	s := NewSequencer(drv)
	require.Equal(t, [NumPhases]PhaseMode{PhaseFloat, PhaseFloat, PhaseFloat}, drv.modes)

	s.HoldSector()
	require.Equal(t, sectorTable[0], drv.modes)
	for i := 1; i <= 2*NumSectors; i++ {
		s.AdvanceSector()
		require.Equal(t, uint8(i%NumSectors), s.Sector())
		require.Equal(t, sectorTable[i%NumSectors], drv.modes)
	}

	// every sector drives exactly one phase high and one low
	for _, modes := range sectorTable {
		var pwm, low int
		for _, m := range modes {
			switch m {
			case PhasePWM:
				pwm++
			case PhaseLow:
				low++
			}
		}
		require.Equal(t, 1, pwm)
		require.Equal(t, 1, low)
	}

	s.Stop()
	require.Equal(t, [NumPhases]PhaseMode{PhaseFloat, PhaseFloat, PhaseFloat}, drv.modes)
}

func TestSequencerFloatsBeforeDriving(t *testing.T) {
	drv := &fakePhaseDriver{}
	s := NewSequencer(drv)
	s.HoldSector()

	drv.calls = nil
	s.AdvanceSector()
	require.Len(t, drv.calls, NumPhases)
	require.Equal(t, phaseCall{PhaseB, PhaseFloat}, drv.calls[0])
}

func TestSequencerTimingError(t *testing.T) {
	drv := &fakePhaseDriver{}
	s := NewSequencer(drv)
	require.False(t, s.HasTimingError())

	s.HoldSector()
	for cycle := 0; cycle < 20; cycle++ {
		for i := 0; i < NumSectors; i++ {
			switch (s.Sector() + 1) % NumSectors {
			case 0:
				drv.adc = 600
			case 2:
				drv.adc = 0x380
			case 3:
				drv.adc = 300
			}
			s.AdvanceSector()
		}
	}

	rising, falling := s.BackEMF()
	require.InDelta(t, 600, int(rising), 2)
	require.InDelta(t, 300, int(falling), 2)
	require.True(t, s.HasTimingError())
	require.Equal(t, uint16(0x380), s.BatteryVoltage())

	want := int16(int32(uint32(falling)<<6/uint32(rising)) - 64)
	require.Equal(t, want, s.TimingError())
	require.Negative(t, s.TimingError())
}

func TestSequencerHoldSamplesBattery(t *testing.T) {
	drv := &fakePhaseDriver{adc: 0x3A0}
	s := NewSequencer(drv)
	s.HoldSector()
	require.Equal(t, uint16(0x3A0), s.BatteryVoltage())
	require.Equal(t, uint8(0), s.Sector())
}
