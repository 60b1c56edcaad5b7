package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultParams(t *testing.T) {
	p := DefaultParams(1024)
	require.NoError(t, p.Validate())

	require.Equal(t, uint16(87), p.ArmingDuty)
	require.Equal(t, uint16(256), p.AlignDuty)
	require.Equal(t, uint16(143), p.RampUpDuty)
	require.Equal(t, uint16(122), p.StartupDuty)
	require.Equal(t, uint16(92), p.ShutoffDuty)
	require.Equal(t, uint16(5632), p.RampStartPeriod)
	require.Equal(t, uint16(1760), p.RampEndPeriod)
	require.Equal(t, uint16(1866), p.StartupPeriod)
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(p *Params)
	}{
		{"zero pwm period", func(p *Params) { p.PWMPeriodCounts = 0 }},
		{"shutoff above startup", func(p *Params) { p.ShutoffDuty = p.StartupDuty + 1 }},
		{"duty above period", func(p *Params) { p.AlignDuty = p.PWMPeriodCounts + 1 }},
		{"zero ramp step", func(p *Params) { p.RampStep = 0 }},
		{"inverted ramp", func(p *Params) { p.RampEndPeriod = p.RampStartPeriod }},
		{"disabled startup period", func(p *Params) { p.StartupPeriod = PeriodDisabled }},
		{"arming delay too long", func(p *Params) { p.ArmingDelay = p.ArmingTotal }},
		{"beep longer than period", func(p *Params) { p.BeepOnTicks = p.BeepPeriod + 1 }},
		{"zero error limit", func(p *Params) { p.ErrorLimit = 0 }},
		{"zero gain", func(p *Params) { p.Gain = 0 }},
		{"zero counter rate", func(p *Params) { p.CommCounterHz = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParams(DefaultPWMPeriodCounts)
			tc.modify(&p)
			require.ErrorIs(t, p.Validate(), ErrInvalidParams)
		})
	}
}

func TestArmingDutySchedule(t *testing.T) {
	p := DefaultParams(DefaultPWMPeriodCounts)
	on := 0
	for timer := uint16(p.ArmingDelay + 1); timer <= p.ArmingDelay+p.BeepPeriod; timer++ {
		if p.armingDuty(timer) != 0 {
			on++
		}
	}
	// one eighth of each beep period
	require.Equal(t, int(p.BeepPeriod/8), on)
	require.Zero(t, p.armingDuty(p.ArmingDelay))
}

func TestPeriodTicks(t *testing.T) {
	p := DefaultParams(DefaultPWMPeriodCounts)
	require.Equal(t, uint32(466), p.PeriodTicks(1866))
	require.Equal(t, uint32(4), p.PeriodTicks(0x10))
	require.Equal(t, uint32(1), p.PeriodTicks(1))
	require.Equal(t, uint32(16383), p.PeriodTicks(PeriodDisabled))
}

func TestPercentToCounts(t *testing.T) {
	require.Zero(t, PercentToCounts(-1, 1024))
	require.Equal(t, uint16(1024), PercentToCounts(150, 1024))
	require.Equal(t, uint16(512), PercentToCounts(50, 1024))
}

func TestCountsToPercent(t *testing.T) {
	require.Zero(t, CountsToPercent(100, 0))
	require.InDelta(t, 25.0, CountsToPercent(256, 1024), 0.001)
	require.InDelta(t, 100.0, CountsToPercent(1024, 1024), 0.001)
	// round trip through the truncating conversion stays within one count
	require.InDelta(t, 12.0, CountsToPercent(PercentToCounts(12, 1024), 1024), 100.0/1024)
}
