//go:build rp2040

package main

import (
	"device/rp"
	"machine"

	"gobldc/core"
)

// ADC inputs
const (
	adcPhaseA   = 0 // GPIO26, phase A divider
	adcThrottle = 1 // GPIO27, throttle potentiometer

	adcBits = 12
)

// InitADC enables the ADC and puts the analog pins in ADC mode
func InitADC() error {
	machine.InitADC()
	for _, pin := range []machine.Pin{machine.ADC0, machine.ADC1} {
		adc := machine.ADC{Pin: pin}
		if err := adc.Configure(machine.ADCConfig{}); err != nil {
			return err
		}
	}
	return nil
}

// readADC runs one conversion and returns the raw 12-bit result. It busy
// waits for about 2us, which is short enough for the commutation timer.
func readADC(channel uint8) uint16 {
	rp.ADC.CS.ReplaceBits(
		uint32(channel)<<rp.ADC_CS_AINSEL_Pos,
		rp.ADC_CS_AINSEL_Msk,
		0,
	)

	rp.ADC.CS.SetBits(rp.ADC_CS_START_ONCE)
	for !rp.ADC.CS.HasBits(rp.ADC_CS_READY) {
	}

	return uint16(rp.ADC.RESULT.Get())
}

// ThrottleInput reads the throttle potentiometer. It implements
// core.ThrottleSource.
type ThrottleInput struct {
	channel      uint8
	periodCounts uint16
}

func NewThrottleInput(channel uint8, periodCounts uint16) *ThrottleInput {
	return &ThrottleInput{channel: channel, periodCounts: periodCounts}
}

// Throttle returns the stick position scaled to PWM counts
func (t *ThrottleInput) Throttle() uint16 {
	raw := uint32(readADC(t.channel))
	return uint16((raw * uint32(t.periodCounts)) >> adcBits)
}

var _ core.ThrottleSource = (*ThrottleInput)(nil)
