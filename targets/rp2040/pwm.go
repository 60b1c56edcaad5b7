//go:build rp2040

package main

import (
	"machine"

	"gobldc/core"
)

// PWMFrequency is the half bridge switching frequency
const PWMFrequency = 24000

// pwmPeripheral is an interface for PWM hardware peripherals
// This abstracts over TinyGo's unexported *pwmGroup type
type pwmPeripheral interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
}

// BridgePins is the wiring of one half bridge: the high side gate is
// driven by a PWM channel, the low side gate by a plain GPIO.
type BridgePins struct {
	High machine.Pin
	Low  machine.Pin
}

type halfBridge struct {
	pins    BridgePins
	pwm     pwmPeripheral
	channel uint8
	mode    core.PhaseMode
}

// PhaseBridge drives the three half bridges. It implements core.PhaseDriver
// and core.PWMDriver; the duty is applied to whichever phase is in
// PhasePWM mode.
type PhaseBridge struct {
	phases       [core.NumPhases]halfBridge
	periodCounts uint16
	duty         uint16
	sense        uint8 // ADC input of the phase A divider
}

// NewPhaseBridge returns a bridge for the given pins. Configure must be
// called before use.
func NewPhaseBridge(a, b, c BridgePins, periodCounts uint16, senseChannel uint8) *PhaseBridge {
	d := &PhaseBridge{periodCounts: periodCounts, sense: senseChannel}
	for i, pins := range [core.NumPhases]BridgePins{a, b, c} {
		d.phases[i].pins = pins
	}
	return d
}

// Configure sets up the PWM slices and low side pins with every phase
// floating
func (d *PhaseBridge) Configure() error {
	for i := range d.phases {
		hb := &d.phases[i]
		hb.pins.Low.Configure(machine.PinConfig{Mode: machine.PinOutput})
		hb.pins.Low.Low()

		// RP2040: GPIO pin N maps to slice (N >> 1) & 0x7
		hb.pwm = getPWMPeripheral(uint8((uint32(hb.pins.High) >> 1) & 0x7))
		err := hb.pwm.Configure(machine.PWMConfig{
			Period: 1000000000 / PWMFrequency,
		})
		if err != nil {
			return err
		}
		ch, err := hb.pwm.Channel(hb.pins.High)
		if err != nil {
			return err
		}
		hb.channel = ch
		hb.pwm.Set(ch, 0)
		hb.mode = core.PhaseFloat
	}
	return nil
}

// SetPhase implements core.PhaseDriver
func (d *PhaseBridge) SetPhase(p core.Phase, mode core.PhaseMode) {
	hb := &d.phases[p]
	hb.mode = mode
	switch mode {
	case core.PhaseFloat:
		hb.pwm.Set(hb.channel, 0)
		hb.pins.Low.Low()
	case core.PhaseLow:
		hb.pwm.Set(hb.channel, 0)
		hb.pins.Low.High()
	case core.PhasePWM:
		hb.pins.Low.Low()
		hb.pwm.Set(hb.channel, d.compare(hb))
	}
}

// PhaseVoltage implements core.PhaseDriver
func (d *PhaseBridge) PhaseVoltage() uint16 {
	return readADC(d.sense)
}

// SetDutyCycle implements core.PWMDriver
func (d *PhaseBridge) SetDutyCycle(value uint16) {
	if value > d.periodCounts {
		value = d.periodCounts
	}
	d.duty = value
	for i := range d.phases {
		hb := &d.phases[i]
		if hb.mode == core.PhasePWM {
			hb.pwm.Set(hb.channel, d.compare(hb))
		}
	}
}

// DutyCycle implements core.PWMDriver
func (d *PhaseBridge) DutyCycle() uint16 {
	return d.duty
}

// PeriodCounts implements core.PWMDriver
func (d *PhaseBridge) PeriodCounts() uint16 {
	return d.periodCounts
}

// compare scales the duty to the slice's TOP value
func (d *PhaseBridge) compare(hb *halfBridge) uint32 {
	return uint32(d.duty) * hb.pwm.Top() / uint32(d.periodCounts)
}

// getPWMPeripheral returns the PWM peripheral for a given slice number
// RP2040 has 8 PWM slices: PWM0-PWM7
func getPWMPeripheral(sliceNum uint8) pwmPeripheral {
	switch sliceNum {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}
