package core

// PWMDriver is the abstract PWM interface that core code uses.
// Platform-specific implementations handle actual hardware control.
// Duty values are in timer counts, 0 (off) to PeriodCounts() (fully on).
type PWMDriver interface {
	// SetDutyCycle sets the duty cycle applied to the active phase.
	// Called once per control tick; must not block.
	SetDutyCycle(value uint16)

	// DutyCycle returns the duty cycle last applied
	DutyCycle() uint16

	// PeriodCounts returns the number of counts in one PWM period
	PeriodCounts() uint16
}

// PercentToCounts converts a percent duty cycle (0-100) to timer counts for
// a PWM period of periodCounts. Results are truncated like the hardware
// compare register would.
func PercentToCounts(percent float32, periodCounts uint16) uint16 {
	if percent <= 0 {
		return 0
	}
	if percent >= 100 {
		return periodCounts
	}
	return uint16(percent * float32(periodCounts) / 100)
}

// CountsToPercent converts timer counts back to a percent duty cycle
func CountsToPercent(counts, periodCounts uint16) float32 {
	if periodCounts == 0 {
		return 0
	}
	return float32(counts) * 100 / float32(periodCounts)
}
