package core

// RampTiming moves a commutation period one step toward target and clamps
// at target. The comparison happens before the step is applied so the
// result never wraps near 0 or 0xFFFF.
func RampTiming(current, target, step uint16) uint16 {
	switch {
	case current > target:
		if current-target <= step {
			return target
		}
		return current - step
	case current < target:
		if target-current <= step {
			return target
		}
		return current + step
	}
	return current
}
