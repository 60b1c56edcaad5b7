package config

import (
	"fmt"
)

// Validate checks configuration correctness.
// It does not mutate the configuration; zero values that Normalize fills
// in are accepted.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// ---- serial ----
	if cfg.Serial.Baud < 0 {
		return fmt.Errorf("serial: baud %d is negative", cfg.Serial.Baud)
	}
	if cfg.Serial.ReadTimeout < 0 {
		return fmt.Errorf("serial: read_timeout_ms %d is negative", cfg.Serial.ReadTimeout)
	}

	// ---- motor ----
	m := &cfg.Motor
	percents := []struct {
		name  string
		value *float32
	}{
		{"arming_percent", m.ArmingPercent},
		{"align_percent", m.AlignPercent},
		{"ramp_up_percent", m.RampUpPercent},
		{"startup_percent", m.StartupPercent},
		{"shutoff_percent", m.ShutoffPercent},
	}
	for _, p := range percents {
		if p.value != nil && (*p.value < 0 || *p.value > 100) {
			return fmt.Errorf("motor: %s %.1f out of range 0-100", p.name, *p.value)
		}
	}

	params := cfg.Params()
	if err := params.Validate(); err != nil {
		return fmt.Errorf("motor: %w", err)
	}

	// ---- sim ----
	s := &cfg.Sim
	if s.Duration < 0 {
		return fmt.Errorf("sim: duration %s is negative", s.Duration)
	}
	for i, step := range s.Profile {
		if step.Percent < 0 || step.Percent > 100 {
			return fmt.Errorf("sim: profile step %d: percent %.1f out of range 0-100", i, step.Percent)
		}
		if i > 0 && step.At < s.Profile[i-1].At {
			return fmt.Errorf("sim: profile step %d at %s is before step %d", i, step.At, i-1)
		}
	}
	if s.SagPerDutyCount < 0 {
		return fmt.Errorf("sim: sag_per_duty_count is negative")
	}
	if s.TimeConstantTicks < 0 {
		return fmt.Errorf("sim: time_constant_ticks is negative")
	}
	if s.StallAt < 0 {
		return fmt.Errorf("sim: stall_at %s is negative", s.StallAt)
	}
	if s.Load < 0 {
		return fmt.Errorf("sim: load is negative")
	}
	return nil
}
