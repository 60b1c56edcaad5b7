// Package config loads controller tuning and host tool settings from YAML
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"gobldc/core"
	"gobldc/host/serial"
)

// DefaultMetricsListen is where the monitor serves /metrics
const DefaultMetricsListen = ":9108"

type Config struct {
	Serial  serial.Config `yaml:"serial"`
	Metrics MetricsConfig `yaml:"metrics"`
	Motor   MotorConfig   `yaml:"motor"`
	Sim     SimConfig     `yaml:"sim"`
}

// ---- METRICS ----

type MetricsConfig struct {
	Listen string `yaml:"listen"`
	Path   string `yaml:"path"`
}

// ---- MOTOR ----

// MotorConfig overrides the compiled-in tuning. Unset fields keep the
// defaults from core.DefaultParams.
type MotorConfig struct {
	PWMPeriodCounts uint16 `yaml:"pwm_period_counts"`

	// duty cycles in percent of the PWM period
	ArmingPercent  *float32 `yaml:"arming_percent"`
	AlignPercent   *float32 `yaml:"align_percent"`
	RampUpPercent  *float32 `yaml:"ramp_up_percent"`
	StartupPercent *float32 `yaml:"startup_percent"`
	ShutoffPercent *float32 `yaml:"shutoff_percent"`

	// commutation counter counts
	RampStartPeriod *uint16 `yaml:"ramp_start_period"`
	RampEndPeriod   *uint16 `yaml:"ramp_end_period"`
	StartupPeriod   *uint16 `yaml:"startup_period"`
	RampStep        *uint16 `yaml:"ramp_step"`

	AlignTicks           *uint16 `yaml:"align_ticks"`
	ErrorLimit           *int16  `yaml:"error_limit"`
	Gain                 *int16  `yaml:"gain"`
	ClosedLoopFaultCount *uint16 `yaml:"closed_loop_fault_count"`
	CommCounterHz        *uint32 `yaml:"comm_counter_hz"`
}

// ---- SIM ----

type SimConfig struct {
	Duration time.Duration `yaml:"duration"`

	// throttle profile, percent of the PWM period
	Profile []ProfileStep `yaml:"profile"`

	// plant
	BatteryCounts     uint16  `yaml:"battery_counts"`
	SagPerDutyCount   float64 `yaml:"sag_per_duty_count"`
	TimeConstantTicks float64 `yaml:"time_constant_ticks"`
	Load              float64 `yaml:"load"`

	// lock the rotor at this time, 0 for never
	StallAt time.Duration `yaml:"stall_at"`
}

type ProfileStep struct {
	At      time.Duration `yaml:"at"`
	Percent float32       `yaml:"percent"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	Normalize(cfg)
	return cfg
}

// Load reads, validates and normalizes the configuration at path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document. Unknown keys are rejected so that a
// misspelled tuning value does not silently fall back to its default.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	Normalize(cfg)
	return cfg, nil
}

// Params builds the controller parameters
func (c *Config) Params() core.Params {
	m := &c.Motor
	pwm := m.PWMPeriodCounts
	if pwm == 0 {
		pwm = core.DefaultPWMPeriodCounts
	}
	p := core.DefaultParams(pwm)

	duty := func(dst *uint16, percent *float32) {
		if percent != nil {
			*dst = core.PercentToCounts(*percent, pwm)
		}
	}
	duty(&p.ArmingDuty, m.ArmingPercent)
	duty(&p.AlignDuty, m.AlignPercent)
	duty(&p.RampUpDuty, m.RampUpPercent)
	duty(&p.StartupDuty, m.StartupPercent)
	duty(&p.ShutoffDuty, m.ShutoffPercent)

	if m.RampStartPeriod != nil {
		p.RampStartPeriod = *m.RampStartPeriod
	}
	if m.RampEndPeriod != nil {
		p.RampEndPeriod = *m.RampEndPeriod
	}
	if m.StartupPeriod != nil {
		p.StartupPeriod = *m.StartupPeriod
	}
	if m.RampStep != nil {
		p.RampStep = *m.RampStep
	}
	if m.AlignTicks != nil {
		p.AlignTicks = *m.AlignTicks
	}
	if m.ErrorLimit != nil {
		p.ErrorLimit = *m.ErrorLimit
	}
	if m.Gain != nil {
		p.Gain = *m.Gain
	}
	if m.ClosedLoopFaultCount != nil {
		p.ClosedLoopFaultCount = *m.ClosedLoopFaultCount
	}
	if m.CommCounterHz != nil {
		p.CommCounterHz = *m.CommCounterHz
	}
	return p
}

// ThrottleAt returns the profile throttle in percent at time t. Steps hold
// their value until the next one.
func (s *SimConfig) ThrottleAt(t time.Duration) float32 {
	var percent float32
	for _, step := range s.Profile {
		if step.At > t {
			break
		}
		percent = step.Percent
	}
	return percent
}
