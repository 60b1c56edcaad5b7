package config

import (
	"time"

	"gobldc/core"
	"gobldc/host/serial"
)

// Simulator defaults. The battery reads 0x0340 counts at rest, comfortably
// above the undervoltage threshold.
const (
	DefaultSimDuration       = 8 * time.Second
	DefaultBatteryCounts     = 0x0340
	DefaultSagPerDutyCount   = 0.2
	DefaultTimeConstantTicks = 400
)

// DefaultProfile holds the throttle at zero until arming is over, then
// starts the motor and steps it up once.
var DefaultProfile = []ProfileStep{
	{At: 0, Percent: 0},
	{At: 3 * time.Second, Percent: 15},
	{At: 6 * time.Second, Percent: 25},
}

// Normalize fills in defaults.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = serial.DefaultBaud
	}

	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = DefaultMetricsListen
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Motor.PWMPeriodCounts == 0 {
		cfg.Motor.PWMPeriodCounts = core.DefaultPWMPeriodCounts
	}

	s := &cfg.Sim
	if s.Duration == 0 {
		s.Duration = DefaultSimDuration
	}
	if len(s.Profile) == 0 {
		s.Profile = append([]ProfileStep(nil), DefaultProfile...)
	}
	if s.BatteryCounts == 0 {
		s.BatteryCounts = DefaultBatteryCounts
	}
	if s.SagPerDutyCount == 0 {
		s.SagPerDutyCount = DefaultSagPerDutyCount
	}
	if s.TimeConstantTicks == 0 {
		s.TimeConstantTicks = DefaultTimeConstantTicks
	}
	if s.Load == 0 {
		s.Load = 1
	}
}
