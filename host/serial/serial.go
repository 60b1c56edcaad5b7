// Package serial opens the telemetry link to the ESC
package serial

import (
	"errors"
	"io"
)

// DefaultBaud matches the firmware UART
const DefaultBaud = 115200

var ErrNoDevice = errors.New("no serial device given")

// Port is a serial port. It allows the monitor to run against a real port,
// a pipe from the simulator or a test double.
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string `yaml:"device"`

	Baud int `yaml:"baud"`

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int `yaml:"read_timeout_ms"`
}

// DefaultConfig returns the configuration for the firmware's UART
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100,
	}
}
