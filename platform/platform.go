package platform

import (
	"lautenbacher.net/intellitraffic/coordinator"
)

// Platform defines the interface for abstracting away the real hardware
// from the TUI simulation.
type Platform interface {
	// Start initializes the platform (e.g., opens GPIO/I2C/SPI, or starts the TUI).
	Start() error

	// Stop cleans up all platform resources.
	Stop()

	// Ready is closed once the platform can take output.
	Ready() <-chan bool

	// Drivers returns the display, buzzer, matrix, buttons and lamps of
	// the platform. Only valid after Start.
	Drivers() coordinator.Drivers
}
