// Package gpio provides the station's digital lines with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementations allow testing without hardware.
package gpio

// Mode is the electrical configuration of a sense line.
type Mode int

const (
	ModeFloating Mode = iota // input, high impedance
	ModeLow                  // push-pull output driven low
	ModeHigh                 // push-pull output driven high
)

func (m Mode) String() string {
	switch m {
	case ModeFloating:
		return "floating"
	case ModeLow:
		return "low"
	case ModeHigh:
		return "high"
	default:
		return "unknown"
	}
}

// SenseLine is a line on the thermocouple front end whose electrical mode is
// switched at runtime: the clamp line pulls the amplifier input low while the
// heater conducts, the check line drives it high during a tip check.
type SenseLine interface {
	SetOutputLow() error
	SetFloatingInput() error
	DriveHigh() error
}

// Output drives a digital output such as the heater switch.
type Output interface {
	Set(on bool) error
}

// Input reads a digital input.
// The returned value is logical: polarity inversion is already applied.
type Input interface {
	Read() (bool, error)
}
