//go:build !linux

package gpio

import (
	"errors"
	"time"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// Chip is not available on non-Linux platforms.
type Chip struct{}

// OpenChip returns an error on non-Linux platforms.
func OpenChip(name string) (*Chip, error) {
	return nil, errUnsupported
}

// RealSenseLine is not available on non-Linux platforms.
type RealSenseLine struct{}

func (c *Chip) SenseLine(offset int) (*RealSenseLine, error) { return nil, errUnsupported }
func (s *RealSenseLine) SetOutputLow() error                 { return errUnsupported }
func (s *RealSenseLine) SetFloatingInput() error             { return errUnsupported }
func (s *RealSenseLine) DriveHigh() error                    { return errUnsupported }

// RealOutput is not available on non-Linux platforms.
type RealOutput struct{}

func (c *Chip) Output(offset int) (*RealOutput, error) { return nil, errUnsupported }
func (o *RealOutput) Set(on bool) error                { return errUnsupported }

// RealInput is not available on non-Linux platforms.
type RealInput struct{}

func (c *Chip) Input(offset int) (*RealInput, error) { return nil, errUnsupported }
func (i *RealInput) Read() (bool, error)             { return false, errUnsupported }

func (c *Chip) WatchRising(offset int, handler func(at time.Time)) error { return errUnsupported }

func (c *Chip) WatchQuadrature(a, b int, handler func(aLevel, bLevel bool)) error {
	return errUnsupported
}

// Close is a no-op on non-Linux platforms.
func (c *Chip) Close() error {
	return nil
}
