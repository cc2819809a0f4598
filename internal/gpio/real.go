//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "solder-station"

// Chip owns the lines requested from a GPIO character device.
type Chip struct {
	chip *gpiocdev.Chip

	mu    sync.Mutex
	lines []*gpiocdev.Line
}

// OpenChip opens the named GPIO chip, e.g. "gpiochip0".
func OpenChip(name string) (*Chip, error) {
	chip, err := gpiocdev.NewChip(name, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &Chip{chip: chip}, nil
}

func (c *Chip) request(offset int, opts ...gpiocdev.LineReqOption) (*gpiocdev.Line, error) {
	line, err := c.chip.RequestLine(offset, opts...)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()
	return line, nil
}

// RealSenseLine switches a line between floating input and driven output.
type RealSenseLine struct {
	line *gpiocdev.Line
}

// SenseLine requests a sense line, starting as a floating input.
func (c *Chip) SenseLine(offset int) (*RealSenseLine, error) {
	line, err := c.request(offset, gpiocdev.AsInput, gpiocdev.WithBiasDisabled)
	if err != nil {
		return nil, fmt.Errorf("request sense line %d: %w", offset, err)
	}
	return &RealSenseLine{line: line}, nil
}

// SetOutputLow drives the line low.
func (s *RealSenseLine) SetOutputLow() error {
	if err := s.line.Reconfigure(gpiocdev.AsOutput(0)); err != nil {
		return fmt.Errorf("drive line %d low: %w", s.line.Offset(), err)
	}
	return nil
}

// SetFloatingInput returns the line to high impedance.
func (s *RealSenseLine) SetFloatingInput() error {
	if err := s.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithBiasDisabled); err != nil {
		return fmt.Errorf("float line %d: %w", s.line.Offset(), err)
	}
	return nil
}

// DriveHigh drives the line high.
func (s *RealSenseLine) DriveHigh() error {
	if err := s.line.Reconfigure(gpiocdev.AsOutput(1)); err != nil {
		return fmt.Errorf("drive line %d high: %w", s.line.Offset(), err)
	}
	return nil
}

// RealOutput is a push-pull output line.
type RealOutput struct {
	line *gpiocdev.Line
}

// Output requests an output line, initially low.
func (c *Chip) Output(offset int) (*RealOutput, error) {
	line, err := c.request(offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request output line %d: %w", offset, err)
	}
	return &RealOutput{line: line}, nil
}

// Set drives the output.
func (o *RealOutput) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("set line %d: %w", o.line.Offset(), err)
	}
	return nil
}

// RealInput is an input line with pull-up. Switches to ground read as active.
type RealInput struct {
	line *gpiocdev.Line
}

// Input requests an input line with pull-up, active low.
func (c *Chip) Input(offset int) (*RealInput, error) {
	line, err := c.request(offset, gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.AsActiveLow)
	if err != nil {
		return nil, fmt.Errorf("request input line %d: %w", offset, err)
	}
	return &RealInput{line: line}, nil
}

// Read returns true when the switch is closed.
func (i *RealInput) Read() (bool, error) {
	v, err := i.line.Value()
	if err != nil {
		return false, fmt.Errorf("read line %d: %w", i.line.Offset(), err)
	}
	return v == 1, nil
}

// WatchRising calls handler on every rising edge of the line.
// The handler runs on the gpiocdev event goroutine and must not block.
func (c *Chip) WatchRising(offset int, handler func(at time.Time)) error {
	_, err := c.request(offset,
		gpiocdev.AsInput,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) {
			handler(time.Now())
		}))
	if err != nil {
		return fmt.Errorf("watch line %d: %w", offset, err)
	}
	return nil
}

// WatchQuadrature reports the levels of both encoder lines on every edge of
// line a.
func (c *Chip) WatchQuadrature(a, b int, handler func(aLevel, bLevel bool)) error {
	bLine, err := c.request(b, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		return fmt.Errorf("request encoder line %d: %w", b, err)
	}
	_, err = c.request(a,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			bv, err := bLine.Value()
			if err != nil {
				return
			}
			handler(evt.Type == gpiocdev.LineEventRisingEdge, bv == 1)
		}))
	if err != nil {
		return fmt.Errorf("watch encoder line %d: %w", a, err)
	}
	return nil
}

// Close releases all lines and the chip.
// Lines are returned to input with pull-down before release so the heater
// switch cannot be left driven.
func (c *Chip) Close() error {
	var errs []error

	c.mu.Lock()
	lines := c.lines
	c.lines = nil
	c.mu.Unlock()

	for _, line := range lines {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure line %d: %w", line.Offset(), err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line %d: %w", line.Offset(), err))
		}
	}
	if c.chip != nil {
		if err := c.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
