// Package input debounces the station's switches and decodes the rotary
// encoder.
package input

import (
	"log"
	"sync/atomic"

	"github.com/sweeney/solder-station/internal/gpio"
)

const (
	DebounceTicks  = 3  // scans a level must persist before it is accepted
	LongPressTicks = 50 // scans held after debounce before a long press
)

// PressState is the debounced state of a button.
type PressState int32

const (
	NoPress PressState = iota
	ShortPress
	LongPress
)

func (p PressState) String() string {
	switch p {
	case NoPress:
		return "none"
	case ShortPress:
		return "short"
	case LongPress:
		return "long"
	default:
		return "unknown"
	}
}

// Button is a counter-debounced switch. Scan is called from one goroutine;
// State and TakeReleaseEvent may be called from another.
type Button struct {
	name     string
	in       gpio.Input
	inverted bool

	counter   int
	longTicks int
	failed    bool

	state   atomic.Int32
	release atomic.Int32
	errors  atomic.Uint64
}

// NewButton creates a button reading in. With inverted set the logical level
// is negated.
func NewButton(name string, in gpio.Input, inverted bool) *Button {
	return &Button{name: name, in: in, inverted: inverted}
}

// Scan samples the input once.
func (b *Button) Scan() {
	pressed, err := b.in.Read()
	if err != nil {
		b.errors.Add(1)
		if !b.failed {
			log.Printf("input: %s: %v", b.name, err)
			b.failed = true
		}
		return
	}
	b.failed = false
	if b.inverted {
		pressed = !pressed
	}

	if pressed {
		if b.counter < DebounceTicks {
			b.counter++
			return
		}
		if b.longTicks >= LongPressTicks {
			b.state.Store(int32(LongPress))
		} else {
			b.state.Store(int32(ShortPress))
			b.longTicks++
		}
		return
	}

	if b.counter > 0 {
		b.counter--
		return
	}
	b.longTicks = 0
	if s := PressState(b.state.Load()); s != NoPress {
		b.release.Store(int32(s))
		b.state.Store(int32(NoPress))
	}
}

// State returns the debounced press state.
func (b *Button) State() PressState {
	return PressState(b.state.Load())
}

// Pressed reports whether the button is held.
func (b *Button) Pressed() bool {
	return b.State() != NoPress
}

// TakeReleaseEvent returns the press state held before the last release and
// clears it. It returns NoPress when nothing was released.
func (b *Button) TakeReleaseEvent() PressState {
	return PressState(b.release.Swap(int32(NoPress)))
}

// Errors returns the number of failed reads.
func (b *Button) Errors() uint64 {
	return b.errors.Load()
}

// Panel is the set of switches scanned every mains half-cycle.
type Panel struct {
	Holder    *Button
	TipChange *Button
	Front     *Button
}

// Scan scans every switch.
func (p *Panel) Scan() {
	p.Holder.Scan()
	p.TipChange.Scan()
	p.Front.Scan()
}
