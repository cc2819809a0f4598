package input

import "sync/atomic"

// EncoderEvent is the direction of rotation since the last poll.
type EncoderEvent int

const (
	NoChange EncoderEvent = iota
	Increase
	Decrease
)

func (e EncoderEvent) String() string {
	switch e {
	case NoChange:
		return "none"
	case Increase:
		return "increase"
	case Decrease:
		return "decrease"
	default:
		return "unknown"
	}
}

// Encoder counts quadrature steps. Edge is called from the GPIO event
// goroutine; TakeEvent and TakeDelta from the main loop.
type Encoder struct {
	count atomic.Int64

	value int64
	delta int64
	flag  bool
}

// Edge records an edge on line A given the levels of both lines.
func (e *Encoder) Edge(a, b bool) {
	if a != b {
		e.count.Add(1)
	} else {
		e.count.Add(-1)
	}
}

// TakeEvent reports the direction of the change since the last call and
// latches the step count for TakeDelta.
func (e *Encoder) TakeEvent() EncoderEvent {
	c := e.count.Load()
	if c == e.value {
		return NoChange
	}
	e.delta = c - e.value
	e.value = c
	e.flag = true
	if e.delta > 0 {
		return Increase
	}
	return Decrease
}

// TakeDelta returns the steps latched by the last TakeEvent and clears them.
func (e *Encoder) TakeDelta() int {
	if !e.flag {
		return 0
	}
	e.flag = false
	return int(e.delta)
}
