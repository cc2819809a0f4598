package logic

import (
	"time"

	"github.com/sweeney/solder-station/internal/input"
)

// Switch is a debounced two-state sensor.
type Switch interface {
	Pressed() bool
}

// Releaser reports button release events.
type Releaser interface {
	TakeReleaseEvent() input.PressState
}

// Dial is the rotary encoder.
type Dial interface {
	TakeEvent() input.EncoderEvent
	TakeDelta() int
}

// TempSetter holds the target temperature.
type TempSetter interface {
	SetTemp() int
	SetNewTemp(v int)
}

// PanelConfig holds the front panel limits and hold-offs.
type PanelConfig struct {
	HolderReleaseDelay time.Duration
	TipChangeHold      time.Duration
	TempStep           int
	MinTemp            int
	MaxTemp            int
}

// PanelState is the front panel as seen by the state machine.
type PanelState struct {
	InHolder  bool
	TipChange bool
	Release   input.PressState // front button release since the last read
	Adjusted  bool             // set temperature changed this read
}

// FrontPanel turns switch and encoder readings into state machine inputs.
// A released holder or tip change switch keeps reading as active until its
// hold-off has elapsed.
type FrontPanel struct {
	holder    Switch
	tipChange Switch
	button    Releaser
	dial      Dial
	temps     TempSetter
	cfg       PanelConfig

	inHolder        bool
	holderDeadline  time.Time
	tipChangeActive bool
	tipDeadline     time.Time
}

// NewFrontPanel creates a panel reader.
func NewFrontPanel(holder, tipChange Switch, button Releaser, dial Dial, temps TempSetter, cfg PanelConfig) *FrontPanel {
	return &FrontPanel{
		holder:    holder,
		tipChange: tipChange,
		button:    button,
		dial:      dial,
		temps:     temps,
		cfg:       cfg,
	}
}

// Read samples the panel.
func (p *FrontPanel) Read(now time.Time) PanelState {
	var st PanelState
	st.Release = p.button.TakeReleaseEvent()

	if ev := p.dial.TakeEvent(); ev != input.NoChange {
		cur := p.temps.SetTemp()
		next := AdjustTemp(cur, p.dial.TakeDelta(), p.cfg.TempStep, p.cfg.MinTemp, p.cfg.MaxTemp)
		if next != cur {
			p.temps.SetNewTemp(next)
			st.Adjusted = true
		}
	}

	if p.holder.Pressed() {
		p.inHolder = true
		p.holderDeadline = now.Add(p.cfg.HolderReleaseDelay)
	} else if now.After(p.holderDeadline) {
		p.inHolder = false
	}

	if p.tipChange.Pressed() {
		p.tipChangeActive = true
		p.tipDeadline = now.Add(p.cfg.TipChangeHold)
	} else if now.After(p.tipDeadline) {
		p.tipChangeActive = false
	}

	st.InHolder = p.inHolder
	st.TipChange = p.tipChangeActive
	return st
}

// AdjustTemp moves current by delta steps, clamped to [minTemp, maxTemp].
func AdjustTemp(current, delta, step, minTemp, maxTemp int) int {
	v := current + delta*step
	if v > maxTemp {
		v = maxTemp
	}
	if v < minTemp {
		v = minTemp
	}
	return v
}
