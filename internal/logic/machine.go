package logic

import (
	"time"

	"github.com/sweeney/solder-station/internal/display"
	"github.com/sweeney/solder-station/internal/engine"
)

// Machine supervises the operating mode of the station.
type Machine struct {
	ctl  Controller
	disp display.Surface

	tipInsertDelay time.Duration
	standbyTime    time.Duration

	state           SystemState
	insertDeadline  time.Time
	standbyDeadline time.Time

	startTime     time.Time
	counts        TransitionCounts
	lastHeartbeat time.Time
}

// NewMachine creates a state machine in StateInit.
// The startTime is used for calculating uptime in heartbeat events.
func NewMachine(ctl Controller, disp display.Surface, tipInsertDelay, standbyTime time.Duration, startTime time.Time) *Machine {
	return &Machine{
		ctl:            ctl,
		disp:           disp,
		tipInsertDelay: tipInsertDelay,
		standbyTime:    standbyTime,
		state:          StateInit,
		startTime:      startTime,
		lastHeartbeat:  startTime,
	}
}

// Tick runs one step of the state machine and returns the transition taken,
// if any.
func (m *Machine) Tick(in Input) []Transition {
	from := m.state

	if in.Now.After(m.ctl.WatchdogDeadline()) {
		m.ctl.RecordFault(engine.FaultACLoss)
		m.ctl.ErrorHandler()
		m.disp.ShowMessage(display.MsgACNotDetected)
		m.state = StateError
		return m.finish(from, in.Now, ReasonACLost)
	}

	detected := in.Tip == engine.TipDetected
	leave := in.TipChange || !detected
	var reason string

	switch m.state {
	case StateInit:
		m.ctl.HeaterOff()
		m.disp.DrawDefault()
		m.state = StateTipChange
		reason = ReasonStartup

	case StateTipChange:
		m.ctl.HeaterOff()
		if !detected {
			m.insertDeadline = in.Now.Add(m.tipInsertDelay)
			m.disp.ShowMessage(MessageForTip(in.Tip))
		} else if in.Now.After(m.insertDeadline) && !in.TipChange {
			m.disp.DrawDefault()
			m.state = StateOff
			reason = ReasonTipInserted
		}
		m.updateLive()

	case StateOff:
		m.ctl.HeaterOff()
		if leave {
			m.state = StateTipChange
			reason = leaveReason(in)
		} else if !in.InHolder {
			m.state = StateOn
			reason = ReasonToolLifted
		}
		m.updateLive()

	case StateOn:
		if leave {
			m.state = StateTipChange
			reason = leaveReason(in)
		} else if in.InHolder {
			m.standbyDeadline = in.Now.Add(m.standbyTime)
			m.state = StateStandby
			reason = ReasonToolParked
		}
		m.updateLive()

	case StateStandby:
		if leave {
			m.state = StateTipChange
			reason = leaveReason(in)
		} else if !in.InHolder {
			m.state = StateOn
			reason = ReasonToolLifted
		} else if in.Now.After(m.standbyDeadline) {
			m.state = StateOff
			reason = ReasonStandbyTimeout
		}
		m.updateLive()

	case StateError:
		m.ctl.ErrorHandler()
		m.state = StateInit
		reason = ReasonRecover

	default:
		m.ctl.RecordFault(engine.FaultUnknownState)
		m.ctl.ErrorHandler()
		m.state = StateError
		reason = ReasonUnknownState
	}

	return m.finish(from, in.Now, reason)
}

func leaveReason(in Input) string {
	if in.TipChange {
		return ReasonTipChange
	}
	return ReasonTipMissing
}

// finish reports the mode to the engine and records the transition.
func (m *Machine) finish(from SystemState, now time.Time, reason string) []Transition {
	if m.state == from {
		return nil
	}

	m.ctl.SetMode(modeFor(m.state))

	switch m.state {
	case StateInit:
		m.counts.Init++
	case StateTipChange:
		m.counts.TipChange++
	case StateOff:
		m.counts.Off++
	case StateOn:
		m.counts.On++
	case StateStandby:
		m.counts.Standby++
	case StateError:
		m.counts.Error++
	}

	return []Transition{{
		Timestamp: now,
		From:      from,
		To:        m.state,
		Reason:    reason,
	}}
}

func modeFor(s SystemState) engine.Mode {
	switch s {
	case StateOn:
		return engine.ModeOn
	case StateStandby:
		return engine.ModeStandby
	default:
		return engine.ModeIdle
	}
}

func (m *Machine) updateLive() {
	power := 0.0
	if maxOn := m.ctl.MaxOnPeriods(); maxOn > 0 {
		power = float64(m.ctl.PowerBar()) / float64(maxOn)
	}
	m.disp.UpdateLive(display.Live{
		SetTemp: m.ctl.SetTemp(),
		TipTemp: m.ctl.TipTemp(),
		Power:   power,
		State:   m.state.String(),
	})
}

// MessageForTip returns the message shown while waiting for a tip.
func MessageForTip(tip engine.TipState) display.Message {
	switch tip {
	case engine.TipNotDetected, engine.TipNotChecked:
		return display.MsgInsertTip
	case engine.TipCheckError:
		return display.MsgTipCheckError
	default:
		return display.MsgUnknown
	}
}

// State returns the current state.
func (m *Machine) State() SystemState {
	return m.state
}

// Counts returns the transition counts since startup.
func (m *Machine) Counts() TransitionCounts {
	return m.counts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (m *Machine) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(m.lastHeartbeat) < interval {
		return nil
	}

	m.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(m.startTime),
		State:     m.state,
		Counts:    m.counts,
	}
}
