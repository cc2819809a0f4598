// Package logic contains the supervisory state machine and the front panel
// reader. It does no I/O of its own (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"time"

	"github.com/sweeney/solder-station/internal/engine"
)

// SystemState is the supervisory operating mode.
type SystemState int

const (
	StateInit SystemState = iota
	StateTipChange
	StateOff
	StateOn
	StateStandby
	StateError
)

// String returns the label shown on the display.
func (s SystemState) String() string {
	switch s {
	case StateInit:
		return "Initial"
	case StateTipChange:
		return "Tip change"
	case StateOff:
		return "OFF state"
	case StateOn:
		return "ON state"
	case StateStandby:
		return "Standby"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Name returns the identifier used in telemetry and JSON.
func (s SystemState) Name() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateTipChange:
		return "TIP_CHANGE"
	case StateOff:
		return "OFF"
	case StateOn:
		return "ON"
	case StateStandby:
		return "STANDBY"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Input is one main loop sample.
type Input struct {
	Now       time.Time
	Tip       engine.TipState
	InHolder  bool // tool parked, including the release hold-off
	TipChange bool // tip change bracket touched, including the hold-off
}

// Transition is a state change to be published.
type Transition struct {
	Timestamp time.Time
	From      SystemState
	To        SystemState
	Reason    string
}

// Transition reasons.
const (
	ReasonStartup        = "startup"
	ReasonTipMissing     = "tip_missing"
	ReasonTipChange      = "tip_change"
	ReasonTipInserted    = "tip_inserted"
	ReasonToolLifted     = "tool_lifted"
	ReasonToolParked     = "tool_parked"
	ReasonStandbyTimeout = "standby_timeout"
	ReasonACLost         = "ac_lost"
	ReasonRecover        = "recover"
	ReasonUnknownState   = "unknown_state"
)

// TransitionCounts tracks how often each state was entered since startup.
type TransitionCounts struct {
	TipChange int
	Off       int
	On        int
	Standby   int
	Error     int
	Init      int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	State     SystemState
	Counts    TransitionCounts
}

// Controller is the part of the engine driven by the state machine.
type Controller interface {
	WatchdogDeadline() time.Time
	ErrorHandler()
	HeaterOff()
	SetMode(engine.Mode)
	RecordFault(engine.Fault)
	TipTemp() int
	SetTemp() int
	PowerBar() int
	MaxOnPeriods() int
}
