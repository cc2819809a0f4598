package status

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/solder-station/internal/engine"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	State         string       `json:"state"`
	Ready         bool         `json:"ready"`
	Controller    ControlJSON  `json:"controller"`
	AmbientC      int          `json:"ambient_c"`
	LastRelease   string       `json:"last_release,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"transition_counts"`
	Engine        EngineJSON   `json:"engine"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ControlJSON is the JSON representation of the controller values.
type ControlJSON struct {
	SetTemp      int     `json:"set_temp_c"`
	TipTemp      int     `json:"tip_temp_c"`
	Tip          string  `json:"tip"`
	PowerBar     int     `json:"power_bar"`
	MaxOnPeriods int     `json:"max_on_periods"`
	Power        float64 `json:"power"`
	PowerHistory string  `json:"power_history"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of transition counts.
type CountsJSON struct {
	TipChange int `json:"tip_change"`
	Off       int `json:"off"`
	On        int `json:"on"`
	Standby   int `json:"standby"`
	Error     int `json:"error"`
	Init      int `json:"init"`
}

// EngineJSON is the JSON representation of the engine counters.
type EngineJSON struct {
	HalfCycles   uint64            `json:"half_cycles"`
	HeaterCycles uint64            `json:"heater_cycles"`
	Bursts       uint64            `json:"bursts"`
	TipChecks    uint64            `json:"tip_checks"`
	Dropped      uint64            `json:"dropped_events"`
	Stale        uint64            `json:"stale_events"`
	Recovered    uint64            `json:"recovered_bursts"`
	LineErrors   uint64            `json:"line_errors"`
	Faults       map[string]uint64 `json:"faults"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	LoopMs      int64  `json:"loop_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	WSBroker    string `json:"ws_broker,omitempty"`
	Version     string `json:"version,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	faults := make(map[string]uint64)
	for _, f := range engine.Faults() {
		faults[f.String()] = snap.Engine.Faults[f]
	}

	return StatusInner{
		State: snap.State.Name(),
		Ready: snap.Ready,
		Controller: ControlJSON{
			SetTemp:      snap.SetTemp,
			TipTemp:      snap.TipTemp,
			Tip:          snap.Tip.String(),
			PowerBar:     snap.PowerBar,
			MaxOnPeriods: snap.MaxOnPeriods,
			Power:        snap.Power(),
			PowerHistory: fmt.Sprintf("%032b", snap.PowerHistory),
		},
		AmbientC:      snap.Ambient,
		LastRelease:   snap.LastRelease,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			TipChange: snap.Counts.TipChange,
			Off:       snap.Counts.Off,
			On:        snap.Counts.On,
			Standby:   snap.Counts.Standby,
			Error:     snap.Counts.Error,
			Init:      snap.Counts.Init,
		},
		Engine: EngineJSON{
			HalfCycles:   snap.Engine.HalfCycles,
			HeaterCycles: snap.Engine.HeaterCycles,
			Bursts:       snap.Engine.Bursts,
			TipChecks:    snap.Engine.TipChecks,
			Dropped:      snap.Engine.Dropped,
			Stale:        snap.Engine.Stale,
			Recovered:    snap.Engine.Recovered,
			LineErrors:   snap.Engine.LineErrors,
			Faults:       faults,
		},
		Config: ConfigJSON{
			LoopMs:      snap.Config.LoopMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			WSBroker:    snap.Config.WSBroker,
			Version:     snap.Config.Version,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
