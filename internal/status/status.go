// Package status provides a thread-safe status tracker for the solder-station daemon.
// It is read by HTTP handlers, the metrics collectors and MQTT heartbeats.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/solder-station/internal/engine"
	"github.com/sweeney/solder-station/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	LoopMs      int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	WSBroker    string // Websocket broker URL for browser MQTT (empty = disabled)
	Version     string
}

// Control is the controller state sampled by the main loop.
type Control struct {
	State        logic.SystemState
	SetTemp      int
	TipTemp      int
	Tip          engine.TipState
	PowerBar     int
	MaxOnPeriods int
	PowerHistory uint32
	Counts       logic.TransitionCounts
	Engine       engine.Stats
}

// Power returns the heater duty as a fraction of the maximum on-periods.
func (c Control) Power() float64 {
	if c.MaxOnPeriods <= 0 {
		return 0
	}
	return float64(c.PowerBar) / float64(c.MaxOnPeriods)
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Control
	Ready         bool // at least one main loop tick has run
	Ambient       int
	LastRelease   string
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Ambient:   engine.ErrorTemp,
			Config:    cfg,
		},
	}
}

// Update replaces the controller state.
// Called from runLoop on every tick.
func (t *Tracker) Update(c Control) {
	t.mu.Lock()
	t.snap.Control = c
	t.snap.Ready = true
	t.mu.Unlock()
}

// SetAmbient records the last ambient temperature reading.
func (t *Tracker) SetAmbient(celsius int) {
	t.mu.Lock()
	t.snap.Ambient = celsius
	t.mu.Unlock()
}

// SetLastRelease records the most recent front button release.
func (t *Tracker) SetLastRelease(press string) {
	t.mu.Lock()
	t.snap.LastRelease = press
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	if s.Engine.Faults != nil {
		faults := make(map[engine.Fault]uint64, len(s.Engine.Faults))
		for k, v := range s.Engine.Faults {
			faults[k] = v
		}
		s.Engine.Faults = faults
	}
	return s
}
