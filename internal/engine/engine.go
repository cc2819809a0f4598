// Package engine runs the mains-synchronous heater and acquisition protocol.
//
// Hardware sources (zero-cross edge, two short timers, ADC burst completion)
// only post events. A single goroutine dispatches them in order, so handlers
// never nest. State read by the main loop is held in atomic words.
package engine

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/sweeney/solder-station/internal/config"
	"github.com/sweeney/solder-station/internal/gpio"
)

// EventKind identifies the hardware source of an event.
type EventKind int

const (
	ZeroCrossEdge  EventKind = iota // rising edge on the detector line
	ZeroCrossTimer                  // true zero cross, after the detector delay
	SettleTimer                     // one tick of the read phase timer
	BurstComplete                   // ADC burst has filled the sample buffer
)

func (k EventKind) String() string {
	switch k {
	case ZeroCrossEdge:
		return "zero-cross-edge"
	case ZeroCrossTimer:
		return "zero-cross-timer"
	case SettleTimer:
		return "settle-timer"
	case BurstComplete:
		return "burst-complete"
	default:
		return "unknown"
	}
}

// Event is a hardware event posted to the engine.
type Event struct {
	Kind EventKind
	At   time.Time

	// Burst identifies the burst a BurstComplete belongs to. Zero matches
	// the outstanding burst.
	Burst uint64
}

// Timer is a short-interval periodic timer. It fires until stopped.
type Timer interface {
	Start()
	Stop()
}

// Sampler fills buf with ADC readings asynchronously and calls done once
// the buffer is complete.
type Sampler interface {
	StartBurst(buf []uint16, done func()) error
}

// Scanner is invoked once per mains half-cycle to scan input devices.
type Scanner interface {
	Scan()
}

// Hardware groups the devices driven from the dispatch goroutine.
type Hardware struct {
	Heater gpio.Output
	Clamp  gpio.SenseLine
	Check  gpio.SenseLine

	ZeroCrossDelay Timer
	Settle         Timer
	ADC            Sampler
	Scanner        Scanner // optional
}

// Params are the protocol constants.
type Params struct {
	ACWatchdog   time.Duration
	StartupGrace time.Duration

	Samples          int
	MaxDeviation     int
	NoTipMin         int
	TipMax           int
	GainNum          int
	GainDen          int
	Offset           int
	TipCheckInterval int

	DefaultTemp  int
	MinTemp      int
	MaxTemp      int
	MaxOnPeriods int
	StandbyTemp  int
	Deadband     int
}

// ParamsFromConfig extracts engine parameters from the station configuration.
func ParamsFromConfig(c *config.Config) Params {
	return Params{
		ACWatchdog:       c.Mains.ACWatchdog,
		StartupGrace:     c.Mains.StartupGrace,
		Samples:          c.Acquisition.Samples,
		MaxDeviation:     c.Acquisition.MaxDeviation,
		NoTipMin:         c.Acquisition.NoTipMin,
		TipMax:           c.Acquisition.TipMax,
		GainNum:          c.Acquisition.GainNum,
		GainDen:          c.Acquisition.GainDen,
		Offset:           c.Acquisition.Offset,
		TipCheckInterval: c.Acquisition.TipCheckInterval,
		DefaultTemp:      c.Control.DefaultTemp,
		MinTemp:          c.Control.MinTemp,
		MaxTemp:          c.Control.MaxTemp,
		MaxOnPeriods:     c.Control.MaxOnPeriods,
		StandbyTemp:      c.Control.StandbyTemp,
		Deadband:         c.Control.Deadband,
	}
}

// Mode is the supervisory mode reported by the state machine. The power law
// only runs in ModeOn and ModeStandby.
type Mode int32

const (
	ModeIdle Mode = iota
	ModeOn
	ModeStandby
)

const eventQueueSize = 64

// Engine owns the controller state shared between the dispatch goroutine and
// the main loop.
type Engine struct {
	hw     Hardware
	params Params
	events chan Event

	// Dispatch goroutine only.
	phase        Phase
	step         SettleStep
	zcArmed      bool
	settleArmed  bool
	sampling     bool
	burstSeq     uint64
	burstWaits   int
	burstCheck   bool // outstanding burst was started with the check line driven
	checkCounter int
	buf          SampleBuffer
	lineFailed   map[string]bool

	// Shared with the main loop.
	onPeriods atomic.Int32
	powerBar  atomic.Int32
	tipTemp   atomic.Int32
	setTemp   atomic.Int32
	tipState  atomic.Int32
	mode      atomic.Int32
	check     atomic.Int32
	watchdog  atomic.Int64
	history   atomic.Uint32
	last      atomic.Pointer[Acquisition]
	burstDone atomic.Uint64 // sequence of the last burst the sampler finished

	halfCycles   atomic.Uint64
	heaterCycles atomic.Uint64
	bursts       atomic.Uint64
	tipChecks    atomic.Uint64
	dropped      atomic.Uint64
	stale        atomic.Uint64
	recovered    atomic.Uint64
	lineErrors   atomic.Uint64
	faults       [faultKinds]atomic.Uint64
}

// New creates an engine. now is used to start the AC watchdog grace period.
func New(hw Hardware, p Params, now time.Time) *Engine {
	e := &Engine{
		hw:         hw,
		params:     p,
		events:     make(chan Event, eventQueueSize),
		buf:        make(SampleBuffer, p.Samples),
		lineFailed: make(map[string]bool),
	}
	e.setTemp.Store(int32(p.DefaultTemp))
	e.tipState.Store(int32(TipNotChecked))
	e.watchdog.Store(now.Add(p.StartupGrace).UnixNano())
	return e
}

// Post queues a hardware event without blocking. It reports false when the
// queue is full and the event was dropped.
func (e *Engine) Post(ev Event) bool {
	select {
	case e.events <- ev:
		return true
	default:
		e.dropped.Add(1)
		return false
	}
}

// Run dispatches queued events until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-e.events:
			e.Dispatch(ev)
		}
	}
}

// Dispatch handles one hardware event. It must only be called from a single
// goroutine at a time.
func (e *Engine) Dispatch(ev Event) {
	switch ev.Kind {
	case ZeroCrossEdge:
		e.onZeroCrossEdge(ev.At)
	case ZeroCrossTimer:
		e.onZeroCrossTimer()
	case SettleTimer:
		e.onSettleTimer()
	case BurstComplete:
		e.onBurstComplete(ev.Burst)
	default:
		log.Printf("engine: unknown event kind %d", ev.Kind)
	}
}

// lineErr records a failed line operation. Only the first failure per line
// is logged.
func (e *Engine) lineErr(name string, err error) bool {
	if err == nil {
		return false
	}
	e.lineErrors.Add(1)
	if !e.lineFailed[name] {
		e.lineFailed[name] = true
		log.Printf("engine: %s line: %v", name, err)
	}
	return true
}

// SetMode is called by the state machine whenever its state changes.
func (e *Engine) SetMode(m Mode) {
	e.mode.Store(int32(m))
}

// CurrentMode returns the last mode reported by the state machine.
func (e *Engine) CurrentMode() Mode {
	return Mode(e.mode.Load())
}

// SetNewTemp sets the target temperature, clamped to the configured range.
func (e *Engine) SetNewTemp(v int) {
	if v < e.params.MinTemp {
		v = e.params.MinTemp
	}
	if v > e.params.MaxTemp {
		v = e.params.MaxTemp
	}
	e.setTemp.Store(int32(v))
}

// HeaterOff cancels any scheduled heater half-cycles. The heater switches off
// at the next zero cross.
func (e *Engine) HeaterOff() {
	e.onPeriods.Store(0)
}

// ErrorHandler switches the heater off immediately, cancels the schedule and
// marks the tip state as CheckError.
func (e *Engine) ErrorHandler() {
	if err := e.hw.Heater.Set(false); err != nil {
		e.lineErrors.Add(1)
		log.Printf("engine: heater off: %v", err)
	}
	e.onPeriods.Store(0)
	e.tipState.Store(int32(TipCheckError))
}

// takeOnPeriod consumes one scheduled heater half-cycle. It never takes the
// count below zero even if HeaterOff races with it.
func (e *Engine) takeOnPeriod() bool {
	for {
		n := e.onPeriods.Load()
		if n < 1 {
			return false
		}
		if e.onPeriods.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

// TipTemp returns the last converted tip temperature, or ErrorTemp after an
// invalid burst.
func (e *Engine) TipTemp() int { return int(e.tipTemp.Load()) }

// SetTemp returns the target temperature.
func (e *Engine) SetTemp() int { return int(e.setTemp.Load()) }

// TipState returns the last tip classification.
func (e *Engine) TipState() TipState { return TipState(e.tipState.Load()) }

// PowerBar returns the on-count computed by the last burst, in [0, MaxOnPeriods].
func (e *Engine) PowerBar() int { return int(e.powerBar.Load()) }

// OnPeriods returns the number of heater half-cycles still scheduled.
func (e *Engine) OnPeriods() int { return int(e.onPeriods.Load()) }

// MaxOnPeriods returns the configured on-count cap.
func (e *Engine) MaxOnPeriods() int { return e.params.MaxOnPeriods }

// WatchdogDeadline returns the time by which the next zero-cross edge is due.
func (e *Engine) WatchdogDeadline() time.Time {
	return time.Unix(0, e.watchdog.Load())
}

// PowerHistory returns the heater state of the last 32 half-cycles, LSB most
// recent.
func (e *Engine) PowerHistory() uint32 { return e.history.Load() }

// LastAcquisition returns the result of the last completed burst, or nil.
func (e *Engine) LastAcquisition() *Acquisition { return e.last.Load() }

// Stats holds engine counters since startup.
type Stats struct {
	HalfCycles   uint64
	HeaterCycles uint64
	Bursts       uint64
	TipChecks    uint64
	Dropped      uint64
	Stale        uint64
	Recovered    uint64 // bursts completed after their event was dropped
	LineErrors   uint64
	Faults       map[Fault]uint64
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	s := Stats{
		HalfCycles:   e.halfCycles.Load(),
		HeaterCycles: e.heaterCycles.Load(),
		Bursts:       e.bursts.Load(),
		TipChecks:    e.tipChecks.Load(),
		Dropped:      e.dropped.Load(),
		Stale:        e.stale.Load(),
		Recovered:    e.recovered.Load(),
		LineErrors:   e.lineErrors.Load(),
		Faults:       make(map[Fault]uint64, faultKinds),
	}
	for f := Fault(0); f < faultKinds; f++ {
		s.Faults[f] = e.faults[f].Load()
	}
	return s
}
