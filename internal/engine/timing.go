package engine

import "time"

// Phase is the role of the current mains half-cycle.
type Phase int

const (
	PhaseHeater Phase = iota // heater conducts, sense line clamped
	PhaseRead                // heater off, settle then sample
)

func (p Phase) String() string {
	if p == PhaseHeater {
		return "heater"
	}
	return "read"
}

// SettleStep is the sub-phase of a read half-cycle.
type SettleStep int

const (
	AwaitingSettle SettleStep = iota // first settle tick releases the clamp
	AwaitingSample                   // second settle tick starts the burst
)

func (s SettleStep) String() string {
	if s == AwaitingSettle {
		return "awaiting-settle"
	}
	return "awaiting-sample"
}

// CurrentPhase returns the phase chosen at the last true zero cross.
// Dispatch goroutine only.
func (e *Engine) CurrentPhase() Phase { return e.phase }

// CurrentStep returns the read phase sub-step. Dispatch goroutine only.
func (e *Engine) CurrentStep() SettleStep { return e.step }

func (e *Engine) onZeroCrossEdge(at time.Time) {
	e.watchdog.Store(at.Add(e.params.ACWatchdog).UnixNano())
	e.zcArmed = true
	e.hw.ZeroCrossDelay.Start()
}

func (e *Engine) onZeroCrossTimer() {
	if !e.zcArmed {
		e.stale.Add(1)
		return
	}
	e.zcArmed = false
	e.hw.ZeroCrossDelay.Stop()

	e.halfCycles.Add(1)
	e.checkCounter++
	hist := e.history.Load() << 1

	if e.TipTemp() < e.params.MaxTemp && e.takeOnPeriod() {
		e.phase = PhaseHeater
		e.lineErr("clamp", e.hw.Clamp.SetOutputLow())
		if e.lineErr("heater", e.hw.Heater.Set(true)) {
			e.onPeriods.Store(0)
		} else {
			e.heaterCycles.Add(1)
			hist |= 1
		}
	} else {
		e.phase = PhaseRead
		if e.lineErr("heater", e.hw.Heater.Set(false)) {
			e.onPeriods.Store(0)
		}
		e.step = AwaitingSettle
		e.settleArmed = true
		e.hw.Settle.Start()
	}
	e.history.Store(hist)

	if e.hw.Scanner != nil {
		e.hw.Scanner.Scan()
	}
}

func (e *Engine) onSettleTimer() {
	if !e.settleArmed {
		e.stale.Add(1)
		return
	}

	switch e.step {
	case AwaitingSettle:
		e.lineErr("clamp", e.hw.Clamp.SetFloatingInput())
		if e.checkCounter > e.params.TipCheckInterval {
			e.HeaterOff()
			e.armTipCheck()
			e.lineErr("check", e.hw.Check.DriveHigh())
			e.checkCounter = 0
		}
		e.step = AwaitingSample

	case AwaitingSample:
		e.hw.Settle.Stop()
		e.settleArmed = false
		e.step = AwaitingSettle
		e.startBurst()
	}
}
