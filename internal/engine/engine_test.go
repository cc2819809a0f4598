package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/solder-station/internal/config"
	"github.com/sweeney/solder-station/internal/gpio"
)

// manualTimer records Start/Stop; tests fire it by dispatching events.
type manualTimer struct {
	running bool
	starts  int
	stops   int
}

func (m *manualTimer) Start() { m.running = true; m.starts++ }
func (m *manualTimer) Stop()  { m.running = false; m.stops++ }

// manualSampler holds the burst until the test completes it.
type manualSampler struct {
	buf    []uint16
	done   func()
	starts int
	err    error
}

func (m *manualSampler) StartBurst(buf []uint16, done func()) error {
	if m.err != nil {
		return m.err
	}
	m.buf = buf
	m.done = done
	m.starts++
	return nil
}

func (m *manualSampler) complete(values ...uint16) {
	if m.done == nil {
		return
	}
	for i := range m.buf {
		m.buf[i] = values[i%len(values)]
	}
	done := m.done
	m.done = nil
	done()
}

type countScanner struct{ n int }

func (c *countScanner) Scan() { c.n++ }

type rig struct {
	e      *Engine
	heater *gpio.FakeOutput
	clamp  *gpio.FakeSenseLine
	check  *gpio.FakeSenseLine
	zc     *manualTimer
	settle *manualTimer
	adc    *manualSampler
	scan   *countScanner
}

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{
		heater: gpio.NewFakeOutput(),
		clamp:  gpio.NewFakeSenseLine(),
		check:  gpio.NewFakeSenseLine(),
		zc:     &manualTimer{},
		settle: &manualTimer{},
		adc:    &manualSampler{},
		scan:   &countScanner{},
	}
	r.e = New(Hardware{
		Heater:         r.heater,
		Clamp:          r.clamp,
		Check:          r.check,
		ZeroCrossDelay: r.zc,
		Settle:         r.settle,
		ADC:            r.adc,
		Scanner:        r.scan,
	}, ParamsFromConfig(config.Default()), t0)
	return r
}

// drain dispatches every queued event.
func drain(e *Engine) {
	for {
		select {
		case ev := <-e.events:
			e.Dispatch(ev)
		default:
			return
		}
	}
}

// zeroCross runs the edge and the true zero cross.
func (r *rig) zeroCross(at time.Time) {
	r.e.Dispatch(Event{Kind: ZeroCrossEdge, At: at})
	r.e.Dispatch(Event{Kind: ZeroCrossTimer, At: at.Add(600 * time.Microsecond)})
}

// halfCycle runs one complete half-cycle. If it is a read phase the burst is
// completed with values.
func (r *rig) halfCycle(at time.Time, values ...uint16) {
	r.zeroCross(at)
	if !r.settle.running {
		return
	}
	r.e.Dispatch(Event{Kind: SettleTimer})
	r.e.Dispatch(Event{Kind: SettleTimer})
	r.adc.complete(values...)
	drain(r.e)
}

// detectTip runs a forced tip check with an inserted tip.
func (r *rig) detectTip(t *testing.T, at time.Time) {
	t.Helper()
	r.e.checkCounter = r.e.params.TipCheckInterval
	r.halfCycle(at, 3500)
	if r.e.TipState() != TipDetected {
		t.Fatalf("expected tip detected, got %s", r.e.TipState())
	}
}

func TestNewEngineDefaults(t *testing.T) {
	r := newRig(t)

	if r.e.SetTemp() != 300 {
		t.Errorf("expected set temp 300, got %d", r.e.SetTemp())
	}
	if r.e.TipState() != TipNotChecked {
		t.Errorf("expected tip not checked, got %s", r.e.TipState())
	}
	if want := t0.Add(time.Second); !r.e.WatchdogDeadline().Equal(want) {
		t.Errorf("expected watchdog %v, got %v", want, r.e.WatchdogDeadline())
	}
	if r.e.LastAcquisition() != nil {
		t.Error("expected no acquisition before the first burst")
	}
}

func TestZeroCrossEdgeUpdatesWatchdog(t *testing.T) {
	r := newRig(t)
	at := t0.Add(5 * time.Second)

	r.e.Dispatch(Event{Kind: ZeroCrossEdge, At: at})

	if want := at.Add(r.e.params.ACWatchdog); !r.e.WatchdogDeadline().Equal(want) {
		t.Errorf("expected watchdog %v, got %v", want, r.e.WatchdogDeadline())
	}
	if !r.zc.running {
		t.Error("zero-cross delay timer should be running")
	}
}

func TestReadPhaseOrdering(t *testing.T) {
	r := newRig(t)

	r.zeroCross(t0)

	if r.zc.running {
		t.Error("zero-cross delay timer should be stopped at the true zero cross")
	}
	if r.e.CurrentPhase() != PhaseRead {
		t.Fatalf("expected read phase, got %s", r.e.CurrentPhase())
	}
	if r.heater.On() {
		t.Error("heater must be off in a read phase")
	}
	if !r.settle.running {
		t.Fatal("settle timer should be running")
	}
	if r.scan.n != 1 {
		t.Errorf("expected 1 scan, got %d", r.scan.n)
	}

	// First tick releases the clamp but never samples.
	r.e.Dispatch(Event{Kind: SettleTimer})
	if r.clamp.Mode() != gpio.ModeFloating {
		t.Errorf("expected clamp floating, got %s", r.clamp.Mode())
	}
	if r.adc.starts != 0 {
		t.Fatal("burst must not start on the first settle tick")
	}
	if r.e.CurrentStep() != AwaitingSample {
		t.Errorf("expected awaiting-sample, got %s", r.e.CurrentStep())
	}

	// Second tick stops the timer and starts the burst.
	r.e.Dispatch(Event{Kind: SettleTimer})
	if r.settle.running {
		t.Error("settle timer should be stopped after the second tick")
	}
	if r.adc.starts != 1 {
		t.Errorf("expected 1 burst, got %d", r.adc.starts)
	}
	if r.e.CurrentStep() != AwaitingSettle {
		t.Errorf("expected awaiting-settle, got %s", r.e.CurrentStep())
	}
}

func TestHeaterPhase(t *testing.T) {
	r := newRig(t)
	r.e.onPeriods.Store(2)

	r.zeroCross(t0)

	if r.e.CurrentPhase() != PhaseHeater {
		t.Fatalf("expected heater phase, got %s", r.e.CurrentPhase())
	}
	if !r.heater.On() {
		t.Error("heater should be on")
	}
	if r.clamp.Mode() != gpio.ModeLow {
		t.Errorf("expected clamp driven low, got %s", r.clamp.Mode())
	}
	if r.e.OnPeriods() != 1 {
		t.Errorf("expected 1 remaining on-period, got %d", r.e.OnPeriods())
	}
	if r.settle.running {
		t.Error("settle timer must not run in a heater phase")
	}
	if r.scan.n != 1 {
		t.Errorf("expected 1 scan, got %d", r.scan.n)
	}
	if r.e.PowerHistory()&1 != 1 {
		t.Errorf("expected LSB of power history set, got %032b", r.e.PowerHistory())
	}

	r.zeroCross(t0.Add(10 * time.Millisecond))
	r.zeroCross(t0.Add(20 * time.Millisecond))

	if r.e.CurrentPhase() != PhaseRead {
		t.Errorf("expected read phase once on-periods are used up, got %s", r.e.CurrentPhase())
	}
	if r.e.OnPeriods() != 0 {
		t.Errorf("on-periods must not go negative, got %d", r.e.OnPeriods())
	}
	if got := r.e.PowerHistory() & 0b111; got != 0b110 {
		t.Errorf("expected history 110, got %03b", got)
	}
}

func TestHeaterBlockedAtMaxTemp(t *testing.T) {
	r := newRig(t)
	r.e.onPeriods.Store(4)
	r.e.tipTemp.Store(400)

	r.zeroCross(t0)

	if r.heater.On() {
		t.Error("heater must stay off at max temperature")
	}
	if r.e.CurrentPhase() != PhaseRead {
		t.Errorf("expected read phase, got %s", r.e.CurrentPhase())
	}
}

func TestHeaterWriteFailureClearsSchedule(t *testing.T) {
	r := newRig(t)
	r.e.onPeriods.Store(3)
	r.heater.Err = errors.New("line busy")

	r.zeroCross(t0)

	if r.e.OnPeriods() != 0 {
		t.Errorf("expected on-periods cleared, got %d", r.e.OnPeriods())
	}
	if r.e.Stats().LineErrors == 0 {
		t.Error("expected line error counted")
	}
	if r.e.PowerHistory()&1 != 0 {
		t.Error("failed heater write must not be recorded as power")
	}
}

func TestTipCheckArmsAfterInterval(t *testing.T) {
	r := newRig(t)
	r.e.onPeriods.Store(0)

	// 50 half-cycles: no check yet.
	for i := 0; i < 50; i++ {
		r.halfCycle(t0.Add(time.Duration(i)*10*time.Millisecond), 2000)
	}
	if r.e.TipState() != TipNotChecked {
		t.Fatalf("expected no tip check after 50 half-cycles, got %s", r.e.TipState())
	}
	if len(r.check.History()) != 0 {
		t.Fatalf("check line must not be touched yet, got %v", r.check.History())
	}

	// The 51st arms the check.
	r.e.onPeriods.Store(3)
	r.e.tipTemp.Store(500) // keeps this half-cycle a read phase
	r.zeroCross(t0.Add(500 * time.Millisecond))
	r.e.Dispatch(Event{Kind: SettleTimer})

	if r.check.Mode() != gpio.ModeHigh {
		t.Errorf("expected check line driven high, got %s", r.check.Mode())
	}
	if r.e.OnPeriods() != 0 {
		t.Errorf("tip check must force on-periods to 0, got %d", r.e.OnPeriods())
	}
	if r.e.checkCounter != 0 {
		t.Errorf("expected counter reset, got %d", r.e.checkCounter)
	}

	r.e.Dispatch(Event{Kind: SettleTimer})
	r.adc.complete(4200)
	drain(r.e)

	if r.e.TipState() != TipNotDetected {
		t.Errorf("expected not detected for 4200, got %s", r.e.TipState())
	}
	if r.check.Mode() != gpio.ModeFloating {
		t.Errorf("expected check line floating after the burst, got %s", r.check.Mode())
	}
	acq := r.e.LastAcquisition()
	if acq == nil || !acq.TipCheck || acq.Average != 4200 {
		t.Errorf("unexpected acquisition %+v", acq)
	}
	if checkState(r.e.check.Load()) != checkIdle {
		t.Error("protocol flag should be idle after the check")
	}
}

func TestTipCheckClassification(t *testing.T) {
	tests := []struct {
		name string
		avg  uint16
		want TipState
	}{
		{"tip inserted", 3500, TipDetected},
		{"no tip", 4200, TipNotDetected},
		{"ambiguous", 3900, TipCheckError},
		{"at tip max", 3800, TipCheckError},
		{"at no tip min", 4000, TipCheckError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t)
			r.e.checkCounter = 50
			r.halfCycle(t0, tt.avg)

			if r.e.TipState() != tt.want {
				t.Errorf("expected %s, got %s", tt.want, r.e.TipState())
			}
			if tt.want == TipCheckError {
				if r.heater.On() {
					t.Error("ambiguous check must leave the heater off")
				}
				if r.e.Stats().Faults[FaultTipAmbiguous] != 1 {
					t.Error("expected ambiguous fault counted")
				}
			}
		})
	}
}

func TestCheckTipOutsideWindow(t *testing.T) {
	r := newRig(t)
	r.e.onPeriods.Store(4)

	got := r.e.CheckTip(3500)

	if got != TipCheckError {
		t.Errorf("expected check error, got %s", got)
	}
	if r.e.OnPeriods() != 0 {
		t.Errorf("expected heater schedule cleared, got %d", r.e.OnPeriods())
	}
	writes := r.heater.Writes()
	if len(writes) == 0 || writes[len(writes)-1] {
		t.Errorf("expected heater driven off, got writes %v", writes)
	}
	if r.e.TipState() != TipCheckError {
		t.Errorf("expected tip state check error, got %s", r.e.TipState())
	}
	if r.e.Stats().Faults[FaultTipProtocol] != 1 {
		t.Error("expected protocol fault counted")
	}
	if checkState(r.e.check.Load()) != checkIdle {
		t.Error("protocol flag should be reset to idle")
	}
}

func TestTipCheckRearmWhileArmed(t *testing.T) {
	r := newRig(t)
	r.adc.err = errors.New("spi busy")

	// Burst fails to start, so the armed check is never consumed.
	r.e.checkCounter = 50
	r.halfCycle(t0)
	if checkState(r.e.check.Load()) != checkArmed {
		t.Fatal("expected check armed")
	}

	r.e.checkCounter = 50
	r.halfCycle(t0.Add(10 * time.Millisecond))

	if r.e.Stats().Faults[FaultTipProtocol] != 1 {
		t.Errorf("expected protocol fault, got %d", r.e.Stats().Faults[FaultTipProtocol])
	}
	if r.e.TipState() != TipCheckError {
		t.Errorf("expected check error, got %s", r.e.TipState())
	}
	if checkState(r.e.check.Load()) != checkArmed {
		t.Error("check should be re-armed")
	}
	if r.e.Stats().Faults[FaultSampler] != 2 {
		t.Errorf("expected 2 sampler faults, got %d", r.e.Stats().Faults[FaultSampler])
	}
}

func TestTemperatureConversion(t *testing.T) {
	r := newRig(t)
	r.detectTip(t, t0)

	r.halfCycle(t0.Add(10*time.Millisecond), 3500)

	if r.e.TipTemp() != 491 {
		t.Errorf("expected 491, got %d", r.e.TipTemp())
	}
	acq := r.e.LastAcquisition()
	if !acq.Valid || acq.Temperature != 491 || acq.TipCheck {
		t.Errorf("unexpected acquisition %+v", acq)
	}
}

func TestDeviationInvalidatesBurst(t *testing.T) {
	r := newRig(t)
	r.detectTip(t, t0)
	r.e.SetMode(ModeOn)

	// One sample far above the rest.
	r.zeroCross(t0.Add(10 * time.Millisecond))
	r.e.Dispatch(Event{Kind: SettleTimer})
	r.e.Dispatch(Event{Kind: SettleTimer})
	for i := range r.adc.buf {
		r.adc.buf[i] = 1500
	}
	r.adc.buf[7] = 2500
	r.adc.done()
	drain(r.e)

	if r.e.TipTemp() != ErrorTemp {
		t.Errorf("expected error temp, got %d", r.e.TipTemp())
	}
	if r.e.TipState() != TipCheckError {
		t.Errorf("expected check error, got %s", r.e.TipState())
	}
	if r.e.OnPeriods() != 0 || r.e.PowerBar() != 0 {
		t.Errorf("expected heater off, on=%d bar=%d", r.e.OnPeriods(), r.e.PowerBar())
	}
	if acq := r.e.LastAcquisition(); acq.Valid {
		t.Error("acquisition should be invalid")
	}
	if r.e.Stats().Faults[FaultDeviation] != 1 {
		t.Error("expected deviation fault counted")
	}
}

func TestBurstFeedsPowerLaw(t *testing.T) {
	tests := []struct {
		name string
		mode Mode
		want int
	}{
		{"on", ModeOn, 4},
		{"standby", ModeStandby, 0},
		{"idle", ModeIdle, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t)
			r.detectTip(t, t0)
			r.e.SetMode(tt.mode)

			// 1688 converts to 250 C.
			r.halfCycle(t0.Add(10*time.Millisecond), 1688)

			if r.e.TipTemp() != 250 {
				t.Fatalf("expected 250, got %d", r.e.TipTemp())
			}
			if r.e.OnPeriods() != tt.want {
				t.Errorf("expected on-periods %d, got %d", tt.want, r.e.OnPeriods())
			}
			if r.e.PowerBar() != tt.want {
				t.Errorf("expected power bar %d, got %d", tt.want, r.e.PowerBar())
			}
		})
	}
}

func TestStaleEventsIgnored(t *testing.T) {
	r := newRig(t)

	r.e.Dispatch(Event{Kind: ZeroCrossTimer})
	r.e.Dispatch(Event{Kind: SettleTimer})
	r.e.Dispatch(Event{Kind: BurstComplete})

	s := r.e.Stats()
	if s.Stale != 3 {
		t.Errorf("expected 3 stale events, got %d", s.Stale)
	}
	if s.HalfCycles != 0 || s.Bursts != 0 {
		t.Errorf("stale events must not advance the engine: %+v", s)
	}
	if r.scan.n != 0 {
		t.Error("stale zero cross must not scan inputs")
	}
}

func TestPostDropsWhenFull(t *testing.T) {
	r := newRig(t)

	for i := 0; i < eventQueueSize; i++ {
		if !r.e.Post(Event{Kind: ZeroCrossEdge, At: t0}) {
			t.Fatalf("post %d dropped", i)
		}
	}
	if r.e.Post(Event{Kind: ZeroCrossEdge, At: t0}) {
		t.Error("expected post to fail on a full queue")
	}
	if r.e.Stats().Dropped != 1 {
		t.Errorf("expected 1 dropped, got %d", r.e.Stats().Dropped)
	}
}

func TestRunDispatchesUntilCancelled(t *testing.T) {
	r := newRig(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.e.Run(ctx)
		close(done)
	}()

	at := t0.Add(time.Minute)
	r.e.Post(Event{Kind: ZeroCrossEdge, At: at})

	deadline := time.Now().Add(2 * time.Second)
	for !r.e.WatchdogDeadline().Equal(at.Add(r.e.params.ACWatchdog)) {
		if time.Now().After(deadline) {
			t.Fatal("event was not dispatched")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSetNewTempClamps(t *testing.T) {
	r := newRig(t)

	tests := []struct{ in, want int }{
		{250, 250},
		{10, 30},
		{500, 400},
		{400, 400},
		{30, 30},
	}
	for _, tt := range tests {
		r.e.SetNewTemp(tt.in)
		if r.e.SetTemp() != tt.want {
			t.Errorf("SetNewTemp(%d): expected %d, got %d", tt.in, tt.want, r.e.SetTemp())
		}
	}
}

func TestErrorHandler(t *testing.T) {
	r := newRig(t)
	r.heater.Set(true)
	r.e.onPeriods.Store(4)

	r.e.ErrorHandler()

	if r.heater.On() {
		t.Error("heater should be off immediately")
	}
	if r.e.OnPeriods() != 0 {
		t.Errorf("expected on-periods 0, got %d", r.e.OnPeriods())
	}
	if r.e.TipState() != TipCheckError {
		t.Errorf("expected check error, got %s", r.e.TipState())
	}
}

// readPhase runs a half-cycle up to the burst start without completing it.
func (r *rig) readPhase(at time.Time) {
	r.zeroCross(at)
	r.e.Dispatch(Event{Kind: SettleTimer})
	r.e.Dispatch(Event{Kind: SettleTimer})
}

func TestDroppedBurstCompletionRecovered(t *testing.T) {
	r := newRig(t)
	r.detectTip(t, t0)

	// The sampler finishes while the queue is full.
	r.readPhase(t0.Add(10 * time.Millisecond))
	for i := 0; i < eventQueueSize; i++ {
		r.e.Post(Event{Kind: SettleTimer})
	}
	r.adc.complete(1688)
	if r.e.Stats().Dropped != 1 {
		t.Fatalf("expected the completion to be dropped, got %d drops", r.e.Stats().Dropped)
	}
	drain(r.e)

	at := t0.Add(20 * time.Millisecond)
	for i := 0; i < 20; i++ {
		r.halfCycle(at, 1688)
		at = at.Add(10 * time.Millisecond)
	}

	s := r.e.Stats()
	if s.Faults[FaultSampler] != 0 {
		t.Errorf("expected no sampler faults, got %d", s.Faults[FaultSampler])
	}
	if s.Recovered != 1 {
		t.Errorf("expected 1 recovered burst, got %d", s.Recovered)
	}
	// Tip check, the recovered burst and one per half-cycle.
	if s.Bursts != 22 {
		t.Errorf("expected 22 bursts, got %d", s.Bursts)
	}
	if r.e.TipTemp() != 250 {
		t.Errorf("expected 250, got %d", r.e.TipTemp())
	}

	// Tip removal is still noticed.
	r.e.checkCounter = r.e.params.TipCheckInterval
	r.halfCycle(at, 4095)
	if r.e.TipState() != TipNotDetected {
		t.Errorf("expected tip not detected, got %s", r.e.TipState())
	}
}

func TestHungBurstAbandoned(t *testing.T) {
	r := newRig(t)

	r.readPhase(t0)
	late := r.adc.done

	at := t0.Add(10 * time.Millisecond)
	for i := 0; i < maxBurstWaits; i++ {
		r.readPhase(at)
		at = at.Add(10 * time.Millisecond)
	}
	if r.adc.starts != 1 {
		t.Fatalf("burst restarted too early: %d starts", r.adc.starts)
	}
	if f := r.e.Stats().Faults[FaultSampler]; f != maxBurstWaits {
		t.Errorf("expected %d sampler faults, got %d", maxBurstWaits, f)
	}

	r.readPhase(at)
	if r.adc.starts != 2 {
		t.Fatalf("expected a new burst after giving up, got %d starts", r.adc.starts)
	}

	// The abandoned burst finishing late must not complete the new one.
	late()
	drain(r.e)
	if s := r.e.Stats(); s.Bursts != 0 || s.Stale != 1 {
		t.Errorf("late completion: bursts=%d stale=%d", s.Bursts, s.Stale)
	}

	r.adc.complete(1500)
	drain(r.e)
	if r.e.Stats().Bursts != 1 {
		t.Errorf("expected the new burst to complete, got %d", r.e.Stats().Bursts)
	}
}

func TestRecoveredBurstNotTakenAsTipCheck(t *testing.T) {
	r := newRig(t)
	r.detectTip(t, t0)

	r.readPhase(t0.Add(10 * time.Millisecond))
	for i := 0; i < eventQueueSize; i++ {
		r.e.Post(Event{Kind: SettleTimer})
	}
	r.adc.complete(1688)
	drain(r.e)

	// The next read phase arms a tip check before the lost burst is reclaimed.
	r.e.checkCounter = r.e.params.TipCheckInterval
	r.halfCycle(t0.Add(20*time.Millisecond), 4095)

	if r.e.Stats().Recovered != 1 {
		t.Fatalf("expected 1 recovered burst, got %d", r.e.Stats().Recovered)
	}
	if r.e.TipTemp() != 250 {
		t.Errorf("recovered burst should be a temperature reading, got %d", r.e.TipTemp())
	}
	if r.e.TipState() != TipNotDetected {
		t.Errorf("expected the new burst to be the tip check, got %s", r.e.TipState())
	}
	if r.e.Stats().Faults[FaultTipProtocol] != 0 {
		t.Error("unexpected tip protocol fault")
	}
}
