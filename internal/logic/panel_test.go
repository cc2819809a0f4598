package logic

import (
	"testing"
	"time"

	"github.com/sweeney/solder-station/internal/input"
)

type fakeSwitch struct{ pressed bool }

func (s *fakeSwitch) Pressed() bool { return s.pressed }

type fakeButton struct{ release input.PressState }

func (b *fakeButton) TakeReleaseEvent() input.PressState {
	r := b.release
	b.release = input.NoPress
	return r
}

type fakeDial struct{ steps int }

func (d *fakeDial) TakeEvent() input.EncoderEvent {
	switch {
	case d.steps > 0:
		return input.Increase
	case d.steps < 0:
		return input.Decrease
	default:
		return input.NoChange
	}
}

func (d *fakeDial) TakeDelta() int {
	s := d.steps
	d.steps = 0
	return s
}

type fakeTemps struct{ v int }

func (f *fakeTemps) SetTemp() int     { return f.v }
func (f *fakeTemps) SetNewTemp(v int) { f.v = v }

var testPanelConfig = PanelConfig{
	HolderReleaseDelay: 500 * time.Millisecond,
	TipChangeHold:      3 * time.Second,
	TempStep:           5,
	MinTemp:            30,
	MaxTemp:            400,
}

type panelRig struct {
	p         *FrontPanel
	holder    *fakeSwitch
	tipChange *fakeSwitch
	button    *fakeButton
	dial      *fakeDial
	temps     *fakeTemps
}

func newPanelRig() *panelRig {
	r := &panelRig{
		holder:    &fakeSwitch{},
		tipChange: &fakeSwitch{},
		button:    &fakeButton{},
		dial:      &fakeDial{},
		temps:     &fakeTemps{v: 300},
	}
	r.p = NewFrontPanel(r.holder, r.tipChange, r.button, r.dial, r.temps, testPanelConfig)
	return r
}

func TestHolderHoldOff(t *testing.T) {
	r := newPanelRig()

	if st := r.p.Read(start); st.InHolder {
		t.Fatal("expected tool out of holder initially")
	}

	r.holder.pressed = true
	if st := r.p.Read(start); !st.InHolder {
		t.Fatal("expected tool in holder")
	}

	r.holder.pressed = false
	if st := r.p.Read(start.Add(500 * time.Millisecond)); !st.InHolder {
		t.Error("holder should read parked until the release delay has elapsed")
	}
	if st := r.p.Read(start.Add(501 * time.Millisecond)); st.InHolder {
		t.Error("holder should read released after the delay")
	}
}

func TestTipChangeHold(t *testing.T) {
	r := newPanelRig()

	r.tipChange.pressed = true
	r.p.Read(start)
	r.tipChange.pressed = false

	if st := r.p.Read(start.Add(2 * time.Second)); !st.TipChange {
		t.Error("tip change should stay active during the hold")
	}
	if st := r.p.Read(start.Add(3*time.Second + time.Millisecond)); st.TipChange {
		t.Error("tip change should clear after the hold")
	}
}

func TestEncoderAdjustsSetTemp(t *testing.T) {
	r := newPanelRig()

	r.dial.steps = 2
	st := r.p.Read(start)
	if r.temps.v != 310 || !st.Adjusted {
		t.Errorf("expected 310, got %d (adjusted=%v)", r.temps.v, st.Adjusted)
	}

	r.dial.steps = -3
	r.p.Read(start)
	if r.temps.v != 295 {
		t.Errorf("expected 295, got %d", r.temps.v)
	}

	r.dial.steps = 100
	r.p.Read(start)
	if r.temps.v != 400 {
		t.Errorf("expected clamp at 400, got %d", r.temps.v)
	}

	r.dial.steps = 1
	if st := r.p.Read(start); st.Adjusted {
		t.Error("no adjustment expected at the limit")
	}

	if st := r.p.Read(start); st.Adjusted {
		t.Error("no adjustment expected without encoder movement")
	}
}

func TestReleaseEventReported(t *testing.T) {
	r := newPanelRig()
	r.button.release = input.LongPress

	if st := r.p.Read(start); st.Release != input.LongPress {
		t.Errorf("expected long press release, got %s", st.Release)
	}
	if st := r.p.Read(start); st.Release != input.NoPress {
		t.Errorf("release should be consumed, got %s", st.Release)
	}
}

func TestAdjustTemp(t *testing.T) {
	tests := []struct {
		current, delta, want int
	}{
		{300, 1, 305},
		{300, -1, 295},
		{35, -2, 30},
		{398, 1, 400},
		{30, -1, 30},
		{300, 0, 300},
	}
	for _, tt := range tests {
		if got := AdjustTemp(tt.current, tt.delta, 5, 30, 400); got != tt.want {
			t.Errorf("AdjustTemp(%d, %d) = %d, want %d", tt.current, tt.delta, got, tt.want)
		}
	}
}
