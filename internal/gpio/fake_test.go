package gpio

import (
	"errors"
	"testing"
)

func TestFakeInputRead(t *testing.T) {
	f := NewFakeInput(true, false, true)

	want := []bool{true, false, true, true} // last sample repeats
	for i, w := range want {
		got, err := f.Read()
		if err != nil {
			t.Fatalf("read %d: unexpected error: %v", i, err)
		}
		if got != w {
			t.Errorf("read %d: expected %v, got %v", i, w, got)
		}
	}
}

func TestFakeInputNoSamples(t *testing.T) {
	f := NewFakeInput()

	if _, err := f.Read(); err == nil {
		t.Error("expected error with no samples")
	}
}

func TestFakeInputError(t *testing.T) {
	f := NewFakeInput(true)
	f.ReadError = errors.New("simulated error")

	_, err := f.Read()
	if err == nil || err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFakeInputResetAndSet(t *testing.T) {
	f := NewFakeInput(true, false)
	f.Read()
	f.Reset()

	if v, _ := f.Read(); v != true {
		t.Errorf("after reset: expected true, got %v", v)
	}

	f.Set(false)
	for i := 0; i < 3; i++ {
		if v, _ := f.Read(); v != false {
			t.Errorf("after set: expected false, got %v", v)
		}
	}
}

func TestFakeSenseLineHistory(t *testing.T) {
	f := NewFakeSenseLine()
	if f.Mode() != ModeFloating {
		t.Fatalf("expected floating initially, got %s", f.Mode())
	}

	f.SetOutputLow()
	f.SetFloatingInput()
	f.DriveHigh()

	want := []Mode{ModeLow, ModeFloating, ModeHigh}
	got := f.History()
	if len(got) != len(want) {
		t.Fatalf("expected %d mode changes, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("change %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if f.Mode() != ModeHigh {
		t.Errorf("expected high, got %s", f.Mode())
	}
}

func TestFakeOutputError(t *testing.T) {
	f := NewFakeOutput()
	f.Set(true)
	f.Err = errors.New("line busy")

	if err := f.Set(false); err == nil {
		t.Error("expected error to be returned")
	}
	if !f.On() {
		t.Error("failed write must not change the output")
	}
	if len(f.Writes()) != 1 {
		t.Errorf("expected 1 recorded write, got %d", len(f.Writes()))
	}
}

func TestModeString(t *testing.T) {
	tests := []struct {
		mode Mode
		want string
	}{
		{ModeFloating, "floating"},
		{ModeLow, "low"},
		{ModeHigh, "high"},
		{Mode(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("Mode(%d).String() = %q, want %q", tt.mode, got, tt.want)
		}
	}
}
