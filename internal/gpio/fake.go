package gpio

import (
	"errors"
	"sync"
)

// FakeSenseLine records the modes a sense line was switched through.
type FakeSenseLine struct {
	mu      sync.Mutex
	mode    Mode
	history []Mode

	// Err, if set, is returned by every mode change (the mode still changes).
	Err error
}

// NewFakeSenseLine creates a FakeSenseLine in floating mode.
func NewFakeSenseLine() *FakeSenseLine {
	return &FakeSenseLine{}
}

func (f *FakeSenseLine) set(m Mode) error {
	f.mu.Lock()
	f.mode = m
	f.history = append(f.history, m)
	f.mu.Unlock()
	return f.Err
}

// SetOutputLow records ModeLow.
func (f *FakeSenseLine) SetOutputLow() error { return f.set(ModeLow) }

// SetFloatingInput records ModeFloating.
func (f *FakeSenseLine) SetFloatingInput() error { return f.set(ModeFloating) }

// DriveHigh records ModeHigh.
func (f *FakeSenseLine) DriveHigh() error { return f.set(ModeHigh) }

// Mode returns the current mode.
func (f *FakeSenseLine) Mode() Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

// History returns every mode change in order.
func (f *FakeSenseLine) History() []Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Mode(nil), f.history...)
}

// FakeOutput records output writes.
type FakeOutput struct {
	mu     sync.Mutex
	on     bool
	writes []bool

	// Err, if set, is returned by Set and the value is not applied.
	Err error
}

// NewFakeOutput creates a FakeOutput that starts off.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// Set records the write.
func (f *FakeOutput) Set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.on = on
	f.writes = append(f.writes, on)
	return nil
}

// On returns the last value written.
func (f *FakeOutput) On() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.on
}

// Writes returns every value written in order.
func (f *FakeOutput) Writes() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.writes...)
}

// FakeInput is a test double that returns scripted levels.
type FakeInput struct {
	mu sync.Mutex

	// Samples contains scripted levels to return.
	// Each call to Read() consumes the next sample.
	Samples []bool

	// index tracks current position in Samples
	index int

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeInput creates a FakeInput with the given samples.
func NewFakeInput(samples ...bool) *FakeInput {
	return &FakeInput{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeInput) Read() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReadError != nil {
		return false, f.ReadError
	}
	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}

	v := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return v, nil
}

// Set replaces the script with a single level held indefinitely.
func (f *FakeInput) Set(level bool) {
	f.mu.Lock()
	f.Samples = []bool{level}
	f.index = 0
	f.mu.Unlock()
}

// Reset rewinds to the beginning of samples.
func (f *FakeInput) Reset() {
	f.mu.Lock()
	f.index = 0
	f.mu.Unlock()
}
