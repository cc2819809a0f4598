package adc

import "sync"

// FakeSampler completes bursts synchronously with scripted values.
type FakeSampler struct {
	mu     sync.Mutex
	values []uint16
	bursts int

	// Err, if set, is returned by StartBurst.
	Err error
}

// NewFakeSampler creates a sampler that fills every slot with value.
func NewFakeSampler(value uint16) *FakeSampler {
	return &FakeSampler{values: []uint16{value}}
}

// SetValues sets the pattern repeated across the next bursts.
func (f *FakeSampler) SetValues(values ...uint16) {
	f.mu.Lock()
	f.values = values
	f.mu.Unlock()
}

// StartBurst fills buf and calls done before returning.
func (f *FakeSampler) StartBurst(buf []uint16, done func()) error {
	f.mu.Lock()
	if f.Err != nil {
		f.mu.Unlock()
		return f.Err
	}
	for i := range buf {
		buf[i] = f.values[i%len(f.values)]
	}
	f.bursts++
	f.mu.Unlock()

	done()
	return nil
}

// Bursts returns the number of bursts taken.
func (f *FakeSampler) Bursts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bursts
}
