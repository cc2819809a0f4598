// Package timer provides the short-interval periodic timers that sequence a
// mains half-cycle.
package timer

import (
	"sync"
	"time"
)

// Periodic calls fire every interval between Start and Stop.
// A tick already scheduled when Stop is called is discarded.
type Periodic struct {
	interval time.Duration
	fire     func(at time.Time)

	mu      sync.Mutex
	gen     uint64
	running bool
	t       *time.Timer
}

// NewPeriodic creates a stopped timer.
func NewPeriodic(interval time.Duration, fire func(at time.Time)) *Periodic {
	return &Periodic{interval: interval, fire: fire}
}

// Start (re)starts the timer. The first tick is one interval from now.
func (p *Periodic) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.t != nil {
		p.t.Stop()
	}
	p.gen++
	p.running = true
	p.schedule(p.gen)
}

// schedule must be called with mu held.
func (p *Periodic) schedule(gen uint64) {
	p.t = time.AfterFunc(p.interval, func() { p.tick(gen) })
}

func (p *Periodic) tick(gen uint64) {
	p.mu.Lock()
	if !p.running || gen != p.gen {
		p.mu.Unlock()
		return
	}
	p.schedule(gen)
	p.mu.Unlock()

	p.fire(time.Now())
}

// Stop stops the timer.
func (p *Periodic) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.running = false
	p.gen++
	if p.t != nil {
		p.t.Stop()
		p.t = nil
	}
}

// Running reports whether the timer is started.
func (p *Periodic) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
