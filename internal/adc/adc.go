// Package adc reads thermocouple amplifier bursts from an MCP3202 SPI ADC.
package adc

import (
	"errors"
	"fmt"
	"sync/atomic"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

// ErrBusy is returned when a burst is requested while one is in progress.
var ErrBusy = errors.New("adc: burst in progress")

// Invalid fills a sample slot whose conversion failed. It is far outside any
// real 12-bit reading, so the deviation check rejects the burst.
const Invalid = 0xFFFF

// Conn is the part of spi.Conn used by the sampler.
type Conn interface {
	Tx(w, r []byte) error
}

// MCP3202 samples one single-ended channel.
type MCP3202 struct {
	conn    Conn
	port    spi.PortCloser
	channel int

	busy   atomic.Bool
	errors atomic.Uint64
}

// Open opens the SPI port and connects to the ADC.
func Open(port string, speedHz int64, channel int) (*MCP3202, error) {
	p, err := spireg.Open(port)
	if err != nil {
		return nil, fmt.Errorf("open spi port: %w", err)
	}
	c, err := p.Connect(physic.Frequency(speedHz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("connect adc: %w", err)
	}
	a := New(c, channel)
	a.port = p
	return a, nil
}

// New creates a sampler on an existing connection.
func New(conn Conn, channel int) *MCP3202 {
	return &MCP3202{conn: conn, channel: channel & 1}
}

// Read performs one conversion.
func (a *MCP3202) Read() (uint16, error) {
	w := []byte{0x01, 0xA0 | byte(a.channel)<<6, 0x00}
	r := make([]byte, 3)
	if err := a.conn.Tx(w, r); err != nil {
		return 0, fmt.Errorf("adc read: %w", err)
	}
	return uint16(r[1]&0x0F)<<8 | uint16(r[2]), nil
}

// StartBurst fills buf on a separate goroutine and calls done when finished.
// Failed conversions are stored as Invalid.
func (a *MCP3202) StartBurst(buf []uint16, done func()) error {
	if !a.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	go func() {
		w := []byte{0x01, 0xA0 | byte(a.channel)<<6, 0x00}
		r := make([]byte, 3)
		for i := range buf {
			if err := a.conn.Tx(w, r); err != nil {
				a.errors.Add(1)
				buf[i] = Invalid
				continue
			}
			buf[i] = uint16(r[1]&0x0F)<<8 | uint16(r[2])
		}
		a.busy.Store(false)
		done()
	}()
	return nil
}

// Errors returns the number of failed conversions since startup.
func (a *MCP3202) Errors() uint64 {
	return a.errors.Load()
}

// Close releases the SPI port.
func (a *MCP3202) Close() error {
	if a.port != nil {
		return a.port.Close()
	}
	return nil
}
