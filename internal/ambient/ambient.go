// Package ambient reads the board temperature from a PCT2075 over I2C.
package ambient

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
)

// ErrorTemp is displayed when the sensor cannot be read.
const ErrorTemp = 999

// ErrNoSensor is returned by a sensor that is not connected.
var ErrNoSensor = errors.New("ambient: sensor not available")

// Sensor reads the ambient temperature in degrees Celsius.
type Sensor interface {
	ReadTemperature() (int, error)
}

// PCT2075 is the board temperature sensor.
type PCT2075 struct {
	bus i2c.BusCloser
	dev *i2c.Dev
}

// Open opens the named I2C bus and addresses the sensor.
func Open(bus string, addr uint16) (*PCT2075, error) {
	b, err := i2creg.Open(bus)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus: %w", err)
	}
	return &PCT2075{bus: b, dev: &i2c.Dev{Bus: b, Addr: addr}}, nil
}

// ReadTemperature reads the temperature register.
func (p *PCT2075) ReadTemperature() (int, error) {
	r := make([]byte, 2)
	if err := p.dev.Tx([]byte{0x00}, r); err != nil {
		return ErrorTemp, fmt.Errorf("read ambient temperature: %w", err)
	}
	return Decode(r[0], r[1]), nil
}

// Decode converts the 11-bit two's complement register to whole degrees.
func Decode(msb, lsb byte) int {
	raw := int16(uint16(msb)<<8|uint16(lsb)) >> 5
	return int(raw) / 8
}

// Close releases the bus.
func (p *PCT2075) Close() error {
	return p.bus.Close()
}

// Read returns the temperature, or ErrorTemp when the sensor fails.
func Read(s Sensor) int {
	if s == nil {
		return ErrorTemp
	}
	t, err := s.ReadTemperature()
	if err != nil {
		return ErrorTemp
	}
	return t
}

// FakeSensor is a test double.
type FakeSensor struct {
	mu   sync.Mutex
	temp int
	err  error
}

// NewFakeSensor creates a sensor reporting temp.
func NewFakeSensor(temp int) *FakeSensor {
	return &FakeSensor{temp: temp}
}

// SetError makes subsequent reads fail.
func (f *FakeSensor) SetError(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// ReadTemperature returns the configured temperature.
func (f *FakeSensor) ReadTemperature() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return ErrorTemp, f.err
	}
	return f.temp, nil
}
