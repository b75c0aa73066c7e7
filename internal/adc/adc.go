// Package adc models the conversion unit the controller paces: an
// on-die sensor that converts die temperature into an offset-encoded
// byte and latches the result until the clear line wipes it.
package adc

import (
	"sync"

	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/tsense"
)

// Unit is one conversion unit in the tick domain. Tick samples the
// enable and clear lines driven for this tick and returns the done
// latch plus the offset-encoded value.
type Unit interface {
	Tick(enable, clear bool) (done bool, raw uint8)
}

// Source supplies the die temperature in degrees C.
type Source interface {
	Next() float32
}

// SourceFunc adapts a plain function to a Source.
type SourceFunc func() float32

func (f SourceFunc) Next() float32 { return f() }

// Fixed returns a Source pinned to one temperature.
func Fixed(v float32) Source {
	return SourceFunc(func() float32 { return v })
}

var _ Unit = (*SimUnit)(nil)

// SimUnit is the simulated sensor. While enabled and not cleared it
// runs a conversion of conversionTicks ticks, then latches done and
// the encoded value until a clear pulse arrives. A clear also aborts
// an in-flight conversion.
type SimUnit struct {
	source          Source
	conversionTicks uint32

	converting bool
	progress   uint32
	done       bool
	value      uint8
}

func NewSimUnit(source Source, conversionTicks uint32) *SimUnit {
	if conversionTicks == 0 {
		conversionTicks = 1
	}
	return &SimUnit{source: source, conversionTicks: conversionTicks}
}

func (u *SimUnit) Tick(enable, clear bool) (bool, uint8) {
	if clear {
		u.done = false
		u.value = 0
		u.converting = false
		u.progress = 0
		return false, 0
	}
	if !enable {
		// idles, but the output latches survive
		return u.done, u.value
	}
	if !u.done {
		if !u.converting {
			u.converting = true
			u.progress = 0
		}
		u.progress++
		if u.progress >= u.conversionTicks {
			u.converting = false
			u.done = true
			u.value = Encode(u.source.Next())
		}
	}
	return u.done, u.value
}

// Encode clamps a temperature to the signed byte range and converts
// it to the raw offset notation the controller decodes.
func Encode(c float32) uint8 {
	if c > 127 {
		c = 127
	}
	if c < -128 {
		c = -128
	}
	return tsense.EncodeOffset(int8(c))
}

var _ Unit = (*Mock)(nil)

// Mock is a hand-driven unit for tests: Set latches a value as a
// finished conversion, a clear pulse wipes it. Safe for use from a
// goroutine other than the ticking one.
type Mock struct {
	mu   sync.Mutex
	done bool
	raw  uint8
}

func (m *Mock) Set(raw uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.done = true
	m.raw = raw
}

func (m *Mock) Cleared() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.done
}

func (m *Mock) Tick(enable, clear bool) (bool, uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if clear {
		m.done = false
		m.raw = 0
	}
	return m.done, m.raw
}
