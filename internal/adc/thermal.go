package adc

import (
	"math/rand"
	"time"

	"github.com/chewxy/math32"
)

var _ Source = (*ThermalModel)(nil)

// ThermalModel produces a plausible die temperature: a slow sinusoidal
// swing around an ambient midpoint plus uniform noise.
type ThermalModel struct {
	Ambient float32 // midpoint, degrees C
	Swing   float32 // peak deviation from the midpoint
	Noise   float32 // peak uniform noise
	Period  uint32  // swing period in samples

	n   uint64
	rng *rand.Rand
}

func NewThermalModel(ambient, swing, noise float32, period uint32) *ThermalModel {
	if period == 0 {
		period = 3600
	}
	return &ThermalModel{
		Ambient: ambient,
		Swing:   swing,
		Noise:   noise,
		Period:  period,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *ThermalModel) Next() float32 {
	m.n++
	phase := 2 * math32.Pi * float32(m.n%uint64(m.Period)) / float32(m.Period)
	t := m.Ambient + m.Swing*math32.Sin(phase)
	if m.Noise > 0 {
		t += (m.rng.Float32()*2 - 1) * m.Noise
	}
	return t
}
