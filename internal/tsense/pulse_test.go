package tsense

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPulseGenShape(t *testing.T) {
	g := NewPulseGen(3, 2)

	want := []bool{
		false, false, false, // waiting
		true, true, // pulse
		false,               // handover
		false, false, false, // waiting again
		true, true,
		false,
	}
	for i, w := range want {
		assert.Equal(t, w, g.Step(), "tick %d", i)
	}
}

func TestPulseGenIdleKeepsOutput(t *testing.T) {
	g := NewPulseGen(2, 3)
	for !g.Step() {
	}
	assert.True(t, g.Out())

	g.Idle()
	wait, width := g.Counts()
	assert.Zero(t, wait)
	assert.Zero(t, width)
	assert.True(t, g.Out(), "idle must not drive the output")
}

func TestPulseGenReset(t *testing.T) {
	g := NewPulseGen(2, 2)
	g.Step()
	g.Step()

	g.Reset(true)
	wait, width := g.Counts()
	assert.Zero(t, wait)
	assert.Zero(t, width)
	assert.True(t, g.Out())

	// The first step after a reset starts a fresh wait.
	assert.False(t, g.Step())
}

func TestPulseTimerSaturates(t *testing.T) {
	pt := NewPulseTimer(2)
	assert.False(t, pt.Expired())
	pt.Advance()
	pt.Advance()
	assert.True(t, pt.Expired())
	pt.Advance()
	assert.Equal(t, uint32(2), pt.Elapsed())

	pt.Reset()
	assert.Zero(t, pt.Elapsed())
	assert.False(t, pt.Expired())
}
