package tsense

// PulseTimer counts ticks toward a fixed threshold and saturates
// there. Two of them make up a PulseGen.
type PulseTimer struct {
	elapsed uint32
	limit   uint32
}

func NewPulseTimer(limit uint32) PulseTimer {
	return PulseTimer{limit: limit}
}

func (t *PulseTimer) Advance() {
	if t.elapsed < t.limit {
		t.elapsed++
	}
}

func (t *PulseTimer) Expired() bool { return t.elapsed >= t.limit }

func (t *PulseTimer) Reset() { t.elapsed = 0 }

func (t *PulseTimer) Elapsed() uint32 { return t.elapsed }

// PulseGen emits a periodic pulse in the tick domain: waitTicks ticks
// low, widthTicks ticks high, one tick to hand over, repeat. Exactly
// one of the two counters advances on any Step.
type PulseGen struct {
	wait  PulseTimer // ticks since the last pulse ended
	width PulseTimer // ticks the current pulse has been high
	out   bool
}

func NewPulseGen(waitTicks, widthTicks uint32) PulseGen {
	return PulseGen{
		wait:  NewPulseTimer(waitTicks),
		width: NewPulseTimer(widthTicks),
	}
}

// Step advances the generator by one tick and returns the output
// level driven for that tick.
func (g *PulseGen) Step() bool {
	if g.wait.Expired() {
		if g.width.Expired() {
			g.out = false
			g.wait.Reset()
			g.width.Reset()
		} else {
			g.out = true
			g.width.Advance()
		}
	} else {
		g.out = false
		g.wait.Advance()
	}
	return g.out
}

// Idle zeroes both counters without driving the output; the last
// driven level stays latched.
func (g *PulseGen) Idle() {
	g.wait.Reset()
	g.width.Reset()
}

// Reset zeroes both counters and forces the output level.
func (g *PulseGen) Reset(out bool) {
	g.wait.Reset()
	g.width.Reset()
	g.out = out
}

func (g *PulseGen) Out() bool { return g.out }

func (g *PulseGen) Counts() (wait, width uint32) {
	return g.wait.Elapsed(), g.width.Elapsed()
}
