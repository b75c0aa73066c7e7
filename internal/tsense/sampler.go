package tsense

// sampler owns the conversion cadence and the captured reading. The
// cadence is a periodic pulse: IntervalTicks of waiting, then a clear
// pulse of ClearTicks driven to the conversion unit to wipe its
// output latches before the next conversion.
type sampler struct {
	gen     PulseGen
	reading int8
}

func newSampler(p Params) sampler {
	s := sampler{gen: NewPulseGen(p.IntervalTicks, p.ClearTicks)}
	s.reset()
	return s
}

func (s *sampler) reset() {
	s.reading = 0
	s.gen.Reset(true) // clear is held asserted out of reset
}

// tick advances the cadence by one tick and captures a finished
// conversion. While disabled the counters are pinned to zero and the
// clear line keeps whatever value it last had: disabling mid-pulse
// leaves clear asserted until the first enabled tick, so downstream
// units must tolerate an overlong pulse.
func (s *sampler) tick(enabled, done bool, raw uint8) {
	if !enabled {
		s.gen.Idle()
		return
	}
	s.gen.Step()
	if done {
		s.reading = DecodeOffset(raw)
	}
}

func (s *sampler) clear() bool { return s.gen.Out() }
