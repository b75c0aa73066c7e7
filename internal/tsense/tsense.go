// Package tsense implements the register-mapped temperature sense
// controller: a tick-synchronous core that paces an on-die
// temperature-to-digital conversion unit and exposes the latest
// reading plus an enable switch over a wait-acknowledged register bus.
//
// The core is pure: it performs no I/O and knows nothing about time.
// Each call to Tick advances the machine by exactly one tick, taking
// the sampled input lines and returning the output lines for that
// tick. The engine package owns the tick source and the wiring to the
// conversion unit.
package tsense

// Params fix the sampling cadence at construction time.
type Params struct {
	IntervalTicks uint32 // ticks of waiting between conversion windows
	ClearTicks    uint32 // minimum width of the clear pulse, >= 1
	Debug         bool   // verbose tick logging in the engine; the core ignores it
}

// Input carries the line levels sampled at the start of a tick.
type Input struct {
	Reset     bool
	Read      bool
	Write     bool
	WriteData uint32
	ConvDone  bool  // conversion unit reports a finished conversion
	ConvRaw   uint8 // offset-encoded value, valid while ConvDone is set
}

// Output carries the line levels driven for the tick just executed.
type Output struct {
	ReadData uint32
	Wait     bool
	Clear    bool
	Enable   bool
}

// Controller composes the register file and the sampler into the
// complete core. One Tick call per tick; no internal goroutines.
type Controller struct {
	params Params
	reg    regFile
	smp    sampler
}

func New(params Params) *Controller {
	c := &Controller{params: params}
	c.reg.reset()
	c.smp = newSampler(params)
	return c
}

// Tick advances the core by one tick. Evaluation order: reset first,
// then the register file services at most one request, then the
// sampler advances its cadence and captures a finished conversion.
// The sampler observes the enable flag as it was at the start of the
// tick, so a write flipping it is seen from the next tick onward.
func (c *Controller) Tick(in Input) Output {
	if in.Reset {
		c.reg.reset()
		c.smp.reset()
		return Output{Wait: true, Clear: true, Enable: c.reg.enable}
	}

	enabled := c.reg.enable

	readData, wait := c.reg.service(in.Read, in.Write, in.WriteData, c.smp.reading)
	c.smp.tick(enabled, in.ConvDone, in.ConvRaw)

	return Output{
		ReadData: readData,
		Wait:     wait,
		Clear:    c.smp.clear(),
		Enable:   c.reg.enable,
	}
}

// Observer taps. The core has a single tick-domain writer; callers on
// other goroutines go through the engine's snapshot instead.

func (c *Controller) Reading() int8 { return c.smp.reading }

func (c *Controller) Enabled() bool { return c.reg.enable }

func (c *Controller) ClearOut() bool { return c.smp.clear() }

// Counts reports the cadence counters, mainly for diagnostics.
func (c *Controller) Counts() (elapsed, clearElapsed uint32) {
	return c.smp.gen.Counts()
}

func (c *Controller) Params() Params { return c.params }
