// Package engine drives the core in real time: it owns the tick
// source, wires the conversion unit to the controller, carries host
// bus transactions into the tick domain and reports node state.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/adc"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/logging"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/tsd"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/tsense"
)

var ErrEngineStopped = errors.New("engine stopped")

type Config struct {
	Node        string
	TickPeriod  time.Duration
	ReportTicks uint32 // publish node state every N ticks; 0 disables
	Params      tsense.Params
}

type readReq struct {
	resp chan uint32
}
type writeReq struct {
	word uint32
	resp chan tsd.ZeroSignal
}
type resetReq struct {
	resp chan tsd.ZeroSignal
}

type Engine struct {
	cfg  Config
	ctrl *tsense.Controller
	unit adc.Unit
	pub  tsd.NodePublisher // may be nil

	tickCh  chan tsd.ZeroSignal
	readCh  chan *readReq
	writeCh chan *writeReq
	resetCh chan *resetReq
	done    chan tsd.ZeroSignal

	// Held request lines; a request stays asserted until a tick acks it.
	pendingRead  *readReq
	pendingWrite *writeReq
	pendingReset *resetReq

	lastOut  tsense.Output
	lastDone bool
	ticks    uint64

	mu   sync.RWMutex
	snap tsd.Snapshot
}

func New(cfg Config, unit adc.Unit, pub tsd.NodePublisher) *Engine {
	e := &Engine{
		cfg:     cfg,
		ctrl:    tsense.New(cfg.Params),
		unit:    unit,
		pub:     pub,
		tickCh:  make(chan tsd.ZeroSignal, 1),
		readCh:  make(chan *readReq),
		writeCh: make(chan *writeReq),
		resetCh: make(chan *resetReq),
		done:    make(chan tsd.ZeroSignal),
	}
	// Out of reset the clear line is asserted and sampling enabled.
	e.lastOut = tsense.Output{Wait: true, Clear: true, Enable: true}
	e.updateSnapshot()
	return e
}

// Run ticks the core until ctx is cancelled. Blocking bus calls are
// released with ErrEngineStopped on shutdown.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.done)

	go func() {
		t := time.NewTicker(e.cfg.TickPeriod)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				select {
				case e.tickCh <- tsd.Zero: // send a signal; drop if one is queued
				default:
				}
			}
		}
	}()

	logging.Info("engine running", "node", e.cfg.Node, "tick", e.cfg.TickPeriod.String(),
		"intervalTicks", e.cfg.Params.IntervalTicks, "clearTicks", e.cfg.Params.ClearTicks)

	for {
		select {
		case <-ctx.Done():
			logging.Info("engine stopped", "node", e.cfg.Node, "ticks", e.ticks)
			return
		case <-e.tickCh:
			e.tickOnce(ctx)
		}
	}
}

func (e *Engine) tickOnce(ctx context.Context) {
	// Latch freshly asserted request lines.
	if e.pendingReset == nil {
		select {
		case r := <-e.resetCh:
			e.pendingReset = r
		default:
		}
	}
	if e.pendingRead == nil {
		select {
		case r := <-e.readCh:
			e.pendingRead = r
		default:
		}
	}
	if e.pendingWrite == nil {
		select {
		case w := <-e.writeCh:
			e.pendingWrite = w
		default:
		}
	}

	// The conversion unit sees the lines as driven on the previous tick.
	convDone, convRaw := e.unit.Tick(e.lastOut.Enable, e.lastOut.Clear)
	captured := convDone && !e.lastDone
	e.lastDone = convDone

	in := tsense.Input{
		Reset:    e.pendingReset != nil,
		Read:     e.pendingRead != nil,
		Write:    e.pendingWrite != nil,
		ConvDone: convDone,
		ConvRaw:  convRaw,
	}
	if e.pendingWrite != nil {
		in.WriteData = e.pendingWrite.word
	}

	out := e.ctrl.Tick(in)
	e.lastOut = out
	e.ticks++

	// Ack at most one requester; reads win, a held write waits for the
	// next read-free tick.
	switch {
	case e.pendingReset != nil:
		e.pendingReset.resp <- tsd.Zero
		e.pendingReset = nil
		logging.Info("controller reset", "node", e.cfg.Node, "ticks", e.ticks)
	case !out.Wait && e.pendingRead != nil:
		e.pendingRead.resp <- out.ReadData
		e.pendingRead = nil
	case !out.Wait && e.pendingWrite != nil:
		e.pendingWrite.resp <- tsd.Zero
		e.pendingWrite = nil
	}

	e.updateSnapshot()

	if e.cfg.Params.Debug && captured {
		logging.Debug("conversion captured", "node", e.cfg.Node, "raw", convRaw, "reading", e.ctrl.Reading())
	}

	if e.pub != nil && e.cfg.ReportTicks > 0 && e.ticks%uint64(e.cfg.ReportTicks) == 0 {
		e.report(ctx)
	}
}

func (e *Engine) updateSnapshot() {
	e.mu.Lock()
	e.snap = tsd.Snapshot{
		Temperature: e.ctrl.Reading(),
		Word:        tsense.SignExtend(e.ctrl.Reading()),
		Enabled:     e.ctrl.Enabled(),
		Clear:       e.ctrl.ClearOut(),
		Ticks:       e.ticks,
	}
	e.mu.Unlock()
}

// Snapshot returns the registers as of the last tick without touching
// the bus.
func (e *Engine) Snapshot() tsd.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap
}

func (e *Engine) report(ctx context.Context) {
	snap := e.Snapshot()
	state := tsd.NodeState{
		Timestamp:   time.Now(),
		Node:        e.cfg.Node,
		Temperature: snap.Temperature,
		Word:        snap.Word,
		Enabled:     snap.Enabled,
		Status:      "sampling",
		Ticks:       snap.Ticks,
	}
	if !snap.Enabled {
		state.Status = "disabled"
	}
	if err := e.pub.PublishNodeState(ctx, state); err != nil {
		logging.Warn("publish node state failed", "node", e.cfg.Node, "error", err)
	}
}

/* ========
   Host bus
   ======== */

// ReadWord performs one read transaction: the request line stays
// asserted until a tick services it, then the response word sampled
// on that tick is returned.
func (e *Engine) ReadWord(ctx context.Context) (uint32, error) {
	req := &readReq{resp: make(chan uint32, 1)}
	select {
	case e.readCh <- req:
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-e.done:
		return 0, ErrEngineStopped
	}
	select {
	case w := <-req.resp:
		return w, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-e.done:
		return 0, ErrEngineStopped
	}
}

// WriteWord performs one write transaction; bit 0 of the word is the
// sampling enable.
func (e *Engine) WriteWord(ctx context.Context, word uint32) error {
	req := &writeReq{word: word, resp: make(chan tsd.ZeroSignal, 1)}
	select {
	case e.writeCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrEngineStopped
	}
	select {
	case <-req.resp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrEngineStopped
	}
}

// SetSampling writes the enable bit.
func (e *Engine) SetSampling(ctx context.Context, on bool) error {
	var word uint32
	if on {
		word = tsense.EnableBit
	}
	return e.WriteWord(ctx, word)
}

// Reset holds the reset line for one tick.
func (e *Engine) Reset(ctx context.Context) error {
	req := &resetReq{resp: make(chan tsd.ZeroSignal, 1)}
	select {
	case e.resetCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrEngineStopped
	}
	select {
	case <-req.resp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrEngineStopped
	}
}
