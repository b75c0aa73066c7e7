package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/adc"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/tsd"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/tsense"
)

type capturePublisher struct {
	mu     sync.Mutex
	states []tsd.NodeState
}

func (p *capturePublisher) PublishNodeState(_ context.Context, s tsd.NodeState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states, s)
	return nil
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.states)
}

func (p *capturePublisher) last() tsd.NodeState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.states[len(p.states)-1]
}

func startTestEngine(t *testing.T, cfg Config, pub tsd.NodePublisher) (*Engine, *adc.Mock) {
	t.Helper()
	mock := &adc.Mock{}
	e := New(cfg, mock, pub)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go e.Run(ctx)
	return e, mock
}

func testConfig() Config {
	return Config{
		Node:       "test",
		TickPeriod: time.Millisecond,
		Params:     tsense.Params{IntervalTicks: 4, ClearTicks: 2},
	}
}

func TestReadWordReturnsCapturedReading(t *testing.T) {
	e, mock := startTestEngine(t, testConfig(), nil)

	mock.Set(tsense.EncodeOffset(21))
	require.Eventually(t, func() bool {
		return e.Snapshot().Temperature == 21
	}, time.Second, time.Millisecond)

	w, err := e.ReadWord(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(21), w)
}

func TestReadWordSignExtendsNegative(t *testing.T) {
	e, mock := startTestEngine(t, testConfig(), nil)

	mock.Set(tsense.EncodeOffset(-2))
	require.Eventually(t, func() bool {
		return e.Snapshot().Temperature == -2
	}, time.Second, time.Millisecond)

	w, err := e.ReadWord(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(0xFFFFFFFE), w)
}

func TestWriteWordTogglesSampling(t *testing.T) {
	e, _ := startTestEngine(t, testConfig(), nil)

	require.NoError(t, e.WriteWord(context.Background(), 0))
	require.Eventually(t, func() bool {
		return !e.Snapshot().Enabled
	}, time.Second, time.Millisecond)

	require.NoError(t, e.SetSampling(context.Background(), true))
	require.Eventually(t, func() bool {
		return e.Snapshot().Enabled
	}, time.Second, time.Millisecond)
}

func TestClearPulseReachesUnit(t *testing.T) {
	e, mock := startTestEngine(t, testConfig(), nil)

	mock.Set(tsense.EncodeOffset(5))
	require.Eventually(t, func() bool {
		return e.Snapshot().Temperature == 5
	}, time.Second, time.Millisecond)

	// The cadence must wipe the unit's done latch with a clear pulse.
	require.Eventually(t, func() bool {
		return mock.Cleared()
	}, time.Second, time.Millisecond)
}

func TestResetRestoresDefaults(t *testing.T) {
	e, mock := startTestEngine(t, testConfig(), nil)

	mock.Set(tsense.EncodeOffset(33))
	require.Eventually(t, func() bool {
		return e.Snapshot().Temperature == 33
	}, time.Second, time.Millisecond)
	require.NoError(t, e.WriteWord(context.Background(), 0))

	require.NoError(t, e.Reset(context.Background()))

	snap := e.Snapshot()
	assert.Zero(t, snap.Temperature)
	assert.True(t, snap.Enabled, "reset restores the enable default")
}

func TestReportCadence(t *testing.T) {
	pub := &capturePublisher{}
	cfg := testConfig()
	cfg.ReportTicks = 5
	e, mock := startTestEngine(t, cfg, pub)

	mock.Set(tsense.EncodeOffset(18))
	require.Eventually(t, func() bool {
		return pub.count() >= 3
	}, 2*time.Second, time.Millisecond)

	require.Eventually(t, func() bool {
		return pub.last().Temperature == 18
	}, time.Second, time.Millisecond)
	last := pub.last()
	assert.Equal(t, "test", last.Node)
	assert.Equal(t, "sampling", last.Status)
	assert.True(t, last.Enabled)
	assert.NotZero(t, last.Ticks)

	require.NoError(t, e.SetSampling(context.Background(), false))
	require.Eventually(t, func() bool {
		return pub.last().Status == "disabled"
	}, time.Second, time.Millisecond)
}

func TestOnNodeCommand(t *testing.T) {
	e, _ := startTestEngine(t, testConfig(), nil)

	require.NoError(t, e.OnNodeCommand(context.Background(), tsd.IncomingNodeCommand{Action: "disable"}))
	require.Eventually(t, func() bool {
		return !e.Snapshot().Enabled
	}, time.Second, time.Millisecond)

	require.NoError(t, e.OnNodeCommand(context.Background(), tsd.IncomingNodeCommand{Action: "set", Value: float64(1)}))
	require.Eventually(t, func() bool {
		return e.Snapshot().Enabled
	}, time.Second, time.Millisecond)

	assert.Error(t, e.OnNodeCommand(context.Background(), tsd.IncomingNodeCommand{Action: "blink"}))
}

func TestStopUnblocksBusCalls(t *testing.T) {
	mock := &adc.Mock{}
	cfg := testConfig()
	cfg.TickPeriod = time.Hour // no ticks: requests can never be acked
	e := New(cfg, mock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan struct{})
	go func() {
		defer close(ran)
		e.Run(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		_, err := e.ReadWord(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrEngineStopped)
	case <-time.After(2 * time.Second):
		t.Fatal("ReadWord did not unblock on shutdown")
	}
	<-ran
}
