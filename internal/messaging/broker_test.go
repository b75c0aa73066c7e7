package messaging

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/state"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/tsd"
)

var _ NodeBroker = (*nodeBroker)(nil)

func TestTopicJoinsUnderPrefix(t *testing.T) {
	b := NewMsgBroker(BrokerConfig{ClientName: "lab-a"})
	assert.Equal(t, "tsd/lab-a/state", b.Topic("lab-a", "state"))

	b = NewMsgBroker(BrokerConfig{ClientName: "lab-a", TopicPrefix: "plant7"})
	assert.Equal(t, "plant7/lab-a/cmd", b.Topic("lab-a", "cmd"))
}

func TestQosToByte(t *testing.T) {
	for _, qos := range []QoS{AtMostOnce, AtLeastOnce, ExactlyOnce} {
		got, wait := qosToByte(qos)
		assert.Equal(t, byte(qos), got)
		assert.True(t, wait)
	}
	got, wait := qosToByte(AsyncNoWait)
	assert.Equal(t, byte(0), got)
	assert.False(t, wait)
}

func TestPublishWithoutConnectFails(t *testing.T) {
	b := NewMsgBroker(BrokerConfig{ClientName: "lab-a"})
	err := b.Publish(context.Background(), "tsd/lab-a/state", FireAndForget, false, []byte("{}"))
	assert.ErrorContains(t, err, "not initialized")
}

// fakeBroker records PublishJSON calls so the node broker gating can be
// tested without an MQTT connection.
type fakeBroker struct {
	Broker
	mu      sync.Mutex
	topics  []string
	pubErr  error
	payload interface{}
}

func (f *fakeBroker) PublishJSON(ctx context.Context, topic string, qos QoS, retain bool, v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pubErr != nil {
		return f.pubErr
	}
	f.topics = append(f.topics, topic)
	f.payload = v
	return nil
}

func (f *fakeBroker) Topic(parts ...string) string {
	return "tsd/" + parts[0] + "/" + parts[1]
}

func (f *fakeBroker) published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.topics...)
}

func newTestNodeBroker(fake *fakeBroker, heartbeat time.Duration) *nodeBroker {
	return &nodeBroker{
		Broker:            fake,
		nodeState:         state.NewNodeStateStore(),
		heartbeatInterval: heartbeat,
	}
}

func TestPublishNodeStateDeduplicates(t *testing.T) {
	fake := &fakeBroker{}
	b := newTestNodeBroker(fake, 0)
	ctx := context.Background()

	st := tsd.NodeState{Node: "lab-a", Temperature: 21, Word: 21, Enabled: true, Status: "sampling"}
	require.NoError(t, b.PublishNodeState(ctx, st))
	require.Len(t, fake.published(), 1)
	assert.Equal(t, "tsd/lab-a/state", fake.published()[0])

	// unchanged state, fresher timestamp: suppressed
	st.Timestamp = time.Now()
	st.Ticks = 5000
	require.NoError(t, b.PublishNodeState(ctx, st))
	assert.Len(t, fake.published(), 1)

	st.Temperature = 22
	st.Word = 22
	require.NoError(t, b.PublishNodeState(ctx, st))
	assert.Len(t, fake.published(), 2)
}

func TestPublishNodeStateHeartbeat(t *testing.T) {
	fake := &fakeBroker{}
	b := newTestNodeBroker(fake, 20*time.Millisecond)
	ctx := context.Background()

	st := tsd.NodeState{Node: "lab-a", Temperature: 21, Enabled: true}
	require.NoError(t, b.PublishNodeState(ctx, st))
	require.NoError(t, b.PublishNodeState(ctx, st))
	assert.Len(t, fake.published(), 1)

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, b.PublishNodeState(ctx, st))
	assert.Len(t, fake.published(), 2, "unchanged state republished after heartbeat interval")
}

func TestPublishNodeStateKeepsRetryOnError(t *testing.T) {
	fake := &fakeBroker{pubErr: assert.AnError}
	b := newTestNodeBroker(fake, 0)
	ctx := context.Background()

	st := tsd.NodeState{Node: "lab-a", Temperature: 21}
	require.Error(t, b.PublishNodeState(ctx, st))

	// failed publish is not recorded, so the same state is still news
	fake.mu.Lock()
	fake.pubErr = nil
	fake.mu.Unlock()
	require.NoError(t, b.PublishNodeState(ctx, st))
	assert.Len(t, fake.published(), 1)
}

type captureSubscriber struct {
	mu       sync.Mutex
	commands []tsd.IncomingNodeCommand
}

func (c *captureSubscriber) OnNodeCommand(_ context.Context, command tsd.IncomingNodeCommand) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = append(c.commands, command)
	return nil
}

func TestOnCommandParsesNodeFromTopic(t *testing.T) {
	sub := &captureSubscriber{}
	b := newTestNodeBroker(&fakeBroker{}, 0)
	b.subscriber = sub

	b.onCommand(context.Background(), "tsd/lab-a/cmd", []byte(`{"id":"c1","action":"disable"}`))

	sub.mu.Lock()
	defer sub.mu.Unlock()
	require.Len(t, sub.commands, 1)
	assert.Equal(t, "lab-a", sub.commands[0].Node)
	assert.Equal(t, "disable", sub.commands[0].Action)
	assert.Equal(t, "c1", sub.commands[0].ID)
}

func TestOnCommandRejectsMalformedInput(t *testing.T) {
	sub := &captureSubscriber{}
	b := newTestNodeBroker(&fakeBroker{}, 0)
	b.subscriber = sub

	b.onCommand(context.Background(), "cmd", []byte(`{}`))
	b.onCommand(context.Background(), "tsd/lab-a/cmd", []byte(`{broken`))

	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.Empty(t, sub.commands)
}
