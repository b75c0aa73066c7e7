package messaging

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/logging"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/state"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/tsd"
)

// NodeBroker publishes controller state over MQTT and feeds incoming node
// commands into a subscriber. State publishes are deduplicated against the
// last sent state; an optional heartbeat republishes unchanged state so
// late joiners and watchdogs still see the node.
type NodeBroker interface {
	Broker
	tsd.NodePublisher
	StartNodeSubscriber(ctx context.Context, node string, subscriber tsd.NodeSubscriber) error
}

type nodeBroker struct {
	Broker
	subscriber        tsd.NodeSubscriber
	nodeState         state.NodeStateStore
	heartbeatInterval time.Duration
}

func NewNodeBroker(cfg BrokerConfig, catalog OnConnectPublisher, heartbeatInterval time.Duration) NodeBroker {
	broker := NewMsgBroker(cfg)
	broker.AddOnConnectPublisher("catalog", catalog)

	return &nodeBroker{
		Broker:            broker,
		nodeState:         state.NewNodeStateStore(),
		heartbeatInterval: heartbeatInterval,
	}
}

func (b *nodeBroker) StartNodeSubscriber(ctx context.Context, node string, subscriber tsd.NodeSubscriber) error {
	b.subscriber = subscriber
	_, err := b.Subscribe(ctx, b.Topic(node, "cmd"), AtLeastOnce, b.onCommand)
	return err
}

func (b *nodeBroker) PublishNodeState(ctx context.Context, nodeState tsd.NodeState) error {

	isChanged := b.nodeState.HasChanged(nodeState.Node, nodeState)
	needsHeartbeat := false
	if !isChanged {
		_, lastSent, hasPrev := b.nodeState.GetLast(nodeState.Node)

		if b.heartbeatInterval > 0 {
			needsHeartbeat = !hasPrev || time.Since(lastSent) > b.heartbeatInterval
		}
	}
	if isChanged || needsHeartbeat {
		logging.Debug("Publishing node state", "nodeState", nodeState)
		topic := b.Topic(nodeState.Node, "state")

		err := b.PublishJSON(ctx, topic, FireAndForget, true, nodeState)
		if err == nil {
			b.nodeState.Update(nodeState.Node, nodeState)
		}
		return err
	}
	return nil

}

func (b *nodeBroker) onCommand(ctx context.Context, topic string, payload []byte) {
	logging.Debug("Received cmd message", "topic", topic)
	// Parse node name from topic
	parts := strings.Split(topic, "/")
	// <prefix>/<node>/cmd
	if len(parts) < 3 {
		logging.Warn("cmd topic malformed", "topic", topic)
		return
	}
	node := parts[len(parts)-2]

	var inCommand tsd.IncomingNodeCommand
	if err := json.Unmarshal(payload, &inCommand); err != nil {
		logging.Warn("cmd json", "error", err)
		return
	}
	inCommand.Node = node
	err := b.subscriber.OnNodeCommand(ctx, inCommand)
	if err != nil {
		logging.Warn("cmd handling", "error", err)
	}

}
