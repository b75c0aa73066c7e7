package tsd

import (
	"context"
	"time"
)

// ZeroSignal is a zero-size "just-a-signal" type.
type ZeroSignal struct{}

// Zero is the canonical value to send on signal channels.
var Zero ZeroSignal

// NodeState is the published view of one controller node.
type NodeState struct {
	Timestamp   time.Time `json:"timestamp"`
	Node        string    `json:"node"`
	Temperature int8      `json:"temperature"` // degrees C, offset decoded
	Word        uint32    `json:"word"`        // sign-extended response word
	Enabled     bool      `json:"enabled"`
	Status      string    `json:"status"` // "sampling", "disabled"
	Ticks       uint64    `json:"ticks"`
}

// Snapshot is the engine's non-blocking view of the core registers.
type Snapshot struct {
	Temperature int8
	Word        uint32
	Enabled     bool
	Clear       bool
	Ticks       uint64
}

type IncomingNodeCommand struct {
	ID     string `json:"id,omitempty"`
	Node   string `json:"node,omitempty"` // overridden by topic
	Action string `json:"action"`         // "enable", "disable", "set", "reset"
	Value  any    `json:"value,omitempty"`
}

type NodePublisher interface {
	PublishNodeState(ctx context.Context, state NodeState) error
}
type NodeSubscriber interface {
	OnNodeCommand(ctx context.Context, command IncomingNodeCommand) error
}
