package state

import (
	"sync"
	"time"

	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/tsd"
)

type NodeStateStore interface {
	GetLast(node string) (tsd.NodeState, time.Time, bool)
	Update(node string, state tsd.NodeState)
	HasChanged(node string, state tsd.NodeState) bool
	Clear()
}

type nodeStateStore struct {
	store     map[string]tsd.NodeState
	heartbeat map[string]time.Time
	mu        sync.RWMutex
}

func NewNodeStateStore() NodeStateStore {
	return &nodeStateStore{
		store:     make(map[string]tsd.NodeState),
		heartbeat: make(map[string]time.Time),
	}
}

func (s *nodeStateStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = make(map[string]tsd.NodeState)
	s.heartbeat = make(map[string]time.Time)
}

func (s *nodeStateStore) GetLast(node string) (tsd.NodeState, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.store[node]
	heartbeat, ok2 := s.heartbeat[node]
	return state, heartbeat, ok && ok2
}

func (s *nodeStateStore) Update(node string, state tsd.NodeState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[node] = state
	s.heartbeat[node] = time.Now()
}

func (s *nodeStateStore) HasChanged(node string, state tsd.NodeState) bool {
	lastState, _, ok := s.GetLast(node)
	if !ok {
		return true
	}
	return !nodeStateEqual(lastState, state)
}

// nodeStateEqual ignores the timestamp and the tick counter so that
// a steady controller does not look like fresh news every report.
func nodeStateEqual(a, b tsd.NodeState) bool {
	return a.Temperature == b.Temperature &&
		a.Word == b.Word &&
		a.Enabled == b.Enabled &&
		a.Status == b.Status
}
