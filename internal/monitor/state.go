package monitor

import (
	"sync"
	"time"
)

type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseProbing Phase = "probing"
	PhaseSuccess Phase = "success"
	PhaseFailure Phase = "failure"
)

// MonitorState is the memory of a single target's poll loop.
type MonitorState struct {
	TargetID string
	Phase    Phase

	// LastAvailable is the edge detection memory, only a successful probe changes it.
	LastAvailable     bool
	ConsecutiveErrors int
	LastSuccess       time.Time
	LastError         string
	LastLabels        []string

	StartedAt time.Time
	Probes    int64
}

// Stale reports whether the loop has gone longer than after without a successful probe.
func (s MonitorState) Stale(now time.Time, after time.Duration) bool {
	since := s.LastSuccess
	if since.IsZero() {
		since = s.StartedAt
	}
	if since.IsZero() {
		return false
	}
	return now.Sub(since) > after
}

func (s MonitorState) clone() MonitorState {
	s.LastLabels = append([]string(nil), s.LastLabels...)
	return s
}

// stateHolder publishes copies of a loop's state to readers on other goroutines.
type stateHolder struct {
	mutex sync.Mutex
	state MonitorState
}

func (h *stateHolder) publish(state MonitorState) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.state = state.clone()
}

func (h *stateHolder) get() MonitorState {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.state.clone()
}
