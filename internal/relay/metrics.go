package relay

import (
	"sync"
	"time"
)

// Metrics counts relay outcomes. Exposed on /status.
type Metrics struct {
	mu sync.RWMutex
	s  MetricsSnapshot
}

// MetricsSnapshot is the JSON shape served by /status.
type MetricsSnapshot struct {
	StartedAt time.Time `json:"started_at"`

	SocialInbound    int `json:"social_inbound"`
	WorkspaceInbound int `json:"workspace_inbound"`

	RelayedToWorkspace int `json:"relayed_to_workspace"`
	RelayedToSocial    int `json:"relayed_to_social"`

	SelfLoopDiscarded int `json:"self_loop_discarded"`
	OriginDiscarded   int `json:"origin_discarded"`
	Deduped           int `json:"deduped"`
	Malformed         int `json:"malformed"`
	Dropped           int `json:"dropped"`

	LastError   string `json:"last_error,omitempty"`
	LastErrorAt string `json:"last_error_at,omitempty"`
}

// NewMetrics returns metrics stamped with the process start time.
func NewMetrics() *Metrics {
	return &Metrics{s: MetricsSnapshot{StartedAt: time.Now().UTC()}}
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s
}

func (m *Metrics) add(f func(*MetricsSnapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f(&m.s)
}

func (m *Metrics) noteDropped(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.Dropped++
	if err != nil {
		m.s.LastError = err.Error()
		m.s.LastErrorAt = time.Now().UTC().Format(time.RFC3339)
	}
}
