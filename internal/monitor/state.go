package monitor

import (
	"sync"
	"time"

	"cloudtune-ops/internal/models"
)

// BackendState is the watchdog's view of backend availability.
type BackendState int

const (
	StateUnknown BackendState = iota
	StateUp
	StateDown
)

func (s BackendState) String() string {
	switch s {
	case StateUp:
		return "up"
	case StateDown:
		return "down"
	default:
		return "unknown"
	}
}

// Gauge maps the state onto the backend.up metric values.
func (s BackendState) Gauge() int64 {
	switch s {
	case StateUp:
		return 1
	case StateDown:
		return 0
	default:
		return -1
	}
}

func stateOf(up bool) BackendState {
	if up {
		return StateUp
	}
	return StateDown
}

// Observation is the latest result published by the watchdog.
type Observation struct {
	Backend   BackendState
	Detail    string
	CheckedAt time.Time
	Issues    models.IssueSet
	LastError string
	Cycles    uint64
}

// State holds the latest observation for readers outside the watchdog
// goroutine: bot handlers and the ops HTTP server.
type State struct {
	mu  sync.RWMutex
	obs Observation
}

func NewState() *State {
	return &State{obs: Observation{Issues: models.IssueSet{}}}
}

// Current returns a copy of the latest observation.
func (s *State) Current() Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obs := s.obs
	obs.Issues = s.obs.Issues.Clone()
	return obs
}

// Backend returns only the availability part of the observation.
func (s *State) Backend() BackendState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.obs.Backend
}

func (s *State) publish(obs Observation) {
	obs.Issues = obs.Issues.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	obs.Cycles = s.obs.Cycles + 1
	s.obs = obs
}
