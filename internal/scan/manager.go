package scan

import (
	"errors"
	"sync"

	"github.com/banshee-data/ergoscan/internal/measure"
	"github.com/banshee-data/ergoscan/internal/timeutil"
)

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = errors.New("scan session not found")

// Manager tracks the open sessions of one process.
type Manager struct {
	pipeline *measure.Pipeline
	opts     Options
	clock    timeutil.Clock

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager whose sessions share pipeline and opts.
func NewManager(pipeline *measure.Pipeline, opts Options, clock timeutil.Clock) *Manager {
	return &Manager{
		pipeline: pipeline,
		opts:     opts,
		clock:    clock,
		sessions: make(map[string]*Session),
	}
}

// Start opens a new session for userID.
func (m *Manager) Start(userID string) *Session {
	s := NewSession(userID, m.pipeline, m.opts, m.clock)
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	return s
}

// Get returns an open session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// End ends a session and forgets it.
func (m *Manager) End(id string) (Result, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return Result{}, ErrSessionNotFound
	}
	return s.End()
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
