package sprint

import (
	"sync"

	"github.com/quickpen-app/quickpen/internal/events"
)

// Manager owns at most one session per user. Sessions are created lazily
// and discarded on shutdown so no tick loop outlives the service.
type Manager struct {
	mu       sync.Mutex
	recorder Recorder
	bus      *events.Bus
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(recorder Recorder, bus *events.Bus) *Manager {
	return &Manager{
		recorder: recorder,
		bus:      bus,
		sessions: make(map[string]*Session),
	}
}

// Session returns the user's session, creating an idle one if needed.
func (m *Manager) Session(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		return s
	}
	s := NewSession(userID, m.recorder, m.bus)
	m.sessions[userID] = s
	return s
}

// ActiveCount returns the number of sessions currently in the Active phase.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, s := range m.sessions {
		if s.Snapshot().Phase == PhaseActive {
			n++
		}
	}
	return n
}

// Shutdown discards every active session, cancelling their tick loops.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sessions {
		_ = s.Discard()
	}
}
