package state

import "sync"

type memoryManager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewMemoryManager constructs an in-memory Manager implementation.
// Sessions do not survive process restarts.
func NewMemoryManager() Manager {
	return &memoryManager{
		sessions: make(map[int64]*Session),
	}
}

func (m *memoryManager) session(userID int64) *Session {
	sess, ok := m.sessions[userID]
	if !ok {
		sess = &Session{State: StateIdle, Fields: make(map[string]string)}
		m.sessions[userID] = sess
	}
	return sess
}

// GetState returns the current state of a user, or StateIdle if none exists.
func (m *memoryManager) GetState(userID int64) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sess, ok := m.sessions[userID]; ok {
		return sess.State
	}
	return StateIdle
}

// SetState sets the state for a user, creating a session if necessary.
func (m *memoryManager) SetState(userID int64, st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session(userID).State = st
}

// SetField stores a collected field for the given user session.
func (m *memoryManager) SetField(userID int64, key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session(userID).Fields[key] = value
}

// GetField retrieves a collected field by key for the given user session.
func (m *memoryManager) GetField(userID int64, key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[userID]
	if !ok {
		return "", false
	}
	val, ok := sess.Fields[key]
	return val, ok
}

// Fields returns a copy of all collected fields for the user.
func (m *memoryManager) Fields(userID int64) map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string)
	if sess, ok := m.sessions[userID]; ok {
		for k, v := range sess.Fields {
			out[k] = v
		}
	}
	return out
}

// Clear removes the entire session for a user.
func (m *memoryManager) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// InProgress reports whether the user currently has an active state.
func (m *memoryManager) InProgress(userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[userID]
	return ok && sess.State != StateIdle
}
