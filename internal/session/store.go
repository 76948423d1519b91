package session

import (
	"errors"
	"sync"
)

// ErrNotFound is returned when a session id is unknown to the store.
var ErrNotFound = errors.New("session: not found")

// ErrExists is returned when bootstrapping an id that is already live.
var ErrExists = errors.New("session: already exists")

// Store is the process-wide session map. It is an explicit service object so
// tests get clean per-test isolation instead of ambient global state.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Put registers a session under its id.
func (st *Store) Put(s *Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[s.ID]; ok {
		return ErrExists
	}
	st.sessions[s.ID] = s
	return nil
}

// Get looks up a live session.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Remove drops a session from the store. Removing an unknown id is a no-op.
func (st *Store) Remove(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

// Len reports the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
