package live

import (
	"sync"

	"github.com/sharad1666/Discoursify/pkg/model"
)

// Store is the client-side session cache: the single source of truth for
// session, participant, and waiting-list state on this client instance. It is
// mutated only by server responses and inbound topic updates, which replace
// the cached object verbatim, and by optimistic transcript appends.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
	current  string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*model.Session)}
}

// Replace installs the authoritative session object, fully replacing any
// cached state for that session id.
func (s *Store) Replace(sess *model.Session) {
	if sess == nil || sess.ID == "" {
		return
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
}

// Get returns the cached session, or nil. Callers must treat the result as
// read-only; all mutation goes through the store.
func (s *Store) Get(id string) *model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// AppendTranscript appends a line to the cached transcript. Used for the
// optimistic local echo and for fragments received from other participants.
func (s *Store) AppendTranscript(id, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	sess.Transcript = append(sess.Transcript, line)
}

// Transcript returns a copy of the cached transcript.
func (s *Store) Transcript(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	out := make([]string, len(sess.Transcript))
	copy(out, sess.Transcript)
	return out
}

// SetCurrent marks the session this client is viewing.
func (s *Store) SetCurrent(id string) {
	s.mu.Lock()
	s.current = id
	s.mu.Unlock()
}

// Current returns the session this client is viewing, or nil.
func (s *Store) Current() *model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == "" {
		return nil
	}
	return s.sessions[s.current]
}
