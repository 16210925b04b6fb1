package engine

import (
	"sync"
)

// Turn is one customer/agent exchange.
type Turn struct {
	Customer string `json:"customer"`
	Agent    string `json:"agent"`
}

// Session is the accumulated state of one conversation.
type Session struct {
	Context          Context
	Quotes           []string
	History          []Turn
	PrincipleHistory []string
	ResistanceCount  int
}

func newSession() *Session {
	return &Session{
		Context: make(Context),
	}
}

// SessionView is a read-only copy of a session for the HTTP API.
type SessionView struct {
	CapturedContext  map[string]string `json:"captured_context"`
	CapturedQuotes   []string          `json:"captured_quotes"`
	History          []Turn            `json:"conversation_history"`
	PrincipleHistory []string          `json:"principle_history"`
	ResistanceCount  int               `json:"resistance_count"`
	TurnCount        int               `json:"turn_count"`
}

type sessionEntry struct {
	mu      sync.Mutex
	session *Session
}

// SessionStore holds in-memory sessions. Turns within one session are
// serialized through a per-session mutex, distinct sessions proceed
// concurrently.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*sessionEntry),
	}
}

// Acquire returns the session for id, creating it on first use, with its
// turn lock held. The caller must invoke release when done mutating.
func (s *SessionStore) Acquire(id string) (session *Session, release func()) {
	s.mu.Lock()
	entry, ok := s.sessions[id]
	if !ok {
		entry = &sessionEntry{session: newSession()}
		s.sessions[id] = entry
	}
	s.mu.Unlock()

	entry.mu.Lock()
	return entry.session, entry.mu.Unlock
}

// View returns a deep copy of the session state, or false if absent.
func (s *SessionStore) View(id string) (SessionView, bool) {
	s.mu.Lock()
	entry, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return SessionView{}, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	sess := entry.session
	view := SessionView{
		CapturedContext:  sess.Context.Strings(),
		CapturedQuotes:   append([]string(nil), sess.Quotes...),
		History:          append([]Turn(nil), sess.History...),
		PrincipleHistory: append([]string(nil), sess.PrincipleHistory...),
		ResistanceCount:  sess.ResistanceCount,
		TurnCount:        len(sess.History),
	}
	return view, true
}

// Delete removes a session. Deleting an unknown id is a no-op.
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
