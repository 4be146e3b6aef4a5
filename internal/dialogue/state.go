package dialogue

import "sync"

// State is the dialogue-turn-sequencing state for one requester.
type State string

const (
	StateIdle                     State = "idle"
	StateAwaitingEmail            State = "awaiting_email"
	StateAwaitingChatConfirmation State = "awaiting_chat_confirmation"
)

// Session holds the transient conversation state for one requester. It lives
// only for the process lifetime and is never persisted.
type Session struct {
	State State
	// Email captured while walking the match-setup prompt sequence.
	Email string
	// CategoryID of the per-user match category created for the captured email.
	CategoryID string
	// MatchUserID pending confirmation.
	MatchUserID string
}

// Sessions is a per-requester keyed state store, safe for concurrent access.
// It replaces the process-wide mutable globals of earlier iterations of the
// assistant: one requester's prompt sequence can no longer leak into
// another's. Returned sessions are copies; mutations take effect via Save.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[string]Session)}
}

// Get returns the requester's session, creating an idle one implicitly on
// first contact.
func (s *Sessions) Get(requesterID string) Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if session, ok := s.sessions[requesterID]; ok {
		return session
	}
	return Session{State: StateIdle}
}

// Save stores the session snapshot for the requester.
func (s *Sessions) Save(requesterID string, session Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[requesterID] = session
}

// Reset returns the requester to an idle session with no captured fields. Used
// when a prompt sequence resolves or errors out.
func (s *Sessions) Reset(requesterID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[requesterID] = Session{State: StateIdle}
}
