package session

import (
	"sync"
)

// ConnectionState tracks the realtime channel lifecycle for a room.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Failed
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Store holds the client-visible state of one editing room: the shared
// buffer, presence count and any pending autocomplete suggestion. It is
// a pure container; it never touches the network. All I/O interleaving
// happens in the controller, which keeps ordering bugs in one place.
type Store struct {
	mu sync.Mutex

	roomID        string
	document      string
	presence      int
	suggestion    string
	hasSuggestion bool

	// Set just before a remote update is applied, consumed by the next
	// local-edit notification so the update is not re-broadcast.
	suppressEcho bool
}

// NewStore returns a store for a freshly entered room. Presence starts
// at 1: the local participant counts.
func NewStore() *Store {
	return &Store{presence: 1}
}

func (s *Store) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// SetRoomID records the room identifier once the directory lookup
// resolves. Immutable after the first non-empty assignment.
func (s *Store) SetRoomID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roomID == "" {
		s.roomID = id
	}
}

func (s *Store) Document() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.document
}

// SetDocument replaces the shared buffer. Newest write wins, local or
// remote; there is no merging.
func (s *Store) SetDocument(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.document = text
}

func (s *Store) Presence() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presence
}

func (s *Store) IncrementPresence() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presence++
}

// DecrementPresence floors at 1. The count is best effort; a lost leave
// notification must not make the local participant disappear.
func (s *Store) DecrementPresence() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.presence > 1 {
		s.presence--
	}
}

// Suggestion returns the pending autocomplete suggestion, if any.
func (s *Store) Suggestion() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suggestion, s.hasSuggestion
}

func (s *Store) SetSuggestion(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suggestion = text
	s.hasSuggestion = true
}

func (s *Store) ClearSuggestion() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suggestion = ""
	s.hasSuggestion = false
}

// MarkRemoteApply arms echo suppression. Called immediately before a
// remote code update is applied, so that the local-edit notification
// the text surface emits for the programmatic change is swallowed.
func (s *Store) MarkRemoteApply() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppressEcho = true
}

// ConsumeSuppression reports whether the current local-edit
// notification is the echo of a remote apply, clearing the flag either
// way. The flag is one-shot.
func (s *Store) ConsumeSuppression() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	suppressed := s.suppressEcho
	s.suppressEcho = false
	return suppressed
}
