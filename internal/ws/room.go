package ws

import (
	"sync"
)

// RoomState caches the last code update broadcast in a room, so a
// participant attaching mid-session is caught up immediately instead
// of waiting for the next keystroke.
type RoomState struct {
	mu     sync.RWMutex
	latest []byte
}

func NewRoomState() *RoomState {
	return &RoomState{}
}

func (r *RoomState) SetLatest(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest = data
}

// Latest returns the most recent code update, or nil if none was
// broadcast yet.
func (r *RoomState) Latest() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.latest == nil {
		return nil
	}
	out := make([]byte, len(r.latest))
	copy(out, r.latest)
	return out
}
