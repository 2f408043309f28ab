package protocol

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates the sync messages exchanged through a room's
// realtime channel.
type Kind string

const (
	// Full document text after a local edit (not a diff)
	KindCodeUpdate Kind = "code_update"

	// Another participant attached to the room
	KindUserJoined Kind = "user_joined"

	// A participant detached from the room
	KindUserLeft Kind = "user_left"
)

// The wire shape of every sync message. Content and CursorPosition are
// only meaningful for code updates; join/leave carry the type alone.
type Message struct {
	Type           Kind   `json:"type"`
	Content        string `json:"content,omitempty"`
	CursorPosition int    `json:"cursor_position,omitempty"`
}

// Marshal encodes a message for the wire.
func Marshal(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Unmarshal decodes and validates an inbound payload. Callers drop the
// message on error; a bad frame must never take the connection down.
func Unmarshal(data []byte) (Message, error) {
	if len(data) == 0 {
		return Message{}, fmt.Errorf("empty message")
	}

	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("malformed message: %w", err)
	}

	switch m.Type {
	case KindCodeUpdate, KindUserJoined, KindUserLeft:
		return m, nil
	default:
		return Message{}, fmt.Errorf("unknown message type: %q", m.Type)
	}
}
