package protocol

import (
	"strings"
	"testing"
)

func TestMarshalUnmarshal(t *testing.T) {
	data, err := Marshal(Message{Type: KindCodeUpdate, Content: "x = 1\n", CursorPosition: 6})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	m, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if m.Type != KindCodeUpdate {
		t.Errorf("Expected code_update, got %q", m.Type)
	}
	if m.Content != "x = 1\n" {
		t.Errorf("Content mismatch: %q", m.Content)
	}
	if m.CursorPosition != 6 {
		t.Errorf("Expected cursor 6, got %d", m.CursorPosition)
	}
}

func TestJoinLeaveOmitContent(t *testing.T) {
	data, err := Marshal(Message{Type: KindUserJoined})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if strings.Contains(string(data), "content") {
		t.Errorf("Join message should not carry a content field: %s", data)
	}
}

func TestUnmarshalRejectsBadPayloads(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"not json", "not json at all"},
		{"unknown type", `{"type":"cursor_moved"}`},
		{"missing type", `{"content":"hi"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Unmarshal([]byte(tt.data)); err == nil {
				t.Errorf("Expected error for %q", tt.data)
			}
		})
	}
}
