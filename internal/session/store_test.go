package session

import (
	"sync"
	"testing"
)

func TestPresenceFloor(t *testing.T) {
	store := NewStore()

	if store.Presence() != 1 {
		t.Fatalf("Expected initial presence 1, got %d", store.Presence())
	}

	for i := 0; i < 5; i++ {
		store.DecrementPresence()
	}
	if store.Presence() != 1 {
		t.Errorf("Presence dropped below 1: %d", store.Presence())
	}

	store.IncrementPresence()
	store.IncrementPresence()
	if store.Presence() != 3 {
		t.Errorf("Expected presence 3, got %d", store.Presence())
	}

	store.DecrementPresence()
	if store.Presence() != 2 {
		t.Errorf("Expected presence 2, got %d", store.Presence())
	}
}

func TestSetDocumentIdempotent(t *testing.T) {
	store := NewStore()

	store.SetDocument("# start\nx=1")
	store.SetDocument("# start\nx=1")

	if store.Document() != "# start\nx=1" {
		t.Errorf("Document mismatch: %q", store.Document())
	}
}

func TestRoomIDImmutable(t *testing.T) {
	store := NewStore()

	store.SetRoomID("abc123")
	store.SetRoomID("other")

	if store.RoomID() != "abc123" {
		t.Errorf("Room ID should be immutable once set, got %q", store.RoomID())
	}
}

func TestSuggestionLifecycle(t *testing.T) {
	store := NewStore()

	if _, ok := store.Suggestion(); ok {
		t.Error("New store should have no suggestion")
	}

	store.SetSuggestion("print(x)")
	got, ok := store.Suggestion()
	if !ok || got != "print(x)" {
		t.Errorf("Expected suggestion 'print(x)', got %q (ok=%v)", got, ok)
	}

	store.ClearSuggestion()
	if _, ok := store.Suggestion(); ok {
		t.Error("Suggestion should be cleared")
	}
}

func TestSuppressionIsOneShot(t *testing.T) {
	store := NewStore()

	if store.ConsumeSuppression() {
		t.Error("Suppression should start unarmed")
	}

	store.MarkRemoteApply()
	if !store.ConsumeSuppression() {
		t.Error("First consume after marking should report suppression")
	}
	if store.ConsumeSuppression() {
		t.Error("Suppression flag must clear after one consume")
	}
}

func TestConcurrentTransitions(t *testing.T) {
	store := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.IncrementPresence()
		}()
	}
	wg.Wait()

	if store.Presence() != 101 {
		t.Errorf("Expected presence 101, got %d", store.Presence())
	}
}
