package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ayush123-bit/paircode/internal/session"
)

func testConfig() Config {
	return Config{
		IdleWindow:          40 * time.Millisecond,
		MinLength:           2,
		ConfidenceThreshold: 0.5,
		DisplayDuration:     60 * time.Millisecond,
		RequestTimeout:      time.Second,
	}
}

// Records completion requests and serves a canned result.
type fakeFetcher struct {
	mu     sync.Mutex
	calls  []string
	result Completion
	err    error
}

func (f *fakeFetcher) fetch(ctx context.Context, code string, cursor int) (Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, code)
	return f.result, f.err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFetcher) lastCall() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}

func TestDebounceCoalescing(t *testing.T) {
	store := session.NewStore()
	fetcher := &fakeFetcher{result: Completion{Suggestion: "pass", Confidence: 0.9}}
	s := New(store, fetcher.fetch, testConfig())
	defer s.Close()

	edits := []string{"x", "x=", "x=1", "x=1\ny", "x=1\ny=2"}
	for _, text := range edits {
		s.NoteEdit(text, len(text))
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(120 * time.Millisecond)

	if fetcher.callCount() != 1 {
		t.Fatalf("Expected 1 coalesced request, got %d", fetcher.callCount())
	}
	if fetcher.lastCall() != "x=1\ny=2" {
		t.Errorf("Request should carry the last edit, got %q", fetcher.lastCall())
	}
}

func TestSeparatePausesSeparateRequests(t *testing.T) {
	store := session.NewStore()
	fetcher := &fakeFetcher{result: Completion{Suggestion: "pass", Confidence: 0.9}}
	s := New(store, fetcher.fetch, testConfig())
	defer s.Close()

	s.NoteEdit("x=1", 3)
	time.Sleep(80 * time.Millisecond)
	s.NoteEdit("x=2", 3)
	time.Sleep(80 * time.Millisecond)

	if fetcher.callCount() != 2 {
		t.Errorf("Expected 2 requests across 2 pauses, got %d", fetcher.callCount())
	}
}

func TestShortDocumentSkipped(t *testing.T) {
	store := session.NewStore()
	fetcher := &fakeFetcher{result: Completion{Suggestion: "pass", Confidence: 0.9}}
	s := New(store, fetcher.fetch, testConfig())
	defer s.Close()

	s.NoteEdit("x", 1)
	s.NoteEdit("  \n ", 2)
	time.Sleep(100 * time.Millisecond)

	if fetcher.callCount() != 0 {
		t.Errorf("Trivial input should not trigger requests, got %d", fetcher.callCount())
	}
}

func TestConfidenceGate(t *testing.T) {
	store := session.NewStore()
	fetcher := &fakeFetcher{result: Completion{Suggestion: "maybe", Confidence: 0.4}}
	s := New(store, fetcher.fetch, testConfig())
	defer s.Close()

	s.NoteEdit("x=1", 3)
	time.Sleep(100 * time.Millisecond)

	if _, ok := store.Suggestion(); ok {
		t.Error("Low-confidence result must not publish a suggestion")
	}
}

func TestHighConfidencePublishesAndExpires(t *testing.T) {
	store := session.NewStore()
	fetcher := &fakeFetcher{result: Completion{Suggestion: "print(x)", Confidence: 0.9}}
	s := New(store, fetcher.fetch, testConfig())
	defer s.Close()

	s.NoteEdit("x=1", 3)
	// Check between publish (idle window, ~40ms) and expiry
	// (~40ms + display duration = ~100ms), not exactly at the boundary.
	time.Sleep(70 * time.Millisecond)

	got, ok := store.Suggestion()
	if !ok || got != "print(x)" {
		t.Fatalf("Expected published suggestion, got %q (ok=%v)", got, ok)
	}

	time.Sleep(100 * time.Millisecond)
	if _, ok := store.Suggestion(); ok {
		t.Error("Suggestion should auto-clear after the display duration")
	}
}

func TestFailureIsSilent(t *testing.T) {
	store := session.NewStore()
	store.SetSuggestion("existing")
	fetcher := &fakeFetcher{err: context.DeadlineExceeded}
	s := New(store, fetcher.fetch, testConfig())
	defer s.Close()

	s.NoteEdit("x=1", 3)
	time.Sleep(100 * time.Millisecond)

	got, ok := store.Suggestion()
	if !ok || got != "existing" {
		t.Error("A failed request must leave existing state untouched")
	}
}

func TestStaleResponseDiscarded(t *testing.T) {
	store := session.NewStore()
	s := New(store, nil, testConfig())
	defer s.Close()

	// Second request's response arrives first and wins by arrival.
	s.reqSeq = 2
	s.apply(2, Completion{Suggestion: "newer", Confidence: 0.9})
	s.apply(1, Completion{Suggestion: "older", Confidence: 0.95})

	got, _ := store.Suggestion()
	if got != "newer" {
		t.Errorf("Late response must not replace a newer one, got %q", got)
	}
}

func TestDismissBlocksStaleResurrection(t *testing.T) {
	store := session.NewStore()
	s := New(store, nil, testConfig())
	defer s.Close()

	s.reqSeq = 1
	s.apply(1, Completion{Suggestion: "first", Confidence: 0.9})

	s.mu.Lock()
	s.reqSeq = 2 // one request still in flight
	s.mu.Unlock()
	s.Dismiss()

	if _, ok := store.Suggestion(); ok {
		t.Fatal("Dismiss should clear the suggestion")
	}

	s.apply(2, Completion{Suggestion: "stale", Confidence: 0.9})
	if _, ok := store.Suggestion(); ok {
		t.Error("A response superseded by a dismissal must be discarded")
	}
}

func TestTeardownSafety(t *testing.T) {
	store := session.NewStore()

	resolve := make(chan struct{})
	fetch := func(ctx context.Context, code string, cursor int) (Completion, error) {
		<-resolve
		return Completion{Suggestion: "late", Confidence: 0.99}, nil
	}

	s := New(store, fetch, testConfig())
	s.NoteEdit("x=1", 3)
	time.Sleep(60 * time.Millisecond) // let the request start

	s.Close()
	close(resolve)
	time.Sleep(30 * time.Millisecond)

	if _, ok := store.Suggestion(); ok {
		t.Error("A response resolving after teardown must not mutate the store")
	}
}

// A response and Close racing must serialize: either the response
// lands before Close returns, or it never touches the store at all.
func TestCloseRacingResponse(t *testing.T) {
	for i := 0; i < 200; i++ {
		store := session.NewStore()
		s := New(store, nil, testConfig())
		s.reqSeq = 1

		start := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			s.apply(1, Completion{Suggestion: "late", Confidence: 0.9})
		}()

		close(start)
		s.Close()
		_, beforeWait := store.Suggestion()
		wg.Wait()
		_, afterWait := store.Suggestion()

		if afterWait && !beforeWait {
			t.Fatal("Response mutated the store after Close returned")
		}
	}
}

func TestCloseCancelsIdleTimer(t *testing.T) {
	store := session.NewStore()
	fetcher := &fakeFetcher{result: Completion{Suggestion: "pass", Confidence: 0.9}}
	s := New(store, fetcher.fetch, testConfig())

	s.NoteEdit("x=1", 3)
	s.Close()
	time.Sleep(100 * time.Millisecond)

	if fetcher.callCount() != 0 {
		t.Errorf("Closed scheduler must not fire requests, got %d", fetcher.callCount())
	}
}
