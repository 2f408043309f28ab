package scheduler

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ayush123-bit/paircode/internal/session"
)

// Completion is the result of one autocomplete request.
type Completion struct {
	Suggestion string
	Confidence float64
}

// FetchFunc issues a completion request for the given code and cursor
// offset. Implemented by the directory client in production and by
// fakes in tests.
type FetchFunc func(ctx context.Context, code string, cursor int) (Completion, error)

type Config struct {
	// Quiescence window after the last edit before a request fires
	IdleWindow time.Duration

	// Minimum trimmed document length worth a request
	MinLength int

	// Suggestions at or below this confidence are discarded
	ConfidenceThreshold float64

	// How long a published suggestion stays visible
	DisplayDuration time.Duration

	// Upper bound on a single completion request
	RequestTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		IdleWindow:          600 * time.Millisecond,
		MinLength:           2,
		ConfidenceThreshold: 0.5,
		DisplayDuration:     6 * time.Second,
		RequestTimeout:      10 * time.Second,
	}
}

// timer is a single-purpose cancellable handle. Scheduling always
// cancels the previous schedule first, so at most one callback per
// purpose is ever pending.
type timer struct {
	t *time.Timer
}

func (h *timer) schedule(d time.Duration, fn func()) {
	h.stop()
	h.t = time.AfterFunc(d, fn)
}

func (h *timer) stop() {
	if h.t != nil {
		h.t.Stop()
		h.t = nil
	}
}

// Scheduler turns a burst of local edits into at most one completion
// request per typing pause, and manages the published suggestion's
// display window. Completion failures are deliberately silent: an
// autocomplete hiccup must never interrupt typing.
type Scheduler struct {
	store *session.Store
	fetch FetchFunc
	cfg   Config

	mu         sync.Mutex
	idle       timer
	expiry     timer
	lastText   string
	lastCursor int

	// Responses apply in arrival order. Anything at or below appliedSeq
	// arrived too late and is discarded.
	reqSeq     int
	appliedSeq int

	closed bool
}

func New(store *session.Store, fetch FetchFunc, cfg Config) *Scheduler {
	return &Scheduler{
		store: store,
		fetch: fetch,
		cfg:   cfg,
	}
}

// NoteEdit records a local edit and restarts the idle timer. The
// request, if one fires, carries the text and cursor of the last edit
// before the pause.
func (s *Scheduler) NoteEdit(text string, cursor int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.lastText = text
	s.lastCursor = cursor
	s.idle.schedule(s.cfg.IdleWindow, s.fire)
}

// Dismiss drops the current suggestion on user request. Outstanding
// responses become stale so a slow one cannot resurrect it.
func (s *Scheduler) Dismiss() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.expiry.stop()
	s.appliedSeq = s.reqSeq
	s.store.ClearSuggestion()
	s.mu.Unlock()
}

// Close cancels both timers. Responses resolving afterwards are
// ignored; nothing may mutate a torn-down session.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.idle.stop()
	s.expiry.stop()
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	text, cursor := s.lastText, s.lastCursor
	if len(strings.TrimSpace(text)) < s.cfg.MinLength {
		s.mu.Unlock()
		return
	}

	s.reqSeq++
	seq := s.reqSeq
	s.mu.Unlock()

	// A new edit during this request does not cancel it; it only arms
	// the idle timer for the next cycle.
	go s.request(seq, text, cursor)
}

func (s *Scheduler) request(seq int, text string, cursor int) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
	defer cancel()

	result, err := s.fetch(ctx, text, cursor)
	if err != nil {
		// Silent by design: skip this cycle, leave all state alone.
		log.Printf("Completion request failed: %v", err)
		s.markArrived(seq)
		return
	}

	s.apply(seq, result)
}

func (s *Scheduler) markArrived(seq int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed && seq > s.appliedSeq {
		s.appliedSeq = seq
	}
}

func (s *Scheduler) apply(seq int, result Completion) {
	s.mu.Lock()
	if s.closed || seq <= s.appliedSeq {
		s.mu.Unlock()
		return
	}
	s.appliedSeq = seq

	if result.Suggestion == "" || result.Confidence <= s.cfg.ConfidenceThreshold {
		s.mu.Unlock()
		return
	}

	s.expiry.schedule(s.cfg.DisplayDuration, func() { s.expire(seq) })
	// Mutate the store before releasing the lock so a racing Close
	// cannot slip in between the closed check and the write.
	s.store.SetSuggestion(result.Suggestion)
	s.mu.Unlock()
}

func (s *Scheduler) expire(seq int) {
	s.mu.Lock()
	if s.closed || seq != s.appliedSeq {
		// A newer suggestion replaced this one; its own timer runs.
		s.mu.Unlock()
		return
	}
	s.store.ClearSuggestion()
	s.mu.Unlock()
}
