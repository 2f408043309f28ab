package controller

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/ayush123-bit/paircode/internal/directory"
	"github.com/ayush123-bit/paircode/internal/protocol"
	"github.com/ayush123-bit/paircode/internal/scheduler"
	"github.com/ayush123-bit/paircode/internal/session"
)

// Transport is the per-room realtime channel the controller drives.
type Transport interface {
	Connect(roomID string) error
	Send(kind protocol.Kind, content string)
	SetCloseHandler(func(error))
	Close()
}

// TransportFactory builds a transport wired to the controller's
// inbound handler, mirroring how the room channel is constructed
// around the message callback.
type TransportFactory func(onMessage func(protocol.Message)) Transport

// Directory resolves room records before a session starts.
type Directory interface {
	GetRoom(ctx context.Context, roomID string) (*directory.Room, error)
}

type Config struct {
	Directory    Directory
	NewTransport TransportFactory

	// Completion is nil when autocomplete is disabled.
	Completion scheduler.FetchFunc
	Scheduler  scheduler.Config

	// OnRemoteUpdate notifies the text surface of a programmatic
	// document change. If the surface answers with a synchronous
	// local-edit notification, echo suppression swallows it.
	OnRemoteUpdate func(text string)

	// OnPresenceChange fires after join/leave notifications.
	OnPresenceChange func(count int)
}

// Controller owns one room session for its lifetime: it wires inbound
// channel messages to store mutations, forwards local edits outward,
// suppresses echoes, and drives the completion scheduler. Constructed
// on room entry, discarded on exit; never a process-wide singleton.
type Controller struct {
	store     *session.Store
	transport Transport
	dir       Directory
	sched     *scheduler.Scheduler
	cfg       Config

	mu     sync.Mutex
	state  session.ConnectionState
	closed bool
}

func New(cfg Config) *Controller {
	c := &Controller{
		store: session.NewStore(),
		dir:   cfg.Directory,
		cfg:   cfg,
		state: session.Disconnected,
	}
	c.transport = cfg.NewTransport(c.handleInbound)
	c.transport.SetCloseHandler(c.handleTransportClose)

	if cfg.Completion != nil {
		scfg := cfg.Scheduler
		if scfg.IdleWindow == 0 {
			scfg = scheduler.DefaultConfig()
		}
		c.sched = scheduler.New(c.store, cfg.Completion, scfg)
	}
	return c
}

// Store exposes the session state for the surface to render from.
func (c *Controller) Store() *session.Store {
	return c.store
}

func (c *Controller) State() session.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Join enters a room: it resolves the record from the directory, seeds
// the document, then opens the realtime channel. A lookup failure is
// terminal for this session; the caller should leave the room
// entirely. A channel failure is not: the user can still edit locally,
// the edits just will not propagate.
//
// There is no reconnect or resync once the channel drops; rejoining
// the room is the only recovery path.
func (c *Controller) Join(ctx context.Context, roomID string) error {
	room, err := c.dir.GetRoom(ctx, roomID)

	c.mu.Lock()
	if c.closed {
		// Torn down while the lookup was in flight; its result must
		// not touch the discarded session.
		c.mu.Unlock()
		return fmt.Errorf("session closed")
	}
	if err != nil {
		c.state = session.Failed
		c.mu.Unlock()
		return fmt.Errorf("room lookup failed: %w", err)
	}

	c.store.SetRoomID(room.RoomID)
	c.store.SetDocument(room.Code)
	c.state = session.Connecting
	c.mu.Unlock()

	if err := c.transport.Connect(roomID); err != nil {
		log.Printf("Controller: channel connect failed for room %s: %v", roomID, err)
		c.mu.Lock()
		if !c.closed {
			c.state = session.Disconnected
		}
		c.mu.Unlock()
		return nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.transport.Close()
		return fmt.Errorf("session closed")
	}
	c.state = session.Connected
	c.mu.Unlock()
	return nil
}

// HandleLocalEdit processes a content change reported by the text
// surface. An edit that is really the echo of a remote apply clears
// the suppression flag and goes no further; everything else updates
// the store optimistically, broadcasts, and arms the completion timer.
func (c *Controller) HandleLocalEdit(text string, cursor int) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if c.store.ConsumeSuppression() {
		return
	}

	c.store.SetDocument(text)
	c.transport.Send(protocol.KindCodeUpdate, text)
	if c.sched != nil {
		c.sched.NoteEdit(text, cursor)
	}
}

// DismissSuggestion drops the pending suggestion on user request.
func (c *Controller) DismissSuggestion() {
	if c.sched != nil {
		c.sched.Dismiss()
	}
}

// Leave exits the room: closes the channel, cancels all timers and
// discards the session. Idempotent.
func (c *Controller) Leave() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.state = session.Disconnected
	c.mu.Unlock()

	c.transport.Close()
	if c.sched != nil {
		c.sched.Close()
	}
}

func (c *Controller) handleInbound(msg protocol.Message) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	switch msg.Type {
	case protocol.KindCodeUpdate:
		// Flag before apply: if the surface synchronously reports the
		// programmatic change as a local edit, it must be swallowed.
		c.store.MarkRemoteApply()
		c.store.SetDocument(msg.Content)
		if c.cfg.OnRemoteUpdate != nil {
			c.cfg.OnRemoteUpdate(msg.Content)
		}

	case protocol.KindUserJoined:
		c.store.IncrementPresence()
		if c.cfg.OnPresenceChange != nil {
			c.cfg.OnPresenceChange(c.store.Presence())
		}

	case protocol.KindUserLeft:
		c.store.DecrementPresence()
		if c.cfg.OnPresenceChange != nil {
			c.cfg.OnPresenceChange(c.store.Presence())
		}
	}
}

func (c *Controller) handleTransportClose(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if err != nil {
		log.Printf("Controller: channel closed unexpectedly: %v", err)
	}
	c.state = session.Disconnected
}
