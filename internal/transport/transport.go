package transport

import (
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayush123-bit/paircode/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	readWait       = 60 * time.Second
	maxMessageSize = 1024 * 1024
	dialTimeout    = 10 * time.Second
)

// Handler receives inbound messages in arrival order, one at a time,
// from the connection's read loop.
type Handler func(protocol.Message)

// Transport owns one websocket connection scoped to a room. Sends are
// best effort: while the connection is down they are dropped, not
// queued. There is no automatic reconnect; if the channel drops, the
// session degrades to local-only editing until rejoined.
type Transport struct {
	baseURL string
	handler Handler
	onClose func(error)

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// New prepares a transport for the relay at baseURL, e.g.
// "ws://localhost:8080". The handler must not be nil.
func New(baseURL string, handler Handler) *Transport {
	return &Transport{
		baseURL: baseURL,
		handler: handler,
	}
}

// SetCloseHandler registers a callback fired once when the connection
// goes away, whether by Close or by a read error. Must be called
// before Connect.
func (t *Transport) SetCloseHandler(fn func(error)) {
	t.onClose = fn
}

// Connect dials the relay channel for roomID and starts the read loop.
// Only one connection may be open at a time.
func (t *Transport) Connect(roomID string) error {
	u, err := url.Parse(t.baseURL)
	if err != nil {
		return fmt.Errorf("invalid relay URL: %w", err)
	}
	u = u.JoinPath("ws", roomID)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("transport is closed")
	}
	if t.conn != nil {
		t.mu.Unlock()
		return fmt.Errorf("already connected to room %s", roomID)
	}
	t.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u.String(), err)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		conn.Close()
		return fmt.Errorf("transport is closed")
	}
	if t.conn != nil {
		// A concurrent Connect won the dial.
		t.mu.Unlock()
		conn.Close()
		return fmt.Errorf("already connected to room %s", roomID)
	}
	t.conn = conn
	t.mu.Unlock()

	go t.readLoop(conn)
	return nil
}

// Send broadcasts a message to the room. A send while disconnected is
// silently dropped; callers must treat delivery as best effort.
func (t *Transport) Send(kind protocol.Kind, content string) {
	data, err := protocol.Marshal(protocol.Message{Type: kind, Content: content})
	if err != nil {
		log.Printf("Transport: failed to encode %s message: %v", kind, err)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return
	}

	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("Transport: write failed: %v", err)
	}
}

// Close tears the connection down. Idempotent.
func (t *Transport) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		conn.Close()
	}
}

func (t *Transport) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(readWait))
		// WriteControl is safe alongside Send's data writes; a data
		// write here would race them.
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	var readErr error
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Transport: read error: %v", err)
				readErr = err
			}
			break
		}

		msg, err := protocol.Unmarshal(data)
		if err != nil {
			// Bad frames are dropped; they must not kill the channel.
			log.Printf("Transport: dropping inbound message: %v", err)
			continue
		}

		t.handler(msg)
	}

	t.mu.Lock()
	if t.conn == conn {
		t.conn = nil
	}
	alreadyClosed := t.closed
	t.mu.Unlock()

	if !alreadyClosed && t.onClose != nil {
		t.onClose(readErr)
	}
}
