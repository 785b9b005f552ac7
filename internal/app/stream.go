package app

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"milesofsmiles/api/internal/content"
)

const (
	streamSendBuffer = 16
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = 30 * time.Second
)

// StreamMessage is what live viewers receive: the full document after every
// change.
type StreamMessage struct {
	Type    string           `json:"type"`
	Content content.Document `json:"content"`
}

// streamClient owns its send channel: trySend and close share mu, so a
// send never races the close.
type streamClient struct {
	conn   *websocket.Conn
	send   chan []byte
	mu     sync.Mutex
	closed bool
}

// trySend queues payload without blocking. It reports false when the
// buffer is full; a closed client silently takes nothing.
func (c *streamClient) trySend(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *streamClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *streamClient) remoteAddr() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

// Stream pushes document changes to connected WebSocket viewers. Viewers
// that fall behind are dropped.
type Stream struct {
	clients  mapset.Set[*streamClient]
	upgrader websocket.Upgrader
}

func NewStream(corsOrigin string) *Stream {
	return &Stream{
		clients: mapset.NewSet[*streamClient](),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return corsOrigin == "*" || r.Header.Get("Origin") == "" || r.Header.Get("Origin") == corsOrigin
			},
		},
	}
}

func encodeStreamMessage(doc content.Document) ([]byte, error) {
	return json.Marshal(StreamMessage{Type: "content", Content: doc})
}

// Broadcast queues doc for every viewer without blocking.
func (h *Stream) Broadcast(doc content.Document) {
	if h.clients.Cardinality() == 0 {
		return
	}
	payload, err := encodeStreamMessage(doc)
	if err != nil {
		log.WithError(err).Error("encode stream message")
		return
	}
	for _, c := range h.clients.ToSlice() {
		if !c.trySend(payload) {
			log.WithField("remote", c.remoteAddr()).Warn("dropping slow viewer")
			h.clients.Remove(c)
			c.close()
		}
	}
}

// Len is the number of connected viewers.
func (h *Stream) Len() int {
	return h.clients.Cardinality()
}

// Serve upgrades the request and streams until the viewer goes away.
// current is read after the viewer is registered, so no change is missed.
func (h *Stream) Serve(w http.ResponseWriter, r *http.Request, current func() content.Document) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	c := &streamClient{conn: conn, send: make(chan []byte, streamSendBuffer)}
	h.clients.Add(c)

	if payload, err := encodeStreamMessage(current()); err == nil {
		c.trySend(payload)
	}

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Stream) readLoop(c *streamClient) {
	defer func() {
		h.clients.Remove(c)
		c.close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Stream) writeLoop(c *streamClient) {
	ticker := time.NewTicker(streamPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every viewer.
func (h *Stream) Close() {
	for _, c := range h.clients.ToSlice() {
		h.clients.Remove(c)
		c.close()
	}
}
