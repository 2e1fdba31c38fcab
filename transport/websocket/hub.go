package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/wricardo/mcp-training/robotcrusher/game/engine"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Events sent to clients
const (
	EventStateUpdate = "state_update"
	EventMatchClosed = "match_closed"
	EventMoveResult  = "move_result"
	EventError       = "error"
)

// Format selects the frame encoding of a client
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat returns the format named by s, defaulting to JSON
func ParseFormat(s string) Format {
	if Format(s) == FormatMsgpack {
		return FormatMsgpack
	}
	return FormatJSON
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		return true
	},
}

// Message represents a WebSocket message
type Message struct {
	MatchID  string           `json:"match_id"`
	Event    string           `json:"event"`
	Snapshot *engine.Snapshot `json:"snapshot,omitempty"`
	Data     interface{}      `json:"data,omitempty"`
}

// Command is a message sent by a client
type Command struct {
	Action    string `json:"action"`
	Direction string `json:"direction,omitempty"`
}

// Source streams the snapshots of a match
type Source func(ctx context.Context, matchID string) (<-chan engine.Snapshot, func(), error)

// Mover moves the player of a match on behalf of a client
type Mover func(ctx context.Context, matchID, direction string) (interface{}, error)

// Client represents a WebSocket client
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	matchID string
	format  Format

	// closed is guarded by hub.mu; send is closed only while holding it
	closed bool
}

// Hub maintains the set of active clients and broadcasts match snapshots.
// The latest message of each match is replayed to clients that join later.
type Hub struct {
	// Registered clients by match ID
	matches map[string]map[*Client]bool

	// Latest message per match
	last map[string]*Message

	// Snapshot forwarders per match
	forwarders map[string]func()

	source Source
	mover  Mover
	mu     sync.RWMutex

	// Outbound messages for clients
	broadcast chan *Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	done chan struct{}
}

// Option configures a Hub
type Option func(*Hub)

// WithSource makes the hub follow match snapshots for as long as a match has clients
func WithSource(source Source) Option {
	return func(h *Hub) { h.source = source }
}

// WithMover lets clients send move commands
func WithMover(mover Mover) Option {
	return func(h *Hub) { h.mover = mover }
}

// NewHub creates a new WebSocket hub
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		matches:    make(map[string]map[*Client]bool),
		last:       make(map[string]*Message),
		forwarders: make(map[string]func()),
		broadcast:  make(chan *Message, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run starts the hub's event loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// ServeWS upgrades the request and attaches the connection to a match
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, matchID string, format Format) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, 256),
		matchID: matchID,
		format:  format,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}

// BroadcastSnapshot sends a snapshot to every client of its match
func (h *Hub) BroadcastSnapshot(snapshot engine.Snapshot) {
	h.send(&Message{
		MatchID:  snapshot.MatchID,
		Event:    EventStateUpdate,
		Snapshot: &snapshot,
	})
}

// BroadcastEvent sends a custom event to every client of a match
func (h *Hub) BroadcastEvent(matchID, event string, data interface{}) {
	h.send(&Message{
		MatchID: matchID,
		Event:   event,
		Data:    data,
	})
}

// Clients returns the number of clients attached to a match
func (h *Hub) Clients(matchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.matches[matchID])
}

// Encode encodes a message in the given format
func Encode(message *Message, format Format) ([]byte, error) {
	if format == FormatMsgpack {
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(message); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return json.Marshal(message)
}

// Decode decodes a message in the given format
func Decode(data []byte, format Format) (*Message, error) {
	var message Message
	if format == FormatMsgpack {
		dec := msgpack.NewDecoder(bytes.NewReader(data))
		dec.SetCustomStructTag("json")
		if err := dec.Decode(&message); err != nil {
			return nil, err
		}
		return &message, nil
	}
	if err := json.Unmarshal(data, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

// registerClient adds a client to a match and replays the latest message
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	if h.matches[client.matchID] == nil {
		h.matches[client.matchID] = make(map[*Client]bool)
	}
	h.matches[client.matchID][client] = true
	total := len(h.matches[client.matchID])
	last := h.last[client.matchID]
	_, following := h.forwarders[client.matchID]
	h.mu.Unlock()

	if last != nil {
		h.deliver(client, last)
	}
	if !following && h.source != nil {
		h.follow(client.matchID)
	}

	log.WithFields(log.Fields{"match": client.matchID, "clients": total}).Debug("websocket client registered")
}

// unregisterClient removes a client from a match
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	var stop func()
	remaining := 0

	if clients, ok := h.matches[client.matchID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			client.close()
			remaining = len(clients)

			// Clean up matches without clients
			if remaining == 0 {
				delete(h.matches, client.matchID)
				delete(h.last, client.matchID)
				stop = h.forwarders[client.matchID]
				delete(h.forwarders, client.matchID)
			}
		}
	}
	h.mu.Unlock()

	if stop != nil {
		stop()
	}

	log.WithFields(log.Fields{"match": client.matchID, "clients": remaining}).Debug("websocket client unregistered")
}

// broadcastMessage sends a message to all clients of a match
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.Lock()
	if message.Event == EventMatchClosed {
		delete(h.last, message.MatchID)
		delete(h.forwarders, message.MatchID)
	} else if message.Snapshot != nil {
		h.last[message.MatchID] = message
	}
	clients := make([]*Client, 0, len(h.matches[message.MatchID]))
	for client := range h.matches[message.MatchID] {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		h.deliver(client, message)
	}
}

// deliver queues a message for one client, dropping clients that cannot keep up
func (h *Hub) deliver(client *Client, message *Message) {
	data, err := Encode(message, client.format)
	if err != nil {
		log.WithError(err).Warn("failed to encode websocket message")
		return
	}

	if !client.trySend(data) {
		// Client is gone or its send channel is full, close it
		h.unregisterClient(client)
	}
}

// follow forwards the snapshots of a match to the hub until the feed closes
func (h *Hub) follow(matchID string) {
	snapshots, cancel, err := h.source(context.Background(), matchID)
	if err != nil {
		log.WithError(err).WithField("match", matchID).Warn("cannot follow match")
		return
	}

	// A canceled feed closes like a finished one; only the latter means the match is gone
	var stopped atomic.Bool
	h.mu.Lock()
	h.forwarders[matchID] = func() {
		stopped.Store(true)
		cancel()
	}
	h.mu.Unlock()

	go func() {
		for snapshot := range snapshots {
			s := snapshot
			if !h.send(&Message{MatchID: matchID, Event: EventStateUpdate, Snapshot: &s}) {
				return
			}
		}
		if stopped.Load() {
			return
		}
		h.send(&Message{MatchID: matchID, Event: EventMatchClosed})
	}()
}

// send queues a message unless the hub has stopped
func (h *Hub) send(message *Message) bool {
	select {
	case h.broadcast <- message:
		return true
	case <-h.done:
		return false
	}
}

// shutdown stops every forwarder and disconnects every client
func (h *Hub) shutdown() {
	close(h.done)

	h.mu.Lock()
	forwarders := h.forwarders
	for _, clients := range h.matches {
		for client := range clients {
			client.close()
		}
	}
	h.forwarders = make(map[string]func())
	h.matches = make(map[string]map[*Client]bool)
	h.last = make(map[string]*Message)
	h.mu.Unlock()

	for _, cancel := range forwarders {
		cancel()
	}
}

// handle runs a command sent by the client
func (c *Client) handle(data []byte) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		c.reply(EventError, "invalid command")
		return
	}

	switch cmd.Action {
	case "move":
		if c.hub.mover == nil {
			c.reply(EventError, "moves are not accepted on this connection")
			return
		}
		result, err := c.hub.mover(context.Background(), c.matchID, cmd.Direction)
		if err != nil {
			c.reply(EventError, err.Error())
			return
		}
		c.reply(EventMoveResult, result)
	default:
		c.reply(EventError, "unknown action "+cmd.Action)
	}
}

// reply sends a message to this client only
func (c *Client) reply(event string, data interface{}) {
	payload, err := Encode(&Message{MatchID: c.matchID, Event: event, Data: data}, c.format)
	if err != nil {
		return
	}
	c.trySend(payload)
}

// trySend queues data without blocking and reports false when the client is closed or full
func (c *Client) trySend(data []byte) bool {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// close shuts the send channel once; the caller holds hub.mu
func (c *Client) close() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump pumps commands from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithError(err).Debug("websocket read error")
			}
			break
		}
		c.handle(data)
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	messageType := websocket.TextMessage
	if c.format == FormatMsgpack {
		messageType = websocket.BinaryMessage
	}

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(messageType, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
