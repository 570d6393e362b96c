package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-voicebridge/internal/alexa"
	"github.com/nerrad567/gray-logic-voicebridge/internal/infrastructure/config"
)

// Stream message types.
const (
	msgSubscribe   = "subscribe"
	msgUnsubscribe = "unsubscribe"
	msgDirective   = "directive"
	msgPing        = "ping"
	msgPong        = "pong"
	msgEvent       = "event"
	msgAck         = "ack"
	msgResponse    = "response"
	msgError       = "error"
)

const (
	// streamBufferSize is the per-client outbound queue length.
	streamBufferSize = 256

	// streamDirectiveTimeout matches the time Alexa waits for an answer.
	streamDirectiveTimeout = 8 * time.Second
)

// StreamMessage is a server-to-client message on the stream.
type StreamMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Channel   string `json:"channel,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// clientMessage is a client-to-server message. The payload is decoded
// according to Type.
type clientMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Subscription selects which events a client receives. An empty endpoint
// list admits every endpoint.
type Subscription struct {
	Channels  []string `json:"channels,omitempty"`
	Endpoints []string `json:"endpoints,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Local dashboards connect from arbitrary origins.
		return true
	},
}

// handleWebSocket upgrades the connection and attaches it to the hub.
// Clients receive nothing until they subscribe, normally to "change_report".
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	hub := s.Hub()
	c := newStreamClient(hub, conn)
	hub.Register(c)

	go c.writePump(s.wsCfg)
	go c.readPump(s.wsCfg)
}

// streamClient is one connected stream consumer.
type streamClient struct {
	hub  *Hub
	conn *websocket.Conn

	mu        sync.Mutex
	send      chan []byte
	closed    bool
	dropped   int
	channels  map[string]struct{}
	endpoints map[string]struct{}
}

func newStreamClient(hub *Hub, conn *websocket.Conn) *streamClient {
	return &streamClient{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, streamBufferSize),
		channels:  make(map[string]struct{}),
		endpoints: make(map[string]struct{}),
	}
}

// enqueue queues data without blocking. It reports false if the client is
// closed or its queue is full.
func (c *streamClient) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		c.dropped++
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

func (c *streamClient) droppedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// wants reports whether an event on channel for endpointID passes the
// client's filter.
func (c *streamClient) wants(channel, endpointID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.channels[channel]; !ok {
		return false
	}
	if len(c.endpoints) == 0 || endpointID == "" {
		return true
	}
	_, ok := c.endpoints[endpointID]
	return ok
}

func (c *streamClient) subscribe(sub Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range sub.Channels {
		c.channels[ch] = struct{}{}
	}
	for _, id := range sub.Endpoints {
		c.endpoints[id] = struct{}{}
	}
}

func (c *streamClient) unsubscribe(sub Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range sub.Channels {
		delete(c.channels, ch)
	}
	for _, id := range sub.Endpoints {
		delete(c.endpoints, id)
	}
}

// readPump serves client messages until the connection fails.
func (c *streamClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	deadline := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	extend := func() error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	}

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	if err := extend(); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("stream read failed", "error", err)
			}
			return
		}
		// Browsers that ignore protocol pings stay alive by talking.
		if err := extend(); err != nil {
			return
		}
		c.handleMessage(data)
	}
}

// writePump drains the send queue and pings the client.
func (c *streamClient) writePump(cfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			//nolint:errcheck // a failed deadline surfaces as a write error
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				//nolint:errcheck // connection is going away
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // a failed deadline surfaces as a write error
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *streamClient) handleMessage(data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.replyError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case msgSubscribe, msgUnsubscribe:
		var sub Subscription
		if len(msg.Payload) == 0 || json.Unmarshal(msg.Payload, &sub) != nil {
			c.replyError(msg.ID, "invalid subscription")
			return
		}
		if len(sub.Channels) == 0 && len(sub.Endpoints) == 0 {
			c.replyError(msg.ID, "subscription names no channel or endpoint")
			return
		}
		if msg.Type == msgSubscribe {
			c.subscribe(sub)
		} else {
			c.unsubscribe(sub)
		}
		c.reply(msg.ID, msgAck, sub)

	case msgDirective:
		go c.serveDirective(msg.ID, msg.Payload)

	case msgPing:
		c.reply(msg.ID, msgPong, nil)

	default:
		c.replyError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// serveDirective answers a directive envelope with a response envelope,
// exactly as the HTTP directive route would.
func (c *streamClient) serveDirective(id string, payload json.RawMessage) {
	handler := c.hub.directiveHandler()
	if handler == nil {
		c.replyError(id, "directives are not served on this stream")
		return
	}

	req, err := alexa.ParseRequest(payload)
	if err != nil {
		c.reply(id, msgResponse, alexa.NewErrorResponse(req.Directive, err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), streamDirectiveTimeout)
	defer cancel()
	c.reply(id, msgResponse, handler.HandleAlexaEvent(ctx, req.Directive))
}

func (c *streamClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(StreamMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		c.hub.logger.Error("marshalling stream reply failed", "type", msgType, "error", err)
		return
	}
	c.enqueue(data)
}

func (c *streamClient) replyError(id, message string) {
	c.reply(id, msgError, map[string]string{"message": message})
}
