package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-voicebridge/internal/alexa"
	"github.com/nerrad567/gray-logic-voicebridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-voicebridge/internal/infrastructure/logging"
)

// DirectiveHandler serves directives sent over the stream.
// *endpoint.Manager satisfies it.
type DirectiveHandler interface {
	HandleAlexaEvent(ctx context.Context, d alexa.Directive) *alexa.Response
}

// Hub fans change reports out to stream clients. It satisfies
// endpoint.Broadcaster.
//
// Thread Safety:
//   - Broadcast, Register and Unregister may be called from any goroutine.
//   - A client's send channel is closed exactly once, by Unregister or Run's
//     shutdown, and never written after that.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*streamClient]struct{}
	handler DirectiveHandler
}

// NewHub creates a hub. Run must be called to close clients on shutdown.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*streamClient]struct{}),
	}
}

// SetDirectiveHandler enables the directive message type. Without a handler
// directives are answered with an error message.
func (h *Hub) SetDirectiveHandler(handler DirectiveHandler) {
	h.mu.Lock()
	h.handler = handler
	h.mu.Unlock()
}

func (h *Hub) directiveHandler() DirectiveHandler {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.handler
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*streamClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
		if c.conn != nil {
			c.conn.Close()
		}
	}
	h.logger.Debug("stream hub stopped", "disconnected", len(clients))
}

// Register adds a client.
func (h *Hub) Register(c *streamClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("stream client connected", "clients", n)
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *streamClient) {
	h.mu.Lock()
	_, existed := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if !existed {
		return
	}
	c.close()
	h.logger.Debug("stream client disconnected", "clients", n, "dropped", c.droppedCount())
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends payload to every client subscribed to channel whose
// endpoint filter admits endpointID. Slow clients lose messages rather than
// stall the publisher.
func (h *Hub) Broadcast(channel, endpointID string, payload any) {
	data, err := json.Marshal(StreamMessage{
		Type:      msgEvent,
		Channel:   channel,
		Endpoint:  endpointID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("marshalling stream event failed", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*streamClient, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.wants(channel, endpointID) && c.enqueue(data) {
			delivered++
		}
	}
	if delivered > 0 {
		h.logger.Debug("stream event sent", "channel", channel, "endpoint", endpointID, "recipients", delivered)
	}
}
