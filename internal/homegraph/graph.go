package homegraph

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-voicebridge/internal/infrastructure/mqtt"
)

// defaultReadTimeout bounds a read for a state that has not been seen yet.
const defaultReadTimeout = 2 * time.Second

// Transport is the MQTT surface MQTTGraph needs. *mqtt.Client satisfies it.
type Transport interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	PublishDefault(topic string, payload []byte) error
}

// Logger defines the logging interface used by the graph adapter.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// StateHandler receives acknowledged and unacknowledged state changes.
type StateHandler func(id string, state State)

// ObjectHandler receives object (re)definitions.
type ObjectHandler func(id string)

// MQTTGraph mirrors the home graph over MQTT.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Handlers are called on the MQTT delivery goroutine.
type MQTTGraph struct {
	transport   Transport
	topics      mqtt.Topics
	readTimeout time.Duration

	mu       sync.RWMutex
	states   map[string]State
	waiters  map[string]chan struct{}
	interest map[string]struct{} // nil means every state

	onState  StateHandler
	onObject ObjectHandler
	cbMu     sync.RWMutex

	logger Logger
	now    func() time.Time
}

// NewMQTTGraph creates a graph adapter. Call Start to subscribe.
//
// Parameters:
//   - transport: Connected MQTT client
//   - topics: Topic builder carrying the graph prefix
//   - readTimeout: Upper bound for reads of unseen states (default 2s)
//
// Returns:
//   - *MQTTGraph: Adapter ready to Start
func NewMQTTGraph(transport Transport, topics mqtt.Topics, readTimeout time.Duration) *MQTTGraph {
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	return &MQTTGraph{
		transport:   transport,
		topics:      topics,
		readTimeout: readTimeout,
		states:      make(map[string]State),
		waiters:     make(map[string]chan struct{}),
		logger:      noopLogger{},
		now:         time.Now,
	}
}

// SetLogger sets the logger for the adapter.
func (g *MQTTGraph) SetLogger(logger Logger) {
	g.logger = logger
}

// OnStateChange registers the state change handler, replacing any previous one.
func (g *MQTTGraph) OnStateChange(handler StateHandler) {
	g.cbMu.Lock()
	g.onState = handler
	g.cbMu.Unlock()
}

// OnObjectChange registers the object change handler, replacing any previous one.
func (g *MQTTGraph) OnObjectChange(handler ObjectHandler) {
	g.cbMu.Lock()
	g.onObject = handler
	g.cbMu.Unlock()
}

// Start subscribes to the state and object wildcard topics.
func (g *MQTTGraph) Start() error {
	if err := g.transport.Subscribe(g.topics.AllGraphStates(), 1, g.handleMessage); err != nil {
		return fmt.Errorf("subscribing to graph states: %w", err)
	}
	if err := g.transport.Subscribe(g.topics.AllGraphObjects(), 1, g.handleMessage); err != nil {
		return fmt.Errorf("subscribing to graph objects: %w", err)
	}
	return nil
}

// SubscribeStates limits state change notifications to ids. The cache keeps
// every state regardless, so reads of other ids still work.
func (g *MQTTGraph) SubscribeStates(ids []string) {
	interest := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		interest[id] = struct{}{}
	}

	g.mu.Lock()
	g.interest = interest
	g.mu.Unlock()

	g.logger.Debug("graph subscriptions refreshed", "states", len(ids))
}

// GetState returns the last known value of id.
//
// If the state has not been seen yet, it waits until a value arrives,
// the context ends or the read timeout expires.
//
// Returns:
//   - State: Cached value
//   - error: ErrInvalidStateID, ErrStateNotFound or the context error
func (g *MQTTGraph) GetState(ctx context.Context, id string) (State, error) {
	if err := validateID(id); err != nil {
		return State{}, err
	}

	g.mu.Lock()
	if s, ok := g.states[id]; ok {
		g.mu.Unlock()
		return s, nil
	}
	ready, ok := g.waiters[id]
	if !ok {
		ready = make(chan struct{})
		g.waiters[id] = ready
	}
	g.mu.Unlock()

	timer := time.NewTimer(g.readTimeout)
	defer timer.Stop()

	select {
	case <-ready:
		g.mu.RLock()
		s := g.states[id]
		g.mu.RUnlock()
		return s, nil
	case <-timer.C:
		return State{}, fmt.Errorf("%w: %s", ErrStateNotFound, id)
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

// SetState publishes a write request for id. The new value becomes visible
// once the graph publishes it back on the state topic.
func (g *MQTTGraph) SetState(_ context.Context, id string, value any) error {
	if err := validateID(id); err != nil {
		return err
	}

	payload, err := encodeWrite(value)
	if err != nil {
		return fmt.Errorf("encoding write for %s: %w", id, err)
	}
	if err := g.transport.PublishDefault(g.topics.GraphSet(id), payload); err != nil {
		return fmt.Errorf("writing %s: %w", id, err)
	}

	g.logger.Debug("graph state written", "id", id, "value", value)
	return nil
}

// handleMessage routes an inbound graph message.
func (g *MQTTGraph) handleMessage(topic string, payload []byte) error {
	kind, id, ok := g.topics.ParseGraphTopic(topic)
	if !ok {
		return fmt.Errorf("unexpected graph topic %q", topic)
	}

	switch kind {
	case mqtt.GraphKindState:
		g.storeState(id, ParseState(payload, g.now()))
	case mqtt.GraphKindObject:
		g.cbMu.RLock()
		handler := g.onObject
		g.cbMu.RUnlock()
		if handler != nil {
			handler(id)
		}
	}
	return nil
}

// storeState caches a value, wakes waiting readers and notifies the handler.
func (g *MQTTGraph) storeState(id string, state State) {
	g.mu.Lock()
	g.states[id] = state
	if ready, ok := g.waiters[id]; ok {
		close(ready)
		delete(g.waiters, id)
	}
	_, wanted := g.interest[id]
	if g.interest == nil {
		wanted = true
	}
	g.mu.Unlock()

	if !wanted {
		return
	}

	g.cbMu.RLock()
	handler := g.onState
	g.cbMu.RUnlock()
	if handler != nil {
		handler(id, state)
	}
}

func validateID(id string) error {
	if id == "" || strings.ContainsAny(id, "/+#") {
		return fmt.Errorf("%w: %q", ErrInvalidStateID, id)
	}
	return nil
}
