package endpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

const (
	// defaultQueueSize bounds reports waiting for the sinks.
	defaultQueueSize = 256

	// sinkTimeout bounds one sink delivery.
	sinkTimeout = 5 * time.Second
)

// Sink receives published change reports.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, report ChangeReport) error
}

// Publisher delivers change reports to its sinks on a single goroutine, so
// reports keep the order in which they were enqueued.
type Publisher struct {
	queue chan ChangeReport
	sinks []Sink

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	logger Logger
}

// NewPublisher creates a publisher. Call Start to begin delivery.
func NewPublisher(queueSize int, sinks ...Sink) *Publisher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Publisher{
		queue:  make(chan ChangeReport, queueSize),
		sinks:  sinks,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the publisher.
func (p *Publisher) SetLogger(logger Logger) {
	p.logger = logger
}

// AddSink registers another sink. It must be called before Start.
func (p *Publisher) AddSink(sink Sink) {
	p.sinks = append(p.sinks, sink)
}

// Start launches the delivery goroutine.
func (p *Publisher) Start() {
	p.wg.Add(1)
	go p.run()
}

// Enqueue schedules report for delivery without blocking. It returns false
// when the queue is full or the publisher is closed.
func (p *Publisher) Enqueue(report ChangeReport) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return false
	}
	select {
	case p.queue <- report:
		return true
	default:
		p.logger.Warn("change report queue full, dropping report", "endpoint", report.EndpointID, "cause", report.Cause)
		return false
	}
}

// Close stops accepting reports and waits for queued ones to be delivered.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Publisher) run() {
	defer p.wg.Done()

	for report := range p.queue {
		for _, sink := range p.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
			if err := sink.Deliver(ctx, report); err != nil {
				p.logger.Warn("change report delivery failed",
					"sink", sink.Name(),
					"endpoint", report.EndpointID,
					"error", err,
				)
			}
			cancel()
		}
	}
}

// =============================================================================
// Sinks
// =============================================================================

// MessagePublisher publishes raw payloads. *mqtt.Client satisfies it.
type MessagePublisher interface {
	PublishDefault(topic string, payload []byte) error
}

// MQTTSink publishes change report envelopes on a topic,
// conventionally response/<clientId>/stateChange.
type MQTTSink struct {
	client MessagePublisher
	topic  string
}

// NewMQTTSink creates a sink publishing on topic.
func NewMQTTSink(client MessagePublisher, topic string) *MQTTSink {
	return &MQTTSink{client: client, topic: topic}
}

// Name implements Sink.
func (s *MQTTSink) Name() string { return "mqtt" }

// Deliver implements Sink.
func (s *MQTTSink) Deliver(_ context.Context, report ChangeReport) error {
	payload, err := json.Marshal(report.Response)
	if err != nil {
		return fmt.Errorf("marshalling change report: %w", err)
	}
	return s.client.PublishDefault(s.topic, payload)
}

// Broadcaster fans a message out to live clients, filtered by endpoint.
// The API stream hub satisfies it.
type Broadcaster interface {
	Broadcast(channel, endpointID string, payload any)
}

// BroadcastChannel is the WebSocket channel change reports are sent on.
const BroadcastChannel = "change_report"

// BroadcastSink forwards change reports to a Broadcaster.
type BroadcastSink struct {
	hub Broadcaster
}

// NewBroadcastSink creates a sink for hub.
func NewBroadcastSink(hub Broadcaster) *BroadcastSink {
	return &BroadcastSink{hub: hub}
}

// Name implements Sink.
func (s *BroadcastSink) Name() string { return "websocket" }

// Deliver implements Sink.
func (s *BroadcastSink) Deliver(_ context.Context, report ChangeReport) error {
	s.hub.Broadcast(BroadcastChannel, report.EndpointID, report.Response)
	return nil
}

// HistorySink records change reports in a ReportStore.
type HistorySink struct {
	store ReportStore
}

// NewHistorySink creates a sink for store.
func NewHistorySink(store ReportStore) *HistorySink {
	return &HistorySink{store: store}
}

// Name implements Sink.
func (s *HistorySink) Name() string { return "history" }

// Deliver implements Sink.
func (s *HistorySink) Deliver(ctx context.Context, report ChangeReport) error {
	return s.store.Record(ctx, report)
}

// Metrics records directive and change report statistics.
// *influxdb.Client satisfies it.
type Metrics interface {
	WriteDirective(namespace, name, endpointID, outcome string, latency time.Duration)
	WriteChangeReport(endpointID, cause string, properties int, at time.Time)
	WriteRateLimitDrop(endpointID string)
}

// MetricsSink writes one point per change report.
type MetricsSink struct {
	metrics Metrics
}

// NewMetricsSink creates a sink for metrics.
func NewMetricsSink(metrics Metrics) *MetricsSink {
	return &MetricsSink{metrics: metrics}
}

// Name implements Sink.
func (s *MetricsSink) Name() string { return "metrics" }

// Deliver implements Sink.
func (s *MetricsSink) Deliver(_ context.Context, report ChangeReport) error {
	s.metrics.WriteChangeReport(report.EndpointID, string(report.Cause), report.Changed, report.At)
	return nil
}
