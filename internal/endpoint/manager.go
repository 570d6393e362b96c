package endpoint

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nerrad567/gray-logic-voicebridge/internal/alexa"
	"github.com/nerrad567/gray-logic-voicebridge/internal/capability"
	"github.com/nerrad567/gray-logic-voicebridge/internal/control"
	"github.com/nerrad567/gray-logic-voicebridge/internal/homegraph"
)

const (
	// defaultRecollectDelay debounces object changes before re-collection.
	defaultRecollectDelay = 2 * time.Second

	// recollectTimeout bounds a debounced re-collection.
	recollectTimeout = 30 * time.Second
)

// ErrManagerClosed is returned by CollectEndpoints after Close.
var ErrManagerClosed = errors.New("endpoint: manager closed")

// Logger defines the logging interface used by the endpoint package.
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

// Graph is the home-graph surface the manager needs.
// *homegraph.MQTTGraph satisfies it.
type Graph interface {
	capability.StateStore
	SubscribeStates(ids []string)
}

// Reporter accepts change reports for publication without blocking.
// *Publisher satisfies it.
type Reporter interface {
	Enqueue(report ChangeReport) bool
}

// Options configures a Manager.
type Options struct {
	Naming NamingOptions

	// RecollectDelay debounces object changes (default 2s).
	RecollectDelay time.Duration

	// EventsPerSecond and Burst configure the physical report limiter.
	EventsPerSecond float64
	Burst           int
}

// Manager owns the endpoint list and serves directives against it.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - The device list is replaced wholesale; readers never see a partial list.
type Manager struct {
	detector control.Detector
	graph    Graph
	reporter Reporter
	limiter  *RateLimiter
	opts     Options

	mu       sync.RWMutex
	devices  []*Device
	byID     map[string]*Device
	byState  map[string][]*Device
	collects int

	// lastReported holds the last reported value per endpoint and property key.
	reportMu     sync.Mutex
	lastReported map[string]map[string]any

	paused  atomic.Int32
	closed  atomic.Bool
	collect singleflight.Group

	recollectMu    sync.Mutex
	recollectTimer *time.Timer

	metrics Metrics
	logger  Logger
	now     func() time.Time
}

// NewManager creates a manager. Call CollectEndpoints to populate it.
//
// Parameters:
//   - detector: Source of controls for each collection pass
//   - graph: Home-graph reads, writes and subscriptions
//   - reporter: Destination of change reports
//   - opts: Naming, debounce and rate limit settings
//
// Returns:
//   - *Manager: Manager with an empty device list
func NewManager(detector control.Detector, graph Graph, reporter Reporter, opts Options) *Manager {
	if opts.RecollectDelay <= 0 {
		opts.RecollectDelay = defaultRecollectDelay
	}

	m := &Manager{
		detector:     detector,
		graph:        graph,
		reporter:     reporter,
		opts:         opts,
		byID:         make(map[string]*Device),
		byState:      make(map[string][]*Device),
		lastReported: make(map[string]map[string]any),
		logger:       noopLogger{},
		now:          time.Now,
	}
	m.limiter = NewRateLimiter(opts.EventsPerSecond, opts.Burst, m.emit)
	m.limiter.SetOnDrop(m.recordDrop)
	return m
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// SetMetrics sets the metrics destination. nil disables metrics.
func (m *Manager) SetMetrics(metrics Metrics) {
	m.metrics = metrics
}

// Graph returns the home graph the manager reads and writes.
func (m *Manager) Graph() Graph {
	return m.graph
}

// Limiter exposes the change report limiter for inspection.
func (m *Manager) Limiter() *RateLimiter {
	return m.limiter
}

// =============================================================================
// Collection
// =============================================================================

// CollectEndpoints rebuilds the device list from the detector.
//
// Concurrent calls share one pass. Change reports are paused while the pass
// runs. On failure the previous device list stays in place.
func (m *Manager) CollectEndpoints(ctx context.Context) error {
	if m.closed.Load() {
		return ErrManagerClosed
	}
	_, err, _ := m.collect.Do("collect", func() (any, error) {
		return nil, m.collectEndpoints(ctx)
	})
	return err
}

func (m *Manager) collectEndpoints(ctx context.Context) error {
	m.PauseEvents()
	defer m.ResumeEvents()

	start := m.now()
	controls, err := m.detector.DetectControls(ctx)
	if err != nil {
		return fmt.Errorf("detecting controls: %w", err)
	}

	devices := m.buildDevices(controls)
	m.install(devices)

	var ids []string
	for _, d := range devices {
		ids = append(ids, d.ReadIDs()...)
	}
	m.graph.SubscribeStates(ids)

	m.logger.Info("endpoints collected",
		"controls", len(controls),
		"endpoints", len(devices),
		"states", len(ids),
		"duration", m.now().Sub(start),
	)
	return nil
}

// buildDevices turns controls into devices. It touches no shared state.
func (m *Manager) buildDevices(controls []control.Control) []*Device {
	used := make(map[string]struct{})
	var devices []*Device

	for _, p := range partitionControls(controls, m.opts.Naming) {
		agg := control.Aggregate(p.controls, m.logger)
		if agg.Empty() {
			m.logger.Debug("partition produced no capabilities", "name", p.name, "controls", len(p.controls))
			continue
		}

		d := NewDevice(uniqueID(EndpointID(p.name), used), p.name, p.controls, agg)
		d.RoomName = p.roomName
		d.FuncName = p.funcName
		devices = append(devices, d)
	}
	return devices
}

// install swaps in a new device list and its indexes.
func (m *Manager) install(devices []*Device) {
	byID := make(map[string]*Device, len(devices))
	byState := make(map[string][]*Device)
	for _, d := range devices {
		byID[d.ID] = d
		for _, id := range d.ReadIDs() {
			if !containsDevice(byState[id], d) {
				byState[id] = append(byState[id], d)
			}
		}
	}

	m.mu.Lock()
	m.devices = devices
	m.byID = byID
	m.byState = byState
	m.collects++
	m.mu.Unlock()

	m.reportMu.Lock()
	for id := range m.lastReported {
		if _, ok := byID[id]; !ok {
			delete(m.lastReported, id)
		}
	}
	m.reportMu.Unlock()
}

func containsDevice(list []*Device, d *Device) bool {
	for _, existing := range list {
		if existing == d {
			return true
		}
	}
	return false
}

// HandleObjectChange schedules a debounced re-collection after an object in
// the home graph changed.
func (m *Manager) HandleObjectChange(id string) {
	if m.closed.Load() {
		return
	}

	m.recollectMu.Lock()
	defer m.recollectMu.Unlock()

	if m.recollectTimer != nil {
		m.recollectTimer.Stop()
	}
	m.logger.Debug("object changed, re-collection scheduled", "object", id, "delay", m.opts.RecollectDelay)
	m.recollectTimer = time.AfterFunc(m.opts.RecollectDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), recollectTimeout)
		defer cancel()
		if err := m.CollectEndpoints(ctx); err != nil && !errors.Is(err, ErrManagerClosed) {
			m.logger.Error("re-collecting endpoints failed", "error", err)
		}
	})
}

// =============================================================================
// Lookup
// =============================================================================

// Devices returns the current device list.
func (m *Manager) Devices() []*Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Device, len(m.devices))
	copy(out, m.devices)
	return out
}

// EndpointByID returns the device with id.
func (m *Manager) EndpointByID(id string) (*Device, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.byID[id]
	return d, ok
}

// Collected reports whether at least one collection pass completed.
func (m *Manager) Collected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collects > 0
}

// =============================================================================
// Directives
// =============================================================================

// HandleAlexaEvent serves a directive and always returns an envelope.
// Failures, including panics, become ErrorResponse envelopes.
func (m *Manager) HandleAlexaEvent(ctx context.Context, d alexa.Directive) (resp *alexa.Response) {
	start := m.now()
	kind := MatchDirective(d)

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("directive handler panicked", "namespace", d.Header.Namespace, "name", d.Header.Name, "panic", r)
			resp = alexa.NewErrorResponse(d, fmt.Errorf("internal error: %v", r))
		}
		m.recordDirective(d, resp, m.now().Sub(start))
	}()

	switch kind {
	case DirectiveDiscovery:
		return m.handleDiscovery(ctx, d)
	case DirectiveReportState:
		return m.handleReportState(ctx, d)
	case DirectiveControl:
		return m.handleControl(ctx, d)
	default:
		return alexa.NewErrorResponse(d, fmt.Errorf("%w: %s.%s", alexa.ErrInvalidDirective, d.Header.Namespace, d.Header.Name))
	}
}

func (m *Manager) handleDiscovery(ctx context.Context, d alexa.Directive) *alexa.Response {
	if !m.Collected() {
		if err := m.CollectEndpoints(ctx); err != nil {
			m.logger.Warn("collection before discovery failed", "error", err)
		}
	}

	devices := m.Devices()
	endpoints := make([]alexa.DiscoveryEndpoint, 0, len(devices))
	for _, dev := range devices {
		endpoints = append(endpoints, dev.Discovery())
	}
	m.logger.Info("discovery served", "endpoints", len(endpoints))
	return alexa.NewDiscoverResponse(d, endpoints)
}

func (m *Manager) handleReportState(ctx context.Context, d alexa.Directive) *alexa.Response {
	dev, ok := m.EndpointByID(d.EndpointID())
	if !ok {
		return alexa.NewErrorResponse(d, fmt.Errorf("%w: %q", alexa.ErrNoSuchEndpoint, d.EndpointID()))
	}

	props := dev.ReportState(ctx, m.graph, false)
	if len(props) == 0 {
		return alexa.NewErrorResponse(d, fmt.Errorf("%w: no property of %s could be read", alexa.ErrEndpointUnreachable, dev.ID))
	}
	return alexa.NewStateReport(d, props)
}

func (m *Manager) handleControl(ctx context.Context, d alexa.Directive) *alexa.Response {
	dev, ok := m.EndpointByID(d.EndpointID())
	if !ok {
		return alexa.NewErrorResponse(d, fmt.Errorf("%w: %q", alexa.ErrNoSuchEndpoint, d.EndpointID()))
	}

	resp, changed := dev.Handle(ctx, m.graph, d)
	if changed != nil {
		m.reportVoice(dev, *changed)
	}
	return resp
}

// =============================================================================
// Change reports
// =============================================================================

// PauseEvents suspends change reports. Calls nest.
func (m *Manager) PauseEvents() {
	m.paused.Add(1)
}

// ResumeEvents undoes one PauseEvents.
func (m *Manager) ResumeEvents() {
	for {
		n := m.paused.Load()
		if n <= 0 || m.paused.CompareAndSwap(n, n-1) {
			return
		}
	}
}

// EventsPaused reports whether change reports are suspended.
func (m *Manager) EventsPaused() bool {
	return m.paused.Load() > 0
}

// HandleStateUpdate applies a home-graph state change.
//
// Unacknowledged values are ignored. Every device reading id records the
// value; devices whose reportable properties changed since the last report
// get a rate-limited PHYSICAL_INTERACTION change report. The first value
// seen for a property only sets the baseline.
func (m *Manager) HandleStateUpdate(id string, state homegraph.State) {
	if !state.Ack {
		return
	}

	m.mu.RLock()
	devices := m.byState[id]
	m.mu.RUnlock()

	for _, dev := range devices {
		if !dev.Observe(id, state.Value) || m.EventsPaused() {
			continue
		}

		changed, unchanged := m.diff(dev.ID, dev.CachedProperties())
		if len(changed) == 0 {
			continue
		}
		m.logger.Debug("physical change", "endpoint", dev.ID, "state", id, "properties", len(changed))
		m.limiter.Submit(newChangeReport(dev.ID, alexa.CausePhysicalInteraction, changed, unchanged, m.now()))
	}
}

// reportVoice emits an immediate VOICE_INTERACTION report after a directive.
// Sibling properties the write moved (a dimmer's power state after
// SetBrightness) are reported as changed too, and every reported value
// becomes the baseline for the home-graph echo.
func (m *Manager) reportVoice(dev *Device, changed alexa.Property) {
	cached := dev.CachedProperties()

	props := []alexa.Property{changed}
	unchanged := make([]alexa.Property, 0, len(cached))

	m.reportMu.Lock()
	last := m.lastFor(dev.ID)
	for _, p := range cached {
		if p.Key() == changed.Key() {
			continue
		}
		prev, seen := last[p.Key()]
		last[p.Key()] = p.Value
		if seen && !reflect.DeepEqual(prev, p.Value) {
			props = append(props, p)
		} else {
			unchanged = append(unchanged, p)
		}
	}
	last[changed.Key()] = changed.Value
	m.reportMu.Unlock()

	if m.EventsPaused() {
		return
	}
	m.limiter.SubmitNow(newChangeReport(dev.ID, alexa.CauseVoiceInteraction, props, unchanged, m.now()))
}

// diff splits props into changed and unchanged against the last report and
// records the new values.
func (m *Manager) diff(endpointID string, props []alexa.Property) (changed, unchanged []alexa.Property) {
	m.reportMu.Lock()
	defer m.reportMu.Unlock()

	last := m.lastFor(endpointID)
	for _, p := range props {
		prev, seen := last[p.Key()]
		last[p.Key()] = p.Value
		if seen && !reflect.DeepEqual(prev, p.Value) {
			changed = append(changed, p)
		} else {
			unchanged = append(unchanged, p)
		}
	}
	return changed, unchanged
}

// lastFor returns the last reported values of an endpoint. reportMu must be held.
func (m *Manager) lastFor(endpointID string) map[string]any {
	last, ok := m.lastReported[endpointID]
	if !ok {
		last = make(map[string]any)
		m.lastReported[endpointID] = last
	}
	return last
}

// emit hands a report to the reporter. Called with the limiter lock held.
func (m *Manager) emit(report ChangeReport) {
	if m.reporter == nil {
		return
	}
	if !m.reporter.Enqueue(report) {
		m.logger.Warn("change report not enqueued", "endpoint", report.EndpointID, "cause", report.Cause)
	}
}

func (m *Manager) recordDrop(endpointID string) {
	m.logger.Debug("change report superseded", "endpoint", endpointID)
	if m.metrics != nil {
		m.metrics.WriteRateLimitDrop(endpointID)
	}
}

func (m *Manager) recordDirective(d alexa.Directive, resp *alexa.Response, latency time.Duration) {
	outcome := "success"
	if resp != nil && resp.Event.Header.Name == alexa.NameErrorResponse {
		if payload, ok := resp.Event.Payload.(alexa.ErrorPayload); ok {
			outcome = string(payload.Type)
		}
		m.logger.Warn("directive failed",
			"namespace", d.Header.Namespace,
			"name", d.Header.Name,
			"endpoint", d.EndpointID(),
			"outcome", outcome,
		)
	} else {
		m.logger.Debug("directive handled",
			"namespace", d.Header.Namespace,
			"name", d.Header.Name,
			"endpoint", d.EndpointID(),
			"latency", latency,
		)
	}

	if m.metrics != nil {
		m.metrics.WriteDirective(d.Header.Namespace, d.Header.Name, d.EndpointID(), outcome, latency)
	}
}

// Close stops pending re-collections and discards parked reports.
func (m *Manager) Close() {
	if !m.closed.CompareAndSwap(false, true) {
		return
	}

	m.recollectMu.Lock()
	if m.recollectTimer != nil {
		m.recollectTimer.Stop()
		m.recollectTimer = nil
	}
	m.recollectMu.Unlock()

	m.limiter.Close()
}
