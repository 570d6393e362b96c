package endpoint

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-voicebridge/internal/control"
	"github.com/nerrad567/gray-logic-voicebridge/internal/homegraph"
)

// MockGraph is an in-memory Graph.
type MockGraph struct {
	mu         sync.Mutex
	values     map[string]any
	writes     []write
	failSet    map[string]error
	subscribed []string
	panicOnSet bool
}

type write struct {
	id    string
	value any
}

func NewMockGraph() *MockGraph {
	return &MockGraph{values: make(map[string]any), failSet: make(map[string]error)}
}

func (g *MockGraph) GetState(_ context.Context, id string) (homegraph.State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	v, ok := g.values[id]
	if !ok {
		return homegraph.State{}, homegraph.ErrStateNotFound
	}
	return homegraph.State{Value: v, Ack: true}, nil
}

func (g *MockGraph) SetState(_ context.Context, id string, value any) error {
	if g.panicOnSet {
		panic("graph exploded")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failSet[id]; err != nil {
		return err
	}
	g.writes = append(g.writes, write{id: id, value: value})
	g.values[id] = value
	return nil
}

func (g *MockGraph) SubscribeStates(ids []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subscribed = append([]string(nil), ids...)
}

func (g *MockGraph) lastWrite(id string) (any, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.writes) - 1; i >= 0; i-- {
		if g.writes[i].id == id {
			return g.writes[i].value, true
		}
	}
	return nil, false
}

// MockReporter collects enqueued reports.
type MockReporter struct {
	mu      sync.Mutex
	reports []ChangeReport
	full    bool
}

func (r *MockReporter) Enqueue(report ChangeReport) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return false
	}
	r.reports = append(r.reports, report)
	return true
}

func (r *MockReporter) Reports() []ChangeReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ChangeReport(nil), r.reports...)
}

// MockMetrics counts metric writes.
type MockMetrics struct {
	mu         sync.Mutex
	directives []string
	reports    int
	drops      int
}

func (m *MockMetrics) WriteDirective(namespace, name, _, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.directives = append(m.directives, namespace+"."+name+":"+outcome)
}

func (m *MockMetrics) WriteChangeReport(string, string, int, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports++
}

func (m *MockMetrics) WriteRateLimitDrop(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drops++
}

// countingDetector counts calls and can block until released.
type countingDetector struct {
	mu       sync.Mutex
	controls []control.Control
	calls    int
	release  chan struct{}
	err      error
}

func (d *countingDetector) DetectControls(ctx context.Context) ([]control.Control, error) {
	d.mu.Lock()
	d.calls++
	release := d.release
	controls := append([]control.Control(nil), d.controls...)
	err := d.err
	d.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return controls, err
}

func (d *countingDetector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *countingDetector) set(controls []control.Control) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.controls = controls
}

// =============================================================================
// Fixtures
// =============================================================================

func ref(id, name string) *control.Ref {
	return &control.Ref{ID: id, Name: control.Text{"en": name}}
}

func kitchenDimmer(onValue string) control.Control {
	return control.Control{
		Type:     control.TypeDimmer,
		ObjectID: "hm.dimmer",
		Room:     ref("enum.rooms.kitchen", "Kitchen"),
		Function: ref("enum.functions.light", "Light"),
		States: []control.State{
			{Name: control.RoleSet, ID: "hm.dimmer.LEVEL", Write: true, OnValue: onValue},
			{Name: control.RoleActual, ID: "hm.dimmer.LEVEL_ACT", Read: true},
		},
	}
}

func kitchenLight() control.Control {
	return control.Control{
		Type:     control.TypeLight,
		ObjectID: "hm.light",
		Room:     ref("enum.rooms.kitchen", "Kitchen"),
		Function: ref("enum.functions.light", "Light"),
		States:   []control.State{{Name: control.RoleSet, ID: "hm.light.STATE", Read: true, Write: true}},
	}
}

func gardenGate() control.Control {
	return control.Control{
		Type:      control.TypeGate,
		ObjectID:  "zigbee.gate",
		SmartName: "Garden Gate",
		States:    []control.State{{Name: control.RoleSet, ID: "zigbee.gate.open", Read: true, Write: true}},
	}
}
