package control

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-voicebridge/internal/alexa"
	"github.com/nerrad567/gray-logic-voicebridge/internal/capability"
	"github.com/nerrad567/gray-logic-voicebridge/internal/homegraph"
)

// mockStore is an in-memory capability.StateStore.
type mockStore struct {
	mu     sync.Mutex
	values map[string]any
	writes map[string]any
}

func newMockStore() *mockStore {
	return &mockStore{values: make(map[string]any), writes: make(map[string]any)}
}

func (m *mockStore) GetState(_ context.Context, id string) (homegraph.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[id]
	if !ok {
		return homegraph.State{}, homegraph.ErrStateNotFound
	}
	return homegraph.State{Value: v, Ack: true}, nil
}

func (m *mockStore) SetState(_ context.Context, id string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes[id] = value
	m.values[id] = value
	return nil
}

func float(v float64) *float64 { return &v }

func dimmer(prefix, onValue string) Control {
	return Control{
		Type:     TypeDimmer,
		ObjectID: prefix,
		States: []State{
			{Name: RoleSet, ID: prefix + ".LEVEL", Write: true, OnValue: onValue},
			{Name: RoleActual, ID: prefix + ".LEVEL_ACT", Read: true},
		},
	}
}

func light(prefix string) Control {
	return Control{
		Type:     TypeLight,
		ObjectID: prefix,
		States:   []State{{Name: RoleSet, ID: prefix + ".STATE", Read: true, Write: true}},
	}
}

func do(t *testing.T, c *capability.Capability, store capability.StateStore, namespace, name, payload string) alexa.Property {
	t.Helper()
	d := alexa.Directive{Header: alexa.Header{Namespace: namespace, Name: name}}
	if payload != "" {
		d.Payload = json.RawMessage(payload)
	}
	prop, err := c.Handle(context.Background(), store, d)
	if err != nil {
		t.Fatalf("Handle(%s) error = %v", name, err)
	}
	return prop
}

func find(t *testing.T, r Result, kind capability.Kind) *capability.Capability {
	t.Helper()
	for _, c := range r.Capabilities {
		if c.Kind == kind {
			return c
		}
	}
	t.Fatalf("no %s capability in %d capabilities", kind, len(r.Capabilities))
	return nil
}

// =============================================================================
// Per-Type Tests
// =============================================================================

func TestCapabilities_PerType(t *testing.T) {
	tests := []struct {
		name      string
		control   Control
		wantKinds []capability.Kind
		wantErr   error
	}{
		{"light", light("l"), []capability.Kind{capability.KindPower}, nil},
		{"socket", Control{Type: TypeSocket, States: []State{{Name: RoleSet, ID: "s"}}}, []capability.Kind{capability.KindPower}, nil},
		{"dimmer", dimmer("d", ""), []capability.Kind{capability.KindPower, capability.KindBrightness}, nil},
		{"blind", Control{Type: TypeBlind, States: []State{{Name: RoleSet, ID: "b", Write: true}}}, []capability.Kind{capability.KindPercentage}, nil},
		{"volume group", Control{Type: TypeVolumeGroup, States: []State{{Name: RoleSet, ID: "v"}}}, []capability.Kind{capability.KindSpeaker}, nil},
		{"gate", Control{Type: TypeGate, States: []State{{Name: RoleSet, ID: "g"}}}, []capability.Kind{capability.KindMode}, nil},
		{"lock", Control{Type: TypeLock, States: []State{{Name: RoleSet, ID: "k"}}}, []capability.Kind{capability.KindLock}, nil},
		{"temperature", Control{Type: TypeTemperature, States: []State{{Name: RoleActual, ID: "t", Read: true}}}, []capability.Kind{capability.KindTemperature}, nil},
		{"light without SET", Control{Type: TypeLight, States: []State{{Name: RoleActual, ID: "a"}}}, nil, ErrMissingPoint},
		{"read-only SET", Control{Type: TypeBlind, States: []State{{Name: RoleSet, ID: "b", Read: true}}}, nil, ErrMissingPoint},
		{"empty id", Control{Type: TypeLight, States: []State{{Name: RoleSet}}}, nil, ErrMissingPoint},
		{"temperature without ACTUAL", Control{Type: TypeTemperature, States: []State{{Name: RoleSet, ID: "t"}}}, nil, ErrMissingPoint},
		{"unknown type", Control{Type: "thermostat", States: []State{{Name: RoleSet, ID: "x"}}}, nil, ErrUnknownType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps, err := Capabilities(tt.control)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Capabilities() error = %v, want %v", err, tt.wantErr)
			}
			if len(caps) != len(tt.wantKinds) {
				t.Fatalf("got %d capabilities, want %d", len(caps), len(tt.wantKinds))
			}
			for i, k := range tt.wantKinds {
				if caps[i].Kind != k {
					t.Errorf("capability %d kind = %s, want %s", i, caps[i].Kind, k)
				}
			}
		})
	}
}

// =============================================================================
// Dimmer Rule Tests
// =============================================================================

func TestDimmer_OnValueHint(t *testing.T) {
	store := newMockStore()
	r := Aggregate([]Control{dimmer("d", "80")}, nil)
	power := find(t, r, capability.KindPower)

	do(t, power, store, alexa.NamespacePowerController, alexa.NameTurnOn, "")
	if store.writes["d.LEVEL"] != 80.0 {
		t.Errorf("TurnOn wrote %v, want 80", store.writes["d.LEVEL"])
	}

	do(t, power, store, alexa.NamespacePowerController, alexa.NameTurnOff, "")
	if store.writes["d.LEVEL"] != 0.0 {
		t.Errorf("TurnOff wrote %v, want 0", store.writes["d.LEVEL"])
	}
}

func TestDimmer_DefaultOnValue(t *testing.T) {
	store := newMockStore()
	c := dimmer("d", "")
	c.States[0].Min, c.States[0].Max = float(0), float(255)
	power := find(t, Aggregate([]Control{c}, nil), capability.KindPower)

	do(t, power, store, alexa.NamespacePowerController, alexa.NameTurnOn, "")
	if store.writes["d.LEVEL"] != 255.0 {
		t.Errorf("TurnOn wrote %v, want max 255", store.writes["d.LEVEL"])
	}
}

func TestDimmer_Remember(t *testing.T) {
	store := newMockStore()
	r := Aggregate([]Control{dimmer("d", RememberOnValue)}, nil)
	power := find(t, r, capability.KindPower)
	brightness := find(t, r, capability.KindBrightness)

	do(t, brightness, store, alexa.NamespaceBrightness, alexa.NameSetBrightness, `{"brightness":35}`)
	do(t, power, store, alexa.NamespacePowerController, alexa.NameTurnOff, "")
	do(t, power, store, alexa.NamespacePowerController, alexa.NameTurnOn, "")

	if store.writes["d.LEVEL"] != 35.0 {
		t.Errorf("TurnOn after remember wrote %v, want 35", store.writes["d.LEVEL"])
	}
}

func TestDimmer_RememberFromObservedState(t *testing.T) {
	store := newMockStore()
	r := Aggregate([]Control{dimmer("d", RememberOnValue)}, nil)
	power := find(t, r, capability.KindPower)
	brightness := find(t, r, capability.KindBrightness)

	brightness.Observe("d.LEVEL_ACT", 60.0)
	brightness.Observe("d.LEVEL_ACT", 0.0)

	do(t, power, store, alexa.NamespacePowerController, alexa.NameTurnOn, "")
	if store.writes["d.LEVEL"] != 60.0 {
		t.Errorf("TurnOn wrote %v, want last non-zero 60", store.writes["d.LEVEL"])
	}
}

func TestDimmer_PowerReadFromBrightness(t *testing.T) {
	store := newMockStore()
	power := find(t, Aggregate([]Control{dimmer("d", "")}, nil), capability.KindPower)

	for native, want := range map[float64]string{0: capability.OFF, 1: capability.ON, 100: capability.ON} {
		store.values["d.LEVEL_ACT"] = native
		props, err := power.ReadProperties(context.Background(), store, false)
		if err != nil {
			t.Fatalf("ReadProperties() error = %v", err)
		}
		if props[0].Value != want {
			t.Errorf("level %v reads %v, want %s", native, props[0].Value, want)
		}
	}
}

func TestDimmer_DedicatedSwitch(t *testing.T) {
	store := newMockStore()
	c := dimmer("d", "80")
	c.States = append(c.States, State{Name: RoleOnSet, ID: "d.ON", Write: true})
	power := find(t, Aggregate([]Control{c}, nil), capability.KindPower)

	do(t, power, store, alexa.NamespacePowerController, alexa.NameTurnOn, "")
	if store.writes["d.ON"] != true {
		t.Errorf("d.ON = %v, want true", store.writes["d.ON"])
	}
	if _, ok := store.writes["d.LEVEL"]; ok {
		t.Error("dedicated switch must not write the level")
	}
}

func TestDimmer_BrightnessNativeRange(t *testing.T) {
	store := newMockStore()
	c := dimmer("d", "")
	c.States[0].Min, c.States[0].Max = float(500), float(1000)
	brightness := find(t, Aggregate([]Control{c}, nil), capability.KindBrightness)

	prop := do(t, brightness, store, alexa.NamespaceBrightness, alexa.NameSetBrightness, `{"brightness":75}`)
	if store.writes["d.LEVEL"] != 875.0 {
		t.Errorf("native = %v, want 875", store.writes["d.LEVEL"])
	}
	if prop.Namespace != alexa.NamespaceBrightness || prop.Name != "brightness" || prop.Value != 75 {
		t.Errorf("property = %+v", prop)
	}
}

// =============================================================================
// Other Type Tests
// =============================================================================

func TestLock_NativeMapping(t *testing.T) {
	store := newMockStore()
	lock := find(t, Aggregate([]Control{{Type: TypeLock, States: []State{{Name: RoleSet, ID: "k"}}}}, nil), capability.KindLock)

	do(t, lock, store, alexa.NamespaceLockController, alexa.NameUnlock, "")
	if store.writes["k"] != true {
		t.Errorf("Unlock wrote %v, want true", store.writes["k"])
	}
	prop := do(t, lock, store, alexa.NamespaceLockController, alexa.NameLock, "")
	if store.writes["k"] != false || prop.Value != capability.LOCKED {
		t.Errorf("Lock wrote %v reported %v", store.writes["k"], prop.Value)
	}
}

func TestTemperature_Scale(t *testing.T) {
	store := newMockStore()
	store.values["t"] = 71.26
	c := Control{Type: TypeTemperature, States: []State{{Name: RoleActual, ID: "t", Read: true, Unit: "°F"}}}
	temp := find(t, Aggregate([]Control{c}, nil), capability.KindTemperature)

	props, err := temp.ReadProperties(context.Background(), store, false)
	if err != nil {
		t.Fatalf("ReadProperties() error = %v", err)
	}
	want := alexa.Temperature{Value: 71.3, Scale: "FAHRENHEIT"}
	if props[0].Value != want {
		t.Errorf("temperature = %+v, want %+v", props[0].Value, want)
	}
}

func TestVolumeGroup_Mute(t *testing.T) {
	c := Control{Type: TypeVolumeGroup, States: []State{
		{Name: RoleSet, ID: "v.LEVEL"},
		{Name: RoleMute, ID: "v.MUTE"},
	}}
	speaker := find(t, Aggregate([]Control{c}, nil), capability.KindSpeaker)

	if len(speaker.Proxies) != 2 {
		t.Fatalf("speaker proxies = %d, want 2", len(speaker.Proxies))
	}
	store := newMockStore()
	do(t, speaker, store, alexa.NamespaceSpeaker, alexa.NameSetMute, `{"mute":true}`)
	if store.writes["v.MUTE"] != true {
		t.Errorf("v.MUTE = %v", store.writes["v.MUTE"])
	}
}

// =============================================================================
// Merge Tests
// =============================================================================

func TestAggregate_MergesByNamespace(t *testing.T) {
	r := Aggregate([]Control{dimmer("d", ""), light("l")}, nil)

	counts := make(map[string]int)
	for _, c := range r.Capabilities {
		counts[c.Namespace()]++
	}
	if counts[alexa.NamespacePowerController] != 1 || counts[alexa.NamespaceBrightness] != 1 || len(r.Capabilities) != 2 {
		t.Fatalf("capabilities by namespace = %v", counts)
	}

	power := find(t, r, capability.KindPower)
	if len(power.Proxies) != 2 {
		t.Errorf("power proxies = %d, want 2 (dimmer + light)", len(power.Proxies))
	}
	if len(r.Categories) != 1 || r.Categories[0] != alexa.CategoryLight {
		t.Errorf("categories = %v, want [LIGHT]", r.Categories)
	}
}

func TestAggregate_MergedPowerFansOut(t *testing.T) {
	store := newMockStore()
	power := find(t, Aggregate([]Control{dimmer("d", ""), light("l")}, nil), capability.KindPower)

	do(t, power, store, alexa.NamespacePowerController, alexa.NameTurnOn, "")
	if store.writes["d.LEVEL"] != 100.0 || store.writes["l.STATE"] != true {
		t.Errorf("writes = %v", store.writes)
	}
}

func TestAggregate_SkipsAreNotErrors(t *testing.T) {
	r := Aggregate([]Control{
		{Type: TypeLight},
		light("l"),
		{Type: "unknown"},
	}, nil)

	if r.Skipped != 2 || len(r.Capabilities) != 1 {
		t.Errorf("skipped = %d capabilities = %d", r.Skipped, len(r.Capabilities))
	}
	if r.Empty() {
		t.Error("Empty() = true")
	}
	if !Aggregate(nil, nil).Empty() {
		t.Error("Aggregate(nil).Empty() = false")
	}
}

func TestAggregate_PassesAreIndependent(t *testing.T) {
	controls := []Control{light("a"), light("b")}
	first := Aggregate(controls, nil)
	second := Aggregate(controls, nil)

	if first.Capabilities[0] == second.Capabilities[0] {
		t.Error("passes share capability instances")
	}
	if len(second.Capabilities[0].Proxies) != 2 {
		t.Errorf("second pass proxies = %d, want 2", len(second.Capabilities[0].Proxies))
	}
}

func TestAggregate_Toggle(t *testing.T) {
	c := light("l")
	c.Toggle = true
	if !Aggregate([]Control{c}, nil).Toggle {
		t.Error("Toggle not propagated")
	}
}

func TestCategory(t *testing.T) {
	if Category(TypeGate) != alexa.CategoryGarageDoor {
		t.Errorf("Category(gate) = %s", Category(TypeGate))
	}
	if Category("fan") != alexa.CategoryOther {
		t.Errorf("Category(fan) = %s", Category("fan"))
	}
}
