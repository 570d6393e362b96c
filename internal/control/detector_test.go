package control

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleControls = `
controls:
  - type: dimmer
    object: hm-rpc.0.ABC.1
    room:
      id: enum.rooms.kitchen
      name: {en: Kitchen, de: Küche}
    function:
      id: enum.functions.light
      name: Light
    states:
      - {name: SET, id: hm-rpc.0.ABC.1.LEVEL, write: true, min: 0, max: 255, on_value: remember}
      - {name: ACTUAL, id: hm-rpc.0.ABC.1.LEVEL_ACT, read: true}
  - type: gate
    object: zigbee.0.gate
    smart_name: Garage
    toggle: true
    states:
      - {name: SET, id: zigbee.0.gate.open, read: true, write: true}
`

func TestParseControls(t *testing.T) {
	controls, err := ParseControls([]byte(sampleControls))
	if err != nil {
		t.Fatalf("ParseControls() error = %v", err)
	}
	if len(controls) != 2 {
		t.Fatalf("controls = %d, want 2", len(controls))
	}

	d := controls[0]
	if d.Type != TypeDimmer || d.Room == nil || d.Room.Name.Resolve("de") != "Küche" {
		t.Errorf("dimmer = %+v", d)
	}
	if d.Function.Name.Resolve("de") != "Light" {
		t.Errorf("scalar name should resolve for any language, got %q", d.Function.Name.Resolve("de"))
	}
	set, ok := d.Point(RoleSet)
	if !ok || set.OnValue != RememberOnValue {
		t.Errorf("SET point = %+v", set)
	}
	if min, max := set.Range(); min != 0 || max != 255 {
		t.Errorf("Range() = %v, %v", min, max)
	}

	g := controls[1]
	if g.SmartName != "Garage" || !g.Toggle || g.Room != nil {
		t.Errorf("gate = %+v", g)
	}
}

func TestParseControls_Errors(t *testing.T) {
	if _, err := ParseControls([]byte("controls: []")); !errors.Is(err, ErrNoControls) {
		t.Errorf("empty list error = %v, want ErrNoControls", err)
	}
	if _, err := ParseControls([]byte("controls: [")); err == nil {
		t.Error("malformed YAML should fail")
	}
}

func TestFileDetector(t *testing.T) {
	path := filepath.Join(t.TempDir(), "controls.yaml")
	if err := os.WriteFile(path, []byte(sampleControls), 0o600); err != nil {
		t.Fatalf("writing controls: %v", err)
	}

	controls, err := NewFileDetector(path).DetectControls(context.Background())
	if err != nil {
		t.Fatalf("DetectControls() error = %v", err)
	}
	if len(controls) != 2 {
		t.Errorf("controls = %d, want 2", len(controls))
	}

	if _, err := NewFileDetector(filepath.Join(t.TempDir(), "missing.yaml")).DetectControls(context.Background()); err == nil {
		t.Error("missing file should fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewFileDetector(path).DetectControls(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context error = %v", err)
	}
}

func TestText_Resolve(t *testing.T) {
	tests := []struct {
		name string
		text Text
		lang string
		want string
	}{
		{"exact", Text{"en": "Kitchen", "de": "Küche"}, "de", "Küche"},
		{"english fallback", Text{"en": "Kitchen", "de": "Küche"}, "fr", "Kitchen"},
		{"any fallback", Text{"fr": "Cuisine", "de": "Küche"}, "it", "Küche"},
		{"empty", Text{}, "en", ""},
		{"nil", nil, "en", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.text.Resolve(tt.lang); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.lang, got, tt.want)
			}
		})
	}
}

func TestStaticDetector(t *testing.T) {
	s := StaticDetector{light("a")}
	got, err := s.DetectControls(context.Background())
	if err != nil || len(got) != 1 {
		t.Fatalf("DetectControls() = %v, %v", got, err)
	}
	got[0].ObjectID = "changed"
	if s[0].ObjectID != "a" {
		t.Error("StaticDetector leaked its backing slice")
	}
}
