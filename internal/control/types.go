package control

import "gopkg.in/yaml.v3"

// Type is a detected control type.
type Type string

// Control types.
const (
	TypeLight       Type = "light"
	TypeDimmer      Type = "dimmer"
	TypeBlind       Type = "blind"
	TypeGate        Type = "gate"
	TypeVolumeGroup Type = "volume-group"
	TypeSocket      Type = "socket"
	TypeLock        Type = "lock"
	TypeTemperature Type = "temperature"
)

// Role names a point within a control.
type Role string

// Point roles.
const (
	RoleSet      Role = "SET"
	RoleActual   Role = "ACTUAL"
	RoleOnSet    Role = "ON_SET"
	RoleOnActual Role = "ON_ACTUAL"
	RoleMute     Role = "MUTE"
)

// RememberOnValue is the on-value hint that restores the last level.
const RememberOnValue = "remember"

// Control is one detected physical function.
type Control struct {
	Type      Type    `yaml:"type" json:"type"`
	States    []State `yaml:"states" json:"states"`
	Room      *Ref    `yaml:"room,omitempty" json:"room,omitempty"`
	Function  *Ref    `yaml:"function,omitempty" json:"function,omitempty"`
	ObjectID  string  `yaml:"object" json:"object"`
	SmartName string  `yaml:"smart_name,omitempty" json:"smart_name,omitempty"`

	// Toggle makes TurnOn/TurnOff invert the current power state.
	Toggle bool `yaml:"toggle,omitempty" json:"toggle,omitempty"`
}

// State is one point of a control.
//
// Read and Write flag the access the graph allows. A point with neither flag
// set is treated as read-write.
type State struct {
	Name    Role     `yaml:"name" json:"name"`
	ID      string   `yaml:"id" json:"id"`
	Read    bool     `yaml:"read" json:"read"`
	Write   bool     `yaml:"write" json:"write"`
	Min     *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max     *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	OnValue string   `yaml:"on_value,omitempty" json:"on_value,omitempty"`
	Unit    string   `yaml:"unit,omitempty" json:"unit,omitempty"`
}

// Ref points at a room or function enum.
type Ref struct {
	ID   string `yaml:"id" json:"id"`
	Name Text   `yaml:"name" json:"name"`
}

// Point returns the state with role, if present and bound to an id.
func (c Control) Point(role Role) (State, bool) {
	for _, s := range c.States {
		if s.Name == role && s.ID != "" {
			return s, true
		}
	}
	return State{}, false
}

// Writable reports whether directives may write the point.
func (s State) Writable() bool {
	return s.Write || !s.Read
}

// Readable reports whether the point may be read for state reports.
func (s State) Readable() bool {
	return s.Read || !s.Write
}

// Range returns the declared native range of s, defaulting to [0, 100].
func (s State) Range() (float64, float64) {
	min, max := 0.0, 100.0
	if s.Min != nil {
		min = *s.Min
	}
	if s.Max != nil {
		max = *s.Max
	}
	return min, max
}

// Text is a possibly localized name: a plain string or a map of language to
// text.
type Text map[string]string

// defaultLanguage is the fallback when a text has no entry for a language.
const defaultLanguage = "en"

// UnmarshalYAML accepts both a scalar and a mapping.
func (t *Text) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*t = Text{defaultLanguage: node.Value}
		return nil
	}
	var m map[string]string
	if err := node.Decode(&m); err != nil {
		return err
	}
	*t = m
	return nil
}

// Resolve returns the text for lang, then English, then any entry.
func (t Text) Resolve(lang string) string {
	if v, ok := t[lang]; ok && v != "" {
		return v
	}
	if v, ok := t[defaultLanguage]; ok && v != "" {
		return v
	}
	// Deterministic pick among the remaining languages.
	var best string
	first := true
	for k, v := range t {
		if v == "" {
			continue
		}
		if first || k < best {
			best = k
			first = false
		}
	}
	if first {
		return ""
	}
	return t[best]
}
