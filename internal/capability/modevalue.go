package capability

import (
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-voicebridge/internal/alexa"
)

// Gate mode instance and values.
const (
	InstanceGatePosition = "Gate.Position"
	ModeGateOpen         = "Gate.Position.Open"
	ModeGateClosed       = "Gate.Position.Closed"
)

// defaultLocale is used when a mode has no name for the requested locale.
const defaultLocale = "en-US"

// ModeValue is one legal value of a mode capability.
type ModeValue struct {
	// Value is the protocol mode name, e.g. Gate.Position.Open.
	Value string

	// Native is the home-graph value written for this mode.
	Native any

	// Asset is an optional catalog friendly name (Alexa.Value.Open).
	Asset string

	// FriendlyNames maps locale (en-US) to a display text.
	FriendlyNames map[string]string

	// Actions are semantic actions (Alexa.Actions.Open) selecting this mode.
	Actions []string

	// States are semantic states (Alexa.States.Open) this mode represents.
	States []string
}

// GateModes returns the Open/Closed pair used by gate controls.
// Open is native true.
func GateModes() []ModeValue {
	return []ModeValue{
		{
			Value:  ModeGateOpen,
			Native: true,
			Asset:  "Alexa.Value.Open",
			FriendlyNames: map[string]string{
				"en-US": "Open",
				"de-DE": "Offen",
				"fr-FR": "Ouvert",
			},
			Actions: []string{"Alexa.Actions.Open", "Alexa.Actions.Raise"},
			States:  []string{"Alexa.States.Open"},
		},
		{
			Value:  ModeGateClosed,
			Native: false,
			Asset:  "Alexa.Value.Close",
			FriendlyNames: map[string]string{
				"en-US": "Closed",
				"de-DE": "Geschlossen",
				"fr-FR": "Fermé",
			},
			Actions: []string{"Alexa.Actions.Close", "Alexa.Actions.Lower"},
			States:  []string{"Alexa.States.Closed"},
		},
	}
}

// FriendlyName returns the mode's name for locale, falling back to en-US.
func (m ModeValue) FriendlyName(locale string) string {
	if name, ok := m.FriendlyNames[locale]; ok {
		return name
	}
	return m.FriendlyNames[defaultLocale]
}

// matchesNative reports whether native represents this mode.
func (m ModeValue) matchesNative(native any) bool {
	switch want := m.Native.(type) {
	case bool:
		return ToBool(native) == want
	default:
		if wf, ok := ToFloat(want); ok {
			nf, ok := ToFloat(native)
			return ok && nf == wf
		}
		return fmt.Sprint(native) == fmt.Sprint(want)
	}
}

// lookupMode finds a mode by value, ignoring case.
func lookupMode(modes []ModeValue, name string) (ModeValue, bool) {
	for _, m := range modes {
		if strings.EqualFold(m.Value, name) {
			return m, true
		}
	}
	return ModeValue{}, false
}

// ModeSetter maps a mode name to its native value.
func ModeSetter(modes []ModeValue) Transform {
	return func(v any) (any, error) {
		name, _ := v.(string)
		if m, ok := lookupMode(modes, name); ok {
			return m.Native, nil
		}
		return nil, fmt.Errorf("%w: unknown mode %q", alexa.ErrInvalidValue, name)
	}
}

// ModeGetter maps a native value to its mode name.
func ModeGetter(modes []ModeValue) Transform {
	return func(v any) (any, error) {
		for _, m := range modes {
			if m.matchesNative(v) {
				return m.Value, nil
			}
		}
		return nil, fmt.Errorf("%w: no mode for native value %v", alexa.ErrInvalidValue, v)
	}
}

// modeResources renders the friendly names of a mode for discovery.
func (m ModeValue) modeResources(locales []string) *alexa.Resources {
	var names []alexa.FriendlyName
	if m.Asset != "" {
		names = append(names, alexa.AssetName(m.Asset))
	}
	for _, locale := range locales {
		if text, ok := m.FriendlyNames[locale]; ok {
			names = append(names, alexa.TextName(text, locale))
		}
	}
	return &alexa.Resources{FriendlyNames: names}
}

// modeLocales is the fixed locale order used in discovery payloads.
var modeLocales = []string{"en-US", "de-DE", "fr-FR"}

// modeDiscovery renders configuration and semantics for a mode capability.
func modeDiscovery(modes []ModeValue, ordered bool) (*alexa.ModeConfiguration, *alexa.Semantics) {
	cfg := &alexa.ModeConfiguration{Ordered: ordered}
	sem := &alexa.Semantics{}

	for _, m := range modes {
		cfg.SupportedModes = append(cfg.SupportedModes, alexa.SupportedMode{
			Value:         m.Value,
			ModeResources: m.modeResources(modeLocales),
		})
		if len(m.Actions) > 0 {
			sem.ActionMappings = append(sem.ActionMappings, alexa.ActionMapping{
				Type:    "ActionsToDirective",
				Actions: m.Actions,
				Directive: alexa.SemanticDirective{
					Name:    alexa.NameSetMode,
					Payload: map[string]string{"mode": m.Value},
				},
			})
		}
		if len(m.States) > 0 {
			sem.StateMappings = append(sem.StateMappings, alexa.StateMapping{
				Type:   "StatesToValue",
				States: m.States,
				Value:  m.Value,
			})
		}
	}

	if len(sem.ActionMappings) == 0 && len(sem.StateMappings) == 0 {
		sem = nil
	}
	return cfg, sem
}
