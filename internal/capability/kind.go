package capability

import "github.com/nerrad567/gray-logic-voicebridge/internal/alexa"

// Kind identifies the type of a capability.
type Kind int

// Capability kinds.
const (
	KindPower Kind = iota + 1
	KindBrightness
	KindPercentage
	KindSpeaker
	KindMode
	KindLock
	KindTemperature
)

// Property values shared across kinds.
const (
	ON       = "ON"
	OFF      = "OFF"
	LOCKED   = "LOCKED"
	UNLOCKED = "UNLOCKED"
	JAMMED   = "JAMMED"
)

// Protocol property names.
const (
	PropertyPowerState  = "powerState"
	PropertyBrightness  = "brightness"
	PropertyPercentage  = "percentage"
	PropertyVolume      = "volume"
	PropertyMuted       = "muted"
	PropertyMode        = "mode"
	PropertyLockState   = "lockState"
	PropertyTemperature = "temperature"
)

// valueKind describes how a directive payload field is interpreted.
type valueKind int

const (
	valueFixed   valueKind = iota // no payload, value is fixed
	valuePercent                  // number in [0, 100]
	valueDelta                    // number in [-100, 100] added to the current value
	valueBool
	valueString
)

// directiveSpec describes one directive a kind accepts.
type directiveSpec struct {
	property string
	field    string
	value    valueKind
	fixed    any
}

// kindSpec is the static description of a kind.
type kindSpec struct {
	name       string
	namespace  string
	properties []string
	directives map[string]directiveSpec
}

var kinds = map[Kind]kindSpec{
	KindPower: {
		name:       "power",
		namespace:  alexa.NamespacePowerController,
		properties: []string{PropertyPowerState},
		directives: map[string]directiveSpec{
			alexa.NameTurnOn:  {property: PropertyPowerState, value: valueFixed, fixed: ON},
			alexa.NameTurnOff: {property: PropertyPowerState, value: valueFixed, fixed: OFF},
		},
	},
	KindBrightness: {
		name:       "brightness",
		namespace:  alexa.NamespaceBrightness,
		properties: []string{PropertyBrightness},
		directives: map[string]directiveSpec{
			alexa.NameSetBrightness:    {property: PropertyBrightness, field: "brightness", value: valuePercent},
			alexa.NameAdjustBrightness: {property: PropertyBrightness, field: "brightnessDelta", value: valueDelta},
		},
	},
	KindPercentage: {
		name:       "percentage",
		namespace:  alexa.NamespacePercentage,
		properties: []string{PropertyPercentage},
		directives: map[string]directiveSpec{
			alexa.NameSetPercentage:    {property: PropertyPercentage, field: "percentage", value: valuePercent},
			alexa.NameAdjustPercentage: {property: PropertyPercentage, field: "percentageDelta", value: valueDelta},
		},
	},
	KindSpeaker: {
		name:       "speaker",
		namespace:  alexa.NamespaceSpeaker,
		properties: []string{PropertyVolume, PropertyMuted},
		directives: map[string]directiveSpec{
			alexa.NameSetVolume:    {property: PropertyVolume, field: "volume", value: valuePercent},
			alexa.NameAdjustVolume: {property: PropertyVolume, field: "volume", value: valueDelta},
			alexa.NameSetMute:      {property: PropertyMuted, field: "mute", value: valueBool},
		},
	},
	KindMode: {
		name:       "mode",
		namespace:  alexa.NamespaceModeController,
		properties: []string{PropertyMode},
		directives: map[string]directiveSpec{
			alexa.NameSetMode: {property: PropertyMode, field: "mode", value: valueString},
		},
	},
	KindLock: {
		name:       "lock",
		namespace:  alexa.NamespaceLockController,
		properties: []string{PropertyLockState},
		directives: map[string]directiveSpec{
			alexa.NameLock:   {property: PropertyLockState, value: valueFixed, fixed: LOCKED},
			alexa.NameUnlock: {property: PropertyLockState, value: valueFixed, fixed: UNLOCKED},
		},
	},
	KindTemperature: {
		name:       "temperature",
		namespace:  alexa.NamespaceTemperatureSensor,
		properties: []string{PropertyTemperature},
	},
}

// String returns the kind name.
func (k Kind) String() string {
	if spec, ok := kinds[k]; ok {
		return spec.name
	}
	return "unknown"
}

// Namespace returns the protocol interface of the kind.
func (k Kind) Namespace() string {
	return kinds[k].namespace
}

// Valid reports whether k is a registered kind.
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// KindForNamespace returns the kind serving namespace.
func KindForNamespace(namespace string) (Kind, bool) {
	for k, spec := range kinds {
		if spec.namespace == namespace {
			return k, true
		}
	}
	return 0, false
}
