package control

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/nerrad567/gray-logic-voicebridge/internal/alexa"
	"github.com/nerrad567/gray-logic-voicebridge/internal/capability"
)

// Aggregation skip reasons. They are logged, never returned to callers of
// Aggregate.
var (
	ErrMissingPoint = errors.New("control: required point missing")
	ErrUnknownType  = errors.New("control: unknown control type")
)

// Logger defines the logging interface used during aggregation.
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

// gateAsset is the catalog name of the gate mode capability.
const gateAsset = "Alexa.Setting.Opening"

// categories maps control types to display categories.
var categories = map[Type]string{
	TypeLight:       alexa.CategoryLight,
	TypeDimmer:      alexa.CategoryLight,
	TypeBlind:       alexa.CategoryExteriorBlind,
	TypeGate:        alexa.CategoryGarageDoor,
	TypeVolumeGroup: alexa.CategorySpeaker,
	TypeSocket:      alexa.CategorySmartPlug,
	TypeLock:        alexa.CategorySmartLock,
	TypeTemperature: alexa.CategoryTemperatureSensor,
}

// builders maps control types to capability factories.
var builders = map[Type]func(Control) ([]*capability.Capability, error){
	TypeLight:       buildSwitch,
	TypeSocket:      buildSwitch,
	TypeDimmer:      buildDimmer,
	TypeBlind:       buildBlind,
	TypeVolumeGroup: buildVolumeGroup,
	TypeGate:        buildGate,
	TypeLock:        buildLock,
	TypeTemperature: buildTemperature,
}

// Result is the outcome of one aggregation pass.
type Result struct {
	Capabilities []*capability.Capability
	Categories   []string
	Toggle       bool
	Skipped      int
}

// Empty reports whether no capability was produced.
func (r Result) Empty() bool {
	return len(r.Capabilities) == 0
}

// Accumulator collects capabilities over one aggregation pass.
// It is not safe for concurrent use and must not be reused across passes.
type Accumulator struct {
	caps       []*capability.Capability
	byKey      map[string]*capability.Capability
	categories []string
	seenCat    map[string]struct{}
	toggle     bool
	skipped    int
	logger     Logger
}

// NewAccumulator starts an aggregation pass.
func NewAccumulator(logger Logger) *Accumulator {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Accumulator{
		byKey:   make(map[string]*capability.Capability),
		seenCat: make(map[string]struct{}),
		logger:  logger,
	}
}

// Add folds c into the pass. It reports whether c contributed anything.
func (a *Accumulator) Add(c Control) bool {
	caps, err := Capabilities(c)
	if err != nil {
		a.skipped++
		a.logger.Debug("control skipped", "object", c.ObjectID, "type", c.Type, "reason", err)
		return false
	}

	for _, cp := range caps {
		if existing, ok := a.byKey[cp.Key()]; ok {
			existing.Merge(cp)
			continue
		}
		a.byKey[cp.Key()] = cp
		a.caps = append(a.caps, cp)
	}

	if cat, ok := categories[c.Type]; ok {
		if _, seen := a.seenCat[cat]; !seen {
			a.seenCat[cat] = struct{}{}
			a.categories = append(a.categories, cat)
		}
	}
	a.toggle = a.toggle || c.Toggle
	return true
}

// Result returns the capabilities collected so far.
func (a *Accumulator) Result() Result {
	return Result{
		Capabilities: a.caps,
		Categories:   a.categories,
		Toggle:       a.toggle,
		Skipped:      a.skipped,
	}
}

// Aggregate folds controls into one set of capabilities.
func Aggregate(controls []Control, logger Logger) Result {
	acc := NewAccumulator(logger)
	for _, c := range controls {
		acc.Add(c)
	}
	return acc.Result()
}

// Capabilities builds the capabilities of a single control.
//
// Returns:
//   - []*capability.Capability: Fresh capabilities, never shared
//   - error: ErrUnknownType or ErrMissingPoint when the control is skipped
func Capabilities(c Control) ([]*capability.Capability, error) {
	build, ok := builders[c.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, c.Type)
	}
	return build(c)
}

// Category returns the display category of a control type.
func Category(t Type) string {
	if cat, ok := categories[t]; ok {
		return cat
	}
	return alexa.CategoryOther
}

// =============================================================================
// Builders
// =============================================================================

// writePoint returns the writable point with role or ErrMissingPoint.
func writePoint(c Control, role Role) (State, error) {
	p, ok := c.Point(role)
	if !ok || !p.Writable() {
		return State{}, fmt.Errorf("%w: %s", ErrMissingPoint, role)
	}
	return p, nil
}

// readID returns the readable point with role, or fallback.
func readID(c Control, role Role, fallback string) string {
	if p, ok := c.Point(role); ok && p.Readable() {
		return p.ID
	}
	return fallback
}

func buildSwitch(c Control) ([]*capability.Capability, error) {
	set, err := writePoint(c, RoleSet)
	if err != nil {
		return nil, err
	}
	return []*capability.Capability{
		capability.New(capability.KindPower, powerProxy(set.ID, readID(c, RoleOnActual, readID(c, RoleActual, set.ID)))),
	}, nil
}

func buildDimmer(c Control) ([]*capability.Capability, error) {
	level, err := writePoint(c, RoleSet)
	if err != nil {
		return nil, err
	}
	actualID := readID(c, RoleActual, level.ID)
	min, max := level.Range()

	brightness := percentProxy(level.ID, actualID, min, max)

	var power *capability.StateProxy
	if onSet, err := writePoint(c, RoleOnSet); err == nil {
		power = powerProxy(onSet.ID, readID(c, RoleOnActual, onSet.ID))
	} else {
		mem := &levelMemory{min: min}
		power = dimmerPowerProxy(level, actualID, mem)
		brightness.OnObserve = mem.observe
	}

	return []*capability.Capability{
		capability.New(capability.KindPower, power),
		capability.New(capability.KindBrightness, brightness),
	}, nil
}

func buildBlind(c Control) ([]*capability.Capability, error) {
	set, err := writePoint(c, RoleSet)
	if err != nil {
		return nil, err
	}
	min, max := set.Range()
	return []*capability.Capability{
		capability.New(capability.KindPercentage, percentProxy(set.ID, readID(c, RoleActual, set.ID), min, max)),
	}, nil
}

func buildVolumeGroup(c Control) ([]*capability.Capability, error) {
	set, err := writePoint(c, RoleSet)
	if err != nil {
		return nil, err
	}
	min, max := set.Range()

	volume := percentProxy(set.ID, readID(c, RoleActual, set.ID), min, max)
	volume.Property = capability.PropertyVolume
	proxies := []*capability.StateProxy{volume}

	if mute, err := writePoint(c, RoleMute); err == nil {
		muted := capability.NewStateProxy(mute.ID, "", boolTransform, boolTransform)
		muted.Property = capability.PropertyMuted
		proxies = append(proxies, muted)
	}

	return []*capability.Capability{capability.New(capability.KindSpeaker, proxies...)}, nil
}

func buildGate(c Control) ([]*capability.Capability, error) {
	set, err := writePoint(c, RoleSet)
	if err != nil {
		return nil, err
	}
	modes := capability.GateModes()
	proxy := capability.NewStateProxy(set.ID, readID(c, RoleActual, set.ID),
		capability.ModeSetter(modes), capability.ModeGetter(modes))

	return []*capability.Capability{
		capability.NewMode(capability.InstanceGatePosition, gateAsset, modes, proxy),
	}, nil
}

func buildLock(c Control) ([]*capability.Capability, error) {
	set, err := writePoint(c, RoleSet)
	if err != nil {
		return nil, err
	}
	// Native true means unlocked (open).
	proxy := capability.NewStateProxy(set.ID, readID(c, RoleActual, set.ID),
		func(v any) (any, error) {
			switch v {
			case capability.LOCKED:
				return false, nil
			case capability.UNLOCKED:
				return true, nil
			}
			return nil, fmt.Errorf("%w: lock state %v", alexa.ErrInvalidValue, v)
		},
		func(v any) (any, error) {
			if capability.ToBool(v) {
				return capability.UNLOCKED, nil
			}
			return capability.LOCKED, nil
		},
	)
	return []*capability.Capability{capability.New(capability.KindLock, proxy)}, nil
}

func buildTemperature(c Control) ([]*capability.Capability, error) {
	actual, ok := c.Point(RoleActual)
	if !ok || !actual.Readable() {
		return nil, fmt.Errorf("%w: %s", ErrMissingPoint, RoleActual)
	}
	scale := "CELSIUS"
	if actual.Unit == "°F" || actual.Unit == "F" {
		scale = "FAHRENHEIT"
	}
	proxy := capability.NewStateProxy(actual.ID, "", nil, func(v any) (any, error) {
		f, ok := capability.ToFloat(v)
		if !ok {
			return nil, fmt.Errorf("%w: temperature %v", alexa.ErrInvalidValue, v)
		}
		return alexa.Temperature{Value: math.Round(f*10) / 10, Scale: scale}, nil
	})
	return []*capability.Capability{capability.New(capability.KindTemperature, proxy)}, nil
}

// =============================================================================
// Proxies
// =============================================================================

func boolTransform(v any) (any, error) {
	return capability.ToBool(v), nil
}

func powerProxy(setID, getID string) *capability.StateProxy {
	return capability.NewStateProxy(setID, getID,
		func(v any) (any, error) {
			switch v {
			case capability.ON:
				return true, nil
			case capability.OFF:
				return false, nil
			}
			return nil, fmt.Errorf("%w: power state %v", alexa.ErrInvalidValue, v)
		},
		func(v any) (any, error) {
			if capability.ToBool(v) {
				return capability.ON, nil
			}
			return capability.OFF, nil
		},
	)
}

// percentProxy maps protocol percentages onto a native [min, max] range.
// Native values outside the range are clamped when read.
func percentProxy(setID, getID string, min, max float64) *capability.StateProxy {
	return capability.NewStateProxy(setID, getID,
		func(v any) (any, error) {
			pct, ok := capability.ToFloat(v)
			if !ok {
				return nil, fmt.Errorf("%w: percentage %v", alexa.ErrInvalidValue, v)
			}
			native, ok := capability.Denormalize(pct, min, max)
			if !ok {
				return nil, &alexa.RangeError{Value: pct, Min: 0, Max: 100}
			}
			return native, nil
		},
		func(v any) (any, error) {
			f, ok := capability.ToFloat(v)
			if !ok {
				return nil, fmt.Errorf("%w: native level %v", alexa.ErrInvalidValue, v)
			}
			pct, ok := capability.Normalize(math.Min(max, math.Max(min, f)), min, max)
			if !ok {
				return nil, fmt.Errorf("%w: range [%g, %g]", alexa.ErrInvalidValue, min, max)
			}
			return int(math.Round(pct)), nil
		},
	)
}

// levelMemory remembers the last non-zero native level of a dimmer.
type levelMemory struct {
	min   float64
	mu    sync.Mutex
	level float64
	set   bool
}

func (m *levelMemory) observe(native any) {
	f, ok := capability.ToFloat(native)
	if !ok || f <= m.min {
		return
	}
	m.mu.Lock()
	m.level, m.set = f, true
	m.mu.Unlock()
}

func (m *levelMemory) last() (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level, m.set
}

// dimmerPowerProxy switches a dimmer without a dedicated on/off point.
//
// OFF writes the minimum level. ON writes the on-value hint: a percentage
// (default 100) or "remember" for the last non-zero level. The dimmer reads
// as ON while its level is above the minimum.
func dimmerPowerProxy(level State, actualID string, mem *levelMemory) *capability.StateProxy {
	min, max := level.Range()

	onLevel := func() float64 {
		switch level.OnValue {
		case "":
			return max
		case RememberOnValue:
			if last, ok := mem.last(); ok {
				return last
			}
			return max
		}
		pct, ok := capability.ToFloat(level.OnValue)
		if !ok {
			return max
		}
		native, ok := capability.Denormalize(capability.ClampPercentage(pct), min, max)
		if !ok {
			return max
		}
		return native
	}

	p := capability.NewStateProxy(level.ID, actualID,
		func(v any) (any, error) {
			switch v {
			case capability.ON:
				return onLevel(), nil
			case capability.OFF:
				return min, nil
			}
			return nil, fmt.Errorf("%w: power state %v", alexa.ErrInvalidValue, v)
		},
		func(v any) (any, error) {
			f, ok := capability.ToFloat(v)
			if ok && f > min {
				return capability.ON, nil
			}
			return capability.OFF, nil
		},
	)
	p.OnObserve = mem.observe
	return p
}
