package capability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-voicebridge/internal/alexa"
	"github.com/nerrad567/gray-logic-voicebridge/internal/homegraph"
)

// ErrUnsupportedDirective is returned when a capability does not know a
// directive name of its own namespace.
var ErrUnsupportedDirective = fmt.Errorf("capability: unsupported directive: %w", alexa.ErrNotSupportedInMode)

// StateReader reads home-graph points.
type StateReader interface {
	GetState(ctx context.Context, id string) (homegraph.State, error)
}

// StateWriter writes home-graph points.
type StateWriter interface {
	SetState(ctx context.Context, id string, value any) error
}

// StateStore is read and write access to the home graph.
// *homegraph.MQTTGraph satisfies it.
type StateStore interface {
	StateReader
	StateWriter
}

// DirectiveKind distinguishes absolute from relative directives.
type DirectiveKind int

const (
	DirectiveSet DirectiveKind = iota
	DirectiveAdjust
)

// Capability is one interface exposed on an endpoint.
type Capability struct {
	Kind Kind

	// Instance names a mode capability (Gate.Position). Empty for others.
	Instance string

	// Proxies are written together on a directive and read in order.
	Proxies []*StateProxy

	ProactivelyReported bool
	Retrievable         bool

	// Modes lists the legal values of a mode capability.
	Modes   []ModeValue
	Ordered bool

	// FriendlyAsset names a mode capability in discovery (Alexa.Setting.Opening).
	FriendlyAsset string

	// OnWrite, if set, is called for every point a directive wrote, with the
	// point the writing proxy reads back and the native value written.
	// Handle may call it from several goroutines.
	OnWrite func(readID string, native any)
}

// New creates a reportable, retrievable capability.
func New(kind Kind, proxies ...*StateProxy) *Capability {
	return &Capability{
		Kind:                kind,
		Proxies:             proxies,
		ProactivelyReported: true,
		Retrievable:         true,
	}
}

// NewMode creates a mode capability named instance.
func NewMode(instance, asset string, modes []ModeValue, proxies ...*StateProxy) *Capability {
	c := New(KindMode, proxies...)
	c.Instance = instance
	c.Modes = modes
	c.FriendlyAsset = asset
	return c
}

// Namespace returns the protocol interface of the capability.
func (c *Capability) Namespace() string {
	return c.Kind.Namespace()
}

// Key identifies the capability within an endpoint.
func (c *Capability) Key() string {
	if c.Instance == "" {
		return c.Namespace()
	}
	return c.Namespace() + "#" + c.Instance
}

// Properties returns the supported property names.
func (c *Capability) Properties() []string {
	return kinds[c.Kind].properties
}

// Merge appends the proxies of other, which must have the same Key.
func (c *Capability) Merge(other *Capability) {
	c.Proxies = append(c.Proxies, other.Proxies...)
}

// Matches reports whether the capability handles d.
func (c *Capability) Matches(d alexa.Directive) bool {
	if d.Header.Namespace != c.Namespace() {
		return false
	}
	if c.Instance != "" && d.Header.Instance != c.Instance {
		return false
	}
	_, ok := kinds[c.Kind].directives[d.Header.Name]
	return ok
}

// DirectiveKind reports whether d is an absolute or relative directive.
func (c *Capability) DirectiveKind(d alexa.Directive) DirectiveKind {
	if strings.HasPrefix(d.Header.Name, "Adjust") {
		return DirectiveAdjust
	}
	return DirectiveSet
}

// proxiesFor returns the proxies serving property.
func (c *Capability) proxiesFor(property string) []*StateProxy {
	primary := c.Properties()[0]
	var out []*StateProxy
	for _, p := range c.Proxies {
		name := p.Property
		if name == "" {
			name = primary
		}
		if name == property {
			out = append(out, p)
		}
	}
	return out
}

// Handle executes d and returns the property to report.
//
// The protocol value is written through every proxy of the target property.
// The directive succeeds when at least one write succeeds.
//
// Returns:
//   - alexa.Property: Target property with the new protocol value
//   - error: ErrUnsupportedDirective, alexa.ErrInvalidValue,
//     alexa.ErrValueOutOfRange or alexa.ErrEndpointUnreachable
func (c *Capability) Handle(ctx context.Context, store StateStore, d alexa.Directive) (alexa.Property, error) {
	spec, ok := kinds[c.Kind].directives[d.Header.Name]
	if !ok {
		return alexa.Property{}, fmt.Errorf("%w: %s.%s", ErrUnsupportedDirective, d.Header.Namespace, d.Header.Name)
	}

	proxies := c.proxiesFor(spec.property)
	if len(proxies) == 0 {
		return alexa.Property{}, fmt.Errorf("%w: no state bound to %s", alexa.ErrEndpointUnreachable, spec.property)
	}

	value, err := c.directiveValue(ctx, store, d, spec, proxies)
	if err != nil {
		return alexa.Property{}, err
	}

	errs := make([]error, len(proxies))
	var g errgroup.Group
	for i, p := range proxies {
		g.Go(func() error {
			native, err := p.Write(value)
			if err != nil {
				errs[i] = err
				return nil
			}
			if err := store.SetState(ctx, p.SetID, native); err != nil {
				errs[i] = fmt.Errorf("writing %s: %w", p.SetID, err)
				return nil
			}
			p.Observe(native)
			if c.OnWrite != nil {
				c.OnWrite(p.ReadID(), native)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := writeOutcome(errs); err != nil {
		return alexa.Property{}, err
	}

	return alexa.NewProperty(c.Namespace(), c.Instance, spec.property, value, time.Now()), nil
}

// writeOutcome returns nil if any write succeeded. Value errors take
// precedence over transport errors so the caller sees why it was refused.
func writeOutcome(errs []error) error {
	var failed []error
	for _, err := range errs {
		if err == nil {
			return nil
		}
		failed = append(failed, err)
	}
	for _, err := range failed {
		if errors.Is(err, alexa.ErrInvalidValue) || errors.Is(err, alexa.ErrValueOutOfRange) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", alexa.ErrEndpointUnreachable, errors.Join(failed...))
}

// directiveValue derives the protocol value a directive asks for.
func (c *Capability) directiveValue(ctx context.Context, reader StateReader, d alexa.Directive, spec directiveSpec, proxies []*StateProxy) (any, error) {
	if spec.value == valueFixed {
		return spec.fixed, nil
	}

	var payload map[string]any
	if err := d.DecodePayload(&payload); err != nil {
		return nil, err
	}
	raw, ok := payload[spec.field]
	if !ok {
		return nil, fmt.Errorf("%w: payload field %q missing", alexa.ErrInvalidValue, spec.field)
	}

	switch spec.value {
	case valuePercent:
		v, ok := ToFloat(raw)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a number", alexa.ErrInvalidValue, spec.field)
		}
		if v < 0 || v > 100 {
			return nil, &alexa.RangeError{Value: v, Min: 0, Max: 100}
		}
		return roundPercent(v), nil

	case valueDelta:
		delta, ok := ToFloat(raw)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a number", alexa.ErrInvalidValue, spec.field)
		}
		if delta < -100 || delta > 100 {
			return nil, &alexa.RangeError{Value: delta, Min: -100, Max: 100}
		}
		current, err := currentPercent(ctx, reader, proxies)
		if err != nil {
			return nil, err
		}
		return roundPercent(ClampPercentage(current + delta)), nil

	case valueBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a boolean", alexa.ErrInvalidValue, spec.field)
		}
		return b, nil

	case valueString:
		s, ok := raw.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("%w: %s is not a string", alexa.ErrInvalidValue, spec.field)
		}
		if m, ok := lookupMode(c.Modes, s); ok {
			return m.Value, nil
		}
		return s, nil
	}

	return nil, fmt.Errorf("%w: unhandled payload kind", alexa.ErrInvalidDirective)
}

// currentPercent returns the last known protocol percentage of the first
// proxy with a cached value, reading through reader when nothing is cached.
func currentPercent(ctx context.Context, reader StateReader, proxies []*StateProxy) (float64, error) {
	for _, p := range proxies {
		native, ok := p.Current()
		if !ok {
			continue
		}
		if v, err := p.Read(native); err == nil {
			if f, ok := ToFloat(v); ok {
				return f, nil
			}
		}
	}

	var errs []error
	for _, p := range proxies {
		state, err := reader.GetState(ctx, p.ReadID())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		p.Observe(state.Value)
		v, err := p.Read(state.Value)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if f, ok := ToFloat(v); ok {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: current value unknown: %w", alexa.ErrEndpointUnreachable, errors.Join(errs...))
}

// ReadProperties reads every property of the capability.
//
// Proxies are read concurrently; for each property the first successful
// proxy in order wins. With preferCache set, cached values are used
// without touching the graph.
//
// Returns:
//   - []alexa.Property: Properties that could be read
//   - error: alexa.ErrEndpointUnreachable if none could be read
func (c *Capability) ReadProperties(ctx context.Context, reader StateReader, preferCache bool) ([]alexa.Property, error) {
	var (
		props []alexa.Property
		errs  []error
	)
	for _, name := range c.Properties() {
		prop, err := c.readProperty(ctx, reader, name, preferCache)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		props = append(props, prop)
	}
	if len(props) == 0 {
		return nil, fmt.Errorf("%w: %s: %w", alexa.ErrEndpointUnreachable, c.Key(), errors.Join(errs...))
	}
	return props, nil
}

type readResult struct {
	value any
	at    time.Time
	err   error
}

func (c *Capability) readProperty(ctx context.Context, reader StateReader, name string, preferCache bool) (alexa.Property, error) {
	proxies := c.proxiesFor(name)
	if len(proxies) == 0 {
		return alexa.Property{}, fmt.Errorf("no state bound to %s", name)
	}

	results := make([]readResult, len(proxies))
	var g errgroup.Group
	for i, p := range proxies {
		g.Go(func() error {
			results[i] = readProxy(ctx, reader, p, preferCache)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.err == nil {
			return alexa.NewProperty(c.Namespace(), c.Instance, name, r.value, r.at), nil
		}
		errs = append(errs, r.err)
	}
	return alexa.Property{}, errors.Join(errs...)
}

func readProxy(ctx context.Context, reader StateReader, p *StateProxy, preferCache bool) readResult {
	if preferCache || reader == nil {
		if native, ok := p.Current(); ok {
			v, err := p.Read(native)
			return readResult{value: v, at: time.Now(), err: err}
		}
		if reader == nil {
			return readResult{err: fmt.Errorf("%s: no cached value", p.ReadID())}
		}
	}

	state, err := reader.GetState(ctx, p.ReadID())
	if err != nil {
		return readResult{err: fmt.Errorf("reading %s: %w", p.ReadID(), err)}
	}
	p.Observe(state.Value)

	at := state.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	v, err := p.Read(state.Value)
	return readResult{value: v, at: at, err: err}
}

// CachedProperties returns the properties derivable from cached values only.
func (c *Capability) CachedProperties() []alexa.Property {
	props, err := c.ReadProperties(context.Background(), nil, true)
	if err != nil {
		return nil
	}
	return props
}

// Observe records native on every proxy reading id and reports whether
// any proxy did.
func (c *Capability) Observe(id string, native any) bool {
	seen := false
	for _, p := range c.Proxies {
		if p.Reads(id) {
			p.Observe(native)
			seen = true
		}
	}
	return seen
}

// ReadIDs returns the distinct points the capability reads.
func (c *Capability) ReadIDs() []string {
	seen := make(map[string]struct{}, len(c.Proxies))
	var ids []string
	for _, p := range c.Proxies {
		id := p.ReadID()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// Discovery renders the capability for a discovery response.
func (c *Capability) Discovery() alexa.Capability {
	supported := make([]alexa.SupportedProperty, 0, len(c.Properties()))
	for _, name := range c.Properties() {
		supported = append(supported, alexa.SupportedProperty{Name: name})
	}

	out := alexa.Capability{
		Type:      alexa.CapabilityTypeAlexaInterface,
		Interface: c.Namespace(),
		Instance:  c.Instance,
		Version:   alexa.InterfaceVersion,
		Properties: &alexa.CapabilityProperties{
			Supported:           supported,
			ProactivelyReported: c.ProactivelyReported,
			Retrievable:         c.Retrievable,
		},
	}

	if c.Kind == KindMode {
		if c.FriendlyAsset != "" {
			out.CapabilityResources = &alexa.Resources{
				FriendlyNames: []alexa.FriendlyName{alexa.AssetName(c.FriendlyAsset)},
			}
		}
		out.Configuration, out.Semantics = modeDiscovery(c.Modes, c.Ordered)
	}

	return out
}
