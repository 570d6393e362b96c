package endpoint

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-voicebridge/internal/alexa"
	"github.com/nerrad567/gray-logic-voicebridge/internal/capability"
	"github.com/nerrad567/gray-logic-voicebridge/internal/control"
)

// manufacturerName is reported for every discovered endpoint.
const manufacturerName = "Gray Logic"

// maxConcurrentReads bounds parallel capability reads per device.
const maxConcurrentReads = 8

// Device is one discoverable endpoint backed by one or more controls.
//
// A Device is built once per collection pass and never modified afterwards,
// apart from the value caches inside its state proxies.
type Device struct {
	ID           string
	FriendlyName string
	Controls     []control.Control
	AutoDetected bool
	RoomName     string
	FuncName     string

	// Toggle inverts TurnOn/TurnOff against the current power state.
	Toggle bool

	capabilities []*capability.Capability
	categories   []string
}

// NewDevice creates a device from an aggregation result.
//
// Every value a directive writes is also recorded on the sibling proxies
// reading the same point, so a dimmer's power and brightness stay in step
// before the home graph echoes the new level.
func NewDevice(id, friendlyName string, controls []control.Control, agg control.Result) *Device {
	d := &Device{
		ID:           id,
		FriendlyName: friendlyName,
		Controls:     controls,
		AutoDetected: true,
		Toggle:       agg.Toggle,
		capabilities: agg.Capabilities,
		categories:   agg.Categories,
	}
	for _, c := range d.capabilities {
		c.OnWrite = func(readID string, native any) { d.Observe(readID, native) }
	}
	return d
}

// Capabilities returns the capabilities, one per namespace and instance.
func (d *Device) Capabilities() []*capability.Capability {
	out := make([]*capability.Capability, len(d.capabilities))
	copy(out, d.capabilities)
	return out
}

// DisplayCategories returns the union of the controls' categories in
// first-seen order.
func (d *Device) DisplayCategories() []string {
	if len(d.categories) == 0 {
		return []string{alexa.CategoryOther}
	}
	out := make([]string, len(d.categories))
	copy(out, d.categories)
	return out
}

// MatchCapability returns the first capability handling dir.
//
// Returns:
//   - *capability.Capability: Matching capability
//   - error: alexa.ErrNotSupportedInMode if the device has the interface but
//     not the directive, alexa.ErrInvalidDirective otherwise
func (d *Device) MatchCapability(dir alexa.Directive) (*capability.Capability, error) {
	hasNamespace := false
	for _, c := range d.capabilities {
		if c.Matches(dir) {
			return c, nil
		}
		if c.Namespace() == dir.Header.Namespace {
			hasNamespace = true
		}
	}
	if hasNamespace {
		return nil, fmt.Errorf("%w: %s.%s on %s", alexa.ErrNotSupportedInMode, dir.Header.Namespace, dir.Header.Name, d.ID)
	}
	return nil, fmt.Errorf("%w: %s has no %s interface", alexa.ErrInvalidDirective, d.ID, dir.Header.Namespace)
}

// Handle executes a control directive and returns the response envelope,
// which is an ErrorResponse on failure. changed is the property the
// directive set, or nil on failure.
func (d *Device) Handle(ctx context.Context, store capability.StateStore, dir alexa.Directive) (resp *alexa.Response, changed *alexa.Property) {
	c, err := d.MatchCapability(dir)
	if err != nil {
		return alexa.NewErrorResponse(dir, err), nil
	}

	if d.Toggle && c.Kind == capability.KindPower {
		dir = d.toggled(ctx, store, c, dir)
	}

	prop, err := c.Handle(ctx, store, dir)
	if err != nil {
		return alexa.NewErrorResponse(dir, err), nil
	}

	props := append([]alexa.Property{prop}, d.CachedProperties()...)
	return alexa.NewResponse(dir, dedupProperties(props)), &prop
}

// toggled rewrites a power directive to the opposite of the current state.
// An unreadable state leaves the directive unchanged.
func (d *Device) toggled(ctx context.Context, store capability.StateStore, c *capability.Capability, dir alexa.Directive) alexa.Directive {
	props, err := c.ReadProperties(ctx, store, false)
	if err != nil || len(props) == 0 {
		return dir
	}
	if props[0].Value == capability.ON {
		dir.Header.Name = alexa.NameTurnOff
	} else {
		dir.Header.Name = alexa.NameTurnOn
	}
	return dir
}

// ReportState reads every capability concurrently.
//
// Failing capabilities are left out; the result is deduplicated by property
// key, keeping the first occurrence in capability order. An empty result
// means nothing could be read.
func (d *Device) ReportState(ctx context.Context, reader capability.StateReader, preferCache bool) []alexa.Property {
	results := make([][]alexa.Property, len(d.capabilities))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)
	for i, c := range d.capabilities {
		g.Go(func() error {
			props, err := c.ReadProperties(gctx, reader, preferCache)
			if err == nil {
				results[i] = props
			}
			return nil
		})
	}
	_ = g.Wait()

	var all []alexa.Property
	for _, props := range results {
		all = append(all, props...)
	}
	return dedupProperties(all)
}

// CachedProperties returns the properties known from cached values.
func (d *Device) CachedProperties() []alexa.Property {
	var all []alexa.Property
	for _, c := range d.capabilities {
		all = append(all, c.CachedProperties()...)
	}
	return dedupProperties(all)
}

// Observe records a native value on every proxy reading id.
func (d *Device) Observe(id string, native any) bool {
	seen := false
	for _, c := range d.capabilities {
		if c.Observe(id, native) {
			seen = true
		}
	}
	return seen
}

// ReadIDs returns every point the device reads.
func (d *Device) ReadIDs() []string {
	var ids []string
	for _, c := range d.capabilities {
		ids = append(ids, c.ReadIDs()...)
	}
	return ids
}

// Discovery renders the device for a discovery response. The base Alexa
// interface always comes first.
func (d *Device) Discovery() alexa.DiscoveryEndpoint {
	caps := make([]alexa.Capability, 0, len(d.capabilities)+1)
	caps = append(caps, alexa.BaseCapability())
	for _, c := range d.capabilities {
		caps = append(caps, c.Discovery())
	}

	return alexa.DiscoveryEndpoint{
		EndpointID:        d.ID,
		ManufacturerName:  manufacturerName,
		FriendlyName:      d.FriendlyName,
		Description:       d.description(),
		DisplayCategories: d.DisplayCategories(),
		Capabilities:      caps,
	}
}

// description lists the control types, e.g. "dimmer, light".
func (d *Device) description() string {
	seen := make(map[control.Type]struct{}, len(d.Controls))
	var types []string
	for _, c := range d.Controls {
		if _, ok := seen[c.Type]; ok {
			continue
		}
		seen[c.Type] = struct{}{}
		types = append(types, string(c.Type))
	}
	if len(types) == 0 {
		return d.FriendlyName
	}
	return strings.Join(types, ", ")
}

// dedupProperties keeps the first property per key.
func dedupProperties(props []alexa.Property) []alexa.Property {
	seen := make(map[string]struct{}, len(props))
	out := make([]alexa.Property, 0, len(props))
	for _, p := range props {
		if _, ok := seen[p.Key()]; ok {
			continue
		}
		seen[p.Key()] = struct{}{}
		out = append(out, p)
	}
	return out
}
