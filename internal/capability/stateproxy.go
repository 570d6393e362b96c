package capability

import "sync"

// Transform converts a value between protocol and native representation.
type Transform func(v any) (any, error)

// StateProxy binds one capability property to a write point and a read point.
//
// Setter maps protocol values to native ones and Getter does the reverse;
// a nil transform passes values through. The proxy performs no I/O.
type StateProxy struct {
	// Property is the protocol property this proxy serves. Empty means the
	// primary property of the owning capability's kind.
	Property string

	// SetID is the home-graph point written on directives.
	SetID string

	// GetID is the point read for state reports; defaults to SetID.
	GetID string

	Setter Transform
	Getter Transform

	// OnObserve, if set, is called with every observed native value.
	OnObserve func(native any)

	mu         sync.Mutex
	current    any
	hasCurrent bool
}

// NewStateProxy creates a proxy for the primary property.
func NewStateProxy(setID, getID string, setter, getter Transform) *StateProxy {
	return &StateProxy{SetID: setID, GetID: getID, Setter: setter, Getter: getter}
}

// ReadID returns the point to read, falling back to SetID.
func (p *StateProxy) ReadID() string {
	if p.GetID != "" {
		return p.GetID
	}
	return p.SetID
}

// Write maps a protocol value to its native representation.
func (p *StateProxy) Write(protocol any) (any, error) {
	if p.Setter == nil {
		return protocol, nil
	}
	return p.Setter(protocol)
}

// Read maps a native value to its protocol representation.
func (p *StateProxy) Read(native any) (any, error) {
	if p.Getter == nil {
		return native, nil
	}
	return p.Getter(native)
}

// Observe records native as the current value.
func (p *StateProxy) Observe(native any) {
	p.mu.Lock()
	p.current = native
	p.hasCurrent = true
	p.mu.Unlock()

	if p.OnObserve != nil {
		p.OnObserve(native)
	}
}

// Current returns the last observed native value.
func (p *StateProxy) Current() (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.hasCurrent
}

// Reads reports whether id is the point this proxy reads from.
func (p *StateProxy) Reads(id string) bool {
	return id != "" && id == p.ReadID()
}
