package endpoint

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-voicebridge/internal/control"
)

// maxEndpointIDLength is the protocol limit for endpoint ids.
const maxEndpointIDLength = 256

// endpointNamespace seeds generated endpoint ids.
var endpointNamespace = uuid.MustParse("6f1c2a4e-8d3b-5e7f-9a0b-1c2d3e4f5a6b")

// NamingOptions controls how endpoint names are derived.
type NamingOptions struct {
	// Language selects localized room and function names.
	Language string

	// ConcatWord joins room and function. Empty means a single space.
	ConcatWord string

	// FunctionFirst puts the function before the room ("Light Kitchen").
	FunctionFirst bool
}

// partition is a group of controls that becomes one device.
type partition struct {
	name     string
	roomName string
	funcName string
	controls []control.Control
}

// partitionControls groups controls by room and then by function.
//
// Controls without a room or a function, and controls carrying an explicit
// smart name, form singleton partitions. Partitions that end up with the
// same friendly name (case-insensitive) are merged, keeping first-seen order.
func partitionControls(controls []control.Control, opts NamingOptions) []partition {
	var (
		parts  []*partition
		byKey  = make(map[string]*partition)
		byName = make(map[string]*partition)
	)

	add := func(key string, c control.Control) {
		if p, ok := byKey[key]; ok {
			p.controls = append(p.controls, c)
			return
		}

		p := &partition{controls: []control.Control{c}}
		if c.Room != nil {
			p.roomName = c.Room.Name.Resolve(opts.Language)
		}
		if c.Function != nil {
			p.funcName = c.Function.Name.Resolve(opts.Language)
		}
		p.name = friendlyName(c, p.roomName, p.funcName, opts)

		if existing, ok := byName[strings.ToLower(p.name)]; ok {
			existing.controls = append(existing.controls, c)
			byKey[key] = existing
			return
		}
		byKey[key] = p
		byName[strings.ToLower(p.name)] = p
		parts = append(parts, p)
	}

	for i, c := range controls {
		if c.SmartName != "" || c.Room == nil || c.Function == nil {
			add(fmt.Sprintf("single/%d", i), c)
			continue
		}
		add(c.Room.ID+"/"+c.Function.ID, c)
	}

	out := make([]partition, len(parts))
	for i, p := range parts {
		out[i] = *p
	}
	return out
}

// friendlyName derives a device name: smart name, then room and function,
// then whichever of the two exists, then the object id.
func friendlyName(c control.Control, room, function string, opts NamingOptions) string {
	if name := strings.TrimSpace(c.SmartName); name != "" {
		return name
	}
	if room != "" && function != "" {
		return JoinName(room, function, opts)
	}
	if function != "" {
		return function
	}
	if room != "" {
		return room
	}
	return c.ObjectID
}

// JoinName combines room and function names.
func JoinName(room, function string, opts NamingOptions) string {
	first, second := room, function
	if opts.FunctionFirst {
		first, second = function, room
	}
	word := strings.TrimSpace(opts.ConcatWord)
	if word == "" {
		return first + " " + second
	}
	return first + " " + word + " " + second
}

// EndpointID derives a protocol-safe id from a friendly name.
//
// Characters outside [A-Za-z0-9_-=#;:?@&] become underscores. Names that
// leave nothing usable get a name-based UUID.
func EndpointID(name string) string {
	var b strings.Builder
	usable := false
	for _, r := range strings.TrimSpace(name) {
		if validIDRune(r) {
			b.WriteRune(r)
			if r != '_' {
				usable = true
			}
			continue
		}
		b.WriteByte('_')
	}

	id := b.String()
	if !usable {
		return uuid.NewSHA1(endpointNamespace, []byte(name)).String()
	}
	if len(id) > maxEndpointIDLength {
		id = id[:maxEndpointIDLength]
	}
	return id
}

func validIDRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune("_-=#;:?@&", r)
}

// uniqueID returns id, or id with a numeric suffix if already used.
func uniqueID(id string, used map[string]struct{}) string {
	candidate := id
	for n := 2; ; n++ {
		if _, taken := used[candidate]; !taken {
			used[candidate] = struct{}{}
			return candidate
		}
		suffix := fmt.Sprintf("_%d", n)
		base := id
		if len(base)+len(suffix) > maxEndpointIDLength {
			base = base[:maxEndpointIDLength-len(suffix)]
		}
		candidate = base + suffix
	}
}
