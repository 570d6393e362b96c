package homegraph

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

// Domain errors.
var (
	// ErrStateNotFound is returned when no value arrived for a state in time.
	ErrStateNotFound = errors.New("homegraph: state not found")

	// ErrInvalidStateID is returned for empty or wildcard ids.
	ErrInvalidStateID = errors.New("homegraph: invalid state id")
)

// State is one value of a home-graph data point.
//
// Ack is false while a write is still pending on the device side; only
// acknowledged values describe the physical state.
type State struct {
	Value     any       `json:"val"`
	Ack       bool      `json:"ack"`
	Timestamp time.Time `json:"-"`
}

// wireState is the JSON form published on state topics.
type wireState struct {
	Val any   `json:"val"`
	Ack *bool `json:"ack,omitempty"`
	TS  int64 `json:"ts,omitempty"`
}

// ParseState decodes a state payload.
//
// Three forms are accepted: a JSON object with a "val" key, a bare JSON
// scalar, and anything else as a raw string. Values without an ack flag
// count as acknowledged.
func ParseState(payload []byte, received time.Time) State {
	trimmed := bytes.TrimSpace(payload)
	state := State{Ack: true, Timestamp: received}

	if len(trimmed) > 0 && trimmed[0] == '{' {
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err == nil {
			if _, ok := raw["val"]; ok {
				var w wireState
				if err := json.Unmarshal(trimmed, &w); err == nil {
					state.Value = w.Val
					if w.Ack != nil {
						state.Ack = *w.Ack
					}
					if w.TS > 0 {
						state.Timestamp = time.UnixMilli(w.TS)
					}
					return state
				}
			}
		}
	}

	var scalar any
	if err := json.Unmarshal(trimmed, &scalar); err == nil {
		state.Value = scalar
		return state
	}

	state.Value = string(payload)
	return state
}

// encodeWrite renders a write request for a set topic.
func encodeWrite(value any) ([]byte, error) {
	ack := false
	return json.Marshal(wireState{Val: value, Ack: &ack})
}
