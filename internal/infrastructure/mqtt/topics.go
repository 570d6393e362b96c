package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefixStatus is the base for bridge liveness topics.
const TopicPrefixStatus = "voicebridge"

// Home-graph topic kinds.
const (
	GraphKindState  = "state"
	GraphKindSet    = "set"
	GraphKindObject = "object"
)

// Topics builds the MQTT topics used by one bridge instance.
//
//	topics := mqtt.NewTopics("alexa-1", "homegraph")
//	topics.StateChange()           // response/alexa-1/stateChange
//	topics.GraphState("light.0.on") // homegraph/state/light.0.on
type Topics struct {
	clientID    string
	graphPrefix string
}

// NewTopics returns a builder for clientID with home-graph topics under graphPrefix.
func NewTopics(clientID, graphPrefix string) Topics {
	return Topics{
		clientID:    clientID,
		graphPrefix: strings.TrimSuffix(graphPrefix, "/"),
	}
}

// ClientID returns the instance id the builder was created with.
func (t Topics) ClientID() string {
	return t.clientID
}

// =============================================================================
// Directive Transport
// =============================================================================

// Directive returns the inbound directive topic.
//
// Example: command/alexa-1/alexa
func (t Topics) Directive() string {
	return fmt.Sprintf("command/%s/alexa", t.clientID)
}

// DirectiveResponse returns the topic directive responses are published on.
//
// Example: response/alexa-1/alexa
func (t Topics) DirectiveResponse() string {
	return fmt.Sprintf("response/%s/alexa", t.clientID)
}

// StateChange returns the change-report topic.
//
// Example: response/alexa-1/stateChange
func (t Topics) StateChange() string {
	return fmt.Sprintf("response/%s/stateChange", t.clientID)
}

// Status returns the retained liveness topic.
//
// Example: voicebridge/alexa-1/status
func (t Topics) Status() string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixStatus, t.clientID)
}

// =============================================================================
// Home Graph
// =============================================================================

// GraphState returns the topic a state's current value is published on.
//
// Example: homegraph/state/hm-rpc.0.ABC.1.LEVEL
func (t Topics) GraphState(id string) string {
	return t.graph(GraphKindState, id)
}

// GraphSet returns the topic used to write a state.
//
// Example: homegraph/set/hm-rpc.0.ABC.1.LEVEL
func (t Topics) GraphSet(id string) string {
	return t.graph(GraphKindSet, id)
}

// GraphObject returns the topic object (re)definitions are published on.
//
// Example: homegraph/object/enum.rooms.kitchen
func (t Topics) GraphObject(id string) string {
	return t.graph(GraphKindObject, id)
}

// AllGraphStates returns a pattern matching every state topic.
//
// Pattern: homegraph/state/+
func (t Topics) AllGraphStates() string {
	return t.graph(GraphKindState, "+")
}

// AllGraphObjects returns a pattern matching every object topic.
//
// Pattern: homegraph/object/+
func (t Topics) AllGraphObjects() string {
	return t.graph(GraphKindObject, "+")
}

func (t Topics) graph(kind, id string) string {
	return fmt.Sprintf("%s/%s/%s", t.graphPrefix, kind, id)
}

// ParseGraphTopic splits a home-graph topic into its kind and state id.
// ok is false for topics outside the graph prefix or with an empty id.
func (t Topics) ParseGraphTopic(topic string) (kind, id string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.graphPrefix+"/")
	if !found {
		return "", "", false
	}
	kind, id, found = strings.Cut(rest, "/")
	if !found || id == "" {
		return "", "", false
	}
	switch kind {
	case GraphKindState, GraphKindSet, GraphKindObject:
		return kind, id, true
	default:
		return "", "", false
	}
}
