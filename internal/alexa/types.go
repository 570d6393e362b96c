package alexa

import (
	"encoding/json"
	"fmt"
)

// Request is the inbound envelope: {"directive": {...}}.
type Request struct {
	Directive Directive `json:"directive"`
}

// Directive carries a header, an optional endpoint and a raw payload.
// The payload is decoded by whichever capability handles it.
type Directive struct {
	Header   Header          `json:"header"`
	Endpoint *Endpoint       `json:"endpoint,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Header is shared by directives and events.
type Header struct {
	Namespace        string `json:"namespace"`
	Name             string `json:"name"`
	Instance         string `json:"instance,omitempty"`
	PayloadVersion   string `json:"payloadVersion"`
	MessageID        string `json:"messageId"`
	CorrelationToken string `json:"correlationToken,omitempty"`
}

// Endpoint addresses a discovered device.
type Endpoint struct {
	Scope      *Scope            `json:"scope,omitempty"`
	EndpointID string            `json:"endpointId"`
	Cookie     map[string]string `json:"cookie,omitempty"`
}

// Scope carries the bearer token Alexa attaches to a directive.
type Scope struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
}

// EndpointID returns the addressed endpoint or "" for manager-scoped directives.
func (d Directive) EndpointID() string {
	if d.Endpoint == nil {
		return ""
	}
	return d.Endpoint.EndpointID
}

// DecodePayload unmarshals the payload into v. A malformed payload wraps
// ErrInvalidValue.
func (d Directive) DecodePayload(v any) error {
	if len(d.Payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalidValue)
	}
	if err := json.Unmarshal(d.Payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return nil
}

// ParseRequest decodes an inbound directive and checks the header is usable.
func ParseRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrInvalidDirective, err)
	}
	if req.Directive.Header.Namespace == "" || req.Directive.Header.Name == "" {
		return req, fmt.Errorf("%w: header namespace and name are required", ErrInvalidDirective)
	}
	return req, nil
}

// Response is the outbound envelope for responses, state reports, error
// responses, discovery responses and change reports.
type Response struct {
	Event   Event    `json:"event"`
	Context *Context `json:"context,omitempty"`
}

// Event is the event half of a Response.
type Event struct {
	Header   Header    `json:"header"`
	Endpoint *Endpoint `json:"endpoint,omitempty"`
	Payload  any       `json:"payload"`
}

// Context holds property state reported alongside an event.
type Context struct {
	Properties []Property `json:"properties"`
}

// Property is one reported capability property.
type Property struct {
	Namespace                 string `json:"namespace"`
	Instance                  string `json:"instance,omitempty"`
	Name                      string `json:"name"`
	Value                     any    `json:"value"`
	TimeOfSample              string `json:"timeOfSample"`
	UncertaintyInMilliseconds int    `json:"uncertaintyInMilliseconds"`
}

// Key identifies a property independently of its value.
func (p Property) Key() string {
	if p.Instance == "" {
		return p.Namespace + "/" + p.Name
	}
	return p.Namespace + ":" + p.Instance + "/" + p.Name
}

// Temperature is the value of Alexa.TemperatureSensor.temperature.
type Temperature struct {
	Value float64 `json:"value"`
	Scale string  `json:"scale"`
}

// ErrorPayload is the payload of an ErrorResponse.
type ErrorPayload struct {
	Type              ErrorType   `json:"type"`
	Message           string      `json:"message"`
	CurrentDeviceMode string      `json:"currentDeviceMode,omitempty"`
	ValidRange        *ValidRange `json:"validRange,omitempty"`
}

// ValidRange accompanies VALUE_OUT_OF_RANGE.
type ValidRange struct {
	MinimumValue any `json:"minimumValue"`
	MaximumValue any `json:"maximumValue"`
}

// ChangePayload is the payload of a ChangeReport.
type ChangePayload struct {
	Change Change `json:"change"`
}

// Change lists the properties that changed and why.
type Change struct {
	Cause      Cause      `json:"cause"`
	Properties []Property `json:"properties"`
}

// Cause wraps the cause type.
type Cause struct {
	Type CauseType `json:"type"`
}
