package alexa

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// timeOfSampleLayout is ISO 8601 in UTC with milliseconds.
const timeOfSampleLayout = "2006-01-02T15:04:05.000Z"

// defaultUncertainty is reported for values read from the home graph.
const defaultUncertainty = 0

// NewMessageID returns a fresh header message id.
func NewMessageID() string {
	return uuid.NewString()
}

// FormatTime renders t as a timeOfSample value.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeOfSampleLayout)
}

// NewProperty builds a property sampled at t.
func NewProperty(namespace, instance, name string, value any, t time.Time) Property {
	return Property{
		Namespace:                 namespace,
		Instance:                  instance,
		Name:                      name,
		Value:                     value,
		TimeOfSample:              FormatTime(t),
		UncertaintyInMilliseconds: defaultUncertainty,
	}
}

func eventHeader(namespace, name, correlationToken string) Header {
	return Header{
		Namespace:        namespace,
		Name:             name,
		PayloadVersion:   PayloadVersion,
		MessageID:        NewMessageID(),
		CorrelationToken: correlationToken,
	}
}

// responseEndpoint echoes the directive endpoint without its scope token.
func responseEndpoint(d Directive) *Endpoint {
	if d.Endpoint == nil {
		return nil
	}
	return &Endpoint{
		Scope:      d.Endpoint.Scope,
		EndpointID: d.Endpoint.EndpointID,
	}
}

// NewResponse answers a successful control directive. properties must hold at
// least the property the directive targeted.
func NewResponse(d Directive, properties []Property) *Response {
	return &Response{
		Event: Event{
			Header:   eventHeader(NamespaceAlexa, NameResponse, d.Header.CorrelationToken),
			Endpoint: responseEndpoint(d),
			Payload:  struct{}{},
		},
		Context: &Context{Properties: nonNil(properties)},
	}
}

// NewStateReport answers a ReportState directive.
func NewStateReport(d Directive, properties []Property) *Response {
	r := NewResponse(d, properties)
	r.Event.Header.Name = NameStateReport
	return r
}

// NewDiscoverResponse answers Alexa.Discovery/Discover.
func NewDiscoverResponse(d Directive, endpoints []DiscoveryEndpoint) *Response {
	if endpoints == nil {
		endpoints = []DiscoveryEndpoint{}
	}
	return &Response{
		Event: Event{
			Header:  eventHeader(NamespaceDiscovery, NameDiscoverResponse, ""),
			Payload: DiscoveryPayload{Endpoints: endpoints},
		},
	}
}

// NewErrorResponse converts err into an ErrorResponse. The envelope carries
// neither endpoint nor context.
func NewErrorResponse(d Directive, err error) *Response {
	payload := ErrorPayload{
		Type:    ErrorTypeOf(err),
		Message: errorMessage(err),
	}
	if payload.Type == "" {
		payload.Type = ErrorTypeInternal
	}

	switch payload.Type {
	case ErrorTypeNotSupportedInMode:
		payload.CurrentDeviceMode = "OTHER"
	case ErrorTypeValueOutOfRange:
		var rangeErr *RangeError
		if errors.As(err, &rangeErr) {
			payload.ValidRange = &ValidRange{MinimumValue: rangeErr.Min, MaximumValue: rangeErr.Max}
		}
	}

	return &Response{
		Event: Event{
			Header:  eventHeader(NamespaceAlexa, NameErrorResponse, d.Header.CorrelationToken),
			Payload: payload,
		},
	}
}

func errorMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// NewChangeReport builds an asynchronous ChangeReport. changed are the
// properties that triggered the report; unchanged go into the context.
func NewChangeReport(endpointID string, cause CauseType, changed, unchanged []Property) *Response {
	return &Response{
		Event: Event{
			Header:   eventHeader(NamespaceAlexa, NameChangeReport, ""),
			Endpoint: &Endpoint{EndpointID: endpointID},
			Payload: ChangePayload{Change: Change{
				Cause:      Cause{Type: cause},
				Properties: nonNil(changed),
			}},
		},
		Context: &Context{Properties: nonNil(unchanged)},
	}
}

func nonNil(props []Property) []Property {
	if props == nil {
		return []Property{}
	}
	return props
}
