package alexa

import (
	"errors"
	"fmt"
)

// ErrorType is the payload.type of an ErrorResponse.
type ErrorType string

const (
	ErrorTypeEndpointUnreachable ErrorType = "ENDPOINT_UNREACHABLE"
	ErrorTypeNoSuchEndpoint      ErrorType = "NO_SUCH_ENDPOINT"
	ErrorTypeInvalidDirective    ErrorType = "INVALID_DIRECTIVE"
	ErrorTypeInvalidValue        ErrorType = "INVALID_VALUE"
	ErrorTypeValueOutOfRange     ErrorType = "VALUE_OUT_OF_RANGE"
	ErrorTypeNotSupportedInMode  ErrorType = "NOT_SUPPORTED_IN_CURRENT_MODE"
	ErrorTypeInternal            ErrorType = "INTERNAL_ERROR"
)

// Sentinel errors. Wrap them with fmt.Errorf("%w: ...") and map them to
// protocol error types with ErrorTypeOf.
var (
	// ErrEndpointUnreachable: no state could be written or read.
	ErrEndpointUnreachable = errors.New("alexa: endpoint unreachable")

	// ErrNoSuchEndpoint: the directive addresses an unknown endpoint id.
	ErrNoSuchEndpoint = errors.New("alexa: no such endpoint")

	// ErrInvalidDirective: the directive is malformed or unknown.
	ErrInvalidDirective = errors.New("alexa: invalid directive")

	// ErrInvalidValue: the payload could not be interpreted.
	ErrInvalidValue = errors.New("alexa: invalid value")

	// ErrValueOutOfRange: a numeric payload value lies outside its range.
	ErrValueOutOfRange = errors.New("alexa: value out of range")

	// ErrNotSupportedInMode: the endpoint has the interface but cannot
	// perform this directive.
	ErrNotSupportedInMode = errors.New("alexa: not supported in current mode")
)

// ErrorTypeOf maps an error onto the protocol error taxonomy.
func ErrorTypeOf(err error) ErrorType {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEndpointUnreachable):
		return ErrorTypeEndpointUnreachable
	case errors.Is(err, ErrNoSuchEndpoint):
		return ErrorTypeNoSuchEndpoint
	case errors.Is(err, ErrInvalidDirective):
		return ErrorTypeInvalidDirective
	case errors.Is(err, ErrInvalidValue):
		return ErrorTypeInvalidValue
	case errors.Is(err, ErrValueOutOfRange):
		return ErrorTypeValueOutOfRange
	case errors.Is(err, ErrNotSupportedInMode):
		return ErrorTypeNotSupportedInMode
	default:
		return ErrorTypeInternal
	}
}

// RangeError is a VALUE_OUT_OF_RANGE error carrying the accepted range.
type RangeError struct {
	Value    float64
	Min, Max float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%v: %g not in [%g, %g]", ErrValueOutOfRange, e.Value, e.Min, e.Max)
}

// Unwrap makes errors.Is(err, ErrValueOutOfRange) hold.
func (e *RangeError) Unwrap() error { return ErrValueOutOfRange }
