// Package alexa defines the Alexa Smart Home v3 wire format used by the
// voice bridge: inbound directives, response and error envelopes, discovery
// payloads and asynchronous change reports.
//
// The package is pure data plus envelope builders. It performs no I/O and
// knows nothing about endpoints or the home graph.
//
// # Error Taxonomy
//
// Errors raised anywhere below the directive boundary wrap one of the
// sentinels in errors.go. ErrorTypeOf maps them onto the protocol's
// ErrorResponse types:
//
//	ErrEndpointUnreachable    ENDPOINT_UNREACHABLE
//	ErrNoSuchEndpoint         NO_SUCH_ENDPOINT
//	ErrInvalidDirective       INVALID_DIRECTIVE
//	ErrInvalidValue           INVALID_VALUE
//	ErrValueOutOfRange        VALUE_OUT_OF_RANGE
//	ErrNotSupportedInMode     NOT_SUPPORTED_IN_CURRENT_MODE
//	anything else             INTERNAL_ERROR
package alexa
