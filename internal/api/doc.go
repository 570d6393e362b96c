// Package api implements the HTTP API and WebSocket stream of the voice bridge.
//
// This package provides:
//   - A directive endpoint accepting Alexa Smart Home envelopes over HTTP
//   - Read-only views of the collected endpoints and their change history
//   - A manual trigger for endpoint re-collection
//   - A WebSocket hub streaming change reports as they are published
//   - Middleware stack (request ID, logging, recovery, body limit)
//
// # Architecture
//
// The MQTT directive topic is the primary ingress. The HTTP directive route
// feeds the same endpoint.Manager, so both transports produce identical
// envelopes. Change reports reach WebSocket clients through the hub, which
// the publisher drives as one of its sinks.
//
// # Graceful Degradation
//
// The report history route answers 503 when no database is configured.
// Everything else works without it.
package api
