// Package endpoint turns detected controls into discoverable smart-home
// endpoints and serves directives against them.
//
// The Manager owns the device list. A collection pass asks the detector for
// controls, partitions them by room and then by function, aggregates each
// partition into capabilities and installs the resulting devices in one
// atomic swap. Directives in flight keep using the list they started with.
//
// Change reports flow one way:
//
//	graph state change -> Manager.HandleStateUpdate -> RateLimiter.Submit -> Publisher -> sinks
//	voice directive    -> Manager.HandleAlexaEvent  -> RateLimiter.SubmitNow -> Publisher -> sinks
//
// Sinks publish to MQTT, broadcast on the WebSocket hub, record history in
// SQLite and write metrics to InfluxDB.
package endpoint
