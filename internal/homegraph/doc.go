// Package homegraph is the voice bridge's view of the home-automation state
// graph.
//
// The graph itself (storage, object tree, type detection) lives elsewhere.
// This package defines the State value read from it and MQTTGraph, an
// adapter that mirrors state values published on MQTT and writes new values
// back through set topics:
//
//	<prefix>/state/<id>   current value, JSON {"val":..,"ack":..,"ts":..} or a bare value
//	<prefix>/set/<id>     write request, JSON {"val":..,"ack":false}
//	<prefix>/object/<id>  object (re)definition, payload ignored
//
// Reads are served from a local cache. A read for a state that has not been
// seen yet waits until the value arrives or the read timeout expires.
package homegraph
