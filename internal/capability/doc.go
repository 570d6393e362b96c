// Package capability models the units of smart-home behaviour exposed on an
// endpoint: power, brightness, percentage, speaker, mode, lock and
// temperature.
//
// A Capability owns one or more StateProxy values. Each proxy binds a
// protocol property to the home-graph points it is written to and read from,
// together with the transforms between protocol and native values.
// Capabilities of the same kind gathered from merged controls are folded into
// one Capability whose proxies are written together (fan-out).
//
// The kind registry is fixed at compile time; see Kind.
package capability
