// Package control holds the detected control model and folds controls into
// capabilities.
//
// A Control is one physical function found in the home graph (a dimmer, a
// blind, a gate) with its named points. Controls are produced by a Detector
// on every collection pass and discarded once aggregated.
//
// Aggregation is per control type:
//
//	light, socket  PowerController
//	dimmer         PowerController + BrightnessController
//	blind          PercentageController
//	volume-group   Speaker (volume, muted)
//	gate           ModeController Gate.Position (Open/Closed)
//	lock           LockController
//	temperature    TemperatureSensor
//
// A control missing its required point is skipped, not rejected.
// Capabilities with the same namespace and instance produced within one
// pass are merged into a single capability holding all proxies.
package control
