// Package logging provides structured logging for the voice bridge.
//
// It wraps log/slog so every package logs with the same handler, default
// fields (service, version) and level filter.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("endpoint").Info("endpoints collected", "count", 12)
//
// Never log broker passwords or InfluxDB tokens.
package logging
