// Package influxdb records voice bridge activity as InfluxDB time series.
//
// It wraps influxdb-client-go v2 with a non-blocking, batched write API.
// Three measurements are written:
//
//	alexa_directive      one point per handled directive (namespace, name, outcome, latency)
//	alexa_change_report  one point per published change report (cause, property count)
//	alexa_rate_limit     one point per change report dropped by the rate limiter
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // metrics off
//	}
//	defer client.Close()
//	client.SetOnError(func(err error) { logger.Warn("influx write failed", "error", err) })
package influxdb
