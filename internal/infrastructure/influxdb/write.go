package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementDirective    = "alexa_directive"
	MeasurementChangeReport = "alexa_change_report"
	MeasurementRateLimit    = "alexa_rate_limit"
)

// WriteDirective records one handled directive.
//
// Parameters:
//   - namespace, name: Directive header, e.g. Alexa.PowerController / TurnOn
//   - endpointID: Target endpoint, empty for Discovery
//   - outcome: "ok" or the error type returned (e.g. ENDPOINT_UNREACHABLE)
//   - latency: Time spent handling the directive
func (c *Client) WriteDirective(namespace, name, endpointID, outcome string, latency time.Duration) {
	tags := map[string]string{
		"namespace": namespace,
		"name":      name,
		"outcome":   outcome,
	}
	if endpointID != "" {
		tags["endpoint_id"] = endpointID
	}
	c.writePoint(MeasurementDirective, tags, map[string]any{
		"latency_ms": float64(latency.Microseconds()) / 1000,
		"count":      1,
	}, time.Now())
}

// WriteChangeReport records one published change report.
func (c *Client) WriteChangeReport(endpointID, cause string, properties int, at time.Time) {
	c.writePoint(MeasurementChangeReport,
		map[string]string{"endpoint_id": endpointID, "cause": cause},
		map[string]any{"properties": properties, "count": 1},
		at,
	)
}

// WriteRateLimitDrop records a change report superseded while throttled.
func (c *Client) WriteRateLimitDrop(endpointID string) {
	c.writePoint(MeasurementRateLimit,
		map[string]string{"endpoint_id": endpointID},
		map[string]any{"dropped": 1},
		time.Now(),
	)
}

func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]any, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, at))
}
