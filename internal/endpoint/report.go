package endpoint

import (
	"time"

	"github.com/nerrad567/gray-logic-voicebridge/internal/alexa"
)

// ChangeReport is a change report on its way to the sinks.
type ChangeReport struct {
	EndpointID string
	Cause      alexa.CauseType
	Changed    int
	Response   *alexa.Response
	At         time.Time
}

// newChangeReport wraps an alexa ChangeReport envelope.
func newChangeReport(endpointID string, cause alexa.CauseType, changed, unchanged []alexa.Property, at time.Time) ChangeReport {
	return ChangeReport{
		EndpointID: endpointID,
		Cause:      cause,
		Changed:    len(changed),
		Response:   alexa.NewChangeReport(endpointID, cause, changed, unchanged),
		At:         at,
	}
}
