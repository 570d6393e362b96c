package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/nerrad567/gray-logic-voicebridge/internal/alexa"
)

// handleDirective serves one Alexa directive envelope.
//
// Protocol failures are answered with 200 and an ErrorResponse envelope,
// exactly as on the MQTT directive topic. Only a body that is not a
// directive at all gets a 400, still carrying an ErrorResponse.
func (s *Server) handleDirective(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "request body too large")
			return
		}
		writeBadRequest(w, "failed to read request body")
		return
	}

	req, err := alexa.ParseRequest(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, alexa.NewErrorResponse(req.Directive, err))
		return
	}

	writeJSON(w, http.StatusOK, s.manager.HandleAlexaEvent(r.Context(), req.Directive))
}
