package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-voicebridge/internal/alexa"
	"github.com/nerrad567/gray-logic-voicebridge/internal/endpoint"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200

	// maxEndpointIDLen mirrors the protocol's endpoint id limit.
	maxEndpointIDLen = 256
)

// EndpointView is the JSON form of a collected endpoint.
type EndpointView struct {
	ID                string           `json:"id"`
	FriendlyName      string           `json:"friendly_name"`
	Room              string           `json:"room,omitempty"`
	Function          string           `json:"function,omitempty"`
	DisplayCategories []string         `json:"display_categories"`
	Interfaces        []string         `json:"interfaces"`
	Controls          []ControlView    `json:"controls"`
	Toggle            bool             `json:"toggle,omitempty"`
	Properties        []alexa.Property `json:"properties,omitempty"`
}

// ControlView summarises one control backing an endpoint.
type ControlView struct {
	Type     string   `json:"type"`
	ObjectID string   `json:"object,omitempty"`
	States   []string `json:"states"`
}

func newEndpointView(d *endpoint.Device) EndpointView {
	view := EndpointView{
		ID:                d.ID,
		FriendlyName:      d.FriendlyName,
		Room:              d.RoomName,
		Function:          d.FuncName,
		DisplayCategories: d.DisplayCategories(),
		Toggle:            d.Toggle,
	}
	for _, c := range d.Capabilities() {
		view.Interfaces = append(view.Interfaces, c.Key())
	}
	for _, c := range d.Controls {
		cv := ControlView{Type: string(c.Type), ObjectID: c.ObjectID}
		for _, st := range c.States {
			cv.States = append(cv.States, st.ID)
		}
		view.Controls = append(view.Controls, cv)
	}
	return view
}

// handleListEndpoints returns every collected endpoint.
func (s *Server) handleListEndpoints(w http.ResponseWriter, _ *http.Request) {
	devices := s.manager.Devices()
	views := make([]EndpointView, 0, len(devices))
	for _, d := range devices {
		views = append(views, newEndpointView(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"endpoints": views, "count": len(views)})
}

// handleGetEndpoint returns one endpoint with its cached property values.
//
// Query parameters:
//   - fresh: "true" reads every state from the home graph instead of the cache
func (s *Server) handleGetEndpoint(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookupEndpoint(w, r)
	if !ok {
		return
	}

	view := newEndpointView(d)
	if r.URL.Query().Get("fresh") == "true" {
		view.Properties = d.ReportState(r.Context(), s.manager.Graph(), false)
	} else {
		view.Properties = d.CachedProperties()
	}
	writeJSON(w, http.StatusOK, view)
}

// handleListReports returns recent change reports for an endpoint.
//
// Query parameters:
//   - limit: maximum entries (default 50, max 200)
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		writeUnavailable(w, "change report history is not enabled")
		return
	}

	d, ok := s.lookupEndpoint(w, r)
	if !ok {
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	entries, err := s.reports.History(r.Context(), d.ID, limit)
	if err != nil {
		s.logger.Error("listing change reports failed", "endpoint", d.ID, "error", err)
		writeInternalError(w, "failed to list change reports")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": entries, "count": len(entries)})
}

// handleCollectEndpoints re-runs endpoint collection and returns the new count.
func (s *Server) handleCollectEndpoints(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.CollectEndpoints(r.Context()); err != nil {
		if errors.Is(err, endpoint.ErrManagerClosed) {
			writeError(w, http.StatusConflict, ErrCodeConflict, "bridge is shutting down")
			return
		}
		s.logger.Error("endpoint collection failed", "error", err)
		writeInternalError(w, "endpoint collection failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "count": len(s.manager.Devices())})
}

func (s *Server) lookupEndpoint(w http.ResponseWriter, r *http.Request) (*endpoint.Device, bool) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxEndpointIDLen {
		writeBadRequest(w, "invalid endpoint ID")
		return nil, false
	}
	d, ok := s.manager.EndpointByID(id)
	if !ok {
		writeNotFound(w, "endpoint not found")
		return nil, false
	}
	return d, true
}

// parseHistoryLimit parses the limit query parameter with bounds enforcement.
func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if limit > maxHistoryLimit {
		return 0, fmt.Errorf("limit exceeds maximum")
	}

	return limit, nil
}
