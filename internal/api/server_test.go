package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-voicebridge/internal/alexa"
	"github.com/nerrad567/gray-logic-voicebridge/internal/control"
	"github.com/nerrad567/gray-logic-voicebridge/internal/endpoint"
	"github.com/nerrad567/gray-logic-voicebridge/internal/homegraph"
	"github.com/nerrad567/gray-logic-voicebridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-voicebridge/internal/infrastructure/logging"
)

// mockGraph is an in-memory home graph.
type mockGraph struct {
	mu     sync.Mutex
	values map[string]any
}

func (g *mockGraph) GetState(_ context.Context, id string) (homegraph.State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	v, ok := g.values[id]
	if !ok {
		return homegraph.State{}, homegraph.ErrStateNotFound
	}
	return homegraph.State{Value: v, Ack: true}, nil
}

func (g *mockGraph) SetState(_ context.Context, id string, value any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values[id] = value
	return nil
}

func (g *mockGraph) SubscribeStates([]string) {}

// mockReports is an in-memory endpoint.ReportStore.
type mockReports struct {
	entries []endpoint.ReportEntry
	err     error
	limit   int
}

func (m *mockReports) Record(context.Context, endpoint.ChangeReport) error { return nil }

func (m *mockReports) History(_ context.Context, endpointID string, limit int) ([]endpoint.ReportEntry, error) {
	m.limit = limit
	if m.err != nil {
		return nil, m.err
	}
	var out []endpoint.ReportEntry
	for _, e := range m.entries {
		if e.EndpointID == endpointID {
			out = append(out, e)
		}
	}
	return out, nil
}

type failingCheck struct{}

func (failingCheck) HealthCheck(context.Context) error { return errors.New("broker unreachable") }

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

func kitchenLight() control.Control {
	return control.Control{
		Type:     control.TypeLight,
		ObjectID: "hm.light",
		Room:     &control.Ref{ID: "enum.rooms.kitchen", Name: control.Text{"en": "Kitchen"}},
		Function: &control.Ref{ID: "enum.functions.light", Name: control.Text{"en": "Light"}},
		States:   []control.State{{Name: control.RoleSet, ID: "hm.light.STATE", Read: true, Write: true}},
	}
}

// testServer creates a Server over a collected manager with one light.
func testServer(t *testing.T, reports endpoint.ReportStore) (*Server, *mockGraph) {
	t.Helper()

	graph := &mockGraph{values: map[string]any{"hm.light.STATE": false}}
	manager := endpoint.NewManager(control.StaticDetector{kitchenLight()}, graph, nil, endpoint.Options{})
	t.Cleanup(manager.Close)
	if err := manager.CollectEndpoints(context.Background()); err != nil {
		t.Fatalf("CollectEndpoints() error = %v", err)
	}

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS:      config.WebSocketConfig{Path: "/ws", MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Logger:  testLogger(),
		Manager: manager,
		Reports: reports,
		Checks:  map[string]HealthChecker{"mqtt": failingCheck{}},
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Hub().Run(ctx)

	return srv, graph
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
}

// ─── Construction Tests ────────────────────────────────────────────

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: testLogger()}); err == nil {
		t.Error("New() without manager should fail")
	}
}

func TestServer_HealthCheckNotStarted(t *testing.T) {
	srv, _ := testServer(t, nil)
	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
}

// ─── Health Endpoint Tests ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv, _ := testServer(t, nil)
	w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/health", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var resp struct {
		Status     string            `json:"status"`
		Version    string            `json:"version"`
		Endpoints  int               `json:"endpoints"`
		Collected  bool              `json:"collected"`
		Components map[string]string `json:"components"`
	}
	decode(t, w, &resp)
	if resp.Status != "degraded" || resp.Version != "test" {
		t.Errorf("status/version = %q/%q", resp.Status, resp.Version)
	}
	if resp.Endpoints != 1 || !resp.Collected {
		t.Errorf("endpoints = %d, collected = %v", resp.Endpoints, resp.Collected)
	}
	if resp.Components["mqtt"] != "broker unreachable" {
		t.Errorf("components = %v", resp.Components)
	}
}

func TestRequestID(t *testing.T) {
	srv, _ := testServer(t, nil)
	router := srv.buildRouter()

	w := do(t, router, http.MethodGet, "/api/v1/health", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-id")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "client-id" {
		t.Errorf("X-Request-ID = %q, want client-id", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", maxRequestIDLength+1))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); len(got) > maxRequestIDLength {
		t.Errorf("oversized X-Request-ID kept: %d bytes", len(got))
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	srv, _ := testServer(t, nil)
	h := srv.loggingMiddleware(srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	w := do(t, h, http.MethodGet, "/api/v1/endpoints/", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var body Error
	decode(t, w, &body)
	if body.Code != ErrCodeInternal {
		t.Errorf("code = %q", body.Code)
	}
}

// ─── Directive Tests ───────────────────────────────────────────────

func TestDirective_TurnOn(t *testing.T) {
	srv, graph := testServer(t, nil)

	body := `{"directive":{"header":{"namespace":"Alexa.PowerController","name":"TurnOn","payloadVersion":"3","messageId":"m1","correlationToken":"c1"},"endpoint":{"endpointId":"Kitchen_Light"},"payload":{}}}`
	w := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/alexa/directive", body)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp alexa.Response
	decode(t, w, &resp)
	if resp.Event.Header.Name != alexa.NameResponse || resp.Event.Header.CorrelationToken != "c1" {
		t.Errorf("header = %+v", resp.Event.Header)
	}
	if resp.Event.Endpoint == nil || resp.Event.Endpoint.EndpointID != "Kitchen_Light" {
		t.Errorf("endpoint = %+v", resp.Event.Endpoint)
	}

	graph.mu.Lock()
	defer graph.mu.Unlock()
	if graph.values["hm.light.STATE"] != true {
		t.Errorf("state = %v, want true", graph.values["hm.light.STATE"])
	}
}

func TestDirective_Errors(t *testing.T) {
	srv, _ := testServer(t, nil)
	router := srv.buildRouter()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantType   alexa.ErrorType
	}{
		{
			name:       "not json",
			body:       `{not json`,
			wantStatus: http.StatusBadRequest,
			wantType:   alexa.ErrorTypeInvalidDirective,
		},
		{
			name:       "missing header name",
			body:       `{"directive":{"header":{"namespace":"Alexa"}}}`,
			wantStatus: http.StatusBadRequest,
			wantType:   alexa.ErrorTypeInvalidDirective,
		},
		{
			name:       "unknown endpoint",
			body:       `{"directive":{"header":{"namespace":"Alexa.PowerController","name":"TurnOn","payloadVersion":"3","messageId":"m1"},"endpoint":{"endpointId":"Cellar"}}}`,
			wantStatus: http.StatusOK,
			wantType:   alexa.ErrorTypeNoSuchEndpoint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/api/v1/alexa/directive", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp struct {
				Event struct {
					Header  alexa.Header       `json:"header"`
					Payload alexa.ErrorPayload `json:"payload"`
				} `json:"event"`
			}
			decode(t, w, &resp)
			if resp.Event.Header.Name != alexa.NameErrorResponse || resp.Event.Payload.Type != tt.wantType {
				t.Errorf("event = %+v", resp.Event)
			}
		})
	}
}

func TestDirective_Discovery(t *testing.T) {
	srv, _ := testServer(t, nil)

	body := `{"directive":{"header":{"namespace":"Alexa.Discovery","name":"Discover","payloadVersion":"3","messageId":"m1"},"payload":{"scope":{"type":"BearerToken","token":"t"}}}}`
	w := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/alexa/directive", body)

	var resp struct {
		Event struct {
			Payload alexa.DiscoveryPayload `json:"payload"`
		} `json:"event"`
	}
	decode(t, w, &resp)
	if len(resp.Event.Payload.Endpoints) != 1 || resp.Event.Payload.Endpoints[0].FriendlyName != "Kitchen Light" {
		t.Errorf("endpoints = %+v", resp.Event.Payload.Endpoints)
	}
}

// ─── Endpoint Tests ────────────────────────────────────────────────

func TestListEndpoints(t *testing.T) {
	srv, _ := testServer(t, nil)
	w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/endpoints", "")

	var resp struct {
		Endpoints []EndpointView `json:"endpoints"`
		Count     int            `json:"count"`
	}
	decode(t, w, &resp)
	if resp.Count != 1 || resp.Endpoints[0].ID != "Kitchen_Light" {
		t.Fatalf("resp = %+v", resp)
	}
	ep := resp.Endpoints[0]
	if ep.Room != "Kitchen" || ep.Function != "Light" {
		t.Errorf("room/function = %q/%q", ep.Room, ep.Function)
	}
	if len(ep.Interfaces) != 1 || ep.Interfaces[0] != alexa.NamespacePowerController {
		t.Errorf("interfaces = %v", ep.Interfaces)
	}
	if len(ep.Controls) != 1 || ep.Controls[0].States[0] != "hm.light.STATE" {
		t.Errorf("controls = %+v", ep.Controls)
	}
}

func TestGetEndpoint(t *testing.T) {
	srv, _ := testServer(t, nil)
	router := srv.buildRouter()

	w := do(t, router, http.MethodGet, "/api/v1/endpoints/Kitchen_Light?fresh=true", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var view EndpointView
	decode(t, w, &view)
	if len(view.Properties) != 1 || view.Properties[0].Value != "OFF" {
		t.Errorf("properties = %+v", view.Properties)
	}

	w = do(t, router, http.MethodGet, "/api/v1/endpoints/Cellar", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown endpoint status = %d, want 404", w.Code)
	}
}

func TestCollectEndpoints(t *testing.T) {
	srv, _ := testServer(t, nil)
	w := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/endpoints/collect", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]any
	decode(t, w, &resp)
	if resp["count"] != float64(1) {
		t.Errorf("count = %v", resp["count"])
	}
}

func TestCollectEndpoints_Closed(t *testing.T) {
	srv, _ := testServer(t, nil)
	srv.manager.Close()

	w := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/endpoints/collect", "")
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestListReports(t *testing.T) {
	store := &mockReports{entries: []endpoint.ReportEntry{
		{ID: 1, EndpointID: "Kitchen_Light", Cause: alexa.CausePhysicalInteraction, Properties: 1, Report: json.RawMessage(`{}`), CreatedAt: time.Now()},
	}}
	srv, _ := testServer(t, store)
	router := srv.buildRouter()

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantLimit  int
	}{
		{"default limit", "/api/v1/endpoints/Kitchen_Light/reports", http.StatusOK, defaultHistoryLimit},
		{"explicit limit", "/api/v1/endpoints/Kitchen_Light/reports?limit=5", http.StatusOK, 5},
		{"invalid limit", "/api/v1/endpoints/Kitchen_Light/reports?limit=abc", http.StatusBadRequest, 0},
		{"limit too large", "/api/v1/endpoints/Kitchen_Light/reports?limit=500", http.StatusBadRequest, 0},
		{"unknown endpoint", "/api/v1/endpoints/Cellar/reports", http.StatusNotFound, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store.limit = 0
			w := do(t, router, http.MethodGet, tt.path, "")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if store.limit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", store.limit, tt.wantLimit)
			}
		})
	}

	store.err = errors.New("disk full")
	if w := do(t, router, http.MethodGet, "/api/v1/endpoints/Kitchen_Light/reports", ""); w.Code != http.StatusInternalServerError {
		t.Errorf("store error status = %d, want 500", w.Code)
	}
}

func TestListReports_Disabled(t *testing.T) {
	srv, _ := testServer(t, nil)
	w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/endpoints/Kitchen_Light/reports", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

// ─── Hub Tests ─────────────────────────────────────────────────────

func testHub() *Hub {
	return NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, testLogger())
}

func TestHub_BroadcastFilters(t *testing.T) {
	hub := testHub()

	all := newStreamClient(hub, nil)
	all.subscribe(Subscription{Channels: []string{endpoint.BroadcastChannel}})
	gate := newStreamClient(hub, nil)
	gate.subscribe(Subscription{Channels: []string{endpoint.BroadcastChannel}, Endpoints: []string{"Garden_Gate"}})
	idle := newStreamClient(hub, nil)
	for _, c := range []*streamClient{all, gate, idle} {
		hub.Register(c)
	}

	hub.Broadcast(endpoint.BroadcastChannel, "Kitchen_Light", map[string]any{"on": true})

	select {
	case data := <-all.send:
		var msg StreamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Type != msgEvent || msg.Channel != endpoint.BroadcastChannel || msg.Endpoint != "Kitchen_Light" {
			t.Errorf("message = %+v", msg)
		}
	default:
		t.Error("subscribed client received nothing")
	}
	if len(gate.send) != 0 {
		t.Error("client filtered to Garden_Gate received a Kitchen_Light event")
	}
	if len(idle.send) != 0 {
		t.Error("unsubscribed client received an event")
	}

	gate.unsubscribe(Subscription{Endpoints: []string{"Garden_Gate"}})
	hub.Broadcast(endpoint.BroadcastChannel, "Kitchen_Light", nil)
	if len(gate.send) != 1 {
		t.Errorf("gate queue = %d after clearing its endpoint filter, want 1", len(gate.send))
	}

	for _, c := range []*streamClient{all, gate, idle} {
		hub.Unregister(c)
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
	if all.enqueue([]byte("late")) {
		t.Error("enqueue after Unregister should fail")
	}
	hub.Unregister(all) // second unregister must not close twice
}

func TestHub_SlowClientDropsMessages(t *testing.T) {
	hub := testHub()
	c := newStreamClient(hub, nil)
	c.subscribe(Subscription{Channels: []string{"x"}})
	hub.Register(c)

	for i := 0; i < streamBufferSize+3; i++ {
		hub.Broadcast("x", "", i)
	}
	if got := c.droppedCount(); got != 3 {
		t.Errorf("dropped = %d, want 3", got)
	}
}

func TestHub_RunClosesClients(t *testing.T) {
	hub := testHub()
	c := newStreamClient(hub, nil)
	hub.Register(c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, ok := <-c.send; ok {
		t.Error("send channel still open after shutdown")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}

// ─── Stream Tests ──────────────────────────────────────────────────

func dialStream(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	ws, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	t.Cleanup(func() { ws.Close() })
	ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline
	return ws
}

func TestStream_ReceivesChangeReports(t *testing.T) {
	srv, _ := testServer(t, nil)
	ws := dialStream(t, srv)

	sub := `{"type":"subscribe","id":"sub-1","payload":{"channels":["change_report"],"endpoints":["Kitchen_Light"]}}`
	if err := ws.WriteMessage(websocket.TextMessage, []byte(sub)); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	var ack StreamMessage
	if err := ws.ReadJSON(&ack); err != nil {
		t.Fatalf("read ack: %v", err)
	}
	if ack.Type != msgAck || ack.ID != "sub-1" {
		t.Fatalf("ack = %+v", ack)
	}

	sink := endpoint.NewBroadcastSink(srv.Hub())
	for _, id := range []string{"Garden_Gate", "Kitchen_Light"} {
		report := endpoint.ChangeReport{
			EndpointID: id,
			Response:   alexa.NewChangeReport(id, alexa.CausePhysicalInteraction, nil, nil),
		}
		if err := sink.Deliver(context.Background(), report); err != nil {
			t.Fatalf("Deliver() error = %v", err)
		}
	}

	var event struct {
		Type     string         `json:"type"`
		Channel  string         `json:"channel"`
		Endpoint string         `json:"endpoint"`
		Payload  alexa.Response `json:"payload"`
	}
	if err := ws.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.Endpoint != "Kitchen_Light" {
		t.Errorf("first event endpoint = %q, want Kitchen_Light (Garden_Gate filtered)", event.Endpoint)
	}
	if event.Channel != endpoint.BroadcastChannel || event.Payload.Event.Header.Name != alexa.NameChangeReport {
		t.Errorf("event = %+v", event)
	}
}

func TestStream_Directive(t *testing.T) {
	srv, graph := testServer(t, nil)
	ws := dialStream(t, srv)

	msg := `{"type":"directive","id":"d-1","payload":{"directive":{"header":{"namespace":"Alexa.PowerController","name":"TurnOn","payloadVersion":"3","messageId":"m1","correlationToken":"c9"},"endpoint":{"endpointId":"Kitchen_Light"},"payload":{}}}}`
	if err := ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write directive: %v", err)
	}

	var reply struct {
		Type    string         `json:"type"`
		ID      string         `json:"id"`
		Payload alexa.Response `json:"payload"`
	}
	if err := ws.ReadJSON(&reply); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if reply.Type != msgResponse || reply.ID != "d-1" {
		t.Fatalf("reply = %+v", reply)
	}
	if reply.Payload.Event.Header.Name != alexa.NameResponse || reply.Payload.Event.Header.CorrelationToken != "c9" {
		t.Errorf("header = %+v", reply.Payload.Event.Header)
	}

	graph.mu.Lock()
	defer graph.mu.Unlock()
	if graph.values["hm.light.STATE"] != true {
		t.Errorf("state = %v, want true", graph.values["hm.light.STATE"])
	}
}

func TestStream_InvalidMessages(t *testing.T) {
	srv, _ := testServer(t, nil)
	ws := dialStream(t, srv)

	tests := []struct {
		name     string
		message  string
		wantType string
	}{
		{"malformed JSON", `{`, msgError},
		{"unknown type", `{"type":"reboot","id":"1"}`, msgError},
		{"empty subscription", `{"type":"subscribe","id":"2","payload":{}}`, msgError},
		{"ping", `{"type":"ping","id":"3"}`, msgPong},
		{"malformed directive", `{"type":"directive","id":"4","payload":{"directive":{}}}`, msgResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ws.WriteMessage(websocket.TextMessage, []byte(tt.message)); err != nil {
				t.Fatalf("write: %v", err)
			}
			var reply StreamMessage
			if err := ws.ReadJSON(&reply); err != nil {
				t.Fatalf("read: %v", err)
			}
			if reply.Type != tt.wantType {
				t.Errorf("reply type = %q, want %q (%+v)", reply.Type, tt.wantType, reply)
			}
		})
	}
}
