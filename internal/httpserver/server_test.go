package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tinytelemetry/netlogger/internal/model"
	"github.com/tinytelemetry/netlogger/internal/sink"
	"github.com/tinytelemetry/netlogger/internal/tcpserver"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStatus struct {
	state  tcpserver.State
	remote string
}

func (f *fakeStatus) State() tcpserver.State { return f.state }
func (f *fakeStatus) RemoteAddr() string     { return f.remote }

type fakeFilters struct {
	enabled [model.NumSeverities]bool
	sent    bool
	err     error
	calls   int
}

func (f *fakeFilters) Filters() [model.NumSeverities]bool { return f.enabled }

func (f *fakeFilters) SetFilter(sev model.Severity, enabled bool) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	f.enabled[sev] = enabled
	return f.sent, nil
}

func newTestServer(t *testing.T) (*fakeStatus, *fakeFilters, *sink.Ring, *gin.Engine) {
	t.Helper()
	status := &fakeStatus{state: tcpserver.StateListening}
	filters := &fakeFilters{enabled: [model.NumSeverities]bool{true, true, true, true}}
	ring := sink.NewRing(16)
	srv := NewServer("", status, filters, ring)
	return status, filters, ring, srv.routes()
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestNewServer_DefaultAddress(t *testing.T) {
	t.Parallel()

	s := NewServer("", nil, nil, nil)
	if got := s.Addr(); got != "0.0.0.0:3000" {
		t.Fatalf("Addr() = %q, want %q", got, "0.0.0.0:3000")
	}
}

func TestHealthEndpoint(t *testing.T) {
	status, _, _, r := newTestServer(t)
	status.state = tcpserver.StateRunning
	status.remote = "10.0.0.7:40000"

	w := do(r, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["state"] != "running" {
		t.Errorf("state = %v, want running", body["state"])
	}
	if body["connected"] != true {
		t.Errorf("connected = %v, want true", body["connected"])
	}
	if body["remote"] != "10.0.0.7:40000" {
		t.Errorf("remote = %v, want 10.0.0.7:40000", body["remote"])
	}
}

func TestHealthEndpoint_WrongMethod(t *testing.T) {
	_, _, _, r := newTestServer(t)

	w := do(r, http.MethodPost, "/api/health", "")
	if w.Code != http.StatusMethodNotAllowed && w.Code != http.StatusNotFound {
		t.Errorf("health POST status = %d, want 405 or 404", w.Code)
	}
}

func TestFiltersEndpoint(t *testing.T) {
	_, filters, _, r := newTestServer(t)
	filters.enabled[model.SeverityDebug] = false

	w := do(r, http.MethodGet, "/api/filters", "")
	if w.Code != http.StatusOK {
		t.Fatalf("filters status = %d, want %d", w.Code, http.StatusOK)
	}

	var body struct {
		Filters []filterView `json:"filters"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal filters: %v", err)
	}
	want := []filterView{
		{Severity: 0, Name: "Debug", Enabled: false},
		{Severity: 1, Name: "Info", Enabled: true},
		{Severity: 2, Name: "Warning", Enabled: true},
		{Severity: 3, Name: "Error", Enabled: true},
	}
	if len(body.Filters) != len(want) {
		t.Fatalf("filters = %+v, want %+v", body.Filters, want)
	}
	for i := range want {
		if body.Filters[i] != want[i] {
			t.Errorf("filters[%d] = %+v, want %+v", i, body.Filters[i], want[i])
		}
	}
}

func TestSetFilterEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     string
		sent     bool
		wantCode int
		wantSev  model.Severity
	}{
		{name: "numeric", path: "/api/filters/3", body: `{"enabled": false}`, sent: true, wantCode: http.StatusOK, wantSev: model.SeverityError},
		{name: "name", path: "/api/filters/warn", body: `{"enabled": false}`, wantCode: http.StatusOK, wantSev: model.SeverityWarning},
		{name: "unknown severity", path: "/api/filters/7", body: `{"enabled": false}`, wantCode: http.StatusBadRequest},
		{name: "bad name", path: "/api/filters/loud", body: `{"enabled": false}`, wantCode: http.StatusBadRequest},
		{name: "missing field", path: "/api/filters/0", body: `{}`, wantCode: http.StatusBadRequest},
		{name: "bad json", path: "/api/filters/0", body: `{`, wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, filters, _, r := newTestServer(t)
			filters.sent = tt.sent

			w := do(r, http.MethodPut, tt.path, tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d; body: %s", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				if filters.calls != 0 {
					t.Fatalf("SetFilter calls = %d, want 0", filters.calls)
				}
				return
			}
			if filters.enabled[tt.wantSev] {
				t.Fatalf("filter %s still enabled", tt.wantSev)
			}

			var body map[string]interface{}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if body["sent"] != tt.sent {
				t.Errorf("sent = %v, want %v", body["sent"], tt.sent)
			}
			if body["name"] != tt.wantSev.String() {
				t.Errorf("name = %v, want %v", body["name"], tt.wantSev.String())
			}
		})
	}
}

func TestSetFilterEndpoint_ControlError(t *testing.T) {
	_, filters, _, r := newTestServer(t)
	filters.err = errors.New("write timeout")

	w := do(r, http.MethodPut, "/api/filters/1", `{"enabled": true}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestRecordsEndpoint(t *testing.T) {
	_, _, ring, r := newTestServer(t)
	ring.OnRecord(model.LogRecord{Severity: model.SeverityWarning, Thread: "T1", File: "a.c", Line: 42, Message: "boom"})
	ring.OnRecord(model.LogRecord{Severity: model.Severity(9), Thread: "T2", File: "b.c", Line: 1, Message: "odd"})
	ring.OnDisconnect(true)

	w := do(r, http.MethodGet, "/api/records", "")
	if w.Code != http.StatusOK {
		t.Fatalf("records status = %d, want %d", w.Code, http.StatusOK)
	}

	var body struct {
		Records []recordView `json:"records"`
		Count   int          `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal records: %v", err)
	}
	if body.Count != 3 {
		t.Fatalf("count = %d, want 3", body.Count)
	}
	if got := body.Records[0]; got.Level != "Warning" || got.Line != "42" || got.Message != "boom" {
		t.Errorf("records[0] = %+v", got)
	}
	if got := body.Records[1]; got.Level != "???" || got.Severity == nil || *got.Severity != 9 {
		t.Errorf("records[1] = %+v, want unknown severity 9", got)
	}
	marker := body.Records[2]
	if marker.Kind != "disconnect" || marker.Message != sink.DisconnectLabel || marker.Level != "-" || marker.Severity != nil {
		t.Errorf("records[2] = %+v, want disconnect marker", marker)
	}
}

func TestRecordsEndpoint_Limit(t *testing.T) {
	_, _, ring, r := newTestServer(t)
	for _, msg := range []string{"a", "b", "c"} {
		ring.OnRecord(model.LogRecord{Message: msg})
	}

	w := do(r, http.MethodGet, "/api/records?limit=1", "")
	var body struct {
		Records []recordView `json:"records"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal records: %v", err)
	}
	if len(body.Records) != 1 || body.Records[0].Message != "c" {
		t.Fatalf("records = %+v, want only c", body.Records)
	}

	for _, bad := range []string{"0", "-1", "x"} {
		w := do(r, http.MethodGet, "/api/records?limit="+bad, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s status = %d, want %d", bad, w.Code, http.StatusBadRequest)
		}
	}
}
