package export

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"google.golang.org/protobuf/proto"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const sampleLogsJSON = `{
	"resourceLogs": [{
		"resource": {"attributes": [{"key": "service.name", "value": {"stringValue": "claude-code"}}]},
		"scopeLogs": [{
			"logRecords": [{
				"timeUnixNano": "1717243200000000000",
				"body": {"stringValue": "claude_code.user_prompt"},
				"attributes": [{"key": "session.id", "value": {"stringValue": "s1"}}]
			}]
		}]
	}]
}`

func TestEndpointFor(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		signal Signal
		want   string
	}{
		{
			"base endpoint gains signal path",
			Config{Endpoint: "http://collector:4318"},
			SignalLogs,
			"http://collector:4318/v1/logs",
		},
		{
			"trailing slash trimmed",
			Config{Endpoint: "http://collector:4318/"},
			SignalMetrics,
			"http://collector:4318/v1/metrics",
		},
		{
			"path already present",
			Config{Endpoint: "http://collector:4318/v1/logs"},
			SignalLogs,
			"http://collector:4318/v1/logs",
		},
		{
			"per-signal override wins",
			Config{Endpoint: "http://collector:4318", LogsEndpoint: "http://other:4318/ingest"},
			SignalLogs,
			"http://other:4318/ingest",
		},
		{
			"grpc endpoint verbatim",
			Config{Protocol: ProtocolGRPC, Endpoint: "collector:4317"},
			SignalLogs,
			"collector:4317",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(tt.cfg, testLogger())
			if got := e.endpointFor(tt.signal); got != tt.want {
				t.Errorf("endpointFor(%s) = %q, want %q", tt.signal, got, tt.want)
			}
		})
	}
}

func TestExportHTTPJSON(t *testing.T) {
	var mu sync.Mutex
	var gotPath, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	e := New(Config{
		Enabled:  true,
		Endpoint: srv.URL,
		Protocol: ProtocolHTTPJSON,
		Headers:  map[string]string{"X-Api-Key": "k1"},
	}, testLogger())

	if err := e.Export(context.Background(), SignalLogs, []byte(sampleLogsJSON)); err != nil {
		t.Fatalf("Export: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if gotPath != "/v1/logs" {
		t.Errorf("path = %q, want /v1/logs", gotPath)
	}
	if gotType != "application/json" {
		t.Errorf("content type = %q", gotType)
	}
	if string(gotBody) != sampleLogsJSON {
		t.Error("body altered in transit")
	}
}

func TestExportHTTPProtobufReencodes(t *testing.T) {
	var mu sync.Mutex
	var gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	e := New(Config{
		Enabled:  true,
		Endpoint: srv.URL,
		Protocol: ProtocolHTTPProtobuf,
	}, testLogger())

	if err := e.Export(context.Background(), SignalLogs, []byte(sampleLogsJSON)); err != nil {
		t.Fatalf("Export: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if gotType != "application/x-protobuf" {
		t.Errorf("content type = %q", gotType)
	}
	var req collogspb.ExportLogsServiceRequest
	if err := proto.Unmarshal(gotBody, &req); err != nil {
		t.Fatalf("wire body is not valid protobuf: %v", err)
	}
	if len(req.ResourceLogs) != 1 || len(req.ResourceLogs[0].ScopeLogs[0].LogRecords) != 1 {
		t.Errorf("re-encoded request lost records: %+v", &req)
	}
	if got := req.ResourceLogs[0].ScopeLogs[0].LogRecords[0].Body.GetStringValue(); got != "claude_code.user_prompt" {
		t.Errorf("record body = %q", got)
	}
}

func TestExportRetriesServerErrors(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	e := New(Config{
		Enabled:  true,
		Endpoint: srv.URL,
		Protocol: ProtocolHTTPJSON,
		Retries:  3,
	}, testLogger())

	if err := e.Export(context.Background(), SignalLogs, []byte(sampleLogsJSON)); err != nil {
		t.Fatalf("Export after retries: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestExportDisabledIsNoop(t *testing.T) {
	e := New(Config{Enabled: false}, testLogger())
	if e.Enabled() {
		t.Fatal("exporter with no endpoint reports enabled")
	}
	// ExportAsync must not panic or block when disabled.
	e.ExportAsync(SignalLogs, []byte(sampleLogsJSON))
}

func TestExportAsyncCopiesPayload(t *testing.T) {
	received := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- body
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	e := New(Config{
		Enabled:  true,
		Endpoint: srv.URL,
		Protocol: ProtocolHTTPJSON,
	}, testLogger())

	payload := []byte(`{"resourceLogs":[]}`)
	e.ExportAsync(SignalLogs, payload)
	// Clobber the caller's buffer immediately; the exporter must have
	// copied it before detaching.
	for i := range payload {
		payload[i] = 'x'
	}

	select {
	case body := <-received:
		if string(body) != `{"resourceLogs":[]}` {
			t.Errorf("exported body = %q", body)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("export never arrived")
	}
}

func TestDecodeRequestRejectsMalformedJSON(t *testing.T) {
	if _, err := decodeRequest(SignalLogs, []byte("{not json")); err == nil {
		t.Error("malformed payload decoded without error")
	}
	// Unknown fields are tolerated, matching permissive CLI senders.
	if _, err := decodeRequest(SignalLogs, []byte(`{"resourceLogs":[],"futureField":1}`)); err != nil {
		t.Errorf("unknown field rejected: %v", err)
	}
}
