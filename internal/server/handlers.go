package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/agentsight/agentsight/internal/agent"
	"github.com/agentsight/agentsight/internal/export"
	"github.com/agentsight/agentsight/internal/otlp"
	"github.com/agentsight/agentsight/internal/session"
	"github.com/agentsight/agentsight/internal/sink"
)

// Handlers drives the registry -> session -> sink pipeline for each
// inbound OTLP payload.
type Handlers struct {
	registry *agent.Registry
	sessions *session.Manager
	sink     *sink.Sink
	exporter *export.Exporter
	logger   *slog.Logger

	maxBodyBytes    int64
	langfuseEnabled bool

	startedAt    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

// NewHandlers wires the pipeline components.
func NewHandlers(registry *agent.Registry, sessions *session.Manager, snk *sink.Sink, exporter *export.Exporter, logger *slog.Logger, maxBodyBytes int64, langfuseEnabled bool) *Handlers {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 10 << 20
	}
	return &Handlers{
		registry:        registry,
		sessions:        sessions,
		sink:            snk,
		exporter:        exporter,
		logger:          logger,
		maxBodyBytes:    maxBodyBytes,
		langfuseEnabled: langfuseEnabled,
		startedAt:       time.Now().UTC(),
	}
}

// HandleLogs ingests an OTLP-JSON logs payload. Syntactically valid
// JSON always gets a 200 regardless of downstream outcome; OTLP
// producers have no retry contract, so acceptance is best-effort.
func (h *Handlers) HandleLogs(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	var req otlp.ExportLogsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.badRequest(w, err)
		return
	}
	h.requestCount.Add(1)
	h.exporter.ExportAsync(export.SignalLogs, body)

	for _, rl := range req.ResourceLogs {
		resource := otlp.ExtractAttributes(rl.Resource.Attributes)
		for _, sl := range rl.ScopeLogs {
			for _, rec := range sl.LogRecords {
				h.processLogRecord(rec, resource)
			}
		}
	}
	h.accepted(w)
}

// HandleMetrics ingests an OTLP-JSON metrics payload. Each data point
// runs through the same pipeline with the metric name as the event
// name and the point's value injected as metric.value.
func (h *Handlers) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	var req otlp.ExportMetricsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.badRequest(w, err)
		return
	}
	h.requestCount.Add(1)
	h.exporter.ExportAsync(export.SignalMetrics, body)

	for _, rm := range req.ResourceMetrics {
		resource := otlp.ExtractAttributes(rm.Resource.Attributes)
		for _, sm := range rm.ScopeMetrics {
			for _, metric := range sm.Metrics {
				for _, dp := range dataPoints(metric) {
					h.processDataPoint(metric.Name, dp, resource)
				}
			}
		}
	}
	h.accepted(w)
}

// HandleTraces accepts OTLP-JSON traces for wire compatibility but does
// not process them; no supported CLI emits spans today.
func (h *Handlers) HandleTraces(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	var req otlp.ExportTracesRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.badRequest(w, err)
		return
	}
	h.requestCount.Add(1)

	var spans int
	for _, rs := range req.ResourceSpans {
		for _, ss := range rs.ScopeSpans {
			spans += len(ss.Spans)
		}
	}
	if spans > 0 {
		h.logger.Debug("traces accepted but not processed", slog.Int("spans", spans))
	}
	h.accepted(w)
}

// HandleHealth reports receiver status and the registry summary.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	agents := h.registry.Agents()
	agentInfo := make([]map[string]string, 0, len(agents))
	for _, a := range agents {
		agentInfo = append(agentInfo, map[string]string{
			"name":        a.Name(),
			"provider":    a.Provider(),
			"eventPrefix": a.EventPrefix(),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":       "ok",
		"uptime":       time.Since(h.startedAt).Round(time.Second).String(),
		"sessions":     h.sessions.Count(),
		"requestCount": h.requestCount.Load(),
		"errorCount":   h.errorCount.Load(),
		"langfuse":     h.langfuseEnabled,
		"agents": map[string]any{
			"count": len(agents),
			"list":  agentInfo,
		},
	})
}

func (h *Handlers) processLogRecord(rec otlp.LogRecord, resource map[string]any) {
	attrs := otlp.ExtractAttributes(rec.Attributes)
	eventName := h.eventName(rec, attrs)
	if eventName == "" {
		return
	}
	ts := otlp.ParseTime(rec.TimeUnixNano)
	h.dispatch(eventName, ts, attrs, resource)
}

func (h *Handlers) processDataPoint(metricName string, dp otlp.NumberDataPoint, resource map[string]any) {
	attrs := otlp.ExtractAttributes(dp.Attributes)
	attrs["metric.value"] = dp.Value()
	ts := otlp.ParseTime(dp.TimeUnixNano)
	h.dispatch(metricName, ts, attrs, resource)
}

func (h *Handlers) dispatch(eventName string, ts time.Time, attrs, resource map[string]any) {
	a := h.registry.Detect(eventName)
	if a == nil {
		h.logger.Debug("no agent claims event", slog.String("event", eventName))
		return
	}

	sessionID, ok := a.SessionID(attrs)
	if !ok {
		sessionID, ok = a.SessionID(resource)
	}
	if !ok {
		sessionID = fallbackSessionID(a.Name(), attrs, resource, ts)
	}

	sess := h.sessions.GetOrCreate(sessionID, a.Name(), a.Provider(), resource)

	ev := a.Translate(eventName, sessionID, ts, attrs)
	if ev == nil {
		h.logger.Debug("unrecognized event suffix",
			slog.String("agent", a.Name()),
			slog.String("event", eventName),
		)
		return
	}
	h.sink.Apply(ev, sess)
}

// eventName resolves the event name from the event.name attribute or,
// failing that, the record body. CLIs differ on which one carries it.
func (h *Handlers) eventName(rec otlp.LogRecord, attrs map[string]any) string {
	if name, ok := otlp.Str(attrs, "event.name", "event_name"); ok {
		return name
	}
	if rec.Body != nil && rec.Body.StringValue != nil {
		return *rec.Body.StringValue
	}
	return ""
}

// fallbackSessionID groups otherwise-anonymous events into hour-long
// buckets per agent and user.
func fallbackSessionID(agentName string, attrs, resource map[string]any, ts time.Time) string {
	user := otlp.StrOr(attrs, "", "user.id", "user.email")
	if user == "" {
		user = otlp.StrOr(resource, "anonymous", "user.id", "user.email")
	}
	return fmt.Sprintf("%s-%s-%s", agentName, user, ts.Format("2006010215"))
}

func (h *Handlers) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		h.badRequest(w, fmt.Errorf("read body: %w", err))
		return nil, false
	}
	return body, true
}

func (h *Handlers) badRequest(w http.ResponseWriter, err error) {
	h.errorCount.Add(1)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func (h *Handlers) accepted(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"partialSuccess": map[string]any{}})
}

func dataPoints(m otlp.Metric) []otlp.NumberDataPoint {
	switch {
	case m.Sum != nil:
		return m.Sum.DataPoints
	case m.Gauge != nil:
		return m.Gauge.DataPoints
	default:
		return nil
	}
}
