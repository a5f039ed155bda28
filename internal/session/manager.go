package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/agentsight/agentsight/internal/langfuse"
	"github.com/agentsight/agentsight/internal/otlp"
)

// Defaults applied when resource attributes do not shape the trace.
type Defaults struct {
	TraceName   string
	Tags        []string
	Environment string
}

// Manager owns the live session map, the idle sweep, and finalize.
type Manager struct {
	sink     langfuse.Sink
	logger   *slog.Logger
	timeout  time.Duration
	interval time.Duration
	defaults Defaults

	mu       sync.Mutex
	sessions map[string]*Session

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewManager creates a manager. Start must be called to begin the idle
// sweep.
func NewManager(sink langfuse.Sink, logger *slog.Logger, timeout, sweepInterval time.Duration, defaults Defaults) *Manager {
	if timeout <= 0 {
		timeout = time.Hour
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	return &Manager{
		sink:     sink,
		logger:   logger,
		timeout:  timeout,
		interval: sweepInterval,
		defaults: defaults,
		sessions: make(map[string]*Session),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// GetOrCreate returns the session for id, creating it on first sight.
// Creation is serialized by the manager mutex, so the duplicate-session
// race the original design tolerated cannot occur here. Resource
// attributes seed the Langfuse trace config once, at creation.
func (m *Manager) GetOrCreate(id, agentName, provider string, resource map[string]any) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s
	}
	s := New(id, agentName, provider)
	s.Trace = m.traceConfig(resource)
	m.sessions[id] = s
	m.logger.Info("session created",
		slog.String("session_id", id),
		slog.String("agent", agentName),
	)
	return s
}

// Get returns the live session for id, if any.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Count reports the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) traceConfig(resource map[string]any) TraceConfig {
	cfg := TraceConfig{
		TraceName: m.defaults.TraceName,
		Tags:      append([]string(nil), m.defaults.Tags...),
		Metadata:  map[string]any{},
	}
	if m.defaults.Environment != "" {
		cfg.Metadata["environment"] = m.defaults.Environment
	}
	if resource == nil {
		return cfg
	}
	if v, ok := otlp.Str(resource, "langfuse.trace.name"); ok {
		cfg.TraceName = v
	}
	if v, ok := otlp.Str(resource, "langfuse.user.id", "user.id"); ok {
		cfg.UserID = v
	}
	if v, ok := otlp.Str(resource, "langfuse.tags"); ok {
		for _, tag := range strings.Split(v, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				cfg.Tags = append(cfg.Tags, tag)
			}
		}
	}
	if v, ok := otlp.Str(resource, "service.name"); ok {
		cfg.Metadata["service.name"] = v
	}
	if v, ok := otlp.Str(resource, "service.version"); ok {
		cfg.Metadata["service.version"] = v
	}
	if v, ok := resource["langfuse.trace.metadata"].(map[string]any); ok {
		for k, val := range v {
			cfg.Metadata[k] = val
		}
	}
	return cfg
}

// Start launches the idle sweep loop.
func (m *Manager) Start() {
	go func() {
		defer close(m.doneCh)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sweep()
			case <-m.stopCh:
				return
			}
		}
	}()
}

// sweep finalizes and removes sessions idle beyond the timeout. A
// failing session is logged and skipped so it cannot block the rest.
// The idle check takes the session mutex: LastSeen is written under it
// by Touch, and the manager mutex alone orders nothing against that.
func (m *Manager) sweep() {
	type expired struct {
		s    *Session
		idle time.Duration
	}
	now := time.Now().UTC()
	var stale []expired
	m.mu.Lock()
	for id, s := range m.sessions {
		s.Lock()
		idle := s.IdleSince(now)
		s.Unlock()
		if idle < m.timeout {
			continue
		}
		stale = append(stale, expired{s, idle})
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, e := range stale {
		m.logger.Info("session expired",
			slog.String("session_id", e.s.ID),
			slog.Duration("idle", e.idle),
		)
		m.Finalize(e.s)
	}
}

// Shutdown stops the sweep and finalizes every live session in
// parallel, then flushes the sink.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		<-m.doneCh
	})

	m.mu.Lock()
	live := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		live = append(live, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range live {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			m.Finalize(s)
		}(s)
	}
	wg.Wait()

	return m.sink.Flush(ctx)
}

// Finalize computes summary statistics, emits the session-summary trace
// and derived scores, and flushes. It runs at most once per session and
// never returns an error: sink failures are logged and the remaining
// steps are skipped, matching the best-effort contract for expired and
// shutting-down sessions.
func (m *Manager) Finalize(s *Session) {
	s.Lock()
	defer s.Unlock()
	if s.finalized {
		return
	}
	s.finalized = true

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("finalize panic",
				slog.String("session_id", s.ID),
				slog.Any("panic", r),
			)
		}
	}()

	now := time.Now().UTC()

	// Close the open tool span with an outcome summary.
	if s.CurrentSpanID != "" {
		m.sink.UpdateSpan(s.CurrentSpanID, langfuse.SpanUpdate{
			TraceID: s.CurrentTraceID,
			Output:  toolSummary(s.ToolSequence),
			EndTime: now,
		})
		s.CurrentSpanID = ""
	}

	// Close the open conversation trace and record its duration.
	if s.CurrentTraceID != "" {
		if !s.ConversationStartedAt.IsZero() {
			s.RecordConversationLatency(now.Sub(s.ConversationStartedAt).Milliseconds())
		}
		m.sink.UpdateTrace(s.CurrentTraceID, langfuse.TraceUpdate{
			Output: map[string]any{
				"status":         "session_ended",
				"api_calls":      s.APICallCount,
				"tool_calls":     s.ToolCallCount,
				"total_tokens":   s.TotalTokens,
				"total_cost_usd": s.TotalCost,
			},
		})
		s.CurrentTraceID = ""
	}

	summary := map[string]any{
		"session_id":         s.ID,
		"agent":              s.AgentName,
		"provider":           s.Provider,
		"duration_ms":        now.Sub(s.StartedAt).Milliseconds(),
		"conversation_count": s.ConversationCount,
		"api_call_count":     s.APICallCount,
		"tool_call_count":    s.ToolCallCount,
		"error_count":        s.ErrorCount,
		"total_tokens":       s.TotalTokens,
		"total_cost_usd":     s.TotalCost,
		"lines_added":        s.LinesAdded,
		"lines_removed":      s.LinesRemoved,
		"tokens": map[string]any{
			"input":     s.Tokens.Input,
			"output":    s.Tokens.Output,
			"cached":    s.Tokens.Cached,
			"reasoning": s.Tokens.Reasoning,
			"tool":      s.Tokens.Tool,
		},
	}
	if stats := ComputeLatencyStats(s.APILatencies); stats != nil {
		summary["api_latency"] = stats
	}
	if stats := ComputeLatencyStats(s.ToolLatencies); stats != nil {
		summary["tool_latency"] = stats
	}
	if stats := ComputeLatencyStats(s.ConversationLatencies); stats != nil {
		summary["conversation_latency"] = stats
	}

	name := s.Trace.TraceName
	if name == "" {
		name = fmt.Sprintf("%s-session", s.AgentName)
	}
	traceID := m.sink.Trace(langfuse.TraceOptions{
		Name:      name + "-summary",
		SessionID: s.ID,
		UserID:    s.Trace.UserID,
		Input:     map[string]any{"session_id": s.ID},
		Output:    summary,
		Tags:      append(append([]string(nil), s.Trace.Tags...), "session-summary"),
		Metadata:  s.Trace.Metadata,
		Timestamp: now,
	})

	m.sink.Score(langfuse.ScoreOptions{
		TraceID: traceID,
		Name:    "session-quality",
		Value:   s.QualityScore(),
		Comment: "cache/latency/tool-success blend",
	})
	if s.TotalCost > 0 {
		m.sink.Score(langfuse.ScoreOptions{
			TraceID: traceID,
			Name:    "session-efficiency",
			Value:   s.EfficiencyScore(),
			Comment: fmt.Sprintf("%.0f tokens per dollar", float64(s.TotalTokens)/s.TotalCost),
		})
	}

	if err := m.sink.Flush(context.Background()); err != nil {
		m.logger.Warn("finalize flush failed",
			slog.String("session_id", s.ID),
			slog.String("error", err.Error()),
		)
	}

	m.logger.Info("session finalized",
		slog.String("session_id", s.ID),
		slog.Int64("conversations", s.ConversationCount),
		slog.Int64("tokens", s.TotalTokens),
		slog.Float64("cost_usd", s.TotalCost),
	)
}

// toolSummary condenses a tool sequence into the span output block.
func toolSummary(seq []ToolCall) map[string]any {
	var totalMs int64
	outcomes := make([]string, 0, len(seq))
	for _, tc := range seq {
		totalMs += tc.DurationMs
		status := "ok"
		if !tc.Success {
			status = "failed"
		}
		outcomes = append(outcomes, tc.Name+":"+status)
	}
	return map[string]any{
		"tool_count":        len(seq),
		"outcomes":          strings.Join(outcomes, ", "),
		"total_duration_ms": totalMs,
	}
}
