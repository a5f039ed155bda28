// Package sink consumes normalized events, updates session state, and
// issues the corresponding Langfuse calls. All downstream failures are
// absorbed here; the ingest path never observes them.
package sink

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/agentsight/agentsight/internal/events"
	"github.com/agentsight/agentsight/internal/langfuse"
	"github.com/agentsight/agentsight/internal/session"
)

// promptPlaceholder opens a trace when events arrive before any prompt
// was captured for the conversation.
const promptPlaceholder = "(prompt not captured)"

// Sink applies normalized events to sessions.
type Sink struct {
	lf     langfuse.Sink
	logger *slog.Logger
}

// New creates a sink over the given Langfuse client.
func New(lf langfuse.Sink, logger *slog.Logger) *Sink {
	return &Sink{lf: lf, logger: logger}
}

// Apply dispatches one event. The session lock is held for the whole
// handling so concurrent requests for the same session id serialize.
func (k *Sink) Apply(ev events.Event, s *session.Session) {
	s.Lock()
	defer s.Unlock()
	s.Touch()

	switch e := ev.(type) {
	case *events.ConversationStart:
		k.applyConversationStart(e, s)
	case *events.UserPrompt:
		k.applyUserPrompt(e, s)
	case *events.APIRequest:
		k.applyAPIRequest(e, s)
	case *events.APIError:
		k.applyAPIError(e, s)
	case *events.Generation:
		k.applyGeneration(e, s)
	case *events.ToolDecision:
		k.applyToolDecision(e, s)
	case *events.ToolResult:
		k.applyToolResult(e, s)
	case *events.FileOperation:
		k.applyFileOperation(e, s)
	case *events.AgentLifecycle:
		k.applyAgentLifecycle(e, s)
	default:
		k.logger.Debug("unhandled event kind", slog.String("kind", string(ev.Kind())))
	}
}

// startConversation opens a new trace and resets per-conversation
// state. Any open conversation is ended first.
func (k *Sink) startConversation(s *session.Session, ts time.Time, input any, meta map[string]any) {
	if s.CurrentTraceID != "" {
		k.endConversation(s, ts)
	}

	name := s.Trace.TraceName
	if name == "" {
		name = fmt.Sprintf("%s-conversation", s.AgentName)
	}
	merged := map[string]any{
		"session_id": s.ID,
		"agent":      s.AgentName,
		"provider":   s.Provider,
	}
	for key, v := range s.Trace.Metadata {
		merged[key] = v
	}
	for key, v := range meta {
		merged[key] = v
	}

	s.CurrentTraceID = k.lf.Trace(langfuse.TraceOptions{
		Name:      name,
		SessionID: s.ID,
		UserID:    s.Trace.UserID,
		Input:     input,
		Tags:      s.Trace.Tags,
		Metadata:  merged,
		Timestamp: ts,
	})
	s.ConversationStartedAt = ts
	s.ConversationCount++
	s.ToolSequence = nil
	s.CurrentSpanID = ""
}

// endConversation closes the open trace and records its duration.
func (k *Sink) endConversation(s *session.Session, ts time.Time) {
	if s.CurrentSpanID != "" {
		k.lf.UpdateSpan(s.CurrentSpanID, langfuse.SpanUpdate{
			TraceID: s.CurrentTraceID,
			Output:  map[string]any{"tool_calls": len(s.ToolSequence)},
			EndTime: ts,
		})
		s.CurrentSpanID = ""
	}
	if !s.ConversationStartedAt.IsZero() {
		s.RecordConversationLatency(ts.Sub(s.ConversationStartedAt).Milliseconds())
	}
	k.lf.UpdateTrace(s.CurrentTraceID, langfuse.TraceUpdate{
		Output: map[string]any{
			"status":       "ended",
			"api_calls":    s.APICallCount,
			"tool_calls":   s.ToolCallCount,
			"total_tokens": s.TotalTokens,
		},
	})
	s.CurrentTraceID = ""
	s.ConversationStartedAt = time.Time{}
}

// ensureConversation lazily opens a trace for events that can arrive
// before any explicit start. The last captured prompt is preferred as
// the trace input.
func (k *Sink) ensureConversation(s *session.Session, ts time.Time) {
	if s.CurrentTraceID != "" {
		return
	}
	input := any(promptPlaceholder)
	if s.LastPrompt != "" {
		input = s.LastPrompt
	}
	k.startConversation(s, ts, input, nil)
}

func (k *Sink) applyConversationStart(e *events.ConversationStart, s *session.Session) {
	meta := map[string]any{
		"model":             e.Config.Model,
		"approval_policy":   e.Config.ApprovalPolicy,
		"sandbox_policy":    e.Config.SandboxPolicy,
		"context_window":    e.Config.ContextWindow,
		"max_output_tokens": e.Config.MaxOutputTokens,
	}
	for key, v := range e.Config.Extra {
		meta["config."+key] = v
	}
	for key, v := range e.Meta {
		meta[key] = v
	}
	if e.UserID != "" && s.Trace.UserID == "" {
		s.Trace.UserID = e.UserID
	}
	k.startConversation(s, e.Time, map[string]any{"event": "conversation_start"}, meta)
}

func (k *Sink) applyUserPrompt(e *events.UserPrompt, s *session.Session) {
	s.LastPrompt = e.Prompt
	if e.UserID != "" && s.Trace.UserID == "" {
		s.Trace.UserID = e.UserID
	}
	if s.CurrentTraceID == "" {
		input := any(promptPlaceholder)
		if e.Prompt != "" {
			input = e.Prompt
		}
		k.startConversation(s, e.Time, input, map[string]any{
			"prompt_length": e.PromptLength,
		})
		return
	}
	k.lf.Event(langfuse.EventOptions{
		TraceID:   s.CurrentTraceID,
		Name:      "user-prompt",
		Input:     e.Prompt,
		Metadata:  mergeMeta(e.Meta, map[string]any{"prompt_length": e.PromptLength}),
		Level:     langfuse.LevelDefault,
		Timestamp: e.Time,
	})
}

func (k *Sink) applyAPIRequest(e *events.APIRequest, s *session.Session) {
	s.APICallCount++
	s.RecordAPILatency(e.DurationMs)

	level := langfuse.LevelDefault
	if !e.Success && e.StatusCode >= 400 {
		level = langfuse.LevelWarning
	}
	k.ensureConversation(s, e.Time)
	k.lf.Event(langfuse.EventOptions{
		TraceID: s.CurrentTraceID,
		Name:    "api-request",
		Input:   map[string]any{"model": e.Model, "attempt": e.Attempt},
		Output:  map[string]any{"status_code": e.StatusCode, "duration_ms": e.DurationMs},
		Metadata: mergeMeta(e.Meta, map[string]any{
			"request_id": e.RequestID,
		}),
		Level:     level,
		Timestamp: e.Time,
	})
}

func (k *Sink) applyAPIError(e *events.APIError, s *session.Session) {
	s.ErrorCount++
	s.RecordAPILatency(e.DurationMs)

	k.ensureConversation(s, e.Time)
	k.lf.Event(langfuse.EventOptions{
		TraceID: s.CurrentTraceID,
		Name:    "api-error",
		Input:   map[string]any{"model": e.Model, "attempt": e.Attempt},
		Output:  map[string]any{"error": e.ErrorMessage, "status_code": e.StatusCode},
		Metadata: mergeMeta(e.Meta, map[string]any{
			"request_id":  e.RequestID,
			"duration_ms": e.DurationMs,
		}),
		Level:     langfuse.LevelError,
		Timestamp: e.Time,
	})
}

func (k *Sink) applyGeneration(e *events.Generation, s *session.Session) {
	k.ensureConversation(s, e.Time)

	s.APICallCount++
	s.RecordAPILatency(e.DurationMs)
	s.AddUsage(e.Tokens.Input, e.Tokens.Output, e.Tokens.Cached,
		e.Tokens.Reasoning, e.Tokens.Tool, e.Tokens.Total, e.Cost)

	// Small router models are tagged separately so dashboards can
	// filter the cheap routing chatter out of generation analytics.
	name, level := "generation", langfuse.LevelDefault
	if isRoutingModel(e.Model) {
		name, level = "routing", langfuse.LevelDebug
	}

	start := e.Time
	if e.DurationMs > 0 {
		start = e.Time.Add(-time.Duration(e.DurationMs) * time.Millisecond)
	}
	k.lf.Generation(langfuse.GenerationOptions{
		TraceID: s.CurrentTraceID,
		Name:    name,
		Model:   e.Model,
		Input:   e.Input,
		Output:  e.Output,
		Metadata: mergeMeta(e.Meta, map[string]any{
			"request_id":       e.RequestID,
			"cached_tokens":    e.Tokens.Cached,
			"reasoning_tokens": e.Tokens.Reasoning,
			"tool_tokens":      e.Tokens.Tool,
		}),
		Level:     level,
		StartTime: start,
		EndTime:   e.Time,
		Usage: langfuse.Usage{
			Input:  e.Tokens.Input,
			Output: e.Tokens.Output,
			Total:  e.Tokens.Total,
		},
		CostUSD: e.Cost,
	})
}

func (k *Sink) applyToolDecision(e *events.ToolDecision, s *session.Session) {
	level := langfuse.LevelDefault
	if !e.Approved {
		level = langfuse.LevelWarning
	}
	k.ensureConversation(s, e.Time)
	k.lf.Event(langfuse.EventOptions{
		TraceID: s.CurrentTraceID,
		Name:    "tool-decision",
		Input:   map[string]any{"tool": e.ToolName, "decision": e.Decision},
		Metadata: mergeMeta(e.Meta, map[string]any{
			"call_id": e.CallID,
			"source":  e.Source,
		}),
		Level:     level,
		Timestamp: e.Time,
	})
}

func (k *Sink) applyToolResult(e *events.ToolResult, s *session.Session) {
	k.ensureConversation(s, e.Time)

	s.ToolCallCount++
	s.RecordToolLatency(e.DurationMs)
	s.ToolSequence = append(s.ToolSequence, session.ToolCall{
		Name:       e.ToolName,
		Success:    e.Success,
		DurationMs: e.DurationMs,
		Timestamp:  e.Time,
		Arguments:  e.Arguments,
		Error:      e.Error,
	})

	// Tool activity for a conversation is grouped under one span; it is
	// opened on the first tool result and closed when the conversation
	// or session ends.
	if s.CurrentSpanID == "" {
		s.CurrentSpanID = k.lf.Span(langfuse.SpanOptions{
			TraceID:   s.CurrentTraceID,
			Name:      "tool-activity",
			StartTime: e.Time,
		})
	}

	level := langfuse.LevelDefault
	if !e.Success {
		level = langfuse.LevelError
	}
	k.lf.Event(langfuse.EventOptions{
		TraceID: s.CurrentTraceID,
		Name:    "tool-result",
		Input:   map[string]any{"tool": e.ToolName, "arguments": e.Arguments},
		Output:  map[string]any{"success": e.Success, "output": e.Output, "error": e.Error},
		Metadata: mergeMeta(e.Meta, map[string]any{
			"call_id":     e.CallID,
			"duration_ms": e.DurationMs,
		}),
		Level:     level,
		Timestamp: e.Time,
	})
}

func (k *Sink) applyFileOperation(e *events.FileOperation, s *session.Session) {
	switch e.Operation {
	case "removed", "deleted":
		s.LinesRemoved += e.Lines
	default:
		s.LinesAdded += e.Lines
	}
	k.ensureConversation(s, e.Time)
	k.lf.Event(langfuse.EventOptions{
		TraceID: s.CurrentTraceID,
		Name:    "file-operation",
		Input:   map[string]any{"tool": e.ToolName, "operation": e.Operation},
		Output:  map[string]any{"lines": e.Lines},
		Metadata: mergeMeta(e.Meta, map[string]any{
			"extension": e.Extension,
			"language":  e.Language,
			"mimetype":  e.MimeType,
		}),
		Level:     langfuse.LevelDebug,
		Timestamp: e.Time,
	})
}

func (k *Sink) applyAgentLifecycle(e *events.AgentLifecycle, s *session.Session) {
	k.ensureConversation(s, e.Time)
	k.lf.Event(langfuse.EventOptions{
		TraceID: s.CurrentTraceID,
		Name:    "agent-" + e.Lifecycle,
		Input:   map[string]any{"agent": e.AgentName},
		Output: map[string]any{
			"duration_ms": e.DurationMs,
			"turns":       e.Turns,
			"reason":      e.TerminationReason,
		},
		Metadata:  e.Meta,
		Level:     langfuse.LevelDefault,
		Timestamp: e.Time,
	})
	// A finished agent closes the conversation so the next prompt opens
	// a fresh trace.
	if e.Lifecycle == events.LifecycleFinish {
		k.endConversation(s, e.Time)
	}
}

func isRoutingModel(model string) bool {
	lower := strings.ToLower(model)
	return strings.Contains(lower, "haiku") || strings.Contains(lower, "mini")
}

func mergeMeta(base, extra map[string]any) map[string]any {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
