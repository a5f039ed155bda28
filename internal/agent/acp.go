package agent

import (
	"time"

	"github.com/agentsight/agentsight/internal/events"
	"github.com/agentsight/agentsight/internal/otlp"
)

// ACP handles Agent Client Protocol based agents. The dialect claims
// three namespaces: its own acp.* plus the generic llm.* and tool.*
// names ACP clients emit. Because the generic names can collide with
// other dialects' specific ones, ACP is always registered last.
type ACP struct{}

func NewACP() *ACP { return &ACP{} }

func (*ACP) Name() string        { return "acp" }
func (*ACP) Provider() string    { return "acp" }
func (*ACP) EventPrefix() string { return "acp." }

func (*ACP) CanHandle(eventName string) bool {
	return hasPrefix(eventName, "acp.") ||
		hasPrefix(eventName, "llm.") ||
		hasPrefix(eventName, "tool.")
}

func (*ACP) SessionID(attrs map[string]any) (string, bool) {
	return sessionFromKeys(attrs, "acp.session_id", "session.id", "acp.request_id")
}

func (*ACP) Translate(eventName, sessionID string, ts time.Time, attrs map[string]any) events.Event {
	switch eventName {
	case "acp.initialize":
		return &events.ConversationStart{
			Base: base(sessionID, ts, map[string]any{"agent": "acp"}),
			Config: events.ConversationConfig{
				Provider: otlp.StrOr(attrs, "acp", "provider", "acp.agent_name"),
				Model:    otlp.StrOr(attrs, "unknown", "model"),
				Extra: map[string]any{
					"capabilities":     otlp.JSONValue(attrs, "acp.capabilities", "capabilities"),
					"protocol_version": otlp.StrOr(attrs, "", "acp.protocol_version"),
				},
			},
		}
	case "acp.prompt", "acp.user_message":
		prompt := otlp.StrOr(attrs, "", "prompt", "message")
		return &events.UserPrompt{
			Base:         base(sessionID, ts, map[string]any{"agent": "acp"}),
			Prompt:       otlp.Truncate(prompt, maxPromptLen),
			PromptLength: otlp.IntOr(attrs, int64(len(prompt)), "prompt_length"),
		}
	case "acp.agent_lifecycle":
		lifecycle := otlp.StrOr(attrs, events.LifecycleStart, "lifecycle", "phase")
		return &events.AgentLifecycle{
			Base:              base(sessionID, ts, map[string]any{"agent": "acp"}),
			AgentName:         otlp.StrOr(attrs, "acp", "acp.agent_name", "agent_name"),
			Lifecycle:         lifecycle,
			DurationMs:        otlp.IntOr(attrs, 0, "duration_ms"),
			Turns:             otlp.IntOr(attrs, 0, "turns"),
			TerminationReason: otlp.StrOr(attrs, "", "stop_reason", "termination_reason"),
		}
	case "llm.request":
		// absent status counts as success here, unlike codex
		status := otlp.IntOr(attrs, 0, "status_code")
		return &events.APIRequest{
			Base:       base(sessionID, ts, map[string]any{"agent": "acp"}),
			Model:      otlp.StrOr(attrs, "unknown", "llm.model", "model"),
			DurationMs: otlp.IntOr(attrs, 0, "duration_ms"),
			StatusCode: status,
			Attempt:    otlp.IntOr(attrs, 1, "attempt"),
			Success:    status < 400,
			RequestID:  otlp.StrOr(attrs, "", "request_id"),
		}
	case "llm.generation", "llm.response":
		return &events.Generation{
			Base:       base(sessionID, ts, map[string]any{"agent": "acp"}),
			Model:      otlp.StrOr(attrs, "unknown", "llm.model", "model"),
			DurationMs: otlp.IntOr(attrs, 0, "duration_ms"),
			Tokens: events.NewTokenUsage(
				otlp.IntOr(attrs, 0, "llm.usage.prompt_tokens", "input_tokens"),
				otlp.IntOr(attrs, 0, "llm.usage.completion_tokens", "output_tokens"),
				otlp.IntOr(attrs, 0, "llm.usage.cached_tokens", "cached_tokens"),
				otlp.IntOr(attrs, 0, "llm.usage.reasoning_tokens", "reasoning_tokens"),
				0,
			),
			Cost:      otlp.FloatOr(attrs, 0, "llm.cost_usd", "cost_usd", "cost"),
			RequestID: otlp.StrOr(attrs, "", "request_id"),
		}
	case "llm.error":
		return &events.APIError{
			Base:         base(sessionID, ts, map[string]any{"agent": "acp"}),
			Model:        otlp.StrOr(attrs, "unknown", "llm.model", "model"),
			ErrorMessage: otlp.Truncate(otlp.StrOr(attrs, "", "error", "error_message"), maxErrorLen),
			StatusCode:   otlp.IntOr(attrs, 0, "status_code"),
			DurationMs:   otlp.IntOr(attrs, 0, "duration_ms"),
		}
	case "tool.decision":
		decision := otlp.StrOr(attrs, "", "decision")
		return &events.ToolDecision{
			Base:     base(sessionID, ts, map[string]any{"agent": "acp"}),
			ToolName: otlp.StrOr(attrs, "unknown", "tool.name", "tool_name", "name"),
			CallID:   otlp.StrOr(attrs, "", "tool.call_id", "call_id"),
			Decision: decision,
			Source:   otlp.StrOr(attrs, "", "source"),
			Approved: decision == "approved" || decision == "allow",
		}
	case "tool.call", "tool.result":
		success, ok := otlp.Bool(attrs, "success")
		if !ok {
			success = otlp.StrOr(attrs, "", "tool.status", "status") != "error"
		}
		return &events.ToolResult{
			Base:       base(sessionID, ts, map[string]any{"agent": "acp"}),
			ToolName:   otlp.StrOr(attrs, "unknown", "tool.name", "tool_name", "name"),
			CallID:     otlp.StrOr(attrs, "", "tool.call_id", "call_id"),
			Success:    success,
			DurationMs: otlp.IntOr(attrs, 0, "duration_ms"),
			Arguments:  otlp.JSONValue(attrs, "tool.input", "arguments", "params"),
			Output:     otlp.Truncate(otlp.StrOr(attrs, "", "tool.output", "output"), maxOutputLen),
			Error:      otlp.Truncate(otlp.StrOr(attrs, "", "tool.error", "error"), maxErrorLen),
		}
	}
	return nil
}
