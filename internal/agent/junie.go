package agent

import (
	"time"

	"github.com/agentsight/agentsight/internal/events"
	"github.com/agentsight/agentsight/internal/otlp"
)

const juniePrefix = "junie."

// Junie handles the JetBrains Junie agent dialect.
type Junie struct{}

func NewJunie() *Junie { return &Junie{} }

func (*Junie) Name() string        { return "junie" }
func (*Junie) Provider() string    { return "jetbrains" }
func (*Junie) EventPrefix() string { return juniePrefix }

func (*Junie) CanHandle(eventName string) bool {
	return hasPrefix(eventName, juniePrefix)
}

func (*Junie) SessionID(attrs map[string]any) (string, bool) {
	return sessionFromKeys(attrs, "junie.session.id", "session.id")
}

func (*Junie) Translate(eventName, sessionID string, ts time.Time, attrs map[string]any) events.Event {
	switch eventName[len(juniePrefix):] {
	case "session.start":
		return &events.ConversationStart{
			Base:   base(sessionID, ts, map[string]any{"agent": "junie", "ide": otlp.StrOr(attrs, "", "ide.name")}),
			UserID: otlp.StrOr(attrs, "", "user.id"),
			Config: events.ConversationConfig{
				Provider:      "jetbrains",
				Model:         otlp.StrOr(attrs, "unknown", "model", "llm.model"),
				ContextWindow: otlp.IntOr(attrs, 0, "context_window"),
				Extra: map[string]any{
					"ide_version": otlp.StrOr(attrs, "", "ide.version"),
					"mode":        otlp.StrOr(attrs, "", "mode"),
				},
			},
		}
	case "user.message":
		prompt := otlp.StrOr(attrs, "", "message", "prompt")
		return &events.UserPrompt{
			Base:         base(sessionID, ts, map[string]any{"agent": "junie"}),
			UserID:       otlp.StrOr(attrs, "", "user.id"),
			Prompt:       otlp.Truncate(prompt, maxPromptLen),
			PromptLength: otlp.IntOr(attrs, int64(len(prompt)), "message_length", "prompt_length"),
		}
	case "llm.request":
		// absent status counts as success here, unlike codex
		status := otlp.IntOr(attrs, 0, "status_code")
		return &events.APIRequest{
			Base:       base(sessionID, ts, map[string]any{"agent": "junie"}),
			Model:      otlp.StrOr(attrs, "unknown", "model", "llm.model"),
			DurationMs: otlp.IntOr(attrs, 0, "duration_ms"),
			StatusCode: status,
			Attempt:    otlp.IntOr(attrs, 1, "attempt"),
			Success:    status < 400,
			RequestID:  otlp.StrOr(attrs, "", "request_id"),
		}
	case "llm.response":
		return &events.Generation{
			Base:       base(sessionID, ts, map[string]any{"agent": "junie"}),
			Model:      otlp.StrOr(attrs, "unknown", "model", "llm.model"),
			DurationMs: otlp.IntOr(attrs, 0, "duration_ms"),
			Tokens: events.NewTokenUsage(
				otlp.IntOr(attrs, 0, "input_tokens", "prompt_tokens"),
				otlp.IntOr(attrs, 0, "output_tokens", "completion_tokens"),
				otlp.IntOr(attrs, 0, "cached_tokens"),
				0, 0,
			),
			Cost:      otlp.FloatOr(attrs, 0, "cost_usd", "cost"),
			Output:    otlp.Truncate(otlp.StrOr(attrs, "", "response"), maxOutputLen),
			RequestID: otlp.StrOr(attrs, "", "request_id"),
		}
	case "llm.error":
		return &events.APIError{
			Base:         base(sessionID, ts, map[string]any{"agent": "junie"}),
			Model:        otlp.StrOr(attrs, "unknown", "model", "llm.model"),
			ErrorMessage: otlp.Truncate(otlp.StrOr(attrs, "", "error"), maxErrorLen),
			StatusCode:   otlp.IntOr(attrs, 0, "status_code"),
			DurationMs:   otlp.IntOr(attrs, 0, "duration_ms"),
		}
	case "tool.call":
		success, ok := otlp.Bool(attrs, "success")
		if !ok {
			success = true
		}
		return &events.ToolResult{
			Base:       base(sessionID, ts, map[string]any{"agent": "junie"}),
			ToolName:   otlp.StrOr(attrs, "unknown", "tool_name", "name"),
			CallID:     otlp.StrOr(attrs, "", "call_id"),
			Success:    success,
			DurationMs: otlp.IntOr(attrs, 0, "duration_ms"),
			Arguments:  otlp.JSONValue(attrs, "arguments", "params"),
			Error:      otlp.Truncate(otlp.StrOr(attrs, "", "error"), maxErrorLen),
		}
	case "file.edit":
		return &events.FileOperation{
			Base:      base(sessionID, ts, map[string]any{"agent": "junie"}),
			ToolName:  otlp.StrOr(attrs, "", "tool_name"),
			Operation: otlp.StrOr(attrs, "edit", "operation"),
			Lines:     otlp.IntOr(attrs, 0, "lines"),
			Extension: otlp.StrOr(attrs, "", "extension"),
			Language:  otlp.StrOr(attrs, "", "language", "programming_language"),
		}
	case "agent.finished":
		return &events.AgentLifecycle{
			Base:              base(sessionID, ts, map[string]any{"agent": "junie"}),
			AgentName:         "junie",
			Lifecycle:         events.LifecycleFinish,
			DurationMs:        otlp.IntOr(attrs, 0, "duration_ms"),
			Turns:             otlp.IntOr(attrs, 0, "turns", "steps"),
			TerminationReason: otlp.StrOr(attrs, "", "reason", "termination_reason"),
		}
	case "agent.started":
		return &events.AgentLifecycle{
			Base:      base(sessionID, ts, map[string]any{"agent": "junie"}),
			AgentName: "junie",
			Lifecycle: events.LifecycleStart,
		}
	}
	return nil
}
