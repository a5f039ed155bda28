package agent

import (
	"time"

	"github.com/agentsight/agentsight/internal/events"
	"github.com/agentsight/agentsight/internal/otlp"
)

const copilotPrefix = "copilot_cli."

// Copilot handles the GitHub Copilot CLI dialect. Its namespace must be
// checked before the generic acp dialect: copilot_cli.tool_call is
// specific where tool.call is not.
type Copilot struct{}

func NewCopilot() *Copilot { return &Copilot{} }

func (*Copilot) Name() string        { return "copilot" }
func (*Copilot) Provider() string    { return "github" }
func (*Copilot) EventPrefix() string { return copilotPrefix }

func (*Copilot) CanHandle(eventName string) bool {
	return hasPrefix(eventName, copilotPrefix)
}

func (*Copilot) SessionID(attrs map[string]any) (string, bool) {
	return sessionFromKeys(attrs, "copilot_cli.session.id", "thread.id", "session.id")
}

func (*Copilot) Translate(eventName, sessionID string, ts time.Time, attrs map[string]any) events.Event {
	switch eventName[len(copilotPrefix):] {
	case "session_start":
		return &events.ConversationStart{
			Base:   base(sessionID, ts, map[string]any{"agent": "copilot"}),
			UserID: otlp.StrOr(attrs, "", "user.login", "user.id"),
			Config: events.ConversationConfig{
				Provider: "github",
				Model:    otlp.StrOr(attrs, "unknown", "model"),
				Extra: map[string]any{
					"client_version": otlp.StrOr(attrs, "", "client.version"),
				},
			},
		}
	case "user_prompt":
		prompt := otlp.StrOr(attrs, "", "prompt")
		return &events.UserPrompt{
			Base:         base(sessionID, ts, map[string]any{"agent": "copilot"}),
			UserID:       otlp.StrOr(attrs, "", "user.login", "user.id"),
			Prompt:       otlp.Truncate(prompt, maxPromptLen),
			PromptLength: otlp.IntOr(attrs, int64(len(prompt)), "prompt_length"),
		}
	case "api_request":
		// absent status counts as success here, unlike codex
		status := otlp.IntOr(attrs, 0, "status_code")
		return &events.APIRequest{
			Base:       base(sessionID, ts, map[string]any{"agent": "copilot"}),
			Model:      otlp.StrOr(attrs, "unknown", "model"),
			DurationMs: otlp.IntOr(attrs, 0, "duration_ms"),
			StatusCode: status,
			Attempt:    otlp.IntOr(attrs, 1, "attempt"),
			Success:    status < 400,
			RequestID:  otlp.StrOr(attrs, "", "request_id"),
		}
	case "api_response":
		return &events.Generation{
			Base:       base(sessionID, ts, map[string]any{"agent": "copilot"}),
			Model:      otlp.StrOr(attrs, "unknown", "model"),
			DurationMs: otlp.IntOr(attrs, 0, "duration_ms"),
			Tokens: events.NewTokenUsage(
				otlp.IntOr(attrs, 0, "input_tokens", "prompt_tokens"),
				otlp.IntOr(attrs, 0, "output_tokens", "completion_tokens"),
				otlp.IntOr(attrs, 0, "cached_tokens"),
				otlp.IntOr(attrs, 0, "reasoning_tokens"),
				0,
			),
			Cost:      otlp.FloatOr(attrs, 0, "cost_usd", "cost"),
			RequestID: otlp.StrOr(attrs, "", "request_id"),
		}
	case "api_error":
		return &events.APIError{
			Base:         base(sessionID, ts, map[string]any{"agent": "copilot"}),
			Model:        otlp.StrOr(attrs, "unknown", "model"),
			ErrorMessage: otlp.Truncate(otlp.StrOr(attrs, "", "error"), maxErrorLen),
			StatusCode:   otlp.IntOr(attrs, 0, "status_code"),
			DurationMs:   otlp.IntOr(attrs, 0, "duration_ms"),
		}
	case "tool_call":
		success, ok := otlp.Bool(attrs, "success")
		if !ok {
			success = true
		}
		return &events.ToolResult{
			Base:       base(sessionID, ts, map[string]any{"agent": "copilot"}),
			ToolName:   otlp.StrOr(attrs, "unknown", "tool_name", "name"),
			CallID:     otlp.StrOr(attrs, "", "call_id"),
			Success:    success,
			DurationMs: otlp.IntOr(attrs, 0, "duration_ms"),
			Arguments:  otlp.JSONValue(attrs, "arguments"),
			Output:     otlp.Truncate(otlp.StrOr(attrs, "", "output"), maxOutputLen),
			Error:      otlp.Truncate(otlp.StrOr(attrs, "", "error"), maxErrorLen),
		}
	case "file_edit":
		return &events.FileOperation{
			Base:      base(sessionID, ts, map[string]any{"agent": "copilot"}),
			ToolName:  otlp.StrOr(attrs, "", "tool_name"),
			Operation: otlp.StrOr(attrs, "edit", "operation"),
			Lines:     otlp.IntOr(attrs, 0, "lines"),
			Extension: otlp.StrOr(attrs, "", "extension"),
			Language:  otlp.StrOr(attrs, "", "language"),
		}
	}
	return nil
}
