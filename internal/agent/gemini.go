package agent

import (
	"time"

	"github.com/agentsight/agentsight/internal/events"
	"github.com/agentsight/agentsight/internal/otlp"
)

const (
	geminiPrefix = "gemini_cli."
	// Newer Gemini CLI builds also emit the OTEL GenAI semantic
	// convention event for inference calls.
	genAIInferenceEvent = "gen_ai.client.inference.operation.details"
)

// Gemini handles the Gemini CLI dialect.
type Gemini struct{}

func NewGemini() *Gemini { return &Gemini{} }

func (*Gemini) Name() string        { return "gemini" }
func (*Gemini) Provider() string    { return "google" }
func (*Gemini) EventPrefix() string { return geminiPrefix }

func (*Gemini) CanHandle(eventName string) bool {
	return hasPrefix(eventName, geminiPrefix) || eventName == genAIInferenceEvent
}

func (*Gemini) SessionID(attrs map[string]any) (string, bool) {
	return sessionFromKeys(attrs, "session.id", "gemini_cli.session.id")
}

func (*Gemini) Translate(eventName, sessionID string, ts time.Time, attrs map[string]any) events.Event {
	if eventName == genAIInferenceEvent {
		return &events.Generation{
			Base:  base(sessionID, ts, map[string]any{"agent": "gemini", "semconv": true}),
			Model: otlp.StrOr(attrs, "unknown", "gen_ai.request.model", "gen_ai.response.model"),
			Tokens: events.NewTokenUsage(
				otlp.IntOr(attrs, 0, "gen_ai.usage.input_tokens"),
				otlp.IntOr(attrs, 0, "gen_ai.usage.output_tokens"),
				otlp.IntOr(attrs, 0, "gen_ai.usage.cached_input_tokens"),
				0, 0,
			),
			Cost: otlp.FloatOr(attrs, 0, "gen_ai.usage.cost"),
		}
	}

	switch eventName[len(geminiPrefix):] {
	case "config":
		return &events.ConversationStart{
			Base: base(sessionID, ts, map[string]any{"agent": "gemini"}),
			Config: events.ConversationConfig{
				Provider:       "google",
				Model:          otlp.StrOr(attrs, "unknown", "model"),
				ApprovalPolicy: otlp.StrOr(attrs, "", "approval_mode"),
				SandboxPolicy:  otlp.StrOr(attrs, "", "sandbox_enabled"),
				Extra: map[string]any{
					"core_tools_enabled": otlp.StrOr(attrs, "", "core_tools_enabled"),
					"mcp_servers":        otlp.StrOr(attrs, "", "mcp_servers"),
				},
			},
		}
	case "user_prompt":
		prompt := otlp.StrOr(attrs, "", "prompt")
		return &events.UserPrompt{
			Base:         base(sessionID, ts, map[string]any{"agent": "gemini"}),
			Prompt:       otlp.Truncate(prompt, maxPromptLen),
			PromptLength: otlp.IntOr(attrs, int64(len(prompt)), "prompt_length"),
		}
	case "api_request":
		return &events.APIRequest{
			Base:    base(sessionID, ts, map[string]any{"agent": "gemini"}),
			Model:   otlp.StrOr(attrs, "unknown", "model"),
			Attempt: otlp.IntOr(attrs, 1, "attempt"),
			Success: true,
		}
	case "api_response":
		return &events.Generation{
			Base:       base(sessionID, ts, map[string]any{"agent": "gemini"}),
			Model:      otlp.StrOr(attrs, "unknown", "model"),
			DurationMs: otlp.IntOr(attrs, 0, "duration_ms"),
			Tokens: events.NewTokenUsage(
				otlp.IntOr(attrs, 0, "input_token_count"),
				otlp.IntOr(attrs, 0, "output_token_count"),
				otlp.IntOr(attrs, 0, "cached_content_token_count"),
				otlp.IntOr(attrs, 0, "thoughts_token_count"),
				otlp.IntOr(attrs, 0, "tool_token_count"),
			),
			Cost:      otlp.FloatOr(attrs, 0, "cost"),
			Output:    otlp.Truncate(otlp.StrOr(attrs, "", "response_text"), maxOutputLen),
			RequestID: otlp.StrOr(attrs, "", "request_id"),
		}
	case "api_error":
		return &events.APIError{
			Base:         base(sessionID, ts, map[string]any{"agent": "gemini"}),
			Model:        otlp.StrOr(attrs, "unknown", "model"),
			ErrorMessage: otlp.Truncate(otlp.StrOr(attrs, "", "error", "error_type"), maxErrorLen),
			StatusCode:   otlp.IntOr(attrs, 0, "status_code"),
			DurationMs:   otlp.IntOr(attrs, 0, "duration_ms"),
			Attempt:      otlp.IntOr(attrs, 1, "attempt"),
		}
	case "tool_call":
		success, ok := otlp.Bool(attrs, "success")
		if !ok {
			success = true
		}
		return &events.ToolResult{
			Base:       base(sessionID, ts, map[string]any{"agent": "gemini", "decision": otlp.StrOr(attrs, "", "decision")}),
			ToolName:   otlp.StrOr(attrs, "unknown", "function_name", "tool_name", "name"),
			Success:    success,
			DurationMs: otlp.IntOr(attrs, 0, "duration_ms"),
			Arguments:  otlp.JSONValue(attrs, "function_args"),
			Error:      otlp.Truncate(otlp.StrOr(attrs, "", "error"), maxErrorLen),
		}
	case "file_operation":
		return &events.FileOperation{
			Base:      base(sessionID, ts, map[string]any{"agent": "gemini"}),
			ToolName:  otlp.StrOr(attrs, "", "tool_name"),
			Operation: otlp.StrOr(attrs, "", "operation"),
			Lines:     otlp.IntOr(attrs, 0, "lines", "metric.value"),
			MimeType:  otlp.StrOr(attrs, "", "mimetype"),
			Extension: otlp.StrOr(attrs, "", "extension"),
			Language:  otlp.StrOr(attrs, "", "programming_language"),
		}
	}
	return nil
}
