package agent

import (
	"time"

	"github.com/agentsight/agentsight/internal/events"
	"github.com/agentsight/agentsight/internal/otlp"
)

const claudePrefix = "claude_code."

// Claude handles the Claude Code CLI dialect. Its api_request event
// carries token counts and an upstream-computed cost_usd, so it maps to
// a Generation rather than a bare APIRequest.
type Claude struct{}

func NewClaude() *Claude { return &Claude{} }

func (*Claude) Name() string        { return "claude" }
func (*Claude) Provider() string    { return "anthropic" }
func (*Claude) EventPrefix() string { return claudePrefix }

func (*Claude) CanHandle(eventName string) bool {
	return hasPrefix(eventName, claudePrefix)
}

func (*Claude) SessionID(attrs map[string]any) (string, bool) {
	return sessionFromKeys(attrs, "session.id", "claude.session.id")
}

func (*Claude) Translate(eventName, sessionID string, ts time.Time, attrs map[string]any) events.Event {
	switch eventName[len(claudePrefix):] {
	case "user_prompt":
		prompt := otlp.StrOr(attrs, "", "prompt")
		return &events.UserPrompt{
			Base:         base(sessionID, ts, map[string]any{"agent": "claude"}),
			UserID:       otlp.StrOr(attrs, "", "user.id", "user.account_uuid"),
			Prompt:       otlp.Truncate(prompt, maxPromptLen),
			PromptLength: otlp.IntOr(attrs, int64(len(prompt)), "prompt_length"),
		}
	case "api_request":
		cached := otlp.IntOr(attrs, 0, "cache_read_tokens") + otlp.IntOr(attrs, 0, "cache_creation_tokens")
		return &events.Generation{
			Base: base(sessionID, ts, map[string]any{
				"agent":    "claude",
				"terminal": otlp.StrOr(attrs, "", "terminal.type"),
			}),
			Model:      otlp.StrOr(attrs, "unknown", "model"),
			DurationMs: otlp.IntOr(attrs, 0, "duration_ms"),
			Tokens: events.NewTokenUsage(
				otlp.IntOr(attrs, 0, "input_tokens"),
				otlp.IntOr(attrs, 0, "output_tokens"),
				cached,
				0, 0,
			),
			Cost:      otlp.FloatOr(attrs, 0, "cost_usd", "cost"),
			RequestID: otlp.StrOr(attrs, "", "request_id"),
		}
	case "api_error":
		return &events.APIError{
			Base:         base(sessionID, ts, map[string]any{"agent": "claude"}),
			Model:        otlp.StrOr(attrs, "unknown", "model"),
			ErrorMessage: otlp.Truncate(otlp.StrOr(attrs, "", "error", "error_message"), maxErrorLen),
			StatusCode:   otlp.IntOr(attrs, 0, "status_code"),
			DurationMs:   otlp.IntOr(attrs, 0, "duration_ms"),
			Attempt:      otlp.IntOr(attrs, 0, "attempt"),
			RequestID:    otlp.StrOr(attrs, "", "request_id"),
		}
	case "tool_decision":
		decision := otlp.StrOr(attrs, "", "decision")
		return &events.ToolDecision{
			Base:     base(sessionID, ts, map[string]any{"agent": "claude"}),
			ToolName: otlp.StrOr(attrs, "unknown", "tool_name", "name"),
			Decision: decision,
			Source:   otlp.StrOr(attrs, "", "source"),
			Approved: decision == "accept",
		}
	case "tool_result":
		success, ok := otlp.Bool(attrs, "success")
		if !ok {
			success = true
		}
		return &events.ToolResult{
			Base:       base(sessionID, ts, map[string]any{"agent": "claude"}),
			ToolName:   otlp.StrOr(attrs, "unknown", "tool_name", "name"),
			Success:    success,
			DurationMs: otlp.IntOr(attrs, 0, "duration_ms"),
			Error:      otlp.Truncate(otlp.StrOr(attrs, "", "error"), maxErrorLen),
		}
	case "lines_of_code.count":
		// Metric data point routed with metric.value carrying the count.
		return &events.FileOperation{
			Base:      base(sessionID, ts, map[string]any{"agent": "claude"}),
			Operation: otlp.StrOr(attrs, "added", "type"),
			Lines:     otlp.IntOr(attrs, 0, "metric.value"),
		}
	}
	return nil
}
