package agent

import (
	"strings"
	"time"

	"github.com/agentsight/agentsight/internal/events"
	"github.com/agentsight/agentsight/internal/otlp"
)

const codexPrefix = "codex."

// modelRate is a USD-per-million-token price entry.
type modelRate struct {
	input  float64
	output float64
	cached float64
}

// codexRates maps model-name substrings to rates. Matching is a
// case-insensitive substring test, not exact: dated release names like
// "gpt-4o-2024-08-06" should hit the family entry. Longer, more
// specific substrings are checked before shorter ones.
var codexRates = []struct {
	match string
	rate  modelRate
}{
	{"gpt-4o-mini", modelRate{0.15, 0.6, 0.075}},
	{"gpt-4o", modelRate{2.5, 10, 1.25}},
	{"gpt-4.1-mini", modelRate{0.4, 1.6, 0.1}},
	{"gpt-4.1", modelRate{2, 8, 0.5}},
	{"gpt-5-mini", modelRate{0.25, 2, 0.025}},
	{"gpt-5", modelRate{1.25, 10, 0.125}},
	{"o4-mini", modelRate{1.1, 4.4, 0.275}},
	{"o3", modelRate{2, 8, 0.5}},
	{"codex-mini", modelRate{1.5, 6, 0.375}},
}

var codexDefaultRate = modelRate{5, 15, 2.5}

// CalculateCost derives a USD cost from token counts using the static
// price table. Codex's OTLP stream has no native cost field, so this is
// the one place cost is computed rather than passed through. Reasoning
// tokens bill at the output rate.
func CalculateCost(model string, input, output, cached, reasoning int64) float64 {
	rate := codexDefaultRate
	lower := strings.ToLower(model)
	for _, entry := range codexRates {
		if strings.Contains(lower, entry.match) {
			rate = entry.rate
			break
		}
	}
	return float64(input)*rate.input/1e6 +
		float64(output+reasoning)*rate.output/1e6 +
		float64(cached)*rate.cached/1e6
}

// Codex handles the OpenAI Codex CLI dialect. Correlation rides on
// conversation.id; token usage arrives on response.completed sse_event
// records.
type Codex struct{}

func NewCodex() *Codex { return &Codex{} }

func (*Codex) Name() string        { return "codex" }
func (*Codex) Provider() string    { return "openai" }
func (*Codex) EventPrefix() string { return codexPrefix }

func (*Codex) CanHandle(eventName string) bool {
	return hasPrefix(eventName, codexPrefix)
}

func (*Codex) SessionID(attrs map[string]any) (string, bool) {
	return sessionFromKeys(attrs, "conversation.id")
}

func (*Codex) Translate(eventName, sessionID string, ts time.Time, attrs map[string]any) events.Event {
	switch eventName[len(codexPrefix):] {
	case "conversation_starts":
		return &events.ConversationStart{
			Base:   base(sessionID, ts, map[string]any{"agent": "codex"}),
			UserID: otlp.StrOr(attrs, "", "user.account_id", "auth_mode"),
			Config: events.ConversationConfig{
				Provider:        otlp.StrOr(attrs, "openai", "provider_name"),
				Model:           otlp.StrOr(attrs, "unknown", "model"),
				ApprovalPolicy:  otlp.StrOr(attrs, "", "approval_policy"),
				SandboxPolicy:   otlp.StrOr(attrs, "", "sandbox_policy"),
				ContextWindow:   otlp.IntOr(attrs, 0, "context_window"),
				MaxOutputTokens: otlp.IntOr(attrs, 0, "max_output_tokens"),
				Extra: map[string]any{
					"reasoning_effort":  otlp.StrOr(attrs, "", "reasoning_effort"),
					"reasoning_summary": otlp.StrOr(attrs, "", "reasoning_summary"),
				},
			},
		}
	case "user_prompt":
		return &events.UserPrompt{
			Base:         base(sessionID, ts, map[string]any{"agent": "codex"}),
			PromptLength: otlp.IntOr(attrs, 0, "prompt_length"),
		}
	case "api_request":
		status := otlp.IntOr(attrs, 0, "http.response.status_code", "status_code")
		return &events.APIRequest{
			Base:       base(sessionID, ts, map[string]any{"agent": "codex"}),
			Model:      otlp.StrOr(attrs, "unknown", "model"),
			DurationMs: otlp.IntOr(attrs, 0, "duration_ms"),
			StatusCode: status,
			Attempt:    otlp.IntOr(attrs, 1, "attempt"),
			Success:    status > 0 && status < 400,
			RequestID:  otlp.StrOr(attrs, "", "request_id"),
		}
	case "sse_event":
		// Only the completion record carries usage; other stream kinds
		// are noise for aggregation purposes.
		if kind := otlp.StrOr(attrs, "", "event.kind", "kind"); kind != "response.completed" {
			return nil
		}
		model := otlp.StrOr(attrs, "unknown", "model")
		usage := events.NewTokenUsage(
			otlp.IntOr(attrs, 0, "input_token_count", "input_tokens"),
			otlp.IntOr(attrs, 0, "output_token_count", "output_tokens"),
			otlp.IntOr(attrs, 0, "cached_token_count", "cached_tokens"),
			otlp.IntOr(attrs, 0, "reasoning_token_count", "reasoning_tokens"),
			otlp.IntOr(attrs, 0, "tool_token_count"),
		)
		return &events.Generation{
			Base:       base(sessionID, ts, map[string]any{"agent": "codex"}),
			Model:      model,
			DurationMs: otlp.IntOr(attrs, 0, "duration_ms"),
			Tokens:     usage,
			Cost:       CalculateCost(model, usage.Input, usage.Output, usage.Cached, usage.Reasoning),
			RequestID:  otlp.StrOr(attrs, "", "request_id"),
		}
	case "tool_decision":
		decision := otlp.StrOr(attrs, "", "decision")
		return &events.ToolDecision{
			Base:     base(sessionID, ts, map[string]any{"agent": "codex"}),
			ToolName: otlp.StrOr(attrs, "unknown", "tool_name"),
			CallID:   otlp.StrOr(attrs, "", "call_id"),
			Decision: decision,
			Source:   otlp.StrOr(attrs, "", "source"),
			Approved: decision == "approved" || decision == "approved_for_session",
		}
	case "tool_result":
		success, ok := otlp.Bool(attrs, "success")
		if !ok {
			success = true
		}
		return &events.ToolResult{
			Base:       base(sessionID, ts, map[string]any{"agent": "codex"}),
			ToolName:   otlp.StrOr(attrs, "unknown", "tool_name"),
			CallID:     otlp.StrOr(attrs, "", "call_id"),
			Success:    success,
			DurationMs: otlp.IntOr(attrs, 0, "duration_ms", "duration"),
			Arguments:  otlp.JSONValue(attrs, "arguments"),
			Output:     otlp.Truncate(otlp.StrOr(attrs, "", "output"), maxOutputLen),
		}
	}
	return nil
}
