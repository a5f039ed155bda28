package agent

import (
	"math"
	"testing"

	"github.com/agentsight/agentsight/internal/events"
)

func TestCalculateCost(t *testing.T) {
	tests := []struct {
		name                             string
		model                            string
		input, output, cached, reasoning int64
		want                             float64
	}{
		{"gpt-4o", "gpt-4o", 1000, 500, 0, 0, 0.0075},
		{"dated release hits family rate", "gpt-4o-2024-08-06", 1000, 500, 0, 0, 0.0075},
		{"mini matched before family", "gpt-4o-mini", 1_000_000, 0, 0, 0, 0.15},
		{"unknown model default rate", "mystery-model", 1_000_000, 1_000_000, 0, 0, 20},
		{"reasoning billed at output rate", "gpt-5", 0, 100, 0, 900, 0.00001 * 1000},
		{"cached discounted", "gpt-4o", 0, 0, 1_000_000, 0, 1.25},
		{"case insensitive", "GPT-4o", 1000, 500, 0, 0, 0.0075},
		{"zero tokens", "gpt-4o", 0, 0, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateCost(tt.model, tt.input, tt.output, tt.cached, tt.reasoning)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CalculateCost(%q, %d, %d, %d, %d) = %v, want %v",
					tt.model, tt.input, tt.output, tt.cached, tt.reasoning, got, tt.want)
			}
		})
	}
}

func TestCodexSSEEventFiltering(t *testing.T) {
	codex := NewCodex()

	for _, kind := range []string{"response.output_item.done", "response.created", ""} {
		attrs := map[string]any{"model": "gpt-4o", "input_token_count": int64(10)}
		if kind != "" {
			attrs["event.kind"] = kind
		}
		if ev := codex.Translate("codex.sse_event", "c1", testTime, attrs); ev != nil {
			t.Errorf("sse_event kind=%q produced %T, want nil", kind, ev)
		}
	}

	ev := codex.Translate("codex.sse_event", "c1", testTime, map[string]any{
		"event.kind":            "response.completed",
		"model":                 "gpt-4o",
		"input_token_count":     int64(1000),
		"output_token_count":    int64(500),
		"cached_token_count":    int64(200),
		"reasoning_token_count": int64(100),
	})
	gen, ok := ev.(*events.Generation)
	if !ok {
		t.Fatalf("completed sse_event = %T, want *events.Generation", ev)
	}
	if gen.Tokens.Total != 1800 {
		t.Errorf("Total = %d, want 1800", gen.Tokens.Total)
	}
	want := CalculateCost("gpt-4o", 1000, 500, 200, 100)
	if gen.Cost != want {
		t.Errorf("Cost = %v, want %v", gen.Cost, want)
	}
}

func TestCodexConversationStarts(t *testing.T) {
	codex := NewCodex()
	ev := codex.Translate("codex.conversation_starts", "c1", testTime, map[string]any{
		"model":             "gpt-5",
		"provider_name":     "openai",
		"approval_policy":   "on-request",
		"sandbox_policy":    "workspace-write",
		"context_window":    int64(272000),
		"max_output_tokens": int64(128000),
		"reasoning_effort":  "medium",
	})
	cs, ok := ev.(*events.ConversationStart)
	if !ok {
		t.Fatalf("conversation_starts = %T", ev)
	}
	if cs.Config.Model != "gpt-5" || cs.Config.ContextWindow != 272000 {
		t.Errorf("unexpected config: %+v", cs.Config)
	}
	if cs.Config.Extra["reasoning_effort"] != "medium" {
		t.Errorf("reasoning_effort = %v", cs.Config.Extra["reasoning_effort"])
	}
}

func TestCodexToolDecision(t *testing.T) {
	codex := NewCodex()
	tests := []struct {
		decision string
		approved bool
	}{
		{"approved", true},
		{"approved_for_session", true},
		{"denied", false},
		{"abort", false},
	}
	for _, tt := range tests {
		ev := codex.Translate("codex.tool_decision", "c1", testTime, map[string]any{
			"tool_name": "shell", "decision": tt.decision,
		})
		td := ev.(*events.ToolDecision)
		if td.Approved != tt.approved {
			t.Errorf("decision %q: Approved = %v, want %v", tt.decision, td.Approved, tt.approved)
		}
	}
}
