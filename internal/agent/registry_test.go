package agent

import (
	"testing"
	"time"

	"github.com/agentsight/agentsight/internal/events"
)

func TestDefaultRegistryDetection(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		event string
		agent string
	}{
		{"claude_code.user_prompt", "claude"},
		{"claude_code.api_request", "claude"},
		{"codex.conversation_starts", "codex"},
		{"codex.sse_event", "codex"},
		{"gemini_cli.api_response", "gemini"},
		{"gen_ai.client.inference.operation.details", "gemini"},
		{"junie.llm.response", "junie"},
		{"copilot_cli.tool_call", "copilot"},
		{"acp.initialize", "acp"},
		{"llm.generation", "acp"},
		{"tool.call", "acp"},
	}
	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			a := r.Detect(tt.event)
			if a == nil {
				t.Fatalf("Detect(%q) = nil", tt.event)
			}
			if a.Name() != tt.agent {
				t.Errorf("Detect(%q) = %s, want %s", tt.event, a.Name(), tt.agent)
			}
		})
	}

	if a := r.Detect("unknown.event"); a != nil {
		t.Errorf("Detect(unknown.event) = %s, want nil", a.Name())
	}
}

// The copilot namespace is more specific than acp's generic tool.*
// claim; fixed registration order keeps detection deterministic.
func TestDetectionOrderDisambiguatesOverlaps(t *testing.T) {
	r := DefaultRegistry()
	if a := r.Detect("copilot_cli.tool_call"); a.Name() != "copilot" {
		t.Errorf("copilot_cli.tool_call went to %s", a.Name())
	}
	if a := r.Detect("tool.call"); a.Name() != "acp" {
		t.Errorf("tool.call went to %s", a.Name())
	}
}

type stubAgent struct {
	name   string
	prefix string
}

func (s *stubAgent) Name() string        { return s.name }
func (s *stubAgent) Provider() string    { return "stub" }
func (s *stubAgent) EventPrefix() string { return s.prefix }
func (s *stubAgent) CanHandle(eventName string) bool {
	return hasPrefix(eventName, s.prefix)
}
func (s *stubAgent) SessionID(attrs map[string]any) (string, bool) {
	return sessionFromKeys(attrs, "session.id")
}
func (s *stubAgent) Translate(eventName, sessionID string, ts time.Time, attrs map[string]any) events.Event {
	return nil
}

func TestRegisterUnregister(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubAgent{name: "first", prefix: "one."})
	r.Register(&stubAgent{name: "second", prefix: "two."})

	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}
	if a := r.Detect("two.thing"); a == nil || a.Name() != "second" {
		t.Fatalf("Detect(two.thing) = %v", a)
	}

	// Re-registering keeps detection position but swaps behavior.
	r.Register(&stubAgent{name: "first", prefix: "uno."})
	if r.Len() != 2 {
		t.Errorf("re-register grew registry to %d", r.Len())
	}
	if a := r.Detect("uno.thing"); a == nil || a.Name() != "first" {
		t.Errorf("replaced agent not detected")
	}

	if !r.Unregister("second") {
		t.Error("Unregister(second) = false")
	}
	if r.Unregister("second") {
		t.Error("double Unregister should report false")
	}
	if a := r.Detect("two.thing"); a != nil {
		t.Errorf("unregistered agent still detected: %s", a.Name())
	}
}
