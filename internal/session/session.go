// Package session aggregates normalized events into per-session state
// and owns the finalize lifecycle that emits the summary to Langfuse.
package session

import (
	"sync"
	"time"
)

// ToolCall is one entry of a session's ordered tool sequence.
type ToolCall struct {
	Name       string
	Success    bool
	DurationMs int64
	Timestamp  time.Time
	Arguments  any
	Error      string
}

// TokenBreakdown is the running per-kind token tally.
type TokenBreakdown struct {
	Input     int64
	Output    int64
	Cached    int64
	Reasoning int64
	Tool      int64
}

// TraceConfig is the Langfuse trace shaping derived from OTLP resource
// attributes (service.name and langfuse.* keys) or environment
// defaults.
type TraceConfig struct {
	TraceName string
	Tags      []string
	UserID    string
	Metadata  map[string]any
}

// Session is one correlation scope's aggregate state. Every field is
// declared up front; handlers mutate, never extend. All mutation goes
// through the session mutex so concurrent requests for the same id
// cannot corrupt counters.
type Session struct {
	mu sync.Mutex

	ID        string
	AgentName string
	Provider  string
	StartedAt time.Time
	LastSeen  time.Time

	TotalCost         float64
	TotalTokens       int64
	Tokens            TokenBreakdown
	APICallCount      int64
	ToolCallCount     int64
	ConversationCount int64
	ErrorCount        int64
	LinesAdded        int64
	LinesRemoved      int64

	ToolSequence []ToolCall

	// Latency samples in milliseconds, one list per concern. Only
	// positive durations are recorded.
	APILatencies          []int64
	ToolLatencies         []int64
	ConversationLatencies []int64

	CurrentTraceID        string
	CurrentSpanID         string
	ConversationStartedAt time.Time
	LastPrompt            string

	Trace TraceConfig

	finalized bool
}

// New creates a session with zero-valued aggregates.
func New(id, agentName, provider string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		AgentName: agentName,
		Provider:  provider,
		StartedAt: now,
		LastSeen:  now,
	}
}

// Lock serializes event application for this session. The sink holds it
// across one event's full handling.
func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// Touch records activity for the idle sweep. The caller holds the
// session mutex.
func (s *Session) Touch() {
	s.LastSeen = time.Now().UTC()
}

// IdleSince reports how long the session has been quiet. The caller
// holds the session mutex.
func (s *Session) IdleSince(now time.Time) time.Duration {
	return now.Sub(s.LastSeen)
}

// RecordAPILatency appends a positive api duration sample.
func (s *Session) RecordAPILatency(ms int64) {
	if ms > 0 {
		s.APILatencies = append(s.APILatencies, ms)
	}
}

// RecordToolLatency appends a positive tool duration sample.
func (s *Session) RecordToolLatency(ms int64) {
	if ms > 0 {
		s.ToolLatencies = append(s.ToolLatencies, ms)
	}
}

// RecordConversationLatency appends a positive conversation duration.
func (s *Session) RecordConversationLatency(ms int64) {
	if ms > 0 {
		s.ConversationLatencies = append(s.ConversationLatencies, ms)
	}
}

// AddUsage accumulates one generation's tokens and cost.
func (s *Session) AddUsage(input, output, cached, reasoning, tool, total int64, cost float64) {
	s.Tokens.Input += input
	s.Tokens.Output += output
	s.Tokens.Cached += cached
	s.Tokens.Reasoning += reasoning
	s.Tokens.Tool += tool
	s.TotalTokens += total
	s.TotalCost += cost
}

// ToolSuccessRate is the fraction of recorded tool calls that
// succeeded, or 1 when no tools ran.
func (s *Session) ToolSuccessRate() float64 {
	if len(s.ToolSequence) == 0 {
		return 1
	}
	var ok int
	for _, tc := range s.ToolSequence {
		if tc.Success {
			ok++
		}
	}
	return float64(ok) / float64(len(s.ToolSequence))
}

// CacheHitRatio is the share of cached tokens among cached+input, or 0
// when neither was recorded.
func (s *Session) CacheHitRatio() float64 {
	denom := s.Tokens.Cached + s.Tokens.Input
	if denom == 0 {
		return 0
	}
	return float64(s.Tokens.Cached) / float64(denom)
}
