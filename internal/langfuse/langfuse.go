// Package langfuse is a thin client for the Langfuse batch ingestion
// API. No Go SDK exists upstream, so the consumed surface (trace,
// generation, event, score, flush) is implemented directly against
// POST /api/public/ingestion with basic auth.
package langfuse

import "time"

// Observation severity levels accepted by the ingestion API.
const (
	LevelDefault = "DEFAULT"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
	LevelDebug   = "DEBUG"
)

// TraceOptions describes a trace-create call.
type TraceOptions struct {
	Name      string
	SessionID string
	UserID    string
	Input     any
	Output    any
	Tags      []string
	Metadata  map[string]any
	Timestamp time.Time
}

// TraceUpdate carries the mutable fields of an existing trace.
type TraceUpdate struct {
	Output   any
	Metadata map[string]any
}

// SpanOptions describes a span-create call under a trace.
type SpanOptions struct {
	TraceID   string
	Name      string
	Input     any
	Metadata  map[string]any
	StartTime time.Time
}

// SpanUpdate closes or annotates an existing span.
type SpanUpdate struct {
	TraceID string
	Output  any
	EndTime time.Time
}

// GenerationOptions describes a generation-create call.
type GenerationOptions struct {
	TraceID   string
	Name      string
	Model     string
	Input     any
	Output    any
	Metadata  map[string]any
	Level     string
	StartTime time.Time
	EndTime   time.Time
	Usage     Usage
	CostUSD   float64
}

// Usage is the Langfuse token usage block.
type Usage struct {
	Input  int64 `json:"input,omitempty"`
	Output int64 `json:"output,omitempty"`
	Total  int64 `json:"total,omitempty"`
}

// EventOptions describes an event-create call.
type EventOptions struct {
	TraceID   string
	Name      string
	Input     any
	Output    any
	Metadata  map[string]any
	Level     string
	Timestamp time.Time
}

// ScoreOptions describes a score-create call.
type ScoreOptions struct {
	TraceID string
	Name    string
	Value   float64
	Comment string
}
