// Package events defines the closed set of normalized event variants
// every agent dialect is translated into before reaching the sink.
package events

import "time"

// Kind identifies a normalized event variant.
type Kind string

const (
	KindConversationStart Kind = "conversation_start"
	KindUserPrompt        Kind = "user_prompt"
	KindAPIRequest        Kind = "api_request"
	KindAPIError          Kind = "api_error"
	KindGeneration        Kind = "generation"
	KindToolDecision      Kind = "tool_decision"
	KindToolResult        Kind = "tool_result"
	KindFileOperation     Kind = "file_operation"
	KindAgentLifecycle    Kind = "agent_lifecycle"
)

// Event is implemented by every normalized variant.
type Event interface {
	Kind() Kind
	SessionID() string
	Timestamp() time.Time
	Metadata() map[string]any
}

// Base carries the fields common to all variants. Variants embed it.
type Base struct {
	Session string
	Time    time.Time
	Meta    map[string]any
}

func (b Base) SessionID() string        { return b.Session }
func (b Base) Timestamp() time.Time     { return b.Time }
func (b Base) Metadata() map[string]any { return b.Meta }

// TokenUsage is the per-generation token breakdown. Total is always the
// sum of the five sub-fields.
type TokenUsage struct {
	Input     int64
	Output    int64
	Cached    int64
	Reasoning int64
	Tool      int64
	Total     int64
}

// NewTokenUsage builds a TokenUsage with Total derived from the parts.
func NewTokenUsage(input, output, cached, reasoning, tool int64) TokenUsage {
	return TokenUsage{
		Input:     input,
		Output:    output,
		Cached:    cached,
		Reasoning: reasoning,
		Tool:      tool,
		Total:     input + output + cached + reasoning + tool,
	}
}

// ConversationConfig captures the runtime configuration reported at
// conversation start. Extra holds agent-specific settings.
type ConversationConfig struct {
	Provider        string
	Model           string
	ApprovalPolicy  string
	SandboxPolicy   string
	ContextWindow   int64
	MaxOutputTokens int64
	Extra           map[string]any
}

type ConversationStart struct {
	Base
	UserID string
	Config ConversationConfig
}

func (ConversationStart) Kind() Kind { return KindConversationStart }

type UserPrompt struct {
	Base
	UserID       string
	Prompt       string
	PromptLength int64
}

func (UserPrompt) Kind() Kind { return KindUserPrompt }

type APIRequest struct {
	Base
	Model      string
	DurationMs int64
	StatusCode int64
	Attempt    int64
	Success    bool
	RequestID  string
}

func (APIRequest) Kind() Kind { return KindAPIRequest }

type APIError struct {
	Base
	Model        string
	ErrorMessage string
	StatusCode   int64
	DurationMs   int64
	Attempt      int64
	RequestID    string
}

func (APIError) Kind() Kind { return KindAPIError }

type Generation struct {
	Base
	Model      string
	DurationMs int64
	Tokens     TokenUsage
	Cost       float64
	Input      string
	Output     string
	RequestID  string
}

func (Generation) Kind() Kind { return KindGeneration }

type ToolDecision struct {
	Base
	ToolName string
	CallID   string
	Decision string
	Source   string
	Approved bool
}

func (ToolDecision) Kind() Kind { return KindToolDecision }

type ToolResult struct {
	Base
	ToolName   string
	CallID     string
	Success    bool
	DurationMs int64
	Arguments  any
	Output     string
	Error      string
}

func (ToolResult) Kind() Kind { return KindToolResult }

type FileOperation struct {
	Base
	ToolName  string
	Operation string
	Lines     int64
	MimeType  string
	Extension string
	Language  string
}

func (FileOperation) Kind() Kind { return KindFileOperation }

// Lifecycle phases reported by AgentLifecycle events.
const (
	LifecycleStart  = "start"
	LifecycleFinish = "finish"
)

type AgentLifecycle struct {
	Base
	AgentName         string
	Lifecycle         string
	DurationMs        int64
	Turns             int64
	TerminationReason string
}

func (AgentLifecycle) Kind() Kind { return KindAgentLifecycle }
