// Package agent defines the per-CLI telemetry dialects and the ordered
// registry that detects which dialect claims an inbound event name.
// Adding support for a new CLI means implementing Agent and appending
// it to the registration order in DefaultRegistry.
package agent

import (
	"strings"
	"time"

	"github.com/agentsight/agentsight/internal/events"
)

// Text field bounds applied before attaching attribute text to an event.
const (
	maxPromptLen = 2000
	maxOutputLen = 1000
	maxErrorLen  = 500
)

// Agent is one supported CLI's telemetry dialect: an event-name
// namespace, session-id attribute conventions, and translation rules
// into the normalized event model.
type Agent interface {
	// Name identifies the agent within the registry.
	Name() string
	// Provider is the upstream vendor tag attached to sessions.
	Provider() string
	// EventPrefix is the primary event-name namespace, for diagnostics.
	EventPrefix() string
	// CanHandle reports whether this agent claims the event name.
	CanHandle(eventName string) bool
	// SessionID extracts the session correlation id from the attribute
	// map, trying the agent's candidate keys in priority order.
	SessionID(attrs map[string]any) (string, bool)
	// Translate maps a raw event into a normalized variant. A nil
	// return means the name is unrecognized within this agent's
	// namespace and the record is dropped.
	Translate(eventName, sessionID string, ts time.Time, attrs map[string]any) events.Event
}

// sessionFromKeys returns the first present, non-empty candidate key.
func sessionFromKeys(attrs map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := attrs[k]; ok {
			if s, isStr := v.(string); isStr && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// hasPrefix wraps strings.HasPrefix for the common CanHandle shape.
func hasPrefix(eventName, prefix string) bool {
	return strings.HasPrefix(eventName, prefix)
}

func base(sessionID string, ts time.Time, meta map[string]any) events.Base {
	return events.Base{Session: sessionID, Time: ts, Meta: meta}
}
