package agent

import "sync"

// Registry holds the ordered list of agent definitions. Detection is a
// linear scan in registration order and the first match wins; ordering
// is the only disambiguation applied when namespaces overlap (the
// generic acp dialect claims bare tool.* / llm.* names, so it is
// registered last).
type Registry struct {
	mu     sync.RWMutex
	agents []Agent
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry returns a registry with all built-in agents in their
// documented detection order.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewClaude())
	r.Register(NewCodex())
	r.Register(NewGemini())
	r.Register(NewJunie())
	r.Register(NewCopilot())
	r.Register(NewACP())
	return r
}

// Register appends an agent. An agent with the same name replaces the
// existing one in place, keeping its detection position.
func (r *Registry) Register(a Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.agents {
		if existing.Name() == a.Name() {
			r.agents[i] = a
			return
		}
	}
	r.agents = append(r.agents, a)
}

// Unregister removes the agent with the given name, if present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, a := range r.agents {
		if a.Name() == name {
			r.agents = append(r.agents[:i], r.agents[i+1:]...)
			return true
		}
	}
	return false
}

// Detect returns the first agent claiming the event name, or nil.
func (r *Registry) Detect(eventName string) Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.agents {
		if a.CanHandle(eventName) {
			return a
		}
	}
	return nil
}

// Agents returns a snapshot of the registered agents in order.
func (r *Registry) Agents() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Agent, len(r.agents))
	copy(out, r.agents)
	return out
}

// Len reports the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
