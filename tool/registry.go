// Package tool implements the executor side of the runtime: a registry of
// named handlers, typed execution failures, and the dispatcher that turns
// an approved tool use into exactly one immutable result.
package tool

import (
	"context"
	"sync"

	"github.com/recodeai/recode"
)

// Handler executes a tool use and returns its output. The context carries
// cancellation and the per-handler timeout. A returned error becomes a
// failed ToolResult; it never terminates the task.
type Handler func(ctx context.Context, call recode.ToolUse) (string, error)

// Registration pairs a tool name with its handler.
type Registration struct {
	Name        string
	Description string
	Handler     Handler
}

// Registry manages registered tool handlers. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Registration)}
}

// Register adds a handler to the registry. Returns an error if the name is
// already taken.
func (r *Registry) Register(reg Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[reg.Name]; exists {
		return &ErrAlreadyRegistered{Name: reg.Name}
	}
	r.tools[reg.Name] = reg
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(reg Registration) {
	if err := r.Register(reg); err != nil {
		panic(err)
	}
}

// Unregister removes a tool. No-op if absent.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get retrieves a handler by tool name.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return reg.Handler, true
}

// Names returns the names of all registered tools.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
