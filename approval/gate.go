// Package approval implements the human-in-the-loop checkpoint in front of
// tool execution. Every parsed tool use passes through a Gate, which either
// auto-approves it per policy or parks it until an external decision
// arrives.
package approval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/recodeai/recode"
)

// State is the approval state of a single tool use. Transitions are
// monotonic: once a terminal state is recorded it never changes.
type State string

const (
	// StateProposed is the initial state of every parsed tool use.
	StateProposed State = "proposed"
	// StateAwaitingApproval means the task is suspended on a human decision.
	StateAwaitingApproval State = "awaiting_approval"
	// StateAutoApproved means policy cleared the call without a human.
	StateAutoApproved State = "auto_approved"
	// StateApproved means a human approved the call.
	StateApproved State = "approved"
	// StateDenied means a human (or cancellation) refused the call.
	StateDenied State = "denied"
)

// Terminal reports whether s is a terminal approval state.
func (s State) Terminal() bool {
	return s == StateAutoApproved || s == StateApproved || s == StateDenied
}

// Granted reports whether s permits execution.
func (s State) Granted() bool {
	return s == StateAutoApproved || s == StateApproved
}

// Decision is an external verdict on a pending tool use.
type Decision struct {
	ToolUseID string
	Approved  bool
	Reason    string // reason for denial, empty if approved
}

// Policy is the per-tool auto-approval configuration. Unconfigured tools
// always require a human decision. Hosts update it between tasks; the
// running loop only reads it.
type Policy struct {
	mu          sync.RWMutex
	autoApprove map[string]bool
}

// NewPolicy builds a Policy from the names of auto-approved tools.
func NewPolicy(autoApproved ...string) *Policy {
	m := make(map[string]bool, len(autoApproved))
	for _, name := range autoApproved {
		m[name] = true
	}
	return &Policy{autoApprove: m}
}

// AutoApproved reports whether the named tool may execute without a human
// decision.
func (p *Policy) AutoApproved(name string) bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.autoApprove[name]
}

// SetAutoApproved updates the configuration for one tool. Takes effect for
// subsequent evaluations; calls already past the gate are unaffected.
func (p *Policy) SetAutoApproved(name string, allowed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if allowed {
		p.autoApprove[name] = true
	} else {
		delete(p.autoApprove, name)
	}
}

// exempt tools carry no side effect, so they bypass the gate entirely:
// attempt_completion ends the task and ask_followup_question only asks.
var exempt = map[string]bool{
	"attempt_completion":    true,
	"ask_followup_question": true,
}

// Gate tracks approval state per tool use and routes external decisions to
// the loop waiting on them. It is safe for concurrent use: the agent loop
// waits while a UI goroutine calls Approve or Deny.
type Gate struct {
	policy  *Policy
	timeout time.Duration
	onAwait func(recode.ToolUse)

	mu      sync.Mutex
	states  map[string]State
	pending map[string]chan Decision
	// parked holds decisions that arrived after Evaluate recorded
	// AwaitingApproval but before Wait registered its channel. Wait
	// consumes them on arrival.
	parked map[string]Decision
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithDecisionTimeout bounds how long Wait blocks on a human decision.
// The default is 10 minutes; on timeout the call is denied.
func WithDecisionTimeout(d time.Duration) GateOption {
	return func(g *Gate) {
		g.timeout = d
	}
}

// WithOnAwait registers a callback invoked when a tool use enters
// AwaitingApproval, before Wait blocks. Hosts use it to surface the
// approval prompt.
func WithOnAwait(fn func(recode.ToolUse)) GateOption {
	return func(g *Gate) {
		g.onAwait = fn
	}
}

// NewGate creates a Gate over the given policy.
func NewGate(policy *Policy, opts ...GateOption) *Gate {
	g := &Gate{
		policy:  policy,
		timeout: 10 * time.Minute,
		states:  make(map[string]State),
		pending: make(map[string]chan Decision),
		parked:  make(map[string]Decision),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate runs the policy check for a proposed tool use and records the
// resulting state: AutoApproved, or AwaitingApproval for everything else.
func (g *Gate) Evaluate(call recode.ToolUse) State {
	g.mu.Lock()
	defer g.mu.Unlock()

	if s, ok := g.states[call.ID]; ok && s.Terminal() {
		return s
	}

	var next State
	if exempt[call.Name] || g.policy.AutoApproved(call.Name) {
		next = StateAutoApproved
	} else {
		next = StateAwaitingApproval
	}
	g.states[call.ID] = next
	return next
}

// Wait blocks until an external decision arrives for a call in
// AwaitingApproval, returning the terminal state and the denial reason (""
// when approved). Context cancellation and timeout both resolve to Denied;
// the task never executes a call nobody approved.
func (g *Gate) Wait(ctx context.Context, call recode.ToolUse) (State, string) {
	ch := make(chan Decision, 1)

	g.mu.Lock()
	if s, ok := g.states[call.ID]; ok && s.Terminal() {
		delete(g.parked, call.ID)
		g.mu.Unlock()
		return s, ""
	}
	g.states[call.ID] = StateAwaitingApproval
	g.pending[call.ID] = ch
	if d, ok := g.parked[call.ID]; ok {
		delete(g.parked, call.ID)
		ch <- d
	}
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.pending, call.ID)
		delete(g.parked, call.ID)
		g.mu.Unlock()
	}()

	if g.onAwait != nil {
		g.onAwait(call)
	}

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	var final State
	var reason string
	select {
	case d := <-ch:
		if d.Approved {
			final = StateApproved
		} else {
			final = StateDenied
			reason = d.Reason
		}
	case <-ctx.Done():
		final, reason = StateDenied, "task cancelled"
	case <-timer.C:
		final, reason = StateDenied, "approval timed out"
	}

	g.mu.Lock()
	g.states[call.ID] = final
	g.mu.Unlock()
	return final, reason
}

// Decide delivers an external decision. A decision for a call in
// AwaitingApproval that Wait has not yet picked up is parked and consumed
// when Wait arrives. It returns an error for an unknown id, or when the
// call already reached a terminal state (decisions are monotonic).
func (g *Gate) Decide(d Decision) error {
	g.mu.Lock()
	s, known := g.states[d.ToolUseID]
	if known && s.Terminal() {
		g.mu.Unlock()
		return fmt.Errorf("approval: tool use %q already %s", d.ToolUseID, s)
	}
	if ch, ok := g.pending[d.ToolUseID]; ok {
		g.mu.Unlock()
		// Non-blocking: a duplicate decision for an already-resolved call
		// is dropped rather than deadlocking the caller.
		select {
		case ch <- d:
		default:
		}
		return nil
	}
	if known && s == StateAwaitingApproval {
		// The first decision wins; later ones are dropped.
		if _, dup := g.parked[d.ToolUseID]; !dup {
			g.parked[d.ToolUseID] = d
		}
		g.mu.Unlock()
		return nil
	}
	g.mu.Unlock()
	return fmt.Errorf("approval: no pending approval for tool use %q", d.ToolUseID)
}

// Approve is a convenience wrapper approving a pending tool use.
func (g *Gate) Approve(toolUseID string) error {
	return g.Decide(Decision{ToolUseID: toolUseID, Approved: true})
}

// Deny is a convenience wrapper denying a pending tool use.
func (g *Gate) Deny(toolUseID, reason string) error {
	return g.Decide(Decision{ToolUseID: toolUseID, Approved: false, Reason: reason})
}

// StateOf returns the recorded state for a tool use, or StateProposed when
// the gate has not seen the id.
func (g *Gate) StateOf(toolUseID string) State {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.states[toolUseID]; ok {
		return s
	}
	return StateProposed
}

// PendingCount returns the number of calls currently awaiting a decision.
func (g *Gate) PendingCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// Pending returns the ids of calls currently awaiting a decision.
func (g *Gate) Pending() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, 0, len(g.pending))
	for id := range g.pending {
		ids = append(ids, id)
	}
	return ids
}

// DenialReason builds the synthetic tool-result content recorded for a
// denied call, so the model is told and can adapt its next turn.
func DenialReason(reason string) string {
	if reason == "" {
		return "The user denied this operation."
	}
	return fmt.Sprintf("The user denied this operation and provided the following feedback:\n<feedback>\n%s\n</feedback>", reason)
}
