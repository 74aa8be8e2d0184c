// Package event provides the observable event stream emitted while a task
// runs: lifecycle transitions, streaming deltas, and the full tool call
// approval and execution sequence. Events map 1:1 onto the AG-UI protocol
// via the agui package.
package event

import (
	"time"

	"github.com/recodeai/recode"
)

// Type identifies the kind of event.
type Type string

// Run lifecycle events
const (
	// RunStart fires when a task run begins.
	RunStart Type = "run_start"

	// RunEnd fires when a task run reaches a terminal status.
	RunEnd Type = "run_end"

	// RunError fires when a run fails with an unrecoverable error.
	RunError Type = "run_error"
)

// Task status events
const (
	// StatusChanged fires on every task status transition.
	StatusChanged Type = "status_changed"
)

// Message lifecycle events
const (
	// MessageStart fires when an assistant message begins streaming.
	MessageStart Type = "message_start"

	// MessageDelta fires for each streamed text chunk.
	MessageDelta Type = "message_delta"

	// MessageEnd fires when an assistant message completes.
	MessageEnd Type = "message_end"
)

// Tool call lifecycle events
const (
	// ToolCallProposed fires when a tool use is parsed out of assistant text.
	ToolCallProposed Type = "tool_call_proposed"

	// ToolCallAwaiting fires when a tool call blocks on user approval.
	ToolCallAwaiting Type = "tool_call_awaiting"

	// ToolCallApproved fires when a tool call is approved or auto-approved.
	ToolCallApproved Type = "tool_call_approved"

	// ToolCallDenied fires when a tool call is denied.
	ToolCallDenied Type = "tool_call_denied"

	// ToolCallExecuting fires just before the handler runs.
	ToolCallExecuting Type = "tool_call_executing"

	// ToolCallResult fires with the execution result.
	ToolCallResult Type = "tool_call_result"
)

// Context events
const (
	// ContextCondensed fires when the conversation window is condensed to
	// fit the token budget.
	ContextCondensed Type = "context_condensed"
)

// Event is an observable occurrence during a task run.
type Event struct {
	// Type identifies the kind of event.
	Type Type

	// TaskID identifies the task this event belongs to.
	TaskID string

	// MessageID correlates MessageStart/Delta/End events.
	MessageID string

	// Delta carries streamed text for MessageDelta events.
	Delta string

	// Response carries the complete model response for MessageEnd events.
	Response *recode.Response

	// ToolUse carries the tool call for tool events.
	ToolUse *recode.ToolUse

	// ToolResult carries the result for ToolCallResult events.
	ToolResult *recode.ToolResult

	// Status is the new task status for StatusChanged events.
	Status string

	// Iteration is the 1-indexed agent loop iteration.
	Iteration int

	// Error carries the failure for RunError events.
	Error error

	// Message carries extra context, such as a denial reason or the
	// termination summary.
	Message string

	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// Emit sends an event with a timestamp to the channel without blocking. A
// slow or absent consumer drops events rather than stalling the run.
func Emit(ch chan<- Event, e Event) {
	if ch == nil {
		return
	}
	e.Timestamp = time.Now()
	select {
	case ch <- e:
	default:
	}
}

// NewChannel creates a buffered event channel with standard capacity.
func NewChannel() chan Event {
	return make(chan Event, 100)
}
