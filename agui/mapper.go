// Package agui maps runtime events onto the AG-UI protocol, so any
// AG-UI-compatible frontend can render a running task: streamed text, tool
// calls, and approval checkpoints. The package provides the mapping only;
// hosts bring their own transport (typically the AG-UI SDK's SSE writer).
package agui

import (
	"encoding/json"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"

	"github.com/recodeai/recode/event"
)

// Role constants matching the AG-UI protocol.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Mapper converts runtime events to AG-UI events for a single run. It is
// not safe for concurrent use; each run gets its own Mapper.
type Mapper struct {
	threadID string
	runID    string
}

// NewMapper creates a Mapper. Empty ids are generated.
func NewMapper(threadID, runID string) *Mapper {
	if threadID == "" {
		threadID = events.GenerateThreadID()
	}
	if runID == "" {
		runID = events.GenerateRunID()
	}
	return &Mapper{threadID: threadID, runID: runID}
}

// ThreadID returns the thread id for this mapper.
func (m *Mapper) ThreadID() string {
	return m.threadID
}

// RunID returns the run id for this mapper.
func (m *Mapper) RunID() string {
	return m.runID
}

// RunStarted returns a RUN_STARTED event.
func (m *Mapper) RunStarted() events.Event {
	return events.NewRunStartedEvent(m.threadID, m.runID)
}

// RunFinished returns a RUN_FINISHED event.
func (m *Mapper) RunFinished() events.Event {
	return events.NewRunFinishedEvent(m.threadID, m.runID)
}

// RunError returns a RUN_ERROR event.
func (m *Mapper) RunError(err error) events.Event {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return events.NewRunErrorEvent(msg)
}

// MapEvent converts one runtime event to its AG-UI equivalent. A tool call
// proposal expands to the Start-Args-End tool sequence; events with no
// AG-UI equivalent return nil.
func (m *Mapper) MapEvent(e event.Event) []events.Event {
	switch e.Type {
	case event.RunStart:
		return []events.Event{m.RunStarted()}
	case event.RunEnd:
		return []events.Event{m.RunFinished()}
	case event.RunError:
		return []events.Event{m.RunError(e.Error)}

	case event.MessageStart:
		return []events.Event{events.NewTextMessageStartEvent(
			e.MessageID,
			events.WithRole(RoleAssistant),
		)}
	case event.MessageDelta:
		return []events.Event{events.NewTextMessageContentEvent(e.MessageID, e.Delta)}
	case event.MessageEnd:
		return []events.Event{events.NewTextMessageEndEvent(e.MessageID)}

	case event.ToolCallProposed:
		if e.ToolUse == nil {
			return nil
		}
		args, _ := json.Marshal(e.ToolUse.Params)
		return []events.Event{
			events.NewToolCallStartEvent(e.ToolUse.ID, e.ToolUse.Name),
			events.NewToolCallArgsEvent(e.ToolUse.ID, string(args)),
			events.NewToolCallEndEvent(e.ToolUse.ID),
		}
	case event.ToolCallResult:
		if e.ToolUse == nil || e.ToolResult == nil {
			return nil
		}
		messageID := events.GenerateMessageID()
		return []events.Event{events.NewToolCallResultEvent(messageID, e.ToolUse.ID, e.ToolResult.Content)}

	// Approval checkpoints have no AG-UI equivalent; hosts surface them
	// through their own approval UI.
	case event.ToolCallAwaiting, event.ToolCallApproved, event.ToolCallDenied, event.ToolCallExecuting:
		return nil

	default:
		return nil
	}
}

// MapStream converts a runtime event channel into an AG-UI event channel,
// expanding each event through MapEvent. The output closes when the input
// does.
func (m *Mapper) MapStream(in <-chan event.Event) <-chan events.Event {
	out := make(chan events.Event, 16)
	go func() {
		defer close(out)
		for e := range in {
			for _, mapped := range m.MapEvent(e) {
				out <- mapped
			}
		}
	}()
	return out
}
