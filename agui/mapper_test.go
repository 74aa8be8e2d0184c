package agui

import (
	"errors"
	"testing"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recodeai/recode"
	"github.com/recodeai/recode/event"
)

func TestMapper_Lifecycle(t *testing.T) {
	m := NewMapper("thread-1", "run-1")

	assert.Equal(t, "thread-1", m.ThreadID())
	assert.Equal(t, "run-1", m.RunID())

	out := m.MapEvent(event.Event{Type: event.RunStart})
	require.Len(t, out, 1)
	assert.Equal(t, events.EventTypeRunStarted, out[0].Type())

	out = m.MapEvent(event.Event{Type: event.RunEnd})
	require.Len(t, out, 1)
	assert.Equal(t, events.EventTypeRunFinished, out[0].Type())

	out = m.MapEvent(event.Event{Type: event.RunError, Error: errors.New("boom")})
	require.Len(t, out, 1)
	assert.Equal(t, events.EventTypeRunError, out[0].Type())
}

func TestMapper_GeneratesIDs(t *testing.T) {
	m := NewMapper("", "")
	assert.NotEmpty(t, m.ThreadID())
	assert.NotEmpty(t, m.RunID())
}

func TestMapper_MessageSequence(t *testing.T) {
	m := NewMapper("t", "r")

	out := m.MapEvent(event.Event{Type: event.MessageStart, MessageID: "msg-1"})
	require.Len(t, out, 1)
	assert.Equal(t, events.EventTypeTextMessageStart, out[0].Type())

	out = m.MapEvent(event.Event{Type: event.MessageDelta, MessageID: "msg-1", Delta: "hello"})
	require.Len(t, out, 1)
	assert.Equal(t, events.EventTypeTextMessageContent, out[0].Type())

	out = m.MapEvent(event.Event{Type: event.MessageEnd, MessageID: "msg-1"})
	require.Len(t, out, 1)
	assert.Equal(t, events.EventTypeTextMessageEnd, out[0].Type())
}

func TestMapper_ToolCallExpandsToSequence(t *testing.T) {
	m := NewMapper("t", "r")
	call := &recode.ToolUse{ID: "toolu-1", Name: "read_file", Params: map[string]string{"path": "a.txt"}}

	out := m.MapEvent(event.Event{Type: event.ToolCallProposed, ToolUse: call})
	require.Len(t, out, 3)
	assert.Equal(t, events.EventTypeToolCallStart, out[0].Type())
	assert.Equal(t, events.EventTypeToolCallArgs, out[1].Type())
	assert.Equal(t, events.EventTypeToolCallEnd, out[2].Type())

	result := &recode.ToolResult{ToolUseID: "toolu-1", ToolName: "read_file", Content: "1 | data"}
	out = m.MapEvent(event.Event{Type: event.ToolCallResult, ToolUse: call, ToolResult: result})
	require.Len(t, out, 1)
	assert.Equal(t, events.EventTypeToolCallResult, out[0].Type())
}

func TestMapper_ApprovalEventsHaveNoEquivalent(t *testing.T) {
	m := NewMapper("t", "r")
	call := &recode.ToolUse{ID: "toolu-1", Name: "read_file"}

	assert.Nil(t, m.MapEvent(event.Event{Type: event.ToolCallAwaiting, ToolUse: call}))
	assert.Nil(t, m.MapEvent(event.Event{Type: event.ToolCallDenied, ToolUse: call}))
	assert.Nil(t, m.MapEvent(event.Event{Type: event.StatusChanged, Status: "running"}))
}

func TestMessageRoundTrip(t *testing.T) {
	msgs := []recode.Message{
		recode.NewSystemMessage("sys"),
		recode.NewUserMessage("hello"),
		recode.NewAssistantMessage("hi"),
	}

	converted := ToMessages(FromMessages(msgs))
	require.Len(t, converted, 3)
	for i := range msgs {
		assert.Equal(t, msgs[i].Role, converted[i].Role)
		assert.Equal(t, msgs[i].Content, converted[i].Content)
	}
}
