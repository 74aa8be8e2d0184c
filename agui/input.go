package agui

import (
	"errors"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"

	"github.com/recodeai/recode"
)

// RunAgentInput is the AG-UI protocol request for running an agent. It is
// transport-agnostic; hosts decode it from whatever carries the request.
type RunAgentInput struct {
	ThreadID string           `json:"thread_id"`
	RunID    string           `json:"run_id"`
	Messages []events.Message `json:"messages"`
}

// PreparedInput is a validated, converted input ready for a task run.
type PreparedInput struct {
	ThreadID string
	RunID    string
	// Goal is the most recent user message, used as the task goal.
	Goal string
	// Messages is the full converted conversation.
	Messages []recode.Message
}

// ErrNoMessages is returned when the input contains no messages.
var ErrNoMessages = errors.New("agui: no messages provided")

// ErrNoUserMessage is returned when no user message is present to serve as
// the task goal.
var ErrNoUserMessage = errors.New("agui: no user message provided")

// Prepare validates the input and converts it to runtime types.
func (r *RunAgentInput) Prepare() (*PreparedInput, error) {
	messages := ToMessages(r.Messages)
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}

	goal := ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == recode.RoleUser {
			goal = messages[i].Content
			break
		}
	}
	if goal == "" {
		return nil, ErrNoUserMessage
	}

	return &PreparedInput{
		ThreadID: r.ThreadID,
		RunID:    r.RunID,
		Goal:     goal,
		Messages: messages,
	}, nil
}
